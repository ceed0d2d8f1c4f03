package api

import (
	"net/http"
	"strings"

	"github.com/okian/vorell/internal/domain/model"
)

// ListingHandler handles watch listings and the caller's history.
type ListingHandler struct {
	deps ListingDependencies
}

// NewListingHandler creates a new listing handler.
func NewListingHandler(deps ListingDependencies) *ListingHandler {
	return &ListingHandler{deps: deps}
}

type listingRequest struct {
	ModelName string `json:"model_name"`
	Brand     string `json:"brand"`
	Price     int64  `json:"price"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleCreate handles POST /listings requests. The caller is the owner.
func (h *ListingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_listing"
	ownerID, err := requireActor(op, r)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	var req listingRequest
	if err := decode(op, r, &req); err != nil {
		writeServiceError(w, op, err)
		return
	}
	l, err := h.deps.CreateListing(r.Context(), ownerID, model.ListingInput{
		ModelName: req.ModelName,
		Brand:     req.Brand,
		Price:     req.Price,
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// HandleGet handles GET /listings/{id} requests.
func (h *ListingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_listing"
	l, err := h.deps.GetListing(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// HandleStatus handles PATCH /listings/{id}/status requests.
func (h *ListingHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_listing_status"
	ownerID, err := requireActor(op, r)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	var req statusRequest
	if err := decode(op, r, &req); err != nil {
		writeServiceError(w, op, err)
		return
	}
	status := model.ListingStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	l, err := h.deps.UpdateListingStatus(r.Context(), ownerID, r.PathValue("id"), status)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// HandleLike handles POST /listings/{id}/like requests.
func (h *ListingHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	const op = "api.like_listing"
	actorID, err := requireActor(op, r)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	l, err := h.deps.LikeListing(r.Context(), actorID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// HandleFavorites handles GET /me/favorites?page=&limit= requests.
func (h *ListingHandler) HandleFavorites(w http.ResponseWriter, r *http.Request) {
	const op = "api.favorites"
	actorID, page, err := historyRequest(op, r)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	out, err := h.deps.Favorites(r.Context(), actorID, page)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleVisited handles GET /me/visited?page=&limit= requests.
func (h *ListingHandler) HandleVisited(w http.ResponseWriter, r *http.Request) {
	const op = "api.visited"
	actorID, page, err := historyRequest(op, r)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	out, err := h.deps.Visited(r.Context(), actorID, page)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func historyRequest(op string, r *http.Request) (string, model.Page, error) {
	actorID, err := requireActor(op, r)
	if err != nil {
		return "", model.Page{}, err
	}
	page, err := pageQuery(op, r)
	if err != nil {
		return "", model.Page{}, err
	}
	return actorID, page, nil
}
