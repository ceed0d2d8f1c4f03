// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/vorell/internal/app"
	"github.com/okian/vorell/internal/domain/model"
	"github.com/okian/vorell/internal/domain/types"
)

// ActorHeader carries the id of the member making the request.
const ActorHeader = "X-Member-Id"

const (
	defaultPage  = 1
	defaultLimit = 20
)

// MemberDependencies covers the member operations.
type MemberDependencies interface {
	CreateMember(ctx context.Context, in model.MemberInput) (model.Member, error)
	GetMember(ctx context.Context, actorID, memberID string) (model.Member, error)
	LikeMember(ctx context.Context, actorID, memberID string) (model.Member, error)
	WithdrawMember(ctx context.Context, actorID, memberID string) (model.Member, error)
}

// ListingDependencies covers the listing operations and actor history.
type ListingDependencies interface {
	CreateListing(ctx context.Context, ownerID string, in model.ListingInput) (model.Listing, error)
	GetListing(ctx context.Context, actorID, listingID string) (model.Listing, error)
	UpdateListingStatus(ctx context.Context, ownerID, listingID string, status model.ListingStatus) (model.Listing, error)
	LikeListing(ctx context.Context, actorID, listingID string) (model.Listing, error)
	Favorites(ctx context.Context, actorID string, page model.Page) (model.Listings, error)
	Visited(ctx context.Context, actorID string, page model.Page) (model.Listings, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	MemberDependencies
	ListingDependencies
	LeaderboardDependencies
	StatsProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	memberHandler      *MemberHandler
	listingHandler     *ListingHandler
	leaderboardHandler *LeaderboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		memberHandler:      NewMemberHandler(deps),
		listingHandler:     NewListingHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /members", MetricsMiddleware(s.memberHandler.HandleCreate, "members_create"))
	mux.HandleFunc("GET /members/{id}", MetricsMiddleware(s.memberHandler.HandleGet, "members_get"))
	mux.HandleFunc("DELETE /members/{id}", MetricsMiddleware(s.memberHandler.HandleWithdraw, "members_withdraw"))
	mux.HandleFunc("POST /members/{id}/like", MetricsMiddleware(s.memberHandler.HandleLike, "members_like"))

	mux.HandleFunc("POST /listings", MetricsMiddleware(s.listingHandler.HandleCreate, "listings_create"))
	mux.HandleFunc("GET /listings/{id}", MetricsMiddleware(s.listingHandler.HandleGet, "listings_get"))
	mux.HandleFunc("PATCH /listings/{id}/status", MetricsMiddleware(s.listingHandler.HandleStatus, "listings_status"))
	mux.HandleFunc("POST /listings/{id}/like", MetricsMiddleware(s.listingHandler.HandleLike, "listings_like"))
	mux.HandleFunc("GET /me/favorites", MetricsMiddleware(s.listingHandler.HandleFavorites, "me_favorites"))
	mux.HandleFunc("GET /me/visited", MetricsMiddleware(s.listingHandler.HandleVisited, "me_visited"))

	mux.HandleFunc("GET /leaderboard/listings", MetricsMiddleware(s.leaderboardHandler.HandleListings, "leaderboard_listings"))
	mux.HandleFunc("GET /leaderboard/stores", MetricsMiddleware(s.leaderboardHandler.HandleStores, "leaderboard_stores"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service sentinels into HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", Wrap(op, err))
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", Wrap(op, err))
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, service.ErrNickTaken):
		writeError(w, http.StatusConflict, "conflict", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// actor returns the optional member id of the caller.
func actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

// requireActor returns the caller's member id or ErrUnauthorized.
func requireActor(op string, r *http.Request) (string, error) {
	id := actor(r)
	if id == "" {
		return "", NewKind(op, ErrUnauthorized)
	}
	return id, nil
}

// decode reads a JSON body, rejecting unknown fields.
func decode(op string, r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// intQuery parses an optional positive integer query parameter.
func intQuery(op string, r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, NewKind(op, ErrBadRequest)
	}
	return n, nil
}

func pageQuery(op string, r *http.Request) (model.Page, error) {
	page, err := intQuery(op, r, "page", defaultPage)
	if err != nil {
		return model.Page{}, err
	}
	limit, err := intQuery(op, r, "limit", defaultLimit)
	if err != nil {
		return model.Page{}, err
	}
	return model.Page{Page: page, Limit: limit}, nil
}
