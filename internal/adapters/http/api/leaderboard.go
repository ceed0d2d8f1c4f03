package api

import (
	"context"
	"net/http"
)

// LeaderboardDependencies defines the interface for leaderboard operations
type LeaderboardDependencies interface {
	TopListings(ctx context.Context, n int) ([]Entry, error)
	TopStores(ctx context.Context, n int) ([]Entry, error)
}

// LeaderboardHandler handles leaderboard requests
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleListings handles GET /leaderboard/listings?limit=N requests
func (h *LeaderboardHandler) HandleListings(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "api.top_listings", h.deps.TopListings)
}

// HandleStores handles GET /leaderboard/stores?limit=N requests
func (h *LeaderboardHandler) HandleStores(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "api.top_stores", h.deps.TopStores)
}

func (h *LeaderboardHandler) serve(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	top func(context.Context, int) ([]Entry, error),
) {
	n, err := intQuery(op, r, "limit", defaultLimit)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	entries, err := top(r.Context(), n)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
