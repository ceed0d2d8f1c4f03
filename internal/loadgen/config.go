// Package loadgen drives concurrent likes and views against a running API
// and checks that the denormalized counters match a sequential replay.
package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the API server
	Stores     int           // Stores to sign up, one listing each
	Users      int           // Users that like and view
	Actions    int           // Requests in the plan
	Workers    int           // Concurrent senders
	LikeRatio  float64       // Share of actions that are like toggles
	Seed       uint64        // Plan seed; equal seeds give equal plans
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Where to write the plan; empty skips it
	Verbose    bool          // Log every mismatch and progress
}

// ActionKind separates like toggles from views.
type ActionKind string

const (
	ActionLike ActionKind = "like"
	ActionView ActionKind = "view"
)

// Action is one planned request.
type Action struct {
	Kind      ActionKind `json:"kind"`
	ActorID   string     `json:"actor_id"`
	ListingID string     `json:"listing_id"`
}

// Expected is the counter state a listing must end in.
type Expected struct {
	Likes int64
	Views int64
}

// Stats holds run statistics.
type Stats struct {
	ActionsPlanned int
	ActionsSent    int
	ActionsFailed  int
	Mismatches     int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
