// Package model contains domain models passed between layers.
package model

import (
	"math"
	"time"
)

// Group tags which kind of entity an interaction refers to.
type Group string

const (
	GroupWatch    Group = "WATCH"
	GroupProperty Group = "PROPERTY"
	GroupMember   Group = "MEMBER"
	GroupArticle  Group = "ARTICLE"
	GroupComment  Group = "COMMENT"
)

// Valid reports whether g is a known group.
func (g Group) Valid() bool {
	switch g {
	case GroupWatch, GroupProperty, GroupMember, GroupArticle, GroupComment:
		return true
	}
	return false
}

// Kind separates the like ledger from the view ledger.
type Kind string

const (
	KindLike Kind = "LIKE"
	KindView Kind = "VIEW"
)

// Valid reports whether k is a known interaction kind.
func (k Kind) Valid() bool {
	return k == KindLike || k == KindView
}

// Key identifies at most one interaction record.
type Key struct {
	ActorID  string
	TargetID string
	Kind     Kind
	Group    Group
}

// Record is a single like or view stored in the interaction ledger.
type Record struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	TargetID  string    `json:"target_id"`
	Kind      Kind      `json:"kind"`
	Group     Group     `json:"group"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the uniqueness tuple of r.
func (r Record) Key() Key {
	return Key{ActorID: r.ActorID, TargetID: r.TargetID, Kind: r.Kind, Group: r.Group}
}

// Entity distinguishes the two ranked document kinds.
type Entity string

const (
	EntityListing Entity = "listing"
	EntityMember  Entity = "member"
)

// Counter names. Listing and member rows share some of them.
const (
	CounterViews    = "views"
	CounterLikes    = "likes"
	CounterComments = "comments"
	CounterListings = "listings"
	CounterArticles = "articles"
)

// Counters is a snapshot of an entity's denormalized counters by name.
type Counters map[string]int64

// Snapshot is the state of a ranked entity after a counter update.
type Snapshot struct {
	Entity   Entity   `json:"entity"`
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Counters Counters `json:"counters"`
	Rank     int64    `json:"rank"`
}

// Page is an opaque skip/limit window; Page starts at 1.
type Page struct {
	Page  int
	Limit int
}

// Offset converts the page into a row offset. It saturates at math.MaxInt
// instead of wrapping.
func (p Page) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	if p.Overflows() {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Overflows reports whether the offset of a valid page exceeds math.MaxInt.
func (p Page) Overflows() bool {
	return p.Limit >= 1 && p.Page-1 > math.MaxInt/p.Limit
}

// Valid reports whether page and limit are both at least 1.
func (p Page) Valid() bool {
	return p.Page >= 1 && p.Limit >= 1
}
