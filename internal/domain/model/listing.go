package model

import "time"

// ListingStatus is the lifecycle of a watch listing.
type ListingStatus string

const (
	ListingInStock    ListingStatus = "IN_STOCK"
	ListingOutOfStock ListingStatus = "OUT_OF_STOCK"
	ListingSold       ListingStatus = "SOLD"
	ListingDeleted    ListingStatus = "DELETE"
)

// Valid reports whether s is a known listing status.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingInStock, ListingOutOfStock, ListingSold, ListingDeleted:
		return true
	}
	return false
}

// Listing is a watch offered by a store member.
type Listing struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"owner_id"`
	ModelName string        `json:"model_name"`
	Brand     string        `json:"brand"`
	Price     int64         `json:"price"`
	Status    ListingStatus `json:"status"`
	Views     int64         `json:"views"`
	Likes     int64         `json:"likes"`
	Comments  int64         `json:"comments"`
	Rank      int64         `json:"rank"`
	SoldAt    *time.Time    `json:"sold_at,omitempty"`
	RemovedAt *time.Time    `json:"removed_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	// MeLiked is filled per request for an authenticated actor.
	MeLiked bool `json:"me_liked"`
}

// Counters returns the listing's counters by name.
func (l Listing) Counters() Counters {
	return Counters{
		CounterViews:    l.Views,
		CounterLikes:    l.Likes,
		CounterComments: l.Comments,
	}
}

// ListingInput carries the fields a store provides when listing a watch.
type ListingInput struct {
	ModelName string `json:"model_name"`
	Brand     string `json:"brand"`
	Price     int64  `json:"price"`
}

// Listings is a page of listings plus the total number of matches.
type Listings struct {
	Items []Listing `json:"items"`
	Total int64     `json:"total"`
}
