package model

import "time"

// MemberType separates plain users from stores and admins.
type MemberType string

const (
	MemberUser  MemberType = "USER"
	MemberStore MemberType = "STORE"
	MemberAdmin MemberType = "ADMIN"
)

// Valid reports whether t is a known member type.
func (t MemberType) Valid() bool {
	return t == MemberUser || t == MemberStore || t == MemberAdmin
}

// MemberStatus is the lifecycle of a member account.
type MemberStatus string

const (
	MemberActive  MemberStatus = "ACTIVE"
	MemberBlocked MemberStatus = "BLOCK"
	MemberDeleted MemberStatus = "DELETE"
)

// Member is an account; stores own listings and are ranked.
type Member struct {
	ID        string       `json:"id"`
	Nick      string       `json:"nick"`
	Type      MemberType   `json:"type"`
	Status    MemberStatus `json:"status"`
	Listings  int64        `json:"listings"`
	Articles  int64        `json:"articles"`
	Likes     int64        `json:"likes"`
	Views     int64        `json:"views"`
	Comments  int64        `json:"comments"`
	Rank      int64        `json:"rank"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	MeLiked bool `json:"me_liked"`
}

// Counters returns the member's counters by name.
func (m Member) Counters() Counters {
	return Counters{
		CounterListings: m.Listings,
		CounterArticles: m.Articles,
		CounterLikes:    m.Likes,
		CounterViews:    m.Views,
		CounterComments: m.Comments,
	}
}

// MemberInput carries signup fields.
type MemberInput struct {
	Nick string     `json:"nick"`
	Type MemberType `json:"type"`
}
