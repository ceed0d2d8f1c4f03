package repository

import (
	"time"

	"github.com/okian/vorell/internal/domain/model"
)

type listingRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	OwnerID   string `gorm:"size:36;not null;index:idx_listings_owner"`
	ModelName string `gorm:"size:200;not null"`
	Brand     string `gorm:"size:100"`
	Price     int64  `gorm:"not null"`
	Status    string `gorm:"size:16;not null;index:idx_listings_status_rank,priority:1"`
	Views     int64  `gorm:"not null"`
	Likes     int64  `gorm:"not null"`
	Comments  int64  `gorm:"not null"`
	Rank      int64  `gorm:"not null;index:idx_listings_status_rank,priority:2"`
	SoldAt    *time.Time
	RemovedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (listingRow) TableName() string { return tableListings }

type memberRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Nick      string `gorm:"size:100;not null;uniqueIndex:idx_members_nick"`
	Type      string `gorm:"size:16;not null;index:idx_members_type_status,priority:1"`
	Status    string `gorm:"size:16;not null;index:idx_members_type_status,priority:2"`
	Listings  int64  `gorm:"not null"`
	Articles  int64  `gorm:"not null"`
	Likes     int64  `gorm:"not null"`
	Views     int64  `gorm:"not null"`
	Comments  int64  `gorm:"not null"`
	Rank      int64  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (memberRow) TableName() string { return tableMembers }

// likeRow and viewRow only exist for migration; index names are global in
// SQLite so each table carries its own.
type likeRow struct {
	ID          string    `gorm:"primaryKey;size:36"`
	ActorID     string    `gorm:"size:36;not null;uniqueIndex:idx_likes_tuple,priority:1"`
	TargetID    string    `gorm:"size:36;not null;uniqueIndex:idx_likes_tuple,priority:2"`
	TargetGroup string    `gorm:"size:16;not null;uniqueIndex:idx_likes_tuple,priority:3"`
	CreatedAt   time.Time `gorm:"not null;index:idx_likes_created"`
}

func (likeRow) TableName() string { return tableLikes }

type viewRow struct {
	ID          string    `gorm:"primaryKey;size:36"`
	ActorID     string    `gorm:"size:36;not null;uniqueIndex:idx_views_tuple,priority:1"`
	TargetID    string    `gorm:"size:36;not null;uniqueIndex:idx_views_tuple,priority:2"`
	TargetGroup string    `gorm:"size:16;not null;uniqueIndex:idx_views_tuple,priority:3"`
	CreatedAt   time.Time `gorm:"not null;index:idx_views_created"`
}

func (viewRow) TableName() string { return tableViews }

// interactionRow is the shared shape of the likes and views tables.
type interactionRow struct {
	ID          string
	ActorID     string
	TargetID    string
	TargetGroup string
	CreatedAt   time.Time
}

const (
	tableListings = "listings"
	tableMembers  = "members"
	tableLikes    = "likes"
	tableViews    = "views"
)

func interactionTable(kind model.Kind) string {
	if kind == model.KindView {
		return tableViews
	}
	return tableLikes
}

func (r listingRow) toModel() model.Listing {
	return model.Listing{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		ModelName: r.ModelName,
		Brand:     r.Brand,
		Price:     r.Price,
		Status:    model.ListingStatus(r.Status),
		Views:     r.Views,
		Likes:     r.Likes,
		Comments:  r.Comments,
		Rank:      r.Rank,
		SoldAt:    r.SoldAt,
		RemovedAt: r.RemovedAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r memberRow) toModel() model.Member {
	return model.Member{
		ID:        r.ID,
		Nick:      r.Nick,
		Type:      model.MemberType(r.Type),
		Status:    model.MemberStatus(r.Status),
		Listings:  r.Listings,
		Articles:  r.Articles,
		Likes:     r.Likes,
		Views:     r.Views,
		Comments:  r.Comments,
		Rank:      r.Rank,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r interactionRow) toModel(kind model.Kind) model.Record {
	return model.Record{
		ID:        r.ID,
		ActorID:   r.ActorID,
		TargetID:  r.TargetID,
		Kind:      kind,
		Group:     model.Group(r.TargetGroup),
		CreatedAt: r.CreatedAt,
	}
}
