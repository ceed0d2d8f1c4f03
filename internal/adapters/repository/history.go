package repository

import (
	"context"
	"fmt"

	"github.com/okian/vorell/internal/domain/model"
	"gorm.io/gorm"
)

// Favorites lists the IN_STOCK listings actorID has liked, newest like
// first, with the total number of matches.
func (s *Store) Favorites(ctx context.Context, actorID string, page model.Page) (model.Listings, error) {
	return s.history(ctx, tableLikes, actorID, page, true)
}

// Visited lists every listing actorID has viewed, newest view first.
func (s *Store) Visited(ctx context.Context, actorID string, page model.Page) (model.Listings, error) {
	return s.history(ctx, tableViews, actorID, page, false)
}

func (s *Store) history(ctx context.Context, table, actorID string, page model.Page, inStockOnly bool) (model.Listings, error) {
	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).
			Table(table+" AS i").
			Joins("JOIN "+tableListings+" AS w ON w.id = i.target_id").
			Where("i.actor_id = ? AND i.target_group = ?", actorID, string(model.GroupWatch))
		if inStockOnly {
			q = q.Where("w.status = ?", string(model.ListingInStock))
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return model.Listings{}, fmt.Errorf("count %s of %s: %w", table, actorID, err)
	}

	var rows []listingRow
	err := base().
		Select("w.*").
		Order("i.created_at DESC").Order("i.id DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Scan(&rows).Error
	if err != nil {
		return model.Listings{}, fmt.Errorf("list %s of %s: %w", table, actorID, err)
	}

	out := model.Listings{Items: make([]model.Listing, 0, len(rows)), Total: total}
	for _, r := range rows {
		out.Items = append(out.Items, r.toModel())
	}
	return out, nil
}
