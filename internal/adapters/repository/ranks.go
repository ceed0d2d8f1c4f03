package repository

import (
	"context"
	"fmt"

	"github.com/okian/vorell/internal/domain/model"
)

// ResetListingRanks zeroes the rank of every IN_STOCK listing.
func (s *Store) ResetListingRanks(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&listingRow{}).
		Where("status = ?", string(model.ListingInStock)).
		UpdateColumn("rank", 0)
	if res.Error != nil {
		return 0, fmt.Errorf("reset listing ranks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ResetStoreRanks zeroes the rank of every active store member.
func (s *Store) ResetStoreRanks(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&memberRow{}).
		Where("type = ? AND status = ?", string(model.MemberStore), string(model.MemberActive)).
		UpdateColumn("rank", 0)
	if res.Error != nil {
		return 0, fmt.Errorf("reset store ranks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// StaleListings returns IN_STOCK listings whose rank is zero.
func (s *Store) StaleListings(ctx context.Context) ([]model.Listing, error) {
	var rows []listingRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND rank = 0", string(model.ListingInStock)).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select stale listings: %w", err)
	}
	out := make([]model.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// StaleStores returns active store members whose rank is zero.
func (s *Store) StaleStores(ctx context.Context) ([]model.Member, error) {
	var rows []memberRow
	err := s.db.WithContext(ctx).
		Where("type = ? AND status = ? AND rank = 0", string(model.MemberStore), string(model.MemberActive)).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select stale stores: %w", err)
	}
	out := make([]model.Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// SetRank overwrites the rank of one entity.
func (s *Store) SetRank(ctx context.Context, entity model.Entity, id string, rank int64) error {
	res := s.db.WithContext(ctx).Table(entityTable(entity)).Where("id = ?", id).UpdateColumn("rank", rank)
	if res.Error != nil {
		return fmt.Errorf("set %s %s rank: %w", entity, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return nil
}

// TopListings returns the n highest ranked IN_STOCK listings.
func (s *Store) TopListings(ctx context.Context, n int) ([]model.Listing, error) {
	var rows []listingRow
	err := s.db.WithContext(ctx).
		Where("status = ?", string(model.ListingInStock)).
		Order("rank DESC").Order("id ASC").Limit(n).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top listings: %w", err)
	}
	out := make([]model.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// TopStores returns the n highest ranked active stores.
func (s *Store) TopStores(ctx context.Context, n int) ([]model.Member, error) {
	var rows []memberRow
	err := s.db.WithContext(ctx).
		Where("type = ? AND status = ?", string(model.MemberStore), string(model.MemberActive)).
		Order("rank DESC").Order("id ASC").Limit(n).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top stores: %w", err)
	}
	out := make([]model.Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}
