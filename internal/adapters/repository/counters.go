package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/vorell/internal/domain/model"
	"github.com/okian/vorell/internal/domain/stats"
	"gorm.io/gorm"
)

// counterColumns whitelists the columns Increment may interpolate.
var counterColumns = map[model.Entity]map[string]bool{
	model.EntityListing: {
		model.CounterViews: true, model.CounterLikes: true, model.CounterComments: true,
	},
	model.EntityMember: {
		model.CounterListings: true, model.CounterArticles: true,
		model.CounterLikes: true, model.CounterViews: true, model.CounterComments: true,
	},
}

func entityTable(entity model.Entity) string {
	if entity == model.EntityMember {
		return tableMembers
	}
	return tableListings
}

// Increment adds delta to one counter column in a single conditional
// UPDATE. The row is only touched when column+delta stays non-negative.
func (s *Store) Increment(ctx context.Context, entity model.Entity, id, counter string, delta int64) (model.Snapshot, error) {
	if !counterColumns[entity][counter] {
		return model.Snapshot{}, fmt.Errorf("increment %s.%s: %w", entity, counter, ErrUnknownCounter)
	}
	table := entityTable(entity)

	var snap model.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Table(table).
			Where("id = ? AND "+counter+" + ? >= 0", id, delta).
			UpdateColumn(counter, gorm.Expr(counter+" + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Table(table).Where("id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%s %s: %w: %w", entity, id, ErrNotFound, stats.ErrNotFound)
			}
			return fmt.Errorf("%s %s %s%+d: %w: %w", entity, id, counter, delta, ErrNegativeCounter, stats.ErrNegativeCounter)
		}
		var err error
		snap, err = snapshot(tx, entity, id)
		return err
	})
	if err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

// Snapshot reads the counters, status and rank of an entity.
func (s *Store) Snapshot(ctx context.Context, entity model.Entity, id string) (model.Snapshot, error) {
	return snapshot(s.db.WithContext(ctx), entity, id)
}

func snapshot(db *gorm.DB, entity model.Entity, id string) (model.Snapshot, error) {
	switch entity {
	case model.EntityListing:
		var row listingRow
		if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
			return model.Snapshot{}, snapshotErr(entity, id, err)
		}
		l := row.toModel()
		return model.Snapshot{Entity: entity, ID: l.ID, Status: string(l.Status), Counters: l.Counters(), Rank: l.Rank}, nil
	case model.EntityMember:
		var row memberRow
		if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
			return model.Snapshot{}, snapshotErr(entity, id, err)
		}
		m := row.toModel()
		return model.Snapshot{Entity: entity, ID: m.ID, Status: string(m.Status), Counters: m.Counters(), Rank: m.Rank}, nil
	}
	return model.Snapshot{}, fmt.Errorf("snapshot %s: %w", entity, ErrUnknownCounter)
}

func snapshotErr(entity model.Entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w: %w", entity, id, ErrNotFound, stats.ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}
