package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/okian/vorell/internal/domain/ledger"
	"github.com/okian/vorell/internal/domain/model"
	"gorm.io/gorm"
)

// Ledger is the interaction ledger on the likes and views tables. The
// unique index on (actor_id, target_id, target_group) arbitrates concurrent
// inserts.
type Ledger struct {
	store *Store
}

// Ledger returns the SQL interaction ledger sharing the store's pool.
func (s *Store) Ledger() *Ledger {
	return &Ledger{store: s}
}

func (l *Ledger) table(ctx context.Context, kind model.Kind) *gorm.DB {
	return l.store.db.WithContext(ctx).Table(interactionTable(kind))
}

func tuple(key model.Key) (string, []any) {
	return "actor_id = ? AND target_id = ? AND target_group = ?",
		[]any{key.ActorID, key.TargetID, string(key.Group)}
}

// Exists reports whether the tuple has a record.
func (l *Ledger) Exists(ctx context.Context, key model.Key) (bool, error) {
	q, args := tuple(key)
	var n int64
	if err := l.table(ctx, key.Kind).Where(q, args...).Count(&n).Error; err != nil {
		return false, fmt.Errorf("lookup %s: %w", key.Kind, err)
	}
	return n > 0, nil
}

// Find returns the record for the tuple.
func (l *Ledger) Find(ctx context.Context, key model.Key) (model.Record, error) {
	q, args := tuple(key)
	var row interactionRow
	err := l.table(ctx, key.Kind).Where(q, args...).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Record{}, ledger.ErrNotFound
		}
		return model.Record{}, fmt.Errorf("find %s: %w", key.Kind, err)
	}
	return row.toModel(key.Kind), nil
}

// Create inserts a record; a unique-index conflict maps to
// ledger.ErrDuplicate.
func (l *Ledger) Create(ctx context.Context, key model.Key) (model.Record, error) {
	row := interactionRow{
		ID:          uuid.NewString(),
		ActorID:     key.ActorID,
		TargetID:    key.TargetID,
		TargetGroup: string(key.Group),
		CreatedAt:   l.store.now().UTC(),
	}
	if err := l.table(ctx, key.Kind).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.Record{}, ledger.ErrDuplicate
		}
		return model.Record{}, fmt.Errorf("insert %s: %w", key.Kind, err)
	}
	return row.toModel(key.Kind), nil
}

// Delete removes the record with id and reports the deleted count.
func (l *Ledger) Delete(ctx context.Context, kind model.Kind, id string) (int64, error) {
	res := l.table(ctx, kind).Where("id = ?", id).Delete(&interactionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete %s %s: %w", kind, id, res.Error)
	}
	return res.RowsAffected, nil
}

var _ ledger.Ledger = (*Ledger)(nil)
