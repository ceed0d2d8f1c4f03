// Package interaction turns member actions into ledger state changes and
// reports the counter delta each change implies.
package interaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/vorell/internal/domain/ledger"
	"github.com/okian/vorell/internal/domain/model"
	"github.com/okian/vorell/pkg/logger"
	"github.com/okian/vorell/pkg/metrics"
)

// Option applies a configuration option to the toggler or recorder.
type Option func(*base)

type base struct {
	ledger ledger.Ledger
	logger logger.Logger
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

func newBase(l ledger.Ledger, name string, opts []Option) base {
	b := base{ledger: l}
	for _, opt := range opts {
		opt(&b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named(name)
	}
	return b
}

// LikeToggler flips the like state of an (actor, target, group) tuple.
type LikeToggler struct {
	base
}

// NewLikeToggler creates a toggler over the like ledger.
func NewLikeToggler(l ledger.Ledger, opts ...Option) *LikeToggler {
	return &LikeToggler{base: newBase(l, "likes", opts)}
}

// Toggle removes an existing like and returns -1, or creates one and
// returns +1. Two concurrent first likes both return +1: the loser of the
// unique-index race treats the conflict as success. The caller applies the
// delta to the target's likes counter.
func (t *LikeToggler) Toggle(ctx context.Context, actorID, targetID string, group model.Group) (int64, error) {
	if !group.Valid() {
		return 0, fmt.Errorf("toggle like %q/%s: %w", group, targetID, ErrUnknownGroup)
	}
	key := model.Key{ActorID: actorID, TargetID: targetID, Kind: model.KindLike, Group: group}

	existing, err := t.ledger.Find(ctx, key)
	switch {
	case err == nil:
		return t.unlike(ctx, key, existing)
	case errors.Is(err, ledger.ErrNotFound):
		return t.like(ctx, key)
	default:
		return 0, fmt.Errorf("toggle like %s/%s: lookup: %w", group, targetID, err)
	}
}

func (t *LikeToggler) unlike(ctx context.Context, key model.Key, rec model.Record) (int64, error) {
	n, err := t.ledger.Delete(ctx, model.KindLike, rec.ID)
	if err != nil {
		return 0, fmt.Errorf("toggle like %s/%s: %w: %w", key.Group, key.TargetID, ErrDeleteFailed, err)
	}
	if n != 1 {
		// A concurrent unlike already removed the record.
		t.logger.Warn(ctx, "like record vanished during unlike",
			logger.String("actor", key.ActorID),
			logger.String("target", key.TargetID),
			logger.String("group", string(key.Group)),
			logger.Int64("deleted", n),
		)
		return 0, fmt.Errorf("toggle like %s/%s: deleted %d records: %w", key.Group, key.TargetID, n, ErrToggleFailed)
	}
	metrics.RecordLikeToggled(string(key.Group), -1)
	return -1, nil
}

func (t *LikeToggler) like(ctx context.Context, key model.Key) (int64, error) {
	_, err := t.ledger.Create(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrDuplicate):
		metrics.RecordLikeConflict()
		t.logger.Debug(ctx, "concurrent like converged",
			logger.String("actor", key.ActorID),
			logger.String("target", key.TargetID),
		)
	default:
		return 0, fmt.Errorf("toggle like %s/%s: %w: %w", key.Group, key.TargetID, ErrCreateFailed, err)
	}
	metrics.RecordLikeToggled(string(key.Group), 1)
	return 1, nil
}

// Outcome is the result of recording a view.
type Outcome int

const (
	// AlreadySeen means the actor had viewed the target before.
	AlreadySeen Outcome = iota
	// Recorded means this is the actor's first view of the target.
	Recorded
)

func (o Outcome) String() string {
	if o == Recorded {
		return "recorded"
	}
	return "already_seen"
}

// ViewRecorder records unique views. There is no un-view.
type ViewRecorder struct {
	base
}

// NewViewRecorder creates a recorder over the view ledger.
func NewViewRecorder(l ledger.Ledger, opts ...Option) *ViewRecorder {
	return &ViewRecorder{base: newBase(l, "views", opts)}
}

// Record stores the first view of target by actor. The caller increments
// the target's views counter only on Recorded, so each actor adds at most
// one view per target even when two requests race.
func (v *ViewRecorder) Record(ctx context.Context, actorID, targetID string, group model.Group) (Outcome, error) {
	if !group.Valid() {
		return AlreadySeen, fmt.Errorf("record view %q/%s: %w", group, targetID, ErrUnknownGroup)
	}
	key := model.Key{ActorID: actorID, TargetID: targetID, Kind: model.KindView, Group: group}

	seen, err := v.ledger.Exists(ctx, key)
	if err != nil {
		return AlreadySeen, fmt.Errorf("record view %s/%s: lookup: %w", group, targetID, err)
	}
	if seen {
		metrics.RecordView(string(group), false)
		return AlreadySeen, nil
	}

	if _, err := v.ledger.Create(ctx, key); err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			metrics.RecordView(string(group), false)
			return AlreadySeen, nil
		}
		return AlreadySeen, fmt.Errorf("record view %s/%s: %w: %w", group, targetID, ErrCreateFailed, err)
	}
	metrics.RecordView(string(group), true)
	return Recorded, nil
}
