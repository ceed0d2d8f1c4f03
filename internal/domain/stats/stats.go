// Package stats applies signed deltas to the denormalized counters of
// listings and members.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/vorell/internal/domain/model"
	"github.com/okian/vorell/pkg/logger"
	"github.com/okian/vorell/pkg/metrics"
)

// CounterStore performs the single atomic counter update. Implementations
// must return errors matching ErrNotFound or ErrNegativeCounter when the
// conditional update matched no row.
type CounterStore interface {
	// Increment adds delta to counter on the row and returns the row as it
	// is after the update. The update only applies when counter+delta >= 0.
	Increment(ctx context.Context, entity model.Entity, id, counter string, delta int64) (model.Snapshot, error)
	// Snapshot reads the row without modifying it.
	Snapshot(ctx context.Context, entity model.Entity, id string) (model.Snapshot, error)
}

// allowed is the closed set of mutable counters per entity.
var allowed = map[model.Entity]map[string]struct{}{
	model.EntityListing: {
		model.CounterViews:    {},
		model.CounterLikes:    {},
		model.CounterComments: {},
	},
	model.EntityMember: {
		model.CounterListings: {},
		model.CounterArticles: {},
		model.CounterLikes:    {},
		model.CounterViews:    {},
		model.CounterComments: {},
	},
}

// Allowed reports whether counter is mutable on entity.
func Allowed(entity model.Entity, counter string) bool {
	_, ok := allowed[entity][counter]
	return ok
}

// Editor is the only writer of interaction counters.
type Editor struct {
	store  CounterStore
	logger logger.Logger
}

// Option applies a configuration option to the Editor.
type Option func(*Editor)

// WithLogger sets the editor's logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEditor creates an editor over store.
func NewEditor(store CounterStore, opts ...Option) *Editor {
	e := &Editor{store: store}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("stats")
	}
	return e
}

// Adjust adds delta to the named counter of the entity and returns the
// updated snapshot. It panics on a counter name outside the entity's
// allow-list. A zero delta reads the current snapshot.
func (e *Editor) Adjust(ctx context.Context, entity model.Entity, id, counter string, delta int64) (model.Snapshot, error) {
	if !Allowed(entity, counter) {
		panic(fmt.Sprintf("stats: counter %q is not mutable on %s", counter, entity))
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if delta == 0 {
		snap, err := e.store.Snapshot(ctx, entity, id)
		if err != nil {
			return model.Snapshot{}, e.fail(ctx, entity, id, counter, delta, err)
		}
		return snap, nil
	}

	snap, err := e.store.Increment(ctx, entity, id, counter, delta)
	if err != nil {
		return model.Snapshot{}, e.fail(ctx, entity, id, counter, delta, err)
	}
	metrics.RecordCounterAdjustment(string(entity), counter)
	e.logger.Debug(ctx, "counter adjusted",
		logger.String("entity", string(entity)),
		logger.String("id", id),
		logger.String("counter", counter),
		logger.Int64("delta", delta),
		logger.Int64("value", snap.Counters[counter]),
	)
	return snap, nil
}

func (e *Editor) fail(ctx context.Context, entity model.Entity, id, counter string, delta int64, err error) error {
	var reason string
	switch {
	case errors.Is(err, ErrNotFound):
		reason = "not_found"
	case errors.Is(err, ErrNegativeCounter):
		reason = "negative"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "cancelled"
		err = fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	default:
		reason = "store"
		err = fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	metrics.RecordCounterError(string(entity), reason)
	e.logger.Warn(ctx, "counter adjustment failed",
		logger.String("entity", string(entity)),
		logger.String("id", id),
		logger.String("counter", counter),
		logger.Int64("delta", delta),
		logger.Error(err),
	)
	return fmt.Errorf("adjust %s %s.%s: %w", entity, id, counter, err)
}
