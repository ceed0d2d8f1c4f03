// Package ledger defines the interaction ledger: at most one like or view
// record per (actor, target, group).
package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/vorell/internal/domain/model"
)

// Ledger stores like and view records keyed by their uniqueness tuple.
type Ledger interface {
	// Exists reports whether a record for key is present.
	Exists(ctx context.Context, key model.Key) (bool, error)

	// Find returns the record for key or ErrNotFound.
	Find(ctx context.Context, key model.Key) (model.Record, error)

	// Create inserts a record for key. A concurrent insert of the same key
	// loses with ErrDuplicate.
	Create(ctx context.Context, key model.Key) (model.Record, error)

	// Delete removes the record with the given id and reports how many
	// records were removed.
	Delete(ctx context.Context, kind model.Kind, id string) (int64, error)
}

// Memory is a Ledger that keeps records in a mutex-guarded map keyed by tuple.
type Memory struct {
	mu    sync.RWMutex
	byKey map[model.Key]model.Record
	byID  map[string]model.Key
	size  atomic.Int64
	now   func() time.Time
	newID func() string
}

// NewMemory creates an in-process ledger. It is unbounded: every record is
// kept until deleted.
func NewMemory(opts ...Option) *Memory {
	l := &Memory{
		byKey: make(map[model.Key]model.Record),
		byID:  make(map[string]model.Key),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Memory) Exists(ctx context.Context, key model.Key) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byKey[key]
	return ok, nil
}

func (l *Memory) Find(ctx context.Context, key model.Key) (model.Record, error) {
	if err := ctxErr(ctx); err != nil {
		return model.Record{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.byKey[key]
	if !ok {
		return model.Record{}, ErrNotFound
	}
	return r, nil
}

func (l *Memory) Create(ctx context.Context, key model.Key) (model.Record, error) {
	if err := ctxErr(ctx); err != nil {
		return model.Record{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byKey[key]; exists {
		return model.Record{}, ErrDuplicate
	}
	r := model.Record{
		ID:        l.newID(),
		ActorID:   key.ActorID,
		TargetID:  key.TargetID,
		Kind:      key.Kind,
		Group:     key.Group,
		CreatedAt: l.now(),
	}
	l.byKey[key] = r
	l.byID[r.ID] = key
	l.size.Add(1)
	return r, nil
}

func (l *Memory) Delete(ctx context.Context, kind model.Kind, id string) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key, ok := l.byID[id]
	if !ok || key.Kind != kind {
		return 0, nil
	}
	delete(l.byID, id)
	delete(l.byKey, key)
	l.size.Add(-1)
	return 1, nil
}

// Size returns the number of records held.
func (l *Memory) Size() int64 {
	return l.size.Load()
}

// Records returns the records of one kind for an actor, newest first.
func (l *Memory) Records(actorID string, kind model.Kind) []model.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Record, 0)
	for k, r := range l.byKey {
		if k.ActorID == actorID && k.Kind == kind {
			out = append(out, r)
		}
	}
	sortNewestFirst(out)
	return out
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
