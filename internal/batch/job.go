// Package batch recomputes popularity ranks on a schedule.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/vorell/internal/domain/model"
	"github.com/okian/vorell/internal/domain/scoring"
	"github.com/okian/vorell/pkg/logger"
	"github.com/okian/vorell/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Phase names, also used as lease names and metric labels.
const (
	PhaseRollback    = "rollback"
	PhaseTopListings = "top_listings"
	PhaseTopStores   = "top_stores"
)

const defaultConcurrency = 8

// RankStore is the storage the job reads counters from and writes ranks to.
type RankStore interface {
	ResetListingRanks(ctx context.Context) (int64, error)
	ResetStoreRanks(ctx context.Context) (int64, error)
	StaleListings(ctx context.Context) ([]model.Listing, error)
	StaleStores(ctx context.Context) ([]model.Member, error)
	SetRank(ctx context.Context, entity model.Entity, id string, rank int64) error
}

// Job runs the reset-then-recompute cycle.
type Job struct {
	store       RankStore
	listings    *scoring.WeightedScorer
	stores      *scoring.WeightedScorer
	concurrency int
	logger      logger.Logger
}

// JobOption applies a configuration option to the Job.
type JobOption func(*Job)

// WithListingWeights overrides the listing weight table.
func WithListingWeights(w map[string]int64) JobOption {
	return func(j *Job) {
		j.listings = scoring.NewWeightedScorer(scoring.DefaultListingWeights(), scoring.WithWeightsFromConfig(w))
	}
}

// WithStoreWeights overrides the store weight table.
func WithStoreWeights(w map[string]int64) JobOption {
	return func(j *Job) {
		j.stores = scoring.NewWeightedScorer(scoring.DefaultStoreWeights(), scoring.WithWeightsFromConfig(w))
	}
}

// WithConcurrency bounds how many rank writes run at once.
func WithConcurrency(n int) JobOption {
	return func(j *Job) {
		if n > 0 {
			j.concurrency = n
		}
	}
}

// WithJobLogger sets the job's logger.
func WithJobLogger(l logger.Logger) JobOption {
	return func(j *Job) {
		if l != nil {
			j.logger = l
		}
	}
}

// NewJob creates a job over store with the default weight tables.
func NewJob(store RankStore, opts ...JobOption) *Job {
	j := &Job{
		store:       store,
		listings:    scoring.NewWeightedScorer(scoring.DefaultListingWeights()),
		stores:      scoring.NewWeightedScorer(scoring.DefaultStoreWeights()),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = logger.Get().Named("batch")
	}
	return j
}

// Rollback zeroes the rank of every IN_STOCK listing and every active
// store. Both resets are attempted even if the first fails.
func (j *Job) Rollback(ctx context.Context) error {
	listings, errL := j.store.ResetListingRanks(ctx)
	stores, errS := j.store.ResetStoreRanks(ctx)
	if err := errors.Join(errL, errS); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	j.logger.Info(ctx, "ranks rolled back",
		logger.Int64("listings", listings),
		logger.Int64("stores", stores),
	)
	return nil
}

// RecomputeListings ranks every IN_STOCK listing whose rank is zero.
func (j *Job) RecomputeListings(ctx context.Context) (int, error) {
	rows, err := j.store.StaleListings(ctx)
	if err != nil {
		return 0, fmt.Errorf("recompute listings: %w", err)
	}
	targets := make([]target, 0, len(rows))
	for _, l := range rows {
		targets = append(targets, target{id: l.ID, rank: j.listings.Score(l.Counters())})
	}
	n, err := j.persist(ctx, model.EntityListing, targets)
	metrics.RecordEntitiesRanked(string(model.EntityListing), n)
	if err != nil {
		return n, fmt.Errorf("recompute listings: %w", err)
	}
	return n, nil
}

// RecomputeStores ranks every active store whose rank is zero.
func (j *Job) RecomputeStores(ctx context.Context) (int, error) {
	rows, err := j.store.StaleStores(ctx)
	if err != nil {
		return 0, fmt.Errorf("recompute stores: %w", err)
	}
	targets := make([]target, 0, len(rows))
	for _, m := range rows {
		targets = append(targets, target{id: m.ID, rank: j.stores.Score(m.Counters())})
	}
	n, err := j.persist(ctx, model.EntityMember, targets)
	metrics.RecordEntitiesRanked("store", n)
	if err != nil {
		return n, fmt.Errorf("recompute stores: %w", err)
	}
	return n, nil
}

type target struct {
	id   string
	rank int64
}

// persist writes ranks with bounded concurrency. A failed write does not
// stop the others; the first error is returned.
func (j *Job) persist(ctx context.Context, entity model.Entity, targets []target) (int, error) {
	var g errgroup.Group
	g.SetLimit(j.concurrency)

	var done atomic.Int64
	for _, t := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := j.store.SetRank(ctx, entity, t.id, t.rank); err != nil {
				return err
			}
			done.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(done.Load()), err
}

// RunOnce runs the three phases in order. A failing phase is reported and
// the next still runs, as on the schedule.
func (j *Job) RunOnce(ctx context.Context) error {
	var errs []error
	start := time.Now()
	if err := j.Rollback(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := j.RecomputeListings(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := j.RecomputeStores(ctx); err != nil {
		errs = append(errs, err)
	}
	j.logger.Info(ctx, "batch cycle finished",
		logger.Duration("took", time.Since(start)),
		logger.Int("failed_phases", len(errs)),
	)
	return errors.Join(errs...)
}
