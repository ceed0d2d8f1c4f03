package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/vorell/pkg/logger"
	"github.com/okian/vorell/pkg/metrics"
	"github.com/robfig/cron/v3"
)

// Default triggers, in cron format with a leading seconds field. The phases
// fire 20 seconds apart every day at 03:00.
const (
	DefaultRollbackSpec    = "0 0 3 * * *"
	DefaultTopListingsSpec = "20 0 3 * * *"
	DefaultTopStoresSpec   = "40 0 3 * * *"

	defaultPhaseTimeout = 15 * time.Minute
)

// Locker grants exclusive per-phase leases across batch replicas. A lease
// taken for a phase that succeeds is left to expire, so its TTL must outlast
// the clock skew between replicas and stay below the trigger period.
type Locker interface {
	TryAcquire(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
}

// Schedule holds the cron specs of the three phases.
type Schedule struct {
	Rollback    string
	TopListings string
	TopStores   string
}

// DefaultSchedule returns the daily 03:00 schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		Rollback:    DefaultRollbackSpec,
		TopListings: DefaultTopListingsSpec,
		TopStores:   DefaultTopStoresSpec,
	}
}

// Scheduler triggers the job's phases from cron. Phases are isolated: a
// failure or panic is logged and counted, never propagated, and the phase
// is not retried before its next trigger.
type Scheduler struct {
	job      *Job
	cron     *cron.Cron
	schedule Schedule
	locker   Locker
	timeout  time.Duration
	location *time.Location
	logger   logger.Logger
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithSchedule overrides the cron specs. Empty fields keep their default.
func WithSchedule(s Schedule) Option {
	return func(sc *Scheduler) {
		if s.Rollback != "" {
			sc.schedule.Rollback = s.Rollback
		}
		if s.TopListings != "" {
			sc.schedule.TopListings = s.TopListings
		}
		if s.TopStores != "" {
			sc.schedule.TopStores = s.TopStores
		}
	}
}

// WithLocker makes each phase take a lease before running.
func WithLocker(l Locker) Option {
	return func(sc *Scheduler) {
		sc.locker = l
	}
}

// WithPhaseTimeout bounds a single phase run.
func WithPhaseTimeout(d time.Duration) Option {
	return func(sc *Scheduler) {
		if d > 0 {
			sc.timeout = d
		}
	}
}

// WithLocation sets the time zone the specs are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(sc *Scheduler) {
		if loc != nil {
			sc.location = loc
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(l logger.Logger) Option {
	return func(sc *Scheduler) {
		if l != nil {
			sc.logger = l
		}
	}
}

// NewScheduler registers the three phases. It fails on an invalid cron expression.
func NewScheduler(job *Job, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		job:      job,
		schedule: DefaultSchedule(),
		timeout:  defaultPhaseTimeout,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("scheduler")
	}

	s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(s.location))
	entries := []struct {
		phase string
		spec  string
	}{
		{PhaseRollback, s.schedule.Rollback},
		{PhaseTopListings, s.schedule.TopListings},
		{PhaseTopStores, s.schedule.TopStores},
	}
	for _, e := range entries {
		phase := e.phase
		if _, err := s.cron.AddFunc(e.spec, func() { s.RunPhase(context.Background(), phase) }); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", phase, e.spec, err)
		}
	}
	return s, nil
}

// Start begins firing triggers in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info(ctx, "batch phase scheduled", logger.Any("next", e.Next))
	}
}

// Stop stops the triggers and waits for running phases until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// Schedule returns the effective cron specs.
func (s *Scheduler) Schedule() Schedule {
	return s.schedule
}

// RunPhase runs one phase with lease, timeout, panic recovery, logging and
// metrics. It never returns an error; the outcome is observable through
// logs and metrics.
func (s *Scheduler) RunPhase(ctx context.Context, phase string) {
	leased := false
	if s.locker != nil {
		ok, err := s.locker.TryAcquire(ctx, phase)
		switch {
		case err != nil:
			// A lease backend outage does not stop ranking.
			s.logger.Warn(ctx, "lease unavailable, running without it",
				logger.String("phase", phase), logger.Error(err))
		case !ok:
			metrics.RecordBatchLeaseSkip(phase)
			s.logger.Info(ctx, "phase held by another replica", logger.String("phase", phase))
			return
		default:
			leased = true
		}
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.run(pctx, phase)
	took := time.Since(start)
	metrics.RecordBatchPhase(phase, err, took)

	if err != nil {
		s.logger.Error(ctx, "batch phase failed",
			logger.String("phase", phase),
			logger.Duration("took", took),
			logger.Error(err),
		)
		if leased {
			// Hand the failed occurrence to a lagging replica.
			if err := s.locker.Release(context.WithoutCancel(ctx), phase); err != nil {
				s.logger.Warn(ctx, "lease release failed", logger.String("phase", phase), logger.Error(err))
			}
		}
		return
	}
	s.logger.Info(ctx, "batch phase completed",
		logger.String("phase", phase),
		logger.Int("ranked", n),
		logger.Duration("took", took),
	)
}

func (s *Scheduler) run(ctx context.Context, phase string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("phase %s panicked: %v", phase, r)
		}
	}()
	switch phase {
	case PhaseRollback:
		return 0, s.job.Rollback(ctx)
	case PhaseTopListings:
		return s.job.RecomputeListings(ctx)
	case PhaseTopStores:
		return s.job.RecomputeStores(ctx)
	}
	return 0, fmt.Errorf("unknown phase %q", phase)
}

// GetStats reports the effective specs and the upcoming trigger times.
func (s *Scheduler) GetStats(_ context.Context) map[string]any {
	next := make([]time.Time, 0, len(s.cron.Entries()))
	for _, e := range s.cron.Entries() {
		next = append(next, e.Next)
	}
	return map[string]any{
		"rollback":    s.schedule.Rollback,
		"topListings": s.schedule.TopListings,
		"topStores":   s.schedule.TopStores,
		"leased":      s.locker != nil,
		"next":        next,
	}
}
