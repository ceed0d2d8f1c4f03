// Command vorell-batch recomputes listing and store ranks on a cron schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/vorell/internal/adapters/cache"
	"github.com/okian/vorell/internal/adapters/http/api"
	"github.com/okian/vorell/internal/adapters/repository"
	"github.com/okian/vorell/internal/batch"
	"github.com/okian/vorell/internal/config"
	"github.com/okian/vorell/pkg/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	once := flag.Bool("once", false, "run rollback, top listings and top stores once, then exit")
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg, *once); err != nil {
		logger.Get().Error(ctx, "batch exited", logger.Error(err))
		os.Exit(1)
	}
}

// run executes one cycle when once is set, otherwise it schedules the
// phases and serves /healthz and /stats until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, once bool) error {
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return fmt.Errorf("apply log level: %w", err)
	}
	log := logger.Get().Named("batch")

	store, err := repository.Open(cfg.DBDriver, cfg.DBDSN,
		repository.WithLogger(log.Named("repository")),
		repository.WithMaxOpenConns(cfg.DBMaxOpenConns),
		repository.WithMaxIdleConns(cfg.DBMaxIdleConns),
		repository.WithSQLDebug(cfg.LogLevel == "debug"),
	)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing store failed", logger.Error(err))
		}
	}()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	job := batch.NewJob(store,
		batch.WithListingWeights(cfg.ListingRankWeights),
		batch.WithStoreWeights(cfg.StoreRankWeights),
		batch.WithConcurrency(cfg.RankConcurrency),
		batch.WithJobLogger(log.Named("job")),
	)
	if once {
		return job.RunOnce(ctx)
	}

	opts := []batch.Option{
		batch.WithSchedule(batch.Schedule{
			Rollback:    cfg.ScheduleRollback,
			TopListings: cfg.ScheduleTopListings,
			TopStores:   cfg.ScheduleTopStores,
		}),
		batch.WithPhaseTimeout(cfg.LeaseTTL()),
		batch.WithLogger(log.Named("scheduler")),
	}
	if cfg.RedisAddr != "" {
		client, err := cache.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			_ = client.Close()
		}()
		opts = append(opts, batch.WithLocker(cache.NewLeaser(client,
			cache.WithTTL(cfg.LeaseTTL()),
			cache.WithLogger(log.Named("lease")),
		)))
	}

	sched, err := batch.NewScheduler(job, opts...)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	sched.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.BatchAddr,
		Handler:           newMux(sched),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info(ctx, "starting batch HTTP server", logger.String("addr", cfg.BatchAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "batch HTTP server failed", logger.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down batch service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "batch HTTP shutdown failed", logger.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "scheduler stop failed", logger.Error(err))
	}
	log.Info(ctx, "batch service stopped")
	return nil
}

func newMux(stats api.StatsProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", api.MetricsMiddleware(api.NewHealthHandler().HandleHealth, "batch_healthz"))
	mux.HandleFunc("GET /stats", api.MetricsMiddleware(api.NewStatsHandler(stats).HandleStats, "batch_stats"))
	return mux
}
