package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/vorell/internal/adapters/http/api"
	"github.com/okian/vorell/internal/adapters/http/swagger"
	"github.com/okian/vorell/internal/adapters/repository"
	service "github.com/okian/vorell/internal/app"
	"github.com/okian/vorell/internal/config"
	"github.com/okian/vorell/internal/domain/ledger"
	"github.com/okian/vorell/pkg/logger"
	"github.com/okian/vorell/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	serviceMetricsFactor      = 3 // service gauges refresh this many times slower than system ones
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// We collect our own system metrics on a private registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return fmt.Errorf("apply log level: %w", err)
	}
	log := logger.Get()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing store failed", logger.Error(err))
		}
	}()

	svc := newService(cfg, store, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openStore connects to the configured database and migrates the schema.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*repository.Store, error) {
	store, err := repository.Open(cfg.DBDriver, cfg.DBDSN,
		repository.WithLogger(log.Named("repository")),
		repository.WithMaxOpenConns(cfg.DBMaxOpenConns),
		repository.WithMaxIdleConns(cfg.DBMaxIdleConns),
		repository.WithSQLDebug(cfg.LogLevel == "debug"),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return store, nil
}

func newService(cfg *config.Config, store *repository.Store, log logger.Logger) *service.Service {
	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithMaxPageLimit(cfg.MaxPageLimit),
		service.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
	}
	if cfg.LedgerBackend == "memory" {
		opts = append(opts, service.WithLedger(ledger.NewMemory()))
	}
	return service.New(store, opts...)
}

func newMux(ctx context.Context, svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the listing and member gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsFactor * metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.GetStats(ctx)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
