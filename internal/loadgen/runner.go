package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/vorell/internal/domain/model"
	"github.com/okian/vorell/pkg/logger"
)

const (
	directoryPermission  = 0750
	workerChannelBuffer  = 64
	progressEvery        = 1000
	percentageMultiplier = 100
)

// Run seeds stores, listings and users, sends the plan concurrently and
// verifies the counters. It fails with ErrMismatch when any counter or
// favorites total differs from the sequential replay.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("stores", cfg.Stores),
		logger.Int("users", cfg.Users),
		logger.Int("actions", cfg.Actions),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed),
	)

	if err := client.Health(ctx); err != nil {
		return stats, err
	}

	users, listings, err := seed(ctx, client, cfg)
	if err != nil {
		return stats, fmt.Errorf("seed: %w", err)
	}

	plan := Plan(cfg.Seed, users, listings, cfg.Actions, cfg.LikeRatio)
	stats.ActionsPlanned = len(plan)
	if cfg.OutputFile != "" {
		if err := savePlan(cfg.OutputFile, plan); err != nil {
			log.Warn(ctx, "failed to save plan", logger.Error(err))
		}
	}

	sent, failed := submit(ctx, log, client, cfg, plan)
	stats.ActionsSent = sent
	stats.ActionsFailed = failed

	expected, favorites := Expect(plan)
	mismatches, err := verify(ctx, log, client, cfg.Verbose, expected, favorites)
	if err != nil {
		return stats, fmt.Errorf("verify: %w", err)
	}
	stats.Mismatches = mismatches

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if failed > 0 || mismatches > 0 {
		return stats, fmt.Errorf("%w: %d failed requests, %d mismatches", ErrMismatch, failed, mismatches)
	}
	return stats, nil
}

// seed signs up the stores with one listing each, then the users.
func seed(ctx context.Context, c *Client, cfg *Config) ([]string, []string, error) {
	var users, listings []string
	run := uuid.NewString()[:8]
	for i := 0; i < cfg.Stores; i++ {
		storeID, err := c.CreateMember(ctx, fmt.Sprintf("store-%s-%d", run, i), model.MemberStore)
		if err != nil {
			return nil, nil, err
		}
		listingID, err := c.CreateListing(ctx, storeID, model.ListingInput{
			ModelName: fmt.Sprintf("Model %d", i),
			Brand:     "Loadgen",
			Price:     int64(1000 * (i + 1)),
		})
		if err != nil {
			return nil, nil, err
		}
		listings = append(listings, listingID)
	}
	for i := 0; i < cfg.Users; i++ {
		userID, err := c.CreateMember(ctx, fmt.Sprintf("user-%s-%d", run, i), model.MemberUser)
		if err != nil {
			return nil, nil, err
		}
		users = append(users, userID)
	}
	return users, listings, nil
}

// submit sends the plan with cfg.Workers senders. Every actor is pinned to
// one sender so its actions keep their planned order.
func submit(ctx context.Context, log logger.Logger, c *Client, cfg *Config, plan []Action) (int, int) {
	workers := max(cfg.Workers, 1)
	queues := make([]chan Action, workers)
	for i := range queues {
		queues[i] = make(chan Action, workerChannelBuffer)
	}

	var sent, failed atomic.Int64
	var wg sync.WaitGroup
	for _, q := range queues {
		wg.Add(1)
		go func(q <-chan Action) {
			defer wg.Done()
			for a := range q {
				var err error
				if a.Kind == ActionLike {
					err = c.Like(ctx, a.ActorID, a.ListingID)
				} else {
					err = c.View(ctx, a.ActorID, a.ListingID)
				}
				n := sent.Add(1)
				if err != nil {
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "request failed", logger.String("kind", string(a.Kind)), logger.Error(err))
					}
				}
				if cfg.Verbose && n%progressEvery == 0 {
					log.Info(ctx, "progress", logger.Int64("sent", n), logger.Int("planned", len(plan)))
				}
			}
		}(q)
	}

	route := make(map[string]int)
dispatch:
	for _, a := range plan {
		w, ok := route[a.ActorID]
		if !ok {
			w = len(route) % workers
			route[a.ActorID] = w
		}
		select {
		case <-ctx.Done():
			break dispatch
		case queues[w] <- a:
		}
	}
	for _, q := range queues {
		close(q)
	}
	wg.Wait()
	return int(sent.Load()), int(failed.Load())
}

// savePlan writes the plan as a JSON array.
func savePlan(filename string, plan []Action) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, actionsPerSecond float64
	if stats.ActionsSent > 0 {
		successRate = float64(stats.ActionsSent-stats.ActionsFailed) / float64(stats.ActionsSent) * percentageMultiplier
	}
	if stats.Duration > 0 {
		actionsPerSecond = float64(stats.ActionsSent) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("actionsPlanned", stats.ActionsPlanned),
		logger.Int("actionsSent", stats.ActionsSent),
		logger.Int("actionsFailed", stats.ActionsFailed),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("actionsPerSecond", actionsPerSecond),
	)
}
