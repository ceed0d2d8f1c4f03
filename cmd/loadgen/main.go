// Command vorell-loadgen fires concurrent likes and views at a running API
// and checks the resulting counters.
package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/vorell/internal/loadgen"
	"github.com/okian/vorell/pkg/logger"
)

// Default configuration constants.
const (
	defaultStores    = 20
	defaultUsers     = 200
	defaultActions   = 10000
	defaultWorkers   = 2 // multiplier for runtime.NumCPU()
	defaultLikeRatio = 0.4
	defaultTimeout   = 30 * time.Second
	defaultRunTime   = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the API server")
		stores    = flag.Int("stores", defaultStores, "Stores to sign up, one listing each")
		users     = flag.Int("users", defaultUsers, "Users that like and view")
		actions   = flag.Int("actions", defaultActions, "Number of like and view requests")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent senders")
		likeRatio = flag.Float64("like-ratio", defaultLikeRatio, "Share of actions that toggle a like")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Plan seed")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		output    = flag.String("output", "", "Write the generated plan to this JSON file")
		verbose   = flag.Bool("verbose", false, "Log progress and every mismatch")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTime)
	defer cancel()

	_, err := loadgen.Run(ctx, &loadgen.Config{
		BaseURL:    *baseURL,
		Stores:     *stores,
		Users:      *users,
		Actions:    *actions,
		Workers:    *workers,
		LikeRatio:  *likeRatio,
		Seed:       *seed,
		Timeout:    *timeout,
		OutputFile: *output,
		Verbose:    *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
