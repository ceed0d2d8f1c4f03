// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file and VORELL_ env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"time"
)

// Config contains process configuration for both the API server and the
// batch service.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the API listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// BatchAddr is where the batch service exposes /healthz and /stats.
	BatchAddr string `koanf:"batch_addr"`

	// DBDriver is sqlite or postgres; DBDSN is passed to the driver as is.
	DBDriver       string `koanf:"db_driver"`
	DBDSN          string `koanf:"db_dsn"`
	DBMaxOpenConns int    `koanf:"db_max_open_conns"`
	DBMaxIdleConns int    `koanf:"db_max_idle_conns"`

	// LedgerBackend selects where like and view records live: sql or memory.
	LedgerBackend string `koanf:"ledger_backend"`

	// RedisAddr enables the batch phase lease when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	LeaseTTLMS    int    `koanf:"lease_ttl_ms"`

	// MaxPageLimit caps the limit of favorites and visited pages.
	MaxPageLimit int `koanf:"max_page_limit"`

	// MaxLeaderboardLimit caps GET /leaderboard/*?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// RankConcurrency bounds concurrent rank writes in a recompute phase.
	RankConcurrency int `koanf:"rank_concurrency"`

	// Cron specs with a leading seconds field.
	ScheduleRollback    string `koanf:"schedule_rollback"`
	ScheduleTopListings string `koanf:"schedule_top_listings"`
	ScheduleTopStores   string `koanf:"schedule_top_stores"`

	// ListingRankWeights and StoreRankWeights map counter names to weights.
	ListingRankWeights map[string]int64 `koanf:"listing_rank_weights"`
	StoreRankWeights   map[string]int64 `koanf:"store_rank_weights"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		BatchAddr:           ":9081",
		DBDriver:            "sqlite",
		DBDSN:               "file:vorell.db?_busy_timeout=5000",
		DBMaxOpenConns:      20,
		DBMaxIdleConns:      5,
		LedgerBackend:       "sql",
		LeaseTTLMS:          300_000,
		MaxPageLimit:        100,
		MaxLeaderboardLimit: 100,
		RankConcurrency:     8,
		ScheduleRollback:    "0 0 3 * * *",
		ScheduleTopListings: "20 0 3 * * *",
		ScheduleTopStores:   "40 0 3 * * *",
		ListingRankWeights: map[string]int64{
			"likes": 2,
			"views": 1,
		},
		StoreRankWeights: map[string]int64{
			"listings": 5,
			"articles": 3,
			"likes":    2,
			"views":    1,
		},
	}
}

// LeaseTTL returns the lease TTL as a duration.
func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLMS) * time.Millisecond
}
