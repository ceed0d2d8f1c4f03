package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/vorell/pkg/logger"
	"github.com/robfig/cron/v3"
)

const envPrefix = "VORELL_"

// maxLeaseTTL keeps a batch lease from spanning into the next daily trigger.
const maxLeaseTTL = 24 * time.Hour

// cronParser accepts the six-field specs the batch scheduler uses.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if VORELL_CONFIG is set
//  3. env (prefix VORELL_)
//
// Weight maps can only be set from the file.
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// VORELL_DB_DSN -> db_dsn: flat keys, underscores preserved.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level %q: %v", c.LogLevel, err)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return invalid("db_driver must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return invalid("db_dsn must not be empty")
	}
	switch c.LedgerBackend {
	case "sql", "memory":
	default:
		return invalid("ledger_backend must be sql or memory, got %q", c.LedgerBackend)
	}
	for name, v := range map[string]int{
		"db_max_open_conns":     c.DBMaxOpenConns,
		"max_page_limit":        c.MaxPageLimit,
		"max_leaderboard_limit": c.MaxLeaderboardLimit,
		"rank_concurrency":      c.RankConcurrency,
		"lease_ttl_ms":          c.LeaseTTLMS,
	} {
		if v <= 0 {
			return invalid("%s must be positive, got %d", name, v)
		}
	}
	if c.LeaseTTL() >= maxLeaseTTL {
		return invalid("lease_ttl_ms must stay below %s, got %d", maxLeaseTTL, c.LeaseTTLMS)
	}
	for name, spec := range map[string]string{
		"schedule_rollback":     c.ScheduleRollback,
		"schedule_top_listings": c.ScheduleTopListings,
		"schedule_top_stores":   c.ScheduleTopStores,
	} {
		if _, err := cronParser.Parse(spec); err != nil {
			return invalid("%s %q: %v", name, spec, err)
		}
	}
	for name, weights := range map[string]map[string]int64{
		"listing_rank_weights": c.ListingRankWeights,
		"store_rank_weights":   c.StoreRankWeights,
	} {
		for counter, w := range weights {
			if w < 0 {
				return invalid("%s.%s must not be negative", name, counter)
			}
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
