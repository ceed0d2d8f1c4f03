package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/vorell/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.BatchAddr, convey.ShouldEqual, ":9081")
			convey.So(cfg.DBDriver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.LedgerBackend, convey.ShouldEqual, "sql")
			convey.So(cfg.MaxPageLimit, convey.ShouldEqual, 100)
			convey.So(cfg.ScheduleRollback, convey.ShouldEqual, "0 0 3 * * *")
			convey.So(cfg.ScheduleTopListings, convey.ShouldEqual, "20 0 3 * * *")
			convey.So(cfg.ScheduleTopStores, convey.ShouldEqual, "40 0 3 * * *")
			convey.So(cfg.ListingRankWeights["likes"], convey.ShouldEqual, 2)
			convey.So(cfg.StoreRankWeights["listings"], convey.ShouldEqual, 5)
			convey.So(cfg.LeaseTTL(), convey.ShouldEqual, 5*time.Minute)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad value each", t, func() {
		cases := map[string]func(c *config.Config){
			"empty addr":        func(c *config.Config) { c.Addr = "" },
			"bad log level":     func(c *config.Config) { c.LogLevel = "loud" },
			"unknown driver":    func(c *config.Config) { c.DBDriver = "mysql" },
			"empty dsn":         func(c *config.Config) { c.DBDSN = "" },
			"unknown ledger":    func(c *config.Config) { c.LedgerBackend = "redis" },
			"zero page limit":   func(c *config.Config) { c.MaxPageLimit = 0 },
			"zero concurrency":  func(c *config.Config) { c.RankConcurrency = 0 },
			"five field cron":   func(c *config.Config) { c.ScheduleRollback = "0 3 * * *" },
			"negative weight":   func(c *config.Config) { c.StoreRankWeights["views"] = -1 },
			"zero lease ttl":    func(c *config.Config) { c.LeaseTTLMS = 0 },
			"day long lease":    func(c *config.Config) { c.LeaseTTLMS = 24 * 60 * 60 * 1000 },
			"garbage top schedule":  func(c *config.Config) { c.ScheduleTopStores = "soon" },
			"zero leaderboards": func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
		}

		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()

			convey.Convey("Then "+name+" is rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
