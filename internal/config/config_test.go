package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/nextup/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.Notifier, convey.ShouldEqual, config.NotifierStore)
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 64)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 1)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.RefreshTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Location(), convey.ShouldEqual, time.Local)
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "nextup")
			convey.So(cfg.MetricsRefresh(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given an otherwise valid config", t, func() {
		cfg := config.New()

		convey.Convey("When the postgres store has no database url", func() {
			cfg.Store = config.StorePostgres
			err := cfg.Validate()

			convey.Convey("Then it is rejected as invalid", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "database_url")
			})
		})

		convey.Convey("When the redis notifier has no url", func() {
			cfg.Notifier = config.NotifierRedis
			err := cfg.Validate()

			convey.Convey("Then it is rejected as invalid", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "redis_url")
			})
		})

		convey.Convey("When the store is unknown", func() {
			cfg.Store = "sqlite"

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the metrics refresh interval is not positive", func() {
			cfg.MetricsRefreshMS = 0
			err := cfg.Validate()

			convey.Convey("Then it is rejected as invalid", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "metrics_refresh_ms")
			})
		})

		convey.Convey("When the timezone is unknown", func() {
			cfg.Timezone = "Mars/Olympus_Mons"
			err := cfg.Validate()

			convey.Convey("Then it is rejected and the host zone is used", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "timezone")
				convey.So(cfg.Location(), convey.ShouldEqual, time.Local)
			})
		})

		convey.Convey("When the timezone is UTC", func() {
			cfg.Timezone = "UTC"

			convey.Convey("Then it validates and resolves", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
				convey.So(cfg.Location(), convey.ShouldEqual, time.UTC)
			})
		})

		convey.Convey("When the log format is unknown", func() {
			cfg.LogFormat = "xml"

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
