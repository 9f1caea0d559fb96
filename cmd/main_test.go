package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	repository "github.com/okian/nextup/internal/adapters/repository"
	"github.com/okian/nextup/internal/adapters/repository/redisfeed"
	service "github.com/okian/nextup/internal/app"
	"github.com/okian/nextup/internal/config"
	"github.com/okian/nextup/pkg/logger"
	"github.com/okian/nextup/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestBuildStore(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When building the store", func() {
			store, closeStore, err := buildStore(ctx, cfg)
			convey.Reset(func() {
				if closeStore != nil {
					closeStore()
				}
			})

			convey.Convey("Then an in-memory store is used", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := store.(*repository.MemoryStore)
				convey.So(ok, convey.ShouldBeTrue)
				_, isFeed := store.(*redisfeed.Feed)
				convey.So(isFeed, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the postgres store is unreachable", func() {
			cfg.Store = config.StorePostgres
			cfg.DatabaseURL = "postgres://nobody@127.0.0.1:1/nextup?connect_timeout=1"
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			_, _, err := buildStore(ctx, cfg)

			convey.Convey("Then building fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the redis notifier is unreachable", func() {
			cfg.Notifier = config.NotifierRedis
			cfg.RedisURL = "redis://127.0.0.1:1/0"
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			_, _, err := buildStore(ctx, cfg)

			convey.Convey("Then building fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "redis")
			})
		})
	})
}

func TestNewHandler(t *testing.T) {
	convey.Convey("Given a started service over the in-memory store", t, func() {
		ctx := context.Background()
		cfg := config.New()
		store, closeStore, err := buildStore(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		svc := service.New(repository.New(store))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		convey.Reset(func() {
			_ = svc.Stop()
			closeStore()
		})

		cfg.CORSOrigins = []string{"https://nextup.example.org"}
		h := newHandler(ctx, cfg, svc)

		convey.Convey("Then the API, feed and docs routes are served", func() {
			for _, path := range []string{"/events", "/events/upcoming", "/categories", "/stats", "/healthz", "/openapi.yaml", "/api-docs"} {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest("GET", path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then an allowed origin gets CORS headers", func() {
			req := httptest.NewRequest("GET", "/events", http.NoBody)
			req.Header.Set("Origin", "https://nextup.example.org")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			convey.So(w.Header().Get("Access-Control-Allow-Origin"), convey.ShouldEqual, "https://nextup.example.org")
		})

		convey.Convey("Then a created event reaches the snapshot through the change feed", func() {
			body := `{"title":"Tech Talk","description":"Distributed systems","date":"2030-01-10","time":"5 PM",
				"location":"Room 2","organizerName":"ACM","organizerType":"college","category":"technical","maxParticipants":40}`
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("POST", "/events", strings.NewReader(body)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)

			deadline := time.Now().Add(2 * time.Second)
			for len(svc.State().Events) == 0 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			convey.So(len(svc.State().Events), convey.ShouldEqual, 1)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		svc := service.New(repository.New(repository.NewMemoryStore()))

		convey.Convey("Then a one-off update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loops return when the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then the configured namespace and switch reach the global registry", func() {
			defer metrics.Configure()
			cfg := config.New()
			cfg.MetricsEnabled = false
			cfg.MetricsNamespace = "campus"
			cfg.MetricsRefreshMS = 1500
			configureMetrics(cfg)

			convey.So(metrics.Enabled(), convey.ShouldBeFalse)
			convey.So(metrics.RefreshInterval(), convey.ShouldEqual, 1500*time.Millisecond)
			families, err := metrics.GetRegistry().Gather()
			convey.So(err, convey.ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			convey.So(names, convey.ShouldContain, "campus_events_snapshot_size")
		})

		convey.Convey("Then a manager on a private registry can be built", func() {
			m := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
			convey.So(m.Enabled(), convey.ShouldBeTrue)
		})
	})
}
