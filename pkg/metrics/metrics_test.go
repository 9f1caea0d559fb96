package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created with the service namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "nextup")
				So(manager.Enabled(), ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithRefreshInterval(5*time.Second),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.refreshInterval, ShouldEqual, 5*time.Second)
				So(manager.Enabled(), ShouldBeFalse)
			})

			Convey("And metric names carry the namespace", func() {
				manager.coalesced.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_events_change_notifications_coalesced_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are given", func() {
			manager := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then the defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "nextup")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestSyncMetrics(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When refreshes are recorded", func() {
			before := testutil.ToFloat64(global.Load().refreshes.WithLabelValues("success"))
			RecordRefresh("success", 12)
			RecordRefresh("success", 30)

			Convey("Then the outcome counter moves", func() {
				after := testutil.ToFloat64(global.Load().refreshes.WithLabelValues("success"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When stale discards are recorded", func() {
			before := testutil.ToFloat64(global.Load().staleDiscards.WithLabelValues("superseded"))
			RecordStaleDiscard("superseded")

			Convey("Then the reason counter moves", func() {
				after := testutil.ToFloat64(global.Load().staleDiscards.WithLabelValues("superseded"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When the sync status changes", func() {
			UpdateSyncStatus("loading")
			UpdateSyncStatus("ready")

			Convey("Then only the current status is set", func() {
				So(testutil.ToFloat64(global.Load().syncStatus.WithLabelValues("ready")), ShouldEqual, 1)
				So(testutil.ToFloat64(global.Load().syncStatus.WithLabelValues("loading")), ShouldEqual, 0)
				So(testutil.ToFloat64(global.Load().syncStatus.WithLabelValues("failed")), ShouldEqual, 0)
			})
		})

		Convey("When the snapshot size and refresh time are updated", func() {
			UpdateSnapshotSize(42)
			ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
			UpdateLastRefresh(ts)

			Convey("Then the gauges hold the values", func() {
				So(testutil.ToFloat64(global.Load().snapshotSize), ShouldEqual, 42)
				So(testutil.ToFloat64(global.Load().lastRefreshUnix), ShouldEqual, float64(ts.Unix()))
			})
		})
	})
}

func TestOperationalMetrics(t *testing.T) {
	Convey("Given operational metrics", t, func() {
		Convey("When recording queue and worker metrics", func() {
			So(func() {
				UpdateQueueSize(3)
				UpdateQueueCapacity(64)
				UpdateQueueUtilization(3.0 / 64.0)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("full")
				UpdateWorkerCount(1)
				RecordWorkerError()
				RecordWorkerLatency(4)
				RecordNotificationCoalesced()
				RecordChangeNotification("postgres")
			}, ShouldNotPanic)

			Convey("Then the gauges hold the last value", func() {
				So(testutil.ToFloat64(global.Load().queueCapacity), ShouldEqual, 64)
				So(testutil.ToFloat64(global.Load().workerCount), ShouldEqual, 1)
			})
		})

		Convey("When recording create metrics", func() {
			before := testutil.ToFloat64(global.Load().creates.WithLabelValues("validation"))
			RecordCreate("validation", -1)
			RecordCreate("success", 8)
			RecordIdempotentReplay()
			RecordStoreLatency("insert", 8)

			Convey("Then the outcome counters move", func() {
				after := testutil.ToFloat64(global.Load().creates.WithLabelValues("validation"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording HTTP and error metrics", func() {
			So(func() {
				RecordHTTPRequest("/events", "GET", "200")
				RecordHTTPRequestDuration("/events", "GET", "200", 3)
				RecordErrorByEndpoint("/events", "POST", "validation")
				RecordErrorByComponent("sync", "list_failed")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
		})

		Convey("When reading the registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then the service metrics are exported", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Reset(func() { Configure() })

		Convey("When configured with recording turned off", func() {
			Configure(WithNamespace("quiet"), WithMetricsEnabled(false), WithRefreshInterval(time.Second))
			RecordRefresh("success", 5)
			RecordErrorByComponent("sync", "list_failed")
			UpdateSnapshotSize(7)

			Convey("Then the helpers record nothing", func() {
				So(Enabled(), ShouldBeFalse)
				So(RefreshInterval(), ShouldEqual, time.Second)
				So(testutil.ToFloat64(global.Load().refreshes.WithLabelValues("success")), ShouldEqual, 0)
				So(testutil.ToFloat64(global.Load().snapshotSize), ShouldEqual, 0)
			})

			Convey("And the registry still exports the namespaced collectors", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "quiet_events_snapshot_size" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When configured with recording on", func() {
			Configure(WithNamespace("loud"))
			UpdateSnapshotSize(3)

			Convey("Then the helpers record into the new registry", func() {
				So(Enabled(), ShouldBeTrue)
				So(testutil.ToFloat64(global.Load().snapshotSize), ShouldEqual, 3)
			})
		})
	})
}
