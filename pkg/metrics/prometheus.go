// Package metrics provides Prometheus metrics for the event directory service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultNamespace       = "nextup"
	subsystem              = "events"
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Synchronization
	refreshes           *prometheus.CounterVec
	refreshLatency      prometheus.Histogram
	staleDiscards       *prometheus.CounterVec
	changeNotifications *prometheus.CounterVec
	coalesced           prometheus.Counter
	snapshotSize        prometheus.Gauge
	syncStatus          *prometheus.GaugeVec
	lastRefreshUnix     prometheus.Gauge

	// Writes
	creates        *prometheus.CounterVec
	createLatency  prometheus.Histogram
	idempotentHits prometheus.Counter

	// Store round trips
	storeLatency *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueDequeues      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount   prometheus.Gauge
	workerErrors  prometheus.Counter
	workerLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// The package helpers record into global, whose collectors live on
// globalRegistry. Both are swapped together by Configure.
var (
	global         atomic.Pointer[Manager]             //nolint:gochecknoglobals // singleton metrics manager
	globalRegistry atomic.Pointer[prometheus.Registry] //nolint:gochecknoglobals // metrics registry
)

func init() { //nolint:gochecknoinits // global metrics setup
	Configure()
}

// Configure replaces the global manager with one built from opts on a fresh
// registry, leaving out default Go metrics. It is meant to run once at
// startup, before handlers capture GetRegistry.
func Configure(opts ...Option) {
	reg := prometheus.NewRegistry()
	m := NewManager(append(append([]Option{}, opts...), WithPrometheusRegistry(reg))...)
	globalRegistry.Store(reg)
	global.Store(m)
}

// collecting returns the global manager and whether it records anything.
func collecting() (*Manager, bool) {
	m := global.Load()
	return m, m.enabled
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.refreshes = auto.NewCounterVec(
		m.counterOpts("refreshes_total", "Completed snapshot refreshes by outcome"),
		[]string{"outcome"},
	)
	m.refreshLatency = auto.NewHistogram(
		m.histogramOpts("refresh_latency_milliseconds", "Latency of a full re-list against the store"),
	)
	m.staleDiscards = auto.NewCounterVec(
		m.counterOpts("stale_responses_total", "List responses discarded instead of applied"),
		[]string{"reason"},
	)
	m.changeNotifications = auto.NewCounterVec(
		m.counterOpts("change_notifications_total", "Change notifications received from the store"),
		[]string{"source"},
	)
	m.coalesced = auto.NewCounter(
		m.counterOpts("change_notifications_coalesced_total", "Notifications folded into an already pending refresh"),
	)
	m.snapshotSize = auto.NewGauge(
		m.gaugeOpts("snapshot_size", "Number of events in the current snapshot"),
	)
	m.syncStatus = auto.NewGaugeVec(
		m.gaugeOpts("sync_status", "1 for the current synchronization status, 0 otherwise"),
		[]string{"status"},
	)
	m.lastRefreshUnix = auto.NewGauge(
		m.gaugeOpts("last_refresh_unix_seconds", "Unix time of the last applied successful refresh"),
	)

	m.creates = auto.NewCounterVec(
		m.counterOpts("creates_total", "Event create attempts by outcome"),
		[]string{"outcome"},
	)
	m.createLatency = auto.NewHistogram(
		m.histogramOpts("create_latency_milliseconds", "Latency of event inserts"),
	)
	m.idempotentHits = auto.NewCounter(
		m.counterOpts("create_idempotent_replays_total", "Create submissions rejected as replays of an idempotency key"),
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Remote store round trip latency by operation"),
		[]string{"operation"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Pending change notifications"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Change notification queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue size over capacity"))
	m.queueEnqueues = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Notifications enqueued"))
	m.queueDequeues = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Notifications dequeued"))
	m.queueEnqueueErrors = auto.NewCounterVec(
		m.counterOpts("queue_enqueue_errors_total", "Notifications not enqueued by reason"),
		[]string{"reason"},
	)

	m.workerCount = auto.NewGauge(m.gaugeOpts("refresh_workers", "Running refresh workers"))
	m.workerErrors = auto.NewCounter(m.counterOpts("refresh_worker_errors_total", "Refreshes started by workers that failed"))
	m.workerLatency = auto.NewHistogram(
		m.histogramOpts("refresh_worker_latency_milliseconds", "Time a worker spends on one drained burst"),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorsByEndpoint = auto.NewCounterVec(
		m.counterOpts("http_errors_total", "HTTP error responses by endpoint and type"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Allocated heap bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Average GC pause time",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	})
}

// Sync statuses reported through UpdateSyncStatus.
var syncStatuses = []string{"idle", "loading", "ready", "failed", "stopped"} //nolint:gochecknoglobals // label set

// RecordRefresh counts a completed refresh ("success", "error").
func RecordRefresh(outcome string, latencyMs float64) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	m.refreshLatency.Observe(latencyMs)
}

// RecordStaleDiscard counts a list response that was dropped.
func RecordStaleDiscard(reason string) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.staleDiscards.WithLabelValues(reason).Inc()
}

// RecordChangeNotification counts a change notification by source.
func RecordChangeNotification(source string) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.changeNotifications.WithLabelValues(source).Inc()
}

// RecordNotificationCoalesced counts a notification merged into a pending refresh.
func RecordNotificationCoalesced() {
	m, ok := collecting()
	if !ok {
		return
	}
	m.coalesced.Inc()
}

// UpdateSnapshotSize sets the number of events held by the service.
func UpdateSnapshotSize(n int) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.snapshotSize.Set(float64(n))
}

// UpdateSyncStatus marks status as the current one.
func UpdateSyncStatus(status string) {
	m, ok := collecting()
	if !ok {
		return
	}
	for _, s := range syncStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		m.syncStatus.WithLabelValues(s).Set(v)
	}
}

// UpdateLastRefresh records the time of the last applied refresh.
func UpdateLastRefresh(t time.Time) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.lastRefreshUnix.Set(float64(t.Unix()))
}

// RecordCreate counts a create attempt ("success", "validation", "remote").
func RecordCreate(outcome string, latencyMs float64) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.creates.WithLabelValues(outcome).Inc()
	if latencyMs >= 0 {
		m.createLatency.Observe(latencyMs)
	}
}

// RecordIdempotentReplay counts a rejected duplicate create submission.
func RecordIdempotentReplay() {
	m, ok := collecting()
	if !ok {
		return
	}
	m.idempotentHits.Inc()
}

// RecordStoreLatency observes a store round trip.
func RecordStoreLatency(operation string, latencyMs float64) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets size/capacity.
func UpdateQueueUtilization(utilization float64) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue counts an enqueued notification.
func RecordQueueEnqueue() {
	m, ok := collecting()
	if !ok {
		return
	}
	m.queueEnqueues.Inc()
}

// RecordQueueDequeue counts a dequeued notification.
func RecordQueueDequeue() {
	m, ok := collecting()
	if !ok {
		return
	}
	m.queueDequeues.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running refresh workers.
func UpdateWorkerCount(count int) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.workerCount.Set(float64(count))
}

// RecordWorkerError counts a worker-triggered refresh that failed.
func RecordWorkerError() {
	m, ok := collecting()
	if !ok {
		return
	}
	m.workerErrors.Inc()
}

// RecordWorkerLatency observes one worker iteration.
func RecordWorkerLatency(latencyMs float64) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.workerLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error in a component.
func RecordErrorByComponent(component, errorType string) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	m, ok := collecting()
	if !ok {
		return
	}
	m.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return globalRegistry.Load()
}

// RefreshInterval is how often runtime gauges should be sampled.
func RefreshInterval() time.Duration {
	return global.Load().refreshInterval
}

// Enabled reports whether the manager was built with collection turned on.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Enabled reports whether the package helpers record anything.
func Enabled() bool {
	_, ok := collecting()
	return ok
}
