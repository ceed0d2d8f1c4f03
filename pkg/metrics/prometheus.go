// Package metrics provides Prometheus metrics for the vorell services.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// latencyBuckets are in milliseconds, from sub-millisecond statements up to
// multi-minute batch phases.
var latencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000, 120000} //nolint:gochecknoglobals // shared bucket layout

// Manager owns every collector exported by the API and batch binaries.
type Manager struct {
	namespace        string
	subsystem        string
	refreshInterval time.Duration
	registry        prometheus.Registerer

	// Interaction metrics
	likesToggled  *prometheus.CounterVec
	likeConflicts prometheus.Counter
	viewsRecorded *prometheus.CounterVec

	// Counter store metrics
	counterAdjustments *prometheus.CounterVec
	counterErrors      *prometheus.CounterVec
	storeQueryLatency  prometheus.Histogram

	// Batch metrics
	batchPhaseRuns     *prometheus.CounterVec
	batchPhaseDuration *prometheus.HistogramVec
	entitiesRanked     *prometheus.CounterVec
	batchLeaseSkips    *prometheus.CounterVec

	// Catalogue gauges
	totalListings prometheus.Gauge
	totalMembers  prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "vorell",
		subsystem:       "ranking",
		refreshInterval: defaultRefreshInterval,
		registry:        prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.likesToggled = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "likes_toggled_total",
		Help: "Like toggles by entity group and direction (like, unlike)",
	}, []string{"group", "direction"})

	m.likeConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "like_conflicts_total",
		Help: "Like creations that lost a unique-index race and converged to liked",
	})

	m.viewsRecorded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "views_total",
		Help: "View attempts by entity group and outcome (recorded, already_seen)",
	}, []string{"group", "outcome"})

	m.counterAdjustments = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "counter_adjustments_total",
		Help: "Atomic counter increments applied by entity and counter",
	}, []string{"entity", "counter"})

	m.counterErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "counter_errors_total",
		Help: "Failed counter increments by entity and reason",
	}, []string{"entity", "reason"})

	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "store_query_latency_milliseconds",
		Help:    "Latency of counter store statements in milliseconds",
		Buckets: latencyBuckets,
	})

	m.batchPhaseRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "batch_phase_runs_total",
		Help: "Rank batch phase executions by phase and outcome",
	}, []string{"phase", "outcome"})

	m.batchPhaseDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "batch_phase_duration_milliseconds",
		Help:    "Rank batch phase duration in milliseconds",
		Buckets: latencyBuckets,
	}, []string{"phase"})

	m.entitiesRanked = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "entities_ranked_total",
		Help: "Entities whose rank was recomputed, by kind",
	}, []string{"kind"})

	m.batchLeaseSkips = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "batch_lease_skips_total",
		Help: "Phase triggers skipped because another replica held the lease",
	}, []string{"phase"})

	m.totalListings = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "listings",
		Help: "Number of listings in the catalogue",
	})

	m.totalMembers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "members",
		Help: "Number of registered members",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_by_component_total",
		Help: "Errors by component and error type",
	}, []string{"component", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_by_type_total",
		Help: "Errors by type and severity",
	}, []string{"error_type", "severity"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_by_endpoint_total",
		Help: "Errors by HTTP endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_memory_bytes",
		Help: "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_goroutines",
		Help: "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "system_gc_pause_milliseconds",
		Help:    "Average GC pause in milliseconds",
		Buckets: latencyBuckets,
	})
}

// Interaction metrics

// RecordLikeToggled counts a like (delta > 0) or unlike (delta < 0).
func RecordLikeToggled(group string, delta int) {
	direction := "like"
	if delta < 0 {
		direction = "unlike"
	}
	globalManager.likesToggled.WithLabelValues(group, direction).Inc()
}

// RecordLikeConflict counts a unique-index race that converged to liked.
func RecordLikeConflict() {
	globalManager.likeConflicts.Inc()
}

// RecordView counts a view attempt by outcome.
func RecordView(group string, recorded bool) {
	outcome := "already_seen"
	if recorded {
		outcome = "recorded"
	}
	globalManager.viewsRecorded.WithLabelValues(group, outcome).Inc()
}

// Counter store metrics

// RecordCounterAdjustment counts an applied counter increment.
func RecordCounterAdjustment(entity, counter string) {
	globalManager.counterAdjustments.WithLabelValues(entity, counter).Inc()
}

// RecordCounterError counts a failed counter increment.
func RecordCounterError(entity, reason string) {
	globalManager.counterErrors.WithLabelValues(entity, reason).Inc()
}

// RecordStoreQueryLatency observes a store statement latency.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// Batch metrics

// RecordBatchPhase records a phase run with its outcome and duration.
func RecordBatchPhase(phase string, err error, took time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	globalManager.batchPhaseRuns.WithLabelValues(phase, outcome).Inc()
	globalManager.batchPhaseDuration.WithLabelValues(phase).Observe(float64(took.Milliseconds()))
}

// RecordEntitiesRanked adds n recomputed entities of kind.
func RecordEntitiesRanked(kind string, n int) {
	if n > 0 {
		globalManager.entitiesRanked.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordBatchLeaseSkip counts a phase trigger skipped for a held lease.
func RecordBatchLeaseSkip(phase string) {
	globalManager.batchLeaseSkips.WithLabelValues(phase).Inc()
}

// Catalogue gauges

// UpdateTotalListings sets the listings gauge.
func UpdateTotalListings(count int64) {
	globalManager.totalListings.Set(float64(count))
}

// UpdateTotalMembers sets the members gauge.
func UpdateTotalMembers(count int64) {
	globalManager.totalMembers.Set(float64(count))
}

// HTTP metrics

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics

// RecordErrorByComponent counts an error raised by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType counts an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint counts an error answered by an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics

// UpdateSystemMemoryUsage sets the heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// RefreshInterval reports how often the global gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the registry the global manager registers on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
