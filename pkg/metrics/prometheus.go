// Package metrics provides Prometheus metrics for the affinity recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets are milliseconds; geocoding and translation calls can take seconds.
var latencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // static bucket layout

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ranking
	rankingRequests     *prometheus.CounterVec
	rankingLatency      prometheus.Histogram
	pairScoringLatency  prometheus.Histogram
	pairScoringErrors   prometheus.Counter
	recommendationsSave prometheus.Counter

	// Fan-out pool
	fanOutInFlight   prometheus.Gauge
	fanOutQueueDepth prometheus.Gauge
	fanOutWorkers    prometheus.Gauge

	// Places
	placeResolutions  *prometheus.CounterVec
	cacheWriteErrors  prometheus.Counter
	cachePrimeEntries *prometheus.CounterVec

	// Text preparation
	textPreparations *prometheus.CounterVec

	// External dependencies
	dependencyLatency *prometheus.HistogramVec
	breakerState      *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "affinity",
		subsystem:        "recommend",
		histogramBuckets: latencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.rankingRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rankings_total",
		Help:      "Ranking computations by outcome",
	}, []string{"outcome"})

	m.rankingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranking_latency_milliseconds",
		Help:      "End-to-end ranking latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.pairScoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pair_scoring_latency_milliseconds",
		Help:      "Latency of a single target/candidate similarity computation",
		Buckets:   m.histogramBuckets,
	})

	m.pairScoringErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pair_scoring_errors_total",
		Help:      "Candidates skipped because their similarity could not be computed",
	})

	m.recommendationsSave = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recommendations_persisted_total",
		Help:      "Stored recommendation rows written",
	})

	m.fanOutInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fanout_inflight",
		Help:      "Similarity computations currently running",
	})

	m.fanOutQueueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fanout_queue_depth",
		Help:      "Candidates waiting for a worker",
	})

	m.fanOutWorkers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fanout_workers",
		Help:      "Workers running across active rankings",
	})

	m.placeResolutions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "place_resolutions_total",
		Help:      "Place resolutions by the tier that answered",
	}, []string{"source"})

	m.cacheWriteErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "place_cache_write_errors_total",
		Help:      "Failed place cache writes",
	})

	m.cachePrimeEntries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "place_cache_prime_entries_total",
		Help:      "Places written during cache warm-up by result",
	}, []string{"result"})

	m.textPreparations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "text_preparations_total",
		Help:      "Description preparation outcomes",
	}, []string{"status"})

	m.dependencyLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dependency_latency_milliseconds",
		Help:      "External dependency call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"dependency", "result"})

	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_errors_total",
		Help:      "HTTP errors by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Heap memory in use",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Number of goroutines",
	})
}

// Ranking metrics.

// RecordRanking records a finished ranking with its outcome and latency.
func RecordRanking(outcome string, latencyMs float64) {
	globalManager.rankingRequests.WithLabelValues(outcome).Inc()
	globalManager.rankingLatency.Observe(latencyMs)
}

// RecordPairScoring records the latency of one pair computation.
func RecordPairScoring(latencyMs float64) {
	globalManager.pairScoringLatency.Observe(latencyMs)
}

// RecordPairScoringError increments the skipped candidate counter.
func RecordPairScoringError() {
	globalManager.pairScoringErrors.Inc()
}

// RecordRecommendationsPersisted adds n stored rows.
func RecordRecommendationsPersisted(n int) {
	globalManager.recommendationsSave.Add(float64(n))
}

// Fan-out metrics.

// IncFanOutInFlight marks one computation as started.
func IncFanOutInFlight() { globalManager.fanOutInFlight.Inc() }

// DecFanOutInFlight marks one computation as finished.
func DecFanOutInFlight() { globalManager.fanOutInFlight.Dec() }

// AddFanOutQueueDepth adjusts the number of queued candidates.
func AddFanOutQueueDepth(delta int) { globalManager.fanOutQueueDepth.Add(float64(delta)) }

// AddFanOutWorkers adjusts the number of running workers.
func AddFanOutWorkers(delta int) { globalManager.fanOutWorkers.Add(float64(delta)) }

// Place metrics.

// RecordPlaceResolution counts a resolution answered by source.
func RecordPlaceResolution(source string) {
	globalManager.placeResolutions.WithLabelValues(source).Inc()
}

// RecordCacheWriteError counts a failed cache write.
func RecordCacheWriteError() {
	globalManager.cacheWriteErrors.Inc()
}

// RecordCachePrimeEntry counts one warm-up write.
func RecordCachePrimeEntry(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	globalManager.cachePrimeEntries.WithLabelValues(result).Inc()
}

// RecordTextPreparation counts a description preparation outcome.
func RecordTextPreparation(status string) {
	globalManager.textPreparations.WithLabelValues(status).Inc()
}

// RecordDependencyLatency records an external call with its result label.
func RecordDependencyLatency(dependency, result string, latencyMs float64) {
	globalManager.dependencyLatency.WithLabelValues(dependency, result).Observe(latencyMs)
}

// UpdateBreakerState sets the state of a named circuit breaker.
func UpdateBreakerState(name string, state int) {
	globalManager.breakerState.WithLabelValues(name).Set(float64(state))
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
