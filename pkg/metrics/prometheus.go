// Package metrics provides Prometheus metrics for the star rating engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the starsim service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Rating Metrics - what analysts actually ask for
	starComputations      *prometheus.CounterVec
	insufficientData      *prometheus.CounterVec
	computeLatency        *prometheus.HistogramVec
	recommendationsRanked prometheus.Counter
	correlations          prometheus.Counter

	// Session Metrics - what-if overlays
	overridesSet    prometheus.Counter
	activeSessions  prometheus.Gauge
	sessionsEvicted prometheus.Counter
	sessionsDropped prometheus.Counter
	sessionsCreated prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository Metrics - snapshot loads and queries
	repositoryQueryLatency *prometheus.HistogramVec
	repositoryRecordsTotal *prometheus.GaugeVec
	snapshotLoads          prometheus.Counter
	snapshotLastUnix       prometheus.Gauge

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "starsim",
		subsystem:        "engine",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.starComputations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "star_computations_total",
		Help:        "Total number of star ratings computed by star type",
		ConstLabels: m.constLabels,
	}, []string{"star_type"})

	m.insufficientData = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "insufficient_data_total",
		Help:        "Total number of computations refused for lack of data",
		ConstLabels: m.constLabels,
	}, []string{"operation"})

	m.computeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "compute_latency_milliseconds",
		Help:        "Latency of rating, simulation and correlation operations in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"operation"})

	m.recommendationsRanked = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "recommendations_ranked_total",
		Help:        "Total number of measures returned by the recommendation ranker",
		ConstLabels: m.constLabels,
	})

	m.correlations = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "correlations_total",
		Help:        "Total number of correlations computed",
		ConstLabels: m.constLabels,
	})

	m.overridesSet = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "overrides_set_total",
		Help:        "Total number of what-if star overrides set",
		ConstLabels: m.constLabels,
	})

	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "active_sessions",
		Help:        "Current number of simulation sessions held in memory",
		ConstLabels: m.constLabels,
	})

	m.sessionsCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sessions_created_total",
		Help:        "Total number of simulation sessions created",
		ConstLabels: m.constLabels,
	})

	m.sessionsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sessions_dropped_total",
		Help:        "Total number of simulation sessions dropped by clients",
		ConstLabels: m.constLabels,
	})

	m.sessionsEvicted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sessions_evicted_total",
		Help:        "Total number of simulation sessions evicted to stay under the session limit",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.repositoryQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "repository_query_latency_milliseconds",
		Help:        "Repository query latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"operation"})

	m.repositoryRecordsTotal = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "repository_records_total",
		Help:        "Number of records held by the repository by kind",
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.snapshotLoads = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "repository_snapshot_loads_total",
		Help:        "Total number of snapshots loaded into the repository",
		ConstLabels: m.constLabels,
	})

	m.snapshotLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "repository_snapshot_last_unix",
		Help:        "Unix time of the last snapshot load",
		ConstLabels: m.constLabels,
	})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Total number of errors by component and error type",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})
}

// RecordStarComputation counts one computed star of the given type.
func (m *Manager) RecordStarComputation(starType string) {
	m.starComputations.WithLabelValues(starType).Inc()
}

// RecordInsufficientData counts an operation refused for lack of data.
func (m *Manager) RecordInsufficientData(operation string) {
	m.insufficientData.WithLabelValues(operation).Inc()
}

// RecordComputeLatency records operation latency in milliseconds.
func (m *Manager) RecordComputeLatency(operation string, latencyMs float64) {
	m.computeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordRecommendationsRanked adds n ranked measures.
func (m *Manager) RecordRecommendationsRanked(n int) {
	if n > 0 {
		m.recommendationsRanked.Add(float64(n))
	}
}

// RecordCorrelation counts one computed correlation.
func (m *Manager) RecordCorrelation() {
	m.correlations.Inc()
}

// RecordOverrideSet counts one override.
func (m *Manager) RecordOverrideSet() {
	m.overridesSet.Inc()
}

// UpdateActiveSessions sets the number of live sessions.
func (m *Manager) UpdateActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// RecordSessionCreated counts one created session.
func (m *Manager) RecordSessionCreated() {
	m.sessionsCreated.Inc()
}

// RecordSessionDropped counts one dropped session.
func (m *Manager) RecordSessionDropped() {
	m.sessionsDropped.Inc()
}

// RecordSessionEvicted counts one evicted session.
func (m *Manager) RecordSessionEvicted() {
	m.sessionsEvicted.Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRepositoryQueryLatency records repository query latency in milliseconds.
func (m *Manager) RecordRepositoryQueryLatency(operation string, latencyMs float64) {
	m.repositoryQueryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateRepositoryRecords sets the number of records of a kind.
func (m *Manager) UpdateRepositoryRecords(kind string, count int) {
	m.repositoryRecordsTotal.WithLabelValues(kind).Set(float64(count))
}

// RecordSnapshotLoad counts a snapshot load and stamps its time.
func (m *Manager) RecordSnapshotLoad(at time.Time) {
	m.snapshotLoads.Inc()
	m.snapshotLastUnix.Set(float64(at.Unix()))
}

// RecordErrorByComponent records an error for a component.
func (m *Manager) RecordErrorByComponent(component, errorType string) {
	m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordStarComputation counts one computed star on the global manager.
func RecordStarComputation(starType string) { globalManager.RecordStarComputation(starType) }

// RecordInsufficientData counts a refused operation on the global manager.
func RecordInsufficientData(operation string) { globalManager.RecordInsufficientData(operation) }

// RecordComputeLatency records operation latency on the global manager.
func RecordComputeLatency(operation string, latencyMs float64) {
	globalManager.RecordComputeLatency(operation, latencyMs)
}

// RecordRecommendationsRanked adds ranked measures on the global manager.
func RecordRecommendationsRanked(n int) { globalManager.RecordRecommendationsRanked(n) }

// RecordCorrelation counts a correlation on the global manager.
func RecordCorrelation() { globalManager.RecordCorrelation() }

// RecordOverrideSet counts an override on the global manager.
func RecordOverrideSet() { globalManager.RecordOverrideSet() }

// UpdateActiveSessions sets live sessions on the global manager.
func UpdateActiveSessions(count int) { globalManager.UpdateActiveSessions(count) }

// RecordSessionCreated counts a created session on the global manager.
func RecordSessionCreated() { globalManager.RecordSessionCreated() }

// RecordSessionDropped counts a dropped session on the global manager.
func RecordSessionDropped() { globalManager.RecordSessionDropped() }

// RecordSessionEvicted counts an evicted session on the global manager.
func RecordSessionEvicted() { globalManager.RecordSessionEvicted() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode)
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, statusCode, duration)
}

// RecordRepositoryQueryLatency records repository query latency in milliseconds.
func RecordRepositoryQueryLatency(operation string, latencyMs float64) {
	globalManager.RecordRepositoryQueryLatency(operation, latencyMs)
}

// UpdateRepositoryRecords sets the number of records of a kind.
func UpdateRepositoryRecords(kind string, count int) {
	globalManager.UpdateRepositoryRecords(kind, count)
}

// RecordSnapshotLoad counts a snapshot load on the global manager.
func RecordSnapshotLoad(at time.Time) { globalManager.RecordSnapshotLoad(at) }

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.RecordErrorByComponent(component, errorType)
}

// SinceMs returns the milliseconds elapsed since start.
func SinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
