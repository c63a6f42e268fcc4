// Package metrics provides Prometheus metrics for the sickbay pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Evidence intake
	evidenceItems *prometheus.CounterVec
	absences      *prometheus.CounterVec

	// Validation and reconciliation
	validations    *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	activeInjuries prometheus.Gauge

	// Provider
	providerRequests        *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec

	// Runs and workers
	runDuration     prometheus.Histogram
	runsTotal       *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	workerActive    prometheus.Gauge
	workerLatency   prometheus.Histogram
	errorsComponent *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // custom registry keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sickbay",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.evidenceItems = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evidence_items_total",
		Help:      "Text evidence items by outcome (injury, clear, duplicate, malformed, unknown_player, ambiguous)",
	}, []string{"outcome"})

	m.absences = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "absences_total",
		Help:      "Provider absence entries by filter outcome",
	}, []string{"outcome"})

	m.validations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validations_total",
		Help:      "Lineup validations by method",
	}, []string{"method"})

	m.transitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "transitions_total",
		Help:      "Availability state transitions applied to players",
	}, []string{"from", "to"})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_cache_lookups_total",
		Help:      "Validation cache lookups by result (hit, miss, error)",
	}, []string{"result"})

	m.activeInjuries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_injuries",
		Help:      "Number of active injury records after the last run",
	})

	m.providerRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Requests sent to the fixture/lineup provider",
	}, []string{"endpoint", "status"})

	m.providerRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "provider",
		Name:      "request_duration_seconds",
		Help:      "Provider request duration including rate-limit wait",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_duration_seconds",
		Help:      "Duration of a full batch run",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Batch runs by result",
	}, []string{"result"})

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_queue_depth",
		Help:      "Players waiting for validation",
	})

	m.workerActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "workers_active",
		Help:      "Validation workers currently running",
	})

	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_job_duration_seconds",
		Help:      "Time spent validating and reconciling one player",
		Buckets:   m.histogramBuckets,
	})

	m.errorsComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Errors by component and type",
	}, []string{"component", "type"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordEvidence counts one text evidence item by outcome.
func RecordEvidence(outcome string) {
	globalManager.evidenceItems.WithLabelValues(outcome).Inc()
}

// RecordAbsence counts one provider absence by filter outcome.
func RecordAbsence(outcome string) {
	globalManager.absences.WithLabelValues(outcome).Inc()
}

// RecordValidation counts one lineup validation.
func RecordValidation(method string) {
	globalManager.validations.WithLabelValues(method).Inc()
}

// RecordTransition counts one availability state change.
func RecordTransition(from, to string) {
	globalManager.transitions.WithLabelValues(from, to).Inc()
}

// RecordCacheLookup counts one validation cache lookup.
func RecordCacheLookup(result string) {
	globalManager.cacheLookups.WithLabelValues(result).Inc()
}

// UpdateActiveInjuries sets the active injury gauge.
func UpdateActiveInjuries(count int) {
	globalManager.activeInjuries.Set(float64(count))
}

// RecordProviderRequest records one provider call and its duration.
func RecordProviderRequest(endpoint, status string, seconds float64) {
	globalManager.providerRequests.WithLabelValues(endpoint, status).Inc()
	globalManager.providerRequestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordRun records a finished batch run.
func RecordRun(result string, seconds float64) {
	globalManager.runsTotal.WithLabelValues(result).Inc()
	globalManager.runDuration.Observe(seconds)
}

// UpdateQueueDepth sets the validation queue depth gauge.
func UpdateQueueDepth(size int) {
	globalManager.queueDepth.Set(float64(size))
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerJobDuration observes one worker job.
func RecordWorkerJobDuration(seconds float64) {
	globalManager.workerLatency.Observe(seconds)
}

// RecordErrorByComponent counts an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsComponent.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes one HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
