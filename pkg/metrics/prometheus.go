// Package metrics provides Prometheus metrics for the PixelBridge tracking service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the PixelBridge service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Core Business Metrics - What really matters for a conversion bridge
	eventsPrepared     prometheus.Counter
	eventsDuplicate    prometheus.Counter
	eventsUnmappedName prometheus.Counter
	validationFailures *prometheus.CounterVec

	// Delivery Metrics - Conversions API call outcomes
	deliveryAttempts   prometheus.Counter
	deliverySuccess    prometheus.Counter
	deliveryRetries    prometheus.Counter
	transportErrors    prometheus.Counter
	platformRejections prometheus.Counter
	deliveryLatency    prometheus.Histogram

	// Operational Health Metrics
	sessionCount    prometheus.Gauge
	dedupeSize      prometheus.Gauge
	sessionsSwept   prometheus.Counter
	dedupeKeysSwept prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "pixelbridge",
		subsystem:        "capi",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Core Business Metrics
	m.eventsPrepared = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_prepared_total",
		Help:      "Total number of events that passed preparation and validation",
	})

	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_duplicate_total",
		Help:      "Total number of duplicate events rejected by the dedup cache",
	})

	m.eventsUnmappedName = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_unmapped_name_total",
		Help:      "Total number of events whose name had no mapping and passed through",
	})

	m.validationFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "validation_failures_total",
			Help:      "Total number of events rejected by validation, by missing field",
		},
		[]string{"field"},
	)

	// Delivery Metrics
	m.deliveryAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_attempts_total",
		Help:      "Total number of Conversions API request attempts, including retries",
	})

	m.deliverySuccess = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_success_total",
		Help:      "Total number of batches acknowledged with a matching events_received count",
	})

	m.deliveryRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_retries_total",
		Help:      "Total number of retried delivery attempts after transport/5xx failures",
	})

	m.transportErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "transport_errors_total",
		Help:      "Total number of network/timeout/5xx failures from the Conversions API",
	})

	m.platformRejections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "platform_rejections_total",
		Help:      "Total number of terminal platform rejections (4xx or mismatched receipt)",
	})

	m.deliveryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_latency_milliseconds",
		Help:      "Histogram of end-to-end delivery latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Operational Health Metrics
	m.sessionCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_count",
		Help:      "Current number of tracked session attribution records",
	})

	m.dedupeSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dedupe_size",
		Help:      "Current number of keys held by the deduplication cache",
	})

	m.sessionsSwept = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_swept_total",
		Help:      "Total number of session records removed by the inactivity sweep",
	})

	m.dedupeKeysSwept = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dedupe_keys_swept_total",
		Help:      "Total number of dedup keys purged after the window expired",
	})

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Enhanced Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total errors by component and error type",
		},
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Current memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// RecordEventPrepared increments the prepared events counter.
func RecordEventPrepared() {
	globalManager.eventsPrepared.Inc()
}

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordUnmappedEventName increments the unmapped event name counter.
func RecordUnmappedEventName() {
	globalManager.eventsUnmappedName.Inc()
}

// RecordValidationFailure increments the validation failures counter for a field.
func RecordValidationFailure(field string) {
	globalManager.validationFailures.WithLabelValues(field).Inc()
}

// RecordDeliveryAttempt increments the delivery attempts counter.
func RecordDeliveryAttempt() {
	globalManager.deliveryAttempts.Inc()
}

// RecordDeliverySuccess increments the delivery success counter.
func RecordDeliverySuccess() {
	globalManager.deliverySuccess.Inc()
}

// RecordDeliveryRetry increments the delivery retries counter.
func RecordDeliveryRetry() {
	globalManager.deliveryRetries.Inc()
}

// RecordTransportError increments the transport errors counter.
func RecordTransportError() {
	globalManager.transportErrors.Inc()
}

// RecordPlatformRejection increments the platform rejections counter.
func RecordPlatformRejection() {
	globalManager.platformRejections.Inc()
}

// RecordDeliveryLatency records end-to-end delivery latency in milliseconds.
func RecordDeliveryLatency(latencyMs float64) {
	globalManager.deliveryLatency.Observe(latencyMs)
}

// UpdateSessionCount sets the current session record count.
func UpdateSessionCount(count int) {
	globalManager.sessionCount.Set(float64(count))
}

// UpdateDedupeSize sets the current dedup cache size.
func UpdateDedupeSize(size int64) {
	globalManager.dedupeSize.Set(float64(size))
}

// RecordSessionsSwept adds to the swept session records counter.
func RecordSessionsSwept(count int) {
	globalManager.sessionsSwept.Add(float64(count))
}

// RecordDedupeKeysSwept adds to the swept dedup keys counter.
func RecordDedupeKeysSwept(count int) {
	globalManager.dedupeKeysSwept.Add(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a specific component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the current memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
