// Package metrics provides Prometheus metrics for the truthfuse service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace         string
	subsystem         string
	histogramBuckets  []float64
	confidenceBuckets []float64
	registry          prometheus.Registerer

	// Fusion outcomes
	reportsTotal       *prometheus.CounterVec
	replaysTotal       prometheus.Counter
	negationsTotal     prometheus.Counter
	forensicVerdicts   *prometheus.CounterVec
	processingLatency  prometheus.Histogram
	confidence         prometheus.Histogram
	eventsActive       prometheus.Gauge
	eventsTotal        prometheus.Gauge
	eventsResolved     prometheus.Counter
	classifierCalls    *prometheus.CounterVec
	classifierLatency  prometheus.Histogram
	classifierBreaker  prometheus.Gauge
	storeLatency       *prometheus.HistogramVec
	storeConflicts     prometheus.Counter
	notificationsTotal *prometheus.CounterVec

	// Queue / worker
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueUtilization        prometheus.Gauge
	queueEnqueueTotal       prometheus.Counter
	queueDequeueTotal       prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:         "truthfuse",
		subsystem:         "fusion",
		histogramBuckets:  prometheus.DefBuckets,
		confidenceBuckets: []float64{5, 10, 20, 30, 40, 50, 65, 80, 90, 95, 99.9},
		registry:          prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.reportsTotal = m.counterVec("reports_total", "Reports processed by outcome (created, merged, duplicate, error)", "outcome")
	m.replaysTotal = m.counter("report_replays_total", "Submissions rejected because their idempotency key was already seen")
	m.negationsTotal = m.counter("negations_total", "Reports whose title carried denial language")
	m.forensicVerdicts = m.counterVec("forensic_verdicts_total", "Image forensic verdicts", "verdict")
	m.processingLatency = m.histogram("processing_latency_milliseconds", "End-to-end report fusion latency in milliseconds", m.histogramBuckets)
	m.confidence = m.histogram("event_confidence", "Event confidence after each create or merge", m.confidenceBuckets)
	m.eventsActive = m.gauge("events_active", "Events currently accepting merges")
	m.eventsTotal = m.gauge("events_total", "Events known to the store, including resolved")
	m.eventsResolved = m.counter("events_resolved_total", "Events resolved by an administrator")

	m.classifierCalls = m.counterVec("classifier_calls_total", "Image classifier calls by result (verified, rejected, fallback)", "result")
	m.classifierLatency = m.histogram("classifier_latency_milliseconds", "Image classifier round-trip latency in milliseconds", m.histogramBuckets)
	m.classifierBreaker = m.gauge("classifier_breaker_state", "Classifier circuit breaker state (0 closed, 1 open, 2 half-open)")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Storage operation latency in milliseconds", m.histogramBuckets, "op")
	m.storeConflicts = m.counter("store_conflicts_total", "Optimistic version conflicts observed by the SQL store")
	m.notificationsTotal = m.counterVec("notifications_total", "Notifications by kind and result (published, dropped, failed)", "kind", "result")

	m.queueSize = m.gauge("queue_size", "Current size of the notification queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum notification queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueTotal = m.counter("queue_enqueue_total", "Total number of notifications enqueued")
	m.queueDequeueTotal = m.counter("queue_dequeue_total", "Total number of notifications dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue rejections")
	m.workerCount = m.gauge("worker_count", "Notification delivery workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Notification delivery latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Notification delivery failures")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", m.histogramBuckets, "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordReport counts a processed report under its outcome label.
func RecordReport(outcome string) {
	globalManager.reportsTotal.WithLabelValues(outcome).Inc()
}

// RecordReplay counts a submission rejected by the idempotency check.
func RecordReplay() {
	globalManager.replaysTotal.Inc()
}

// RecordNegation counts a report carrying denial language.
func RecordNegation() {
	globalManager.negationsTotal.Inc()
}

// RecordForensicVerdict counts a forensic verdict ("verified" or "unverified").
func RecordForensicVerdict(verdict string) {
	globalManager.forensicVerdicts.WithLabelValues(verdict).Inc()
}

// RecordProcessingLatency records end-to-end fusion latency.
func RecordProcessingLatency(latencyMs float64) {
	globalManager.processingLatency.Observe(latencyMs)
}

// RecordConfidence observes an event confidence value.
func RecordConfidence(confidence float64) {
	globalManager.confidence.Observe(confidence)
}

// UpdateEventCounts sets the active and total event gauges.
func UpdateEventCounts(active, total int) {
	globalManager.eventsActive.Set(float64(active))
	globalManager.eventsTotal.Set(float64(total))
}

// RecordEventResolved counts an administrative resolve.
func RecordEventResolved() {
	globalManager.eventsResolved.Inc()
}

// RecordClassifierCall counts a classifier call under its result label.
func RecordClassifierCall(result string) {
	globalManager.classifierCalls.WithLabelValues(result).Inc()
}

// RecordClassifierLatency records classifier round-trip latency.
func RecordClassifierLatency(latencyMs float64) {
	globalManager.classifierLatency.Observe(latencyMs)
}

// UpdateClassifierBreakerState publishes the breaker state.
func UpdateClassifierBreakerState(state int) {
	globalManager.classifierBreaker.Set(float64(state))
}

// RecordStoreLatency records the latency of a storage operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreConflict counts an optimistic version conflict.
func RecordStoreConflict() {
	globalManager.storeConflicts.Inc()
}

// RecordNotification counts a notification under kind and result labels.
func RecordNotification(kind, result string) {
	globalManager.notificationsTotal.WithLabelValues(kind, result).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueTotal.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueTotal.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records notification delivery latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
