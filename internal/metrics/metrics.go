package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// defaultRegistry is the default Prometheus registry
	defaultRegistry = prometheus.DefaultRegisterer
)

// Metrics holds all application metrics.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestBytes    *prometheus.CounterVec
	storageOpsTotal     *prometheus.CounterVec
	storageOpDuration   *prometheus.HistogramVec
	storageOpErrors     *prometheus.CounterVec
	decryptOperations   *prometheus.CounterVec
	decryptDuration     *prometheus.HistogramVec
	decryptErrors       *prometheus.CounterVec
	decryptBytes        *prometheus.CounterVec
	rangeRequestsTotal  *prometheus.CounterVec
	poolCheckouts       *prometheus.CounterVec
	activeConnections   prometheus.Gauge
	goroutines          prometheus.Gauge
	memoryAllocBytes    prometheus.Gauge
	memorySysBytes      prometheus.Gauge
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(defaultRegistry)
}

// NewMetricsWithRegistry creates a new metrics instance with a custom registry (for testing).
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		httpRequestBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_request_bytes_total",
				Help: "Total bytes transferred in HTTP requests",
			},
			[]string{"method", "path"},
		),
		storageOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_operations_total",
				Help: "Total number of storage backend operations",
			},
			[]string{"operation", "backend"},
		),
		storageOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_operation_duration_seconds",
				Help:    "Storage backend operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		storageOpErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_operation_errors_total",
				Help: "Total number of storage backend operation errors",
			},
			[]string{"operation", "backend", "error_type"},
		),
		decryptOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decrypt_operations_total",
				Help: "Total number of positioned decrypt operations",
			},
			[]string{"transformation"},
		),
		decryptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "decrypt_duration_seconds",
				Help:    "Positioned decrypt operation duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"transformation"},
		),
		decryptErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decrypt_errors_total",
				Help: "Total number of positioned decrypt errors",
			},
			[]string{"transformation", "error_type"},
		),
		decryptBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decrypt_bytes_total",
				Help: "Total plaintext bytes produced by positioned decrypts",
			},
			[]string{"transformation"},
		),
		rangeRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "range_requests_total",
				Help: "Total number of ranged object reads",
			},
			[]string{"kind"}, // "full" or "range"
		),
		poolCheckouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pool_checkouts_total",
				Help: "Resource pool checkouts by pool and outcome",
			},
			[]string{"pool", "outcome"}, // outcome: "hit" or "miss"
		),
		activeConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_connections",
				Help: "Number of active HTTP connections",
			},
		),
		goroutines: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "goroutines",
				Help: "Number of goroutines",
			},
		),
		memoryAllocBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_alloc_bytes",
				Help: "Number of bytes allocated and not yet freed",
			},
		),
		memorySysBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_sys_bytes",
				Help: "Total bytes of memory obtained from OS",
			},
		),
	}
}

// RecordHTTPRequest records an HTTP request metric.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration, bytes int64) {
	m.httpRequestsTotal.WithLabelValues(method, path, http.StatusText(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, http.StatusText(status)).Observe(duration.Seconds())
	m.httpRequestBytes.WithLabelValues(method, path).Add(float64(bytes))
}

// RecordStorageOperation records a storage backend operation metric.
func (m *Metrics) RecordStorageOperation(operation, backend string, duration time.Duration) {
	m.storageOpsTotal.WithLabelValues(operation, backend).Inc()
	m.storageOpDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// RecordStorageError records a storage backend operation error.
func (m *Metrics) RecordStorageError(operation, backend, errorType string) {
	m.storageOpErrors.WithLabelValues(operation, backend, errorType).Inc()
}

// RecordDecrypt records a positioned decrypt operation metric.
func (m *Metrics) RecordDecrypt(transformation string, duration time.Duration, bytes int64) {
	m.decryptOperations.WithLabelValues(transformation).Inc()
	m.decryptDuration.WithLabelValues(transformation).Observe(duration.Seconds())
	m.decryptBytes.WithLabelValues(transformation).Add(float64(bytes))
}

// RecordDecryptError records a positioned decrypt error.
func (m *Metrics) RecordDecryptError(transformation, errorType string) {
	m.decryptErrors.WithLabelValues(transformation, errorType).Inc()
}

// RecordRangeRequest records whether an object read was full or ranged.
func (m *Metrics) RecordRangeRequest(kind string) {
	m.rangeRequestsTotal.WithLabelValues(kind).Inc()
}

// RecordPoolCheckouts folds per-request pool hit/miss counts into the
// checkout metric.
func (m *Metrics) RecordPoolCheckouts(pool string, hits, misses uint64) {
	m.poolCheckouts.WithLabelValues(pool, "hit").Add(float64(hits))
	m.poolCheckouts.WithLabelValues(pool, "miss").Add(float64(misses))
}

// UpdateSystemMetrics updates system-level metrics (goroutines, memory).
func (m *Metrics) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.memoryAllocBytes.Set(float64(memStats.Alloc))
	m.memorySysBytes.Set(float64(memStats.Sys))
}

// IncrementActiveConnections increments the active connections counter.
func (m *Metrics) IncrementActiveConnections() {
	m.activeConnections.Inc()
}

// DecrementActiveConnections decrements the active connections counter.
func (m *Metrics) DecrementActiveConnections() {
	m.activeConnections.Dec()
}

// StartSystemMetricsCollector starts a goroutine that periodically updates system metrics.
func (m *Metrics) StartSystemMetricsCollector() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		for range ticker.C {
			m.UpdateSystemMetrics()
		}
	}()
}

// Handler returns the HTTP handler for metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
