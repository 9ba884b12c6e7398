package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swiftgate/swiftgate/internal/config"
)

const namespace = "swiftgate"

// Manager defines the interface for metrics management
type Manager interface {
	// HTTP Metrics
	RecordHTTPRequest(method string, status int, duration time.Duration)

	// Multi-object delete metrics
	RecordMultiDelete(result string, keys int, duration time.Duration)
	RecordKeyOutcome(outcome string)

	// Backend Metrics
	RecordBackendRequest(op, status string, duration time.Duration)

	// Export
	Handler() http.Handler
	Enabled() bool

	// HTTP Middleware
	Middleware() func(http.Handler) http.Handler
}

// metricsManager implements the Manager interface using Prometheus
type metricsManager struct {
	registry *prometheus.Registry

	// HTTP Metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Multi-object delete metrics
	multiDeleteRequestsTotal *prometheus.CounterVec
	multiDeleteKeysTotal     *prometheus.CounterVec
	multiDeleteBatchSize     prometheus.Histogram
	multiDeleteDuration      prometheus.Histogram

	// Backend Metrics
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec
}

// NewManager creates a new metrics manager; a disabled config yields a no-op
func NewManager(cfg config.MetricsConfig) Manager {
	if !cfg.Enable {
		return &noopManager{}
	}

	m := &metricsManager{registry: prometheus.NewRegistry()}
	m.initializeMetrics()
	m.registerMetrics()
	return m
}

// initializeMetrics sets up all Prometheus metrics
func (m *metricsManager) initializeMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.multiDeleteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multidelete",
			Name:      "requests_total",
			Help:      "Multi-object delete requests by result",
		},
		[]string{"result"},
	)

	m.multiDeleteKeysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "multidelete",
			Name:      "keys_total",
			Help:      "Keys processed by multi-object delete, by outcome",
		},
		[]string{"outcome"},
	)

	m.multiDeleteBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "multidelete",
			Name:      "batch_keys",
			Help:      "Number of keys per multi-object delete request",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000},
		},
	)

	m.multiDeleteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "multidelete",
			Name:      "duration_seconds",
			Help:      "Multi-object delete processing time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		},
	)

	m.backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Storage backend calls by operation and status",
		},
		[]string{"op", "status"},
	)

	m.backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Storage backend call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
}

func (m *metricsManager) registerMetrics() {
	m.registry.MustRegister(
		// HTTP
		m.httpRequestsTotal,
		m.httpRequestDuration,

		// Multi-object delete
		m.multiDeleteRequestsTotal,
		m.multiDeleteKeysTotal,
		m.multiDeleteBatchSize,
		m.multiDeleteDuration,

		// Backend
		m.backendRequestsTotal,
		m.backendRequestDuration,

		// Runtime
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func (m *metricsManager) RecordHTTPRequest(method string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *metricsManager) RecordMultiDelete(result string, keys int, duration time.Duration) {
	m.multiDeleteRequestsTotal.WithLabelValues(result).Inc()
	m.multiDeleteBatchSize.Observe(float64(keys))
	m.multiDeleteDuration.Observe(duration.Seconds())
}

func (m *metricsManager) RecordKeyOutcome(outcome string) {
	m.multiDeleteKeysTotal.WithLabelValues(outcome).Inc()
}

func (m *metricsManager) RecordBackendRequest(op, status string, duration time.Duration) {
	m.backendRequestsTotal.WithLabelValues(op, status).Inc()
	m.backendRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *metricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsManager) Enabled() bool {
	return true
}

func (m *metricsManager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create response writer wrapper to capture status code
			wrapped := &responseWriterWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			m.RecordHTTPRequest(r.Method, wrapped.statusCode, time.Since(start))
		})
	}
}

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// noopManager is used when metrics are disabled
type noopManager struct{}

func (n *noopManager) RecordHTTPRequest(string, int, time.Duration)       {}
func (n *noopManager) RecordMultiDelete(string, int, time.Duration)       {}
func (n *noopManager) RecordKeyOutcome(string)                            {}
func (n *noopManager) RecordBackendRequest(string, string, time.Duration) {}
func (n *noopManager) Handler() http.Handler                              { return http.NotFoundHandler() }
func (n *noopManager) Enabled() bool                                      { return false }
func (n *noopManager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}
