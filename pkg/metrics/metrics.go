package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPResponseSize     *prometheus.HistogramVec

	// Documentation generation metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	DocumentationBytes prometheus.Histogram

	// Completion API metrics
	CompletionCallsTotal *prometheus.CounterVec
	CompletionDuration   *prometheus.HistogramVec

	// Chunking metrics
	ChunksCreatedTotal prometheus.Counter
	ChunkSizeChars     prometheus.Histogram
	ChunkingDuration   prometheus.Histogram
}

// New creates a new metrics instance on its own registry
func New(namespace, subsystem string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),

		// Documentation generation metrics
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "generations_total",
				Help:      "Total number of documentation requests by outcome",
			},
			[]string{"status"},
		),

		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "generation_duration_seconds",
				Help:      "Duration of documentation requests in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),

		DocumentationBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "documentation_size_bytes",
				Help:      "Size of generated documentation in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 2, 12),
			},
		),

		// Completion API metrics
		CompletionCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "completion_calls_total",
				Help:      "Total number of completion API calls by outcome",
			},
			[]string{"result"},
		),

		CompletionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "completion_duration_seconds",
				Help:      "Duration of completion API calls in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"result"},
		),

		// Chunking metrics
		ChunksCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "chunks_created_total",
				Help:      "Total number of chunks created",
			},
		),

		ChunkSizeChars: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "chunk_size_chars",
				Help:      "Average chunk size per request in characters",
				Buckets:   []float64{100, 500, 1000, 2000, 4000, 8000, 16000},
			},
		),

		ChunkingDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "chunking_duration_seconds",
				Help:      "Duration of chunking in seconds",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5},
			},
		),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordGeneration records the outcome of one documentation request
func (m *Metrics) RecordGeneration(status string, duration time.Duration, docBytes int) {
	m.GenerationsTotal.WithLabelValues(status).Inc()
	m.GenerationDuration.WithLabelValues(status).Observe(duration.Seconds())
	if docBytes > 0 {
		m.DocumentationBytes.Observe(float64(docBytes))
	}
}

// RecordCompletion records one completion API call
func (m *Metrics) RecordCompletion(result string, duration time.Duration) {
	m.CompletionCallsTotal.WithLabelValues(result).Inc()
	m.CompletionDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordChunking records chunking metrics
func (m *Metrics) RecordChunking(duration time.Duration, chunkCount int, avgChunkSize float64) {
	m.ChunksCreatedTotal.Add(float64(chunkCount))
	m.ChunkingDuration.Observe(duration.Seconds())
	if chunkCount > 0 {
		m.ChunkSizeChars.Observe(avgChunkSize)
	}
}

// Global metrics instance
var globalMetrics *Metrics

// Init initializes global metrics
func Init(namespace, subsystem string) {
	globalMetrics = New(namespace, subsystem)
}

// Get returns the global metrics instance
func Get() *Metrics {
	if globalMetrics == nil {
		globalMetrics = New("codescribe", "api")
	}
	return globalMetrics
}
