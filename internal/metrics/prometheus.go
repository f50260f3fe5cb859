package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusOnce     sync.Once
	prometheusInstance *PrometheusCollector
)

// PrometheusCollector provides Prometheus metrics for sgfrender.
type PrometheusCollector struct {
	// Render pipeline metrics
	rendersTotal      *prometheus.CounterVec
	renderDuration    *prometheus.HistogramVec
	renderErrorsTotal *prometheus.CounterVec
	replayedMoves     prometheus.Histogram
	encodedBytes      prometheus.Histogram

	// MCP Tool metrics
	toolCallsTotal   *prometheus.CounterVec
	toolErrorsTotal  *prometheus.CounterVec
	toolDurationSecs *prometheus.HistogramVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Cache metrics
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
	cacheSize        prometheus.Gauge
	cacheItems       prometheus.Gauge
}

// NewPrometheusCollector creates a new Prometheus metrics collector (singleton).
func NewPrometheusCollector() *PrometheusCollector {
	prometheusOnce.Do(func() {
		prometheusInstance = &PrometheusCollector{
			rendersTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sgfrender_renders_total",
					Help: "Total number of render requests",
				},
				[]string{"theme", "status"},
			),
			renderDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "sgfrender_render_duration_seconds",
					Help:    "Duration of parse, replay, render and encode in seconds",
					Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
				},
				[]string{"theme"},
			),
			renderErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sgfrender_render_errors_total",
					Help: "Total number of failed renders by pipeline stage",
				},
				[]string{"stage"},
			),
			replayedMoves: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "sgfrender_replayed_moves",
					Help:    "Number of moves replayed per render",
					Buckets: []float64{0, 10, 50, 100, 200, 300, 400},
				},
			),
			encodedBytes: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "sgfrender_encoded_bytes",
					Help:    "Size of encoded images in bytes",
					Buckets: prometheus.ExponentialBuckets(4096, 2, 8),
				},
			),

			// MCP Tool metrics
			toolCallsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sgfrender_mcp_tool_calls_total",
					Help: "Total number of MCP tool calls",
				},
				[]string{"tool", "status"},
			),
			toolErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sgfrender_mcp_tool_errors_total",
					Help: "Total number of MCP tool errors",
				},
				[]string{"tool", "error_type"},
			),
			toolDurationSecs: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "sgfrender_mcp_tool_duration_seconds",
					Help:    "Duration of MCP tool calls in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),

			// HTTP metrics
			httpRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sgfrender_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			httpRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "sgfrender_http_request_duration_seconds",
					Help:    "Duration of HTTP requests in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),

			// Cache metrics
			cacheHitsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "sgfrender_cache_hits_total",
					Help: "Total number of render cache hits",
				},
			),
			cacheMissesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "sgfrender_cache_misses_total",
					Help: "Total number of render cache misses",
				},
			),
			cacheSize: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "sgfrender_cache_size_bytes",
					Help: "Current cache size in bytes",
				},
			),
			cacheItems: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "sgfrender_cache_items",
					Help: "Current number of items in cache",
				},
			),
		}
	})
	return prometheusInstance
}

// RecordRender records a finished render. status is "success" or "error".
func (p *PrometheusCollector) RecordRender(theme, status string, durationSecs float64) {
	p.rendersTotal.WithLabelValues(theme, status).Inc()
	p.renderDuration.WithLabelValues(theme).Observe(durationSecs)
}

// RecordRenderError records a failed render by stage: config, parse, replay or io.
func (p *PrometheusCollector) RecordRenderError(stage string) {
	p.renderErrorsTotal.WithLabelValues(stage).Inc()
}

// RecordReplay records the number of moves replayed for one render.
func (p *PrometheusCollector) RecordReplay(moves int) {
	p.replayedMoves.Observe(float64(moves))
}

// RecordEncoded records the size of one encoded image.
func (p *PrometheusCollector) RecordEncoded(size int) {
	p.encodedBytes.Observe(float64(size))
}

// RecordToolCall records a tool call metric.
func (p *PrometheusCollector) RecordToolCall(tool, status string, durationSecs float64) {
	p.toolCallsTotal.WithLabelValues(tool, status).Inc()
	p.toolDurationSecs.WithLabelValues(tool).Observe(durationSecs)

	if status == "error" {
		p.toolErrorsTotal.WithLabelValues(tool, "general").Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func (p *PrometheusCollector) RecordHTTPRequest(method, path, status string, durationSecs float64) {
	p.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	p.httpRequestDuration.WithLabelValues(method, path).Observe(durationSecs)
}

// RecordCacheHit records a cache hit.
func (p *PrometheusCollector) RecordCacheHit() {
	p.cacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss.
func (p *PrometheusCollector) RecordCacheMiss() {
	p.cacheMissesTotal.Inc()
}

// SetCacheStats sets the current cache statistics.
func (p *PrometheusCollector) SetCacheStats(items, sizeBytes float64) {
	p.cacheItems.Set(items)
	p.cacheSize.Set(sizeBytes)
}
