package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusCollectorSingleton(t *testing.T) {
	assert.Same(t, NewPrometheusCollector(), NewPrometheusCollector())
}

func TestPrometheusCollectorRenders(t *testing.T) {
	collector := NewPrometheusCollector()

	before := testutil.ToFloat64(collector.rendersTotal.WithLabelValues("paper", "success"))
	collector.RecordRender("paper", "success", 0.02)
	collector.RecordRender("paper", "success", 0.03)
	after := testutil.ToFloat64(collector.rendersTotal.WithLabelValues("paper", "success"))
	assert.Equal(t, before+2, after)

	beforeErr := testutil.ToFloat64(collector.renderErrorsTotal.WithLabelValues("replay"))
	collector.RecordRenderError("replay")
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(collector.renderErrorsTotal.WithLabelValues("replay")))

	collector.RecordReplay(120)
	collector.RecordEncoded(50_000)
}

func TestPrometheusCollectorCache(t *testing.T) {
	collector := NewPrometheusCollector()

	hits := testutil.ToFloat64(collector.cacheHitsTotal)
	misses := testutil.ToFloat64(collector.cacheMissesTotal)
	collector.RecordCacheHit()
	collector.RecordCacheMiss()
	collector.RecordCacheMiss()

	assert.Equal(t, hits+1, testutil.ToFloat64(collector.cacheHitsTotal))
	assert.Equal(t, misses+2, testutil.ToFloat64(collector.cacheMissesTotal))

	collector.SetCacheStats(3, 4096)
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.cacheItems))
	assert.Equal(t, 4096.0, testutil.ToFloat64(collector.cacheSize))
}

func TestPrometheusCollectorToolsAndHTTP(t *testing.T) {
	collector := NewPrometheusCollector()

	errs := testutil.ToFloat64(collector.toolErrorsTotal.WithLabelValues("renderGame", "general"))
	collector.RecordToolCall("renderGame", "success", 0.05)
	collector.RecordToolCall("renderGame", "error", 0.01)
	assert.Equal(t, errs+1, testutil.ToFloat64(collector.toolErrorsTotal.WithLabelValues("renderGame", "general")))

	reqs := testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/render", "200"))
	collector.RecordHTTPRequest("POST", "/render", "200", 0.04)
	assert.Equal(t, reqs+1, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/render", "200")))
}
