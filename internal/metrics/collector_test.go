package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAndGauge(t *testing.T) {
	c := NewMetricsCollector()

	ctr := c.Counter("test_total", "test counter")
	ctr.Inc()
	ctr.Add(2)
	assert.Equal(t, int64(3), ctr.Value())

	// Same name returns the same counter.
	assert.Equal(t, ctr, c.Counter("test_total", "test counter"))

	g := c.Gauge("test_gauge", "test gauge")
	g.Set(5)
	g.Dec()
	assert.Equal(t, int64(4), g.Value())
}

func TestHistogramObserve(t *testing.T) {
	c := NewMetricsCollector()
	h := c.Histogram("test_latency", "test histogram", []float64{1, 5})

	h.Observe(0.5)
	h.Observe(3)
	h.Observe(100)

	assert.Equal(t, int64(3), h.count)
	assert.Equal(t, int64(1), h.buckets[0].count)
	assert.Equal(t, int64(2), h.buckets[1].count)
}

func TestHandler_PrometheusFormat(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("demo_requests_total", "Demo requests").Add(7)
	c.Histogram("demo_latency_seconds", "Demo latency", []float64{1}).Observe(0.2)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "# TYPE demo_requests_total counter")
	assert.Contains(t, body, "demo_requests_total 7")
	assert.Contains(t, body, `demo_latency_seconds_bucket{le="1"} 1`)
	assert.Contains(t, body, "clovagate_uptime_seconds")
}
