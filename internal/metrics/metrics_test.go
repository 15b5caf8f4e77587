package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/heatmap", 200, 10*time.Millisecond)
	m.ObserveRequest("/api/heatmap", 200, 20*time.Millisecond)
	m.ObserveRequest("/api/heatmap", 503, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/heatmap", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/heatmap", "503")))
}

func TestModelLoaded(t *testing.T) {
	m := New()
	m.ModelLoaded("model_lead_time", nil)
	m.ModelLoaded("model_lead_time", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelLoads.WithLabelValues("model_lead_time", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelLoads.WithLabelValues("model_lead_time", "error")))
}

func TestHeatmapServedCountsMissingWeather(t *testing.T) {
	m := New()
	m.HeatmapServed("heuristic", 3, false)
	m.HeatmapServed("ml", 5, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.weatherMiss))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/x", 200, time.Second)
		m.ModelLoaded("x", nil)
		m.HeatmapServed("heuristic", 0, false)
	})
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("/healthz", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hotspot_http_requests_total")
}
