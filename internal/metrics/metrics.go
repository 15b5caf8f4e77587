// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can build as many as they need.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	modelLoads  *prometheus.CounterVec
	hotspots    *prometheus.HistogramVec
	weatherMiss prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hotspot",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"route", "code"})
	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hotspot",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
	m.modelLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hotspot",
		Name:      "model_loads_total",
		Help:      "Model artifact loads from disk by model and result",
	}, []string{"model", "result"})
	m.hotspots = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hotspot",
		Name:      "heatmap_hotspots",
		Help:      "Number of hotspots returned per heatmap",
		Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
	}, []string{"mode"})
	m.weatherMiss = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hotspot",
		Name:      "heatmap_weather_missing_total",
		Help:      "Heatmaps computed without a weather observation",
	})
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.modelLoads,
		m.hotspots,
		m.weatherMiss,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) ModelLoaded(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.modelLoads.WithLabelValues(name, result).Inc()
}

func (m *Metrics) HeatmapServed(mode string, hotspots int, hasWeather bool) {
	if m == nil {
		return
	}
	m.hotspots.WithLabelValues(mode).Observe(float64(hotspots))
	if !hasWeather {
		m.weatherMiss.Inc()
	}
}
