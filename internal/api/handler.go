package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotspot_service/internal/core"
	"hotspot_service/internal/domain/model"
	"hotspot_service/internal/metrics"
)

const (
	dateLayout            = "2006-01-02"
	defaultEventRadiusM   = 300.0
	DefaultRequestTimeout = 30 * time.Second
)

// HotspotService is what the handlers need from the core service.
type HotspotService interface {
	Heatmap(ctx context.Context, req model.HeatmapRequest) (*model.HeatmapResult, error)
	HotspotEvents(ctx context.Context, req model.HotspotEventsRequest) ([]model.HotspotEvent, error)
	Events(ctx context.Context, date time.Time, fromHour int) ([]model.Event, error)
	Models() map[string]*model.LinearModelArtifact
}

type Handler struct {
	service HotspotService
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewHandler(service HotspotService, m *metrics.Metrics, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		metrics: m,
		log:     log.With().Str("component", "api").Logger(),
	}
}

// Routes builds the router with middleware.
func (h *Handler) Routes(timeout time.Duration) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(h.instrument)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/heatmap", h.Heatmap)
		r.Get("/hotspot_events", h.HotspotEvents)
		r.Get("/events", h.Events)
		r.Get("/models", h.Models)
	})
	return r
}

// instrument logs every request and records it under its route pattern.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		h.metrics.ObserveRequest(route, status, elapsed)
		h.log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// Heatmap handles GET /api/heatmap?date=YYYY-MM-DD&hour=H[&lat&lon&mode&categories&max_points].
func (h *Handler) Heatmap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date, err := parseDate(q.Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hour, err := parseInt(q, "hour", true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mode, err := model.ParseMode(q.Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lat, lon, err := parsePoint(q, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := model.HeatmapRequest{
		Date:       date,
		Hour:       *hour,
		Lat:        lat,
		Lon:        lon,
		Mode:       mode,
		Categories: splitList(q.Get("categories")),
	}
	if req.MaxPoints, err = parseInt(q, "max_points", false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.Heatmap(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.metrics.HeatmapServed(string(result.Mode), len(result.Hotspots), result.Weather != nil)
	writeJSON(w, result)
}

// HotspotEvents handles GET /api/hotspot_events?date&hour&lat&lon[&radius_m].
func (h *Handler) HotspotEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date, err := parseDate(q.Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hour, err := parseInt(q, "hour", true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lat, lon, err := parsePoint(q, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	radius := defaultEventRadiusM
	if v := q.Get("radius_m"); v != "" {
		if radius, err = strconv.ParseFloat(v, 64); err != nil {
			http.Error(w, "invalid radius_m", http.StatusBadRequest)
			return
		}
	}

	events, err := h.service.HotspotEvents(r.Context(), model.HotspotEventsRequest{
		Date:    date,
		Hour:    *hour,
		Lat:     *lat,
		Lon:     *lon,
		RadiusM: radius,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, events)
}

// Events handles GET /api/events?date&from_hour.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date, err := parseDate(q.Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fromHour, err := parseInt(q, "from_hour", true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := h.service.Events(r.Context(), date, *fromHour)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, events)
}

type modelInfo struct {
	Name           string             `json:"name"`
	TargetCol      string             `json:"target_col"`
	FeatureColumns []string           `json:"feature_columns"`
	Categories     []string           `json:"categories"`
	Metrics        model.ModelMetrics `json:"metrics"`
}

// Models handles GET /api/models.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	loaded := h.service.Models()
	infos := make([]modelInfo, 0, len(loaded))
	for name, a := range loaded {
		infos = append(infos, modelInfo{
			Name:           name,
			TargetCol:      a.TargetCol,
			FeatureColumns: a.FeatureColumns,
			Categories:     a.Categories,
			Metrics:        a.Metrics,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	writeJSON(w, infos)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, model.ErrModelUnavailable):
		h.log.Warn().Err(err).Msg("model unavailable")
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, model.ErrInvalidArtifact):
		h.log.Error().Err(err).Msg("model artifact rejected")
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		http.Error(w, "request timed out", http.StatusServiceUnavailable)
	default:
		h.log.Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("date is required")
	}
	d, err := time.ParseInLocation(dateLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return d, nil
}

type queryGetter interface {
	Get(key string) string
}

func parseInt(q queryGetter, name string, required bool) (*int, error) {
	v := q.Get(name)
	if v == "" {
		if required {
			return nil, errors.New(name + " is required")
		}
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.New(name + " must be an integer")
	}
	return &n, nil
}

// parsePoint reads lat and lon. They must be given together.
func parsePoint(q queryGetter, required bool) (*float64, *float64, error) {
	latS, lonS := q.Get("lat"), q.Get("lon")
	if latS == "" && lonS == "" && !required {
		return nil, nil, nil
	}
	if latS == "" || lonS == "" {
		return nil, nil, errors.New("lat and lon must be given together")
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, nil, errors.New("invalid lat")
	}
	lon, err := strconv.ParseFloat(lonS, 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, nil, errors.New("invalid lon")
	}
	return &lat, &lon, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
