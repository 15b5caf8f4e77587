package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"hotspot_service/internal/domain/model"
)

// EventRepository is the read side of the events table used by the service.
type EventRepository interface {
	ListEventsForDay(ctx context.Context, day time.Time) ([]model.Event, error)
	ListEventsFromHour(ctx context.Context, day time.Time, fromHour int) ([]model.Event, error)
}

// WeatherRepository returns the observation nearest to at, or nil when there is none.
type WeatherRepository interface {
	GetObservationAt(ctx context.Context, lat, lon float64, at time.Time) (*model.WeatherObservation, error)
}

// ModelProvider loads model artifacts by name.
type ModelProvider interface {
	GetOrLoad(name string) (*model.LinearModelArtifact, error)
}

var ErrInvalidRequest = errors.New("invalid request")

type HotspotService struct {
	scorer  *Scorer
	rules   *model.WeatherRules
	events  EventRepository
	weather WeatherRepository
	models  ModelProvider
	center  model.Point
	log     zerolog.Logger
}

func NewHotspotService(
	scorer *Scorer,
	rules *model.WeatherRules,
	events EventRepository,
	weather WeatherRepository,
	models ModelProvider,
	center model.Point,
	log zerolog.Logger,
) *HotspotService {
	if scorer == nil {
		scorer = NewScorer(nil)
	}
	if rules == nil {
		rules = model.DefaultWeatherRules()
	}
	if center == (model.Point{}) {
		center = model.DefaultCenter
	}
	return &HotspotService{
		scorer:  scorer,
		rules:   rules,
		events:  events,
		weather: weather,
		models:  models,
		center:  center,
		log:     log.With().Str("component", "hotspots").Logger(),
	}
}

// TargetTime combines a calendar date with an hour of day in UTC.
func TargetTime(date time.Time, hour int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func validHour(hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d out of range 0..23", ErrInvalidRequest, hour)
	}
	return nil
}

// Heatmap computes the hotspots for one hour of one day.
func (s *HotspotService) Heatmap(ctx context.Context, req model.HeatmapRequest) (*model.HeatmapResult, error) {
	if err := validHour(req.Hour); err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = model.ModeHeuristic
	}
	maxPoints := s.scorer.Config().MaxPoints
	if req.MaxPoints != nil {
		if *req.MaxPoints < 0 {
			return nil, fmt.Errorf("%w: max_points must not be negative", ErrInvalidRequest)
		}
		maxPoints = *req.MaxPoints
	}
	ref := s.center
	if req.Lat != nil && req.Lon != nil {
		ref = model.Point{Lat: *req.Lat, Lon: *req.Lon}
	}
	target := TargetTime(req.Date, req.Hour)

	// модели грузим до запроса событий, чтобы сразу вернуть 503
	var lead, att *model.LinearModelArtifact
	if mode == model.ModeML {
		var err error
		if lead, err = s.loadModel(model.LeadTimeModel); err != nil {
			return nil, err
		}
		if att, err = s.loadModel(model.AttendanceFactorModel); err != nil {
			return nil, err
		}
	}

	events, err := s.events.ListEventsForDay(ctx, req.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var obs *model.WeatherObservation
	if s.weather != nil {
		obs, err = s.weather.GetObservationAt(ctx, ref.Lat, ref.Lon, target)
		if err != nil {
			s.log.Warn().Err(err).Time("target", target).Msg("weather lookup failed, scoring without weather")
			obs = nil
		}
	}

	var hotspots []model.HotspotPoint
	switch mode {
	case model.ModeML:
		hotspots = s.scorer.ComputeMLHotspots(events, target, req.Categories, maxPoints, MLInputs{
			CenterLat:  ref.Lat,
			CenterLon:  ref.Lon,
			Weather:    obs,
			LeadTime:   lead,
			Attendance: att,
		})
	default:
		hotspots = s.scorer.ComputeHotspots(events, target, req.Categories, maxPoints)
	}

	factor := ObservationFactor(s.rules, obs)
	ApplyFactor(hotspots, factor)

	s.log.Debug().
		Str("mode", string(mode)).
		Time("target", target).
		Int("events", len(events)).
		Int("hotspots", len(hotspots)).
		Float64("weather_factor", factor).
		Msg("heatmap computed")

	return &model.HeatmapResult{Mode: mode, Weather: obs, Hotspots: hotspots}, nil
}

func (s *HotspotService) loadModel(name string) (*model.LinearModelArtifact, error) {
	if s.models == nil {
		return nil, fmt.Errorf("%w: no model store configured", model.ErrModelUnavailable)
	}
	a, err := s.models.GetOrLoad(name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return a, nil
}

// HotspotEvents lists the events active at the target moment within RadiusM
// of the point, nearest first.
func (s *HotspotService) HotspotEvents(ctx context.Context, req model.HotspotEventsRequest) ([]model.HotspotEvent, error) {
	if err := validHour(req.Hour); err != nil {
		return nil, err
	}
	if req.RadiusM <= 0 {
		return nil, fmt.Errorf("%w: radius_m must be positive", ErrInvalidRequest)
	}
	target := TargetTime(req.Date, req.Hour)

	events, err := s.events.ListEventsForDay(ctx, req.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]model.HotspotEvent, 0)
	for _, ev := range events {
		if !ev.Located() {
			continue
		}
		if s.scorer.TemporalWeight(ev, target) <= 0 {
			continue
		}
		d := DistanceM(req.Lat, req.Lon, *ev.Lat, *ev.Lon)
		if d > req.RadiusM {
			continue
		}
		out = append(out, model.HotspotEvent{
			ID:                 ev.ID,
			Title:              ev.Title,
			Category:           ev.CategoryKey(),
			Start:              ev.Start,
			VenueName:          ev.VenueName,
			ExpectedAttendance: ev.ExpectedAttendance,
			DistanceM:          round4(d),
			Score:              round4(s.scorer.EventScore(ev, target, *ev.Lat, *ev.Lon)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceM != out[j].DistanceM {
			return out[i].DistanceM < out[j].DistanceM
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

// Events lists the events of a day overlapping the hour starting at fromHour.
func (s *HotspotService) Events(ctx context.Context, date time.Time, fromHour int) ([]model.Event, error) {
	if err := validHour(fromHour); err != nil {
		return nil, err
	}
	events, err := s.events.ListEventsFromHour(ctx, date, fromHour)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Models returns the artifacts that can currently be loaded, keyed by name.
func (s *HotspotService) Models() map[string]*model.LinearModelArtifact {
	out := make(map[string]*model.LinearModelArtifact)
	if s.models == nil {
		return out
	}
	for _, name := range []string{model.LeadTimeModel, model.AttendanceFactorModel} {
		a, err := s.models.GetOrLoad(name)
		if err != nil {
			s.log.Debug().Err(err).Str("model", name).Msg("model not available")
			continue
		}
		out[name] = a
	}
	return out
}
