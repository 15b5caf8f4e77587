// Package jobs holds the offline batch jobs run by hotspotctl: snapshot
// materialization, dataset export, model training and provider syncs.
package jobs

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotspot_service/internal/core"
	"hotspot_service/internal/domain/model"
	"hotspot_service/internal/domain/repository"
)

const (
	DefaultRadiusKM = 5.0
	DefaultWindow   = 6 * time.Hour
)

type DayEvents interface {
	ListEventsForDay(ctx context.Context, day time.Time) ([]model.Event, error)
}

type MaterializeOptions struct {
	Center   model.Point
	RadiusKM float64
	// Window is the largest allowed gap between event start and target.
	Window time.Duration
}

func (o MaterializeOptions) withDefaults() MaterializeOptions {
	if o.Center == (model.Point{}) {
		o.Center = model.DefaultCenter
	}
	if o.RadiusKM <= 0 {
		o.RadiusKM = DefaultRadiusKM
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	return o
}

type MaterializeResult struct {
	Events   int
	Inserted int
	Updated  int
}

type RangeResult struct {
	Days        int
	HoursPerDay int
	Inserted    int
	Updated     int
	Elapsed     time.Duration
}

// Materializer scores the events around a target moment and stores them as
// feature snapshots.
type Materializer struct {
	scorer    *core.Scorer
	rules     *model.WeatherRules
	events    DayEvents
	weather   core.WeatherRepository
	snapshots repository.SnapshotRecorder
	log       zerolog.Logger
}

func NewMaterializer(
	scorer *core.Scorer,
	rules *model.WeatherRules,
	events DayEvents,
	weather core.WeatherRepository,
	snapshots repository.SnapshotRecorder,
	log zerolog.Logger,
) *Materializer {
	if scorer == nil {
		scorer = core.NewScorer(nil)
	}
	if rules == nil {
		rules = model.DefaultWeatherRules()
	}
	return &Materializer{
		scorer:    scorer,
		rules:     rules,
		events:    events,
		weather:   weather,
		snapshots: snapshots,
		log:       log.With().Str("job", "materialize").Logger(),
	}
}

// Run materializes one hour of one day.
func (m *Materializer) Run(ctx context.Context, date time.Time, hour int, opts MaterializeOptions) (MaterializeResult, error) {
	if hour < 0 || hour > 23 {
		return MaterializeResult{}, fmt.Errorf("hour %d out of range 0..23", hour)
	}
	opts = opts.withDefaults()
	target := core.TargetTime(date, hour)

	events, err := m.events.ListEventsForDay(ctx, date)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("failed to list events: %w", err)
	}
	obs, err := m.weather.GetObservationAt(ctx, opts.Center.Lat, opts.Center.Lon, target)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("failed to get weather: %w", err)
	}
	factor := core.ObservationFactor(m.rules, obs)

	snaps := make([]model.FeatureSnapshot, 0, len(events))
	for _, ev := range events {
		if !ev.Located() {
			continue
		}
		gap := ev.Start.Sub(target)
		if gap < -opts.Window || gap > opts.Window {
			continue
		}
		if core.DistanceKM(opts.Center.Lat, opts.Center.Lon, *ev.Lat, *ev.Lon) > opts.RadiusKM {
			continue
		}
		snaps = append(snaps, m.snapshot(ev, target, obs, factor))
	}

	inserted, updated, err := m.snapshots.UpsertMany(ctx, snaps)
	if err != nil {
		return MaterializeResult{}, err
	}
	m.log.Info().
		Time("target", target).
		Int("events", len(snaps)).
		Int("inserted", inserted).
		Int("updated", updated).
		Float64("weather_factor", factor).
		Msg("snapshots materialized")
	return MaterializeResult{Events: len(snaps), Inserted: inserted, Updated: updated}, nil
}

func (m *Materializer) snapshot(ev model.Event, target time.Time, obs *model.WeatherObservation, factor float64) model.FeatureSnapshot {
	// базовый скор считается в точке самого события
	base := m.scorer.EventScore(ev, target, *ev.Lat, *ev.Lon)
	s := model.FeatureSnapshot{
		TargetAt:           target,
		EventID:            ev.ID,
		EventStart:         ev.Start.UTC(),
		EventEnd:           ev.End,
		Lat:                *ev.Lat,
		Lon:                *ev.Lon,
		Category:           ev.CategoryKey(),
		ExpectedAttendance: ev.ExpectedAttendance,
		HoursToStart:       ev.Start.Sub(target).Hours(),
		Weekday:            core.Weekday(target),
		Month:              int(target.Month()),
		ScoreBase:          base,
		ScoreWeatherFactor: factor,
		ScoreFinal:         base * factor,
	}
	if obs != nil {
		s.TemperatureC = obs.TemperatureC
		s.PrecipitationMM = obs.PrecipitationMM
		s.RainMM = obs.RainMM
		s.SnowfallMM = obs.SnowfallMM
		s.WindSpeedKMH = obs.WindSpeedKMH
		s.WindGustKMH = obs.WindGustKMH
		s.CloudCoverPct = obs.CloudCoverPct
		s.HumidityPct = obs.HumidityPct
		s.PressureHPA = obs.PressureHPA
		s.VisibilityM = obs.VisibilityM
		s.WeatherCode = obs.WeatherCode
	}
	return s
}

// RunRange materializes every listed hour of every day from start to end
// inclusive. Reversed dates are swapped.
func (m *Materializer) RunRange(ctx context.Context, start, end time.Time, hours []int, opts MaterializeOptions) (RangeResult, error) {
	if len(hours) == 0 {
		return RangeResult{}, fmt.Errorf("no hours to materialize")
	}
	if end.Before(start) {
		start, end = end, start
	}
	began := time.Now()

	res := RangeResult{HoursPerDay: len(hours)}
	last := core.TargetTime(end, 0)
	for day := core.TargetTime(start, 0); !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, h := range hours {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			r, err := m.Run(ctx, day, h, opts)
			if err != nil {
				return res, fmt.Errorf("%s hour %d: %w", day.Format(time.DateOnly), h, err)
			}
			res.Inserted += r.Inserted
			res.Updated += r.Updated
		}
		res.Days++
	}
	res.Elapsed = time.Since(began)

	m.log.Info().
		Int("days", res.Days).
		Int("hours_per_day", res.HoursPerDay).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Dur("elapsed", res.Elapsed).
		Msg("range materialized")
	return res, nil
}

// ParseHours expands an hour list such as "18-23" or "8,12,18-20" into sorted
// unique hours. An empty spec means the whole day.
func ParseHours(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = "0-23"
	}
	seen := make(map[int]struct{})
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		lo, hi := token, token
		if a, b, ok := strings.Cut(token, "-"); ok {
			lo, hi = a, b
		}
		from, err := parseHour(lo)
		if err != nil {
			return nil, err
		}
		to, err := parseHour(hi)
		if err != nil {
			return nil, err
		}
		if from > to {
			from, to = to, from
		}
		for h := from; h <= to; h++ {
			seen[h] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("no hours in %q", spec)
	}
	hours := make([]int, 0, len(seen))
	for h := range seen {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours, nil
}

func parseHour(s string) (int, error) {
	h, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid hour %q: %w", s, err)
	}
	if h < 0 || h > 23 {
		return 0, fmt.Errorf("hour must be between 0 and 23, got %d", h)
	}
	return h, nil
}

// DayRange converts an inclusive pair of calendar days into a half-open UTC
// interval [start 00:00, day after end 00:00). Reversed days are swapped.
func DayRange(start, end time.Time) (time.Time, time.Time) {
	from := core.TargetTime(start, 0)
	to := core.TargetTime(end, 0)
	if to.Before(from) {
		from, to = to, from
	}
	return from, to.AddDate(0, 0, 1)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
