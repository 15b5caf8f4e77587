// Package core implements event scoring, hotspot aggregation and the linear
// models used by the ML heatmap mode.
package core

import (
	"math"
	"time"

	"hotspot_service/internal/domain/model"
)

// Scorer evaluates events against a target moment using read-only category tables.
type Scorer struct {
	cfg *model.ScoringConfig
}

// NewScorer creates a scorer. If cfg is nil, the default tables are used.
func NewScorer(cfg *model.ScoringConfig) *Scorer {
	if cfg == nil {
		cfg = model.DefaultScoringConfig()
	}
	return &Scorer{cfg: cfg}
}

// Config returns the tables in use. Callers must not modify them.
func (s *Scorer) Config() *model.ScoringConfig {
	return s.cfg
}

// Duration returns the assumed duration in hours for a category.
func (s *Scorer) Duration(category string) float64 {
	if h, ok := s.cfg.DurationHours[category]; ok {
		return h
	}
	return s.cfg.DefaultDurationH
}

// Radius returns the influence radius in meters for a category.
func (s *Scorer) Radius(category string) float64 {
	if r, ok := s.cfg.RadiusM[category]; ok {
		return r
	}
	return s.cfg.DefaultRadiusM
}

func (s *Scorer) Boost(category string) float64 {
	if b, ok := s.cfg.Boost[category]; ok {
		return b
	}
	return s.cfg.DefaultBoost
}

// EventScore = temporal weight × spatial weight × category boost.
// The spatial part is skipped when the event is not active at target.
func (s *Scorer) EventScore(ev model.Event, target time.Time, lat, lon float64) float64 {
	if !ev.Located() {
		return 0
	}
	temporal := s.TemporalWeight(ev, target)
	if temporal == 0 {
		return 0
	}
	spatial := s.SpatialWeight(ev, lat, lon)
	return temporal * spatial * s.Boost(ev.CategoryKey())
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
