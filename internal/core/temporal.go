package core

import (
	"time"

	"hotspot_service/internal/domain/model"
)

// EstimateEnd returns the event end, falling back to start plus the category duration.
func (s *Scorer) EstimateEnd(ev model.Event) time.Time {
	if ev.End != nil && !ev.End.IsZero() {
		return *ev.End
	}
	hours := s.Duration(ev.CategoryKey())
	return ev.Start.Add(time.Duration(hours * float64(time.Hour)))
}

// TemporalWeight is 1 while the event runs, ramps linearly from 0 to 1 over the
// pre-window and from 1 to 0 over the post-window, and is 0 outside.
// All instants are compared in UTC.
func (s *Scorer) TemporalWeight(ev model.Event, target time.Time) float64 {
	if ev.Start.IsZero() {
		return 0
	}
	start := ev.Start.UTC()
	end := s.EstimateEnd(ev).UTC()
	t := target.UTC()
	preStart := start.Add(-s.cfg.PreWindow)
	postEnd := end.Add(s.cfg.PostWindow)

	if t.Before(preStart) || t.After(postEnd) {
		return 0
	}
	if !t.Before(start) && !t.After(end) {
		return 1
	}
	if t.Before(start) {
		total := start.Sub(preStart).Seconds()
		return clamp(t.Sub(preStart).Seconds()/total, 0, 1)
	}
	// post window
	total := postEnd.Sub(end).Seconds()
	return clamp(postEnd.Sub(t).Seconds()/total, 0, 1)
}
