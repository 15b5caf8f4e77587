package core

import (
	"time"

	"hotspot_service/internal/domain/model"
)

// MLInputs carries everything the ML heatmap needs besides the events.
type MLInputs struct {
	CenterLat  float64
	CenterLon  float64
	Weather    *model.WeatherObservation
	LeadTime   *model.LinearModelArtifact
	Attendance *model.LinearModelArtifact
}

// ComputeMLHotspots is ComputeHotspots with per-event model adjustments.
// Each active event gets a predicted lead time and attendance factor, both
// clamped to their business bounds. An event that starts further ahead than
// its lead time is damped by the early penalty, then the score is scaled by
// the attendance factor. Cells report the mean of their events' predictions.
func (s *Scorer) ComputeMLHotspots(events []model.Event, target time.Time, categories []string, maxPoints int, in MLInputs) []model.HotspotPoint {
	allowed := categorySet(categories)
	contribs := make([]Contribution, 0, len(events))
	for _, ev := range events {
		if !allowed.contains(ev.CategoryKey()) || !ev.Located() {
			continue
		}
		base := s.EventScore(ev, target, *ev.Lat, *ev.Lon)
		if base <= 0 {
			continue
		}

		row := BuildFeatureRow(ev, target, in.CenterLat, in.CenterLon, in.Weather)
		lead := ClampLeadTime(Predict(in.LeadTime, row))
		att := ClampAttendanceFactor(Predict(in.Attendance, row))

		score := base
		// событие ещё слишком далеко по времени
		if ev.Start.Sub(target).Minutes() > lead {
			score *= s.cfg.EarlyPenalty
		}
		score *= att

		contribs = append(contribs, Contribution{
			Lat:              *ev.Lat,
			Lon:              *ev.Lon,
			Score:            score,
			RadiusM:          s.Radius(ev.CategoryKey()),
			LeadTimeMin:      &lead,
			AttendanceFactor: &att,
		})
	}
	return s.Aggregate(contribs, maxPoints)
}
