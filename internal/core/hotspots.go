package core

import (
	"math"
	"sort"
	"strings"
	"time"

	"hotspot_service/internal/domain/model"
)

// Contribution is one scored event ready for grid aggregation.
type Contribution struct {
	Lat     float64
	Lon     float64
	Score   float64
	RadiusM float64

	// Optional per-event predictions (ML mode only).
	LeadTimeMin      *float64
	AttendanceFactor *float64
}

type cellKey struct {
	lat int64
	lon int64
}

type gridCell struct {
	key       cellKey
	scoreSum  float64
	latSum    float64
	lonSum    float64
	wLatSum   float64
	wLonSum   float64
	count     int
	maxRadius float64

	leadSum float64
	leadN   int
	attSum  float64
	attN    int
}

func (s *Scorer) quantize(v float64) int64 {
	return int64(math.Floor(v / s.cfg.CellSizeDeg))
}

// ComputeHotspots scores every event against its own location at target and
// aggregates the active ones into grid cells. An empty categories list allows all.
func (s *Scorer) ComputeHotspots(events []model.Event, target time.Time, categories []string, maxPoints int) []model.HotspotPoint {
	allowed := categorySet(categories)
	contribs := make([]Contribution, 0, len(events))
	for _, ev := range events {
		if !allowed.contains(ev.CategoryKey()) || !ev.Located() {
			continue
		}
		score := s.EventScore(ev, target, *ev.Lat, *ev.Lon)
		if score <= 0 {
			continue
		}
		contribs = append(contribs, Contribution{
			Lat:     *ev.Lat,
			Lon:     *ev.Lon,
			Score:   score,
			RadiusM: s.Radius(ev.CategoryKey()),
		})
	}
	return s.Aggregate(contribs, maxPoints)
}

// Aggregate buckets contributions into fixed-size grid cells, sums their
// scores and returns at most maxPoints cells ordered by score descending.
// Equal scores are ordered by cell (south-west first).
func (s *Scorer) Aggregate(contribs []Contribution, maxPoints int) []model.HotspotPoint {
	if maxPoints <= 0 {
		return []model.HotspotPoint{}
	}

	cells := make(map[cellKey]*gridCell)
	for _, c := range contribs {
		if c.Score <= 0 {
			continue
		}
		key := cellKey{lat: s.quantize(c.Lat), lon: s.quantize(c.Lon)}
		cell, ok := cells[key]
		if !ok {
			cell = &gridCell{key: key, maxRadius: s.cfg.DefaultRadiusM}
			cells[key] = cell
		}
		cell.scoreSum += c.Score
		cell.latSum += c.Lat
		cell.lonSum += c.Lon
		cell.wLatSum += c.Lat * c.Score
		cell.wLonSum += c.Lon * c.Score
		cell.count++
		cell.maxRadius = math.Max(cell.maxRadius, c.RadiusM)
		if c.LeadTimeMin != nil {
			cell.leadSum += *c.LeadTimeMin
			cell.leadN++
		}
		if c.AttendanceFactor != nil {
			cell.attSum += *c.AttendanceFactor
			cell.attN++
		}
	}

	ordered := make([]*gridCell, 0, len(cells))
	for _, cell := range cells {
		ordered = append(ordered, cell)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		sa, sb := round4(a.scoreSum), round4(b.scoreSum)
		if sa != sb {
			return sa > sb
		}
		if a.key.lat != b.key.lat {
			return a.key.lat < b.key.lat
		}
		return a.key.lon < b.key.lon
	})
	if len(ordered) > maxPoints {
		ordered = ordered[:maxPoints]
	}

	hotspots := make([]model.HotspotPoint, 0, len(ordered))
	for _, cell := range ordered {
		lat, lon := s.centroid(cell)
		hs := model.HotspotPoint{
			Lat:     lat,
			Lon:     lon,
			Score:   round4(cell.scoreSum),
			RadiusM: cell.maxRadius,
		}
		if cell.leadN > 0 {
			v := cell.leadSum / float64(cell.leadN)
			hs.LeadTimeMinPred = &v
		}
		if cell.attN > 0 {
			v := cell.attSum / float64(cell.attN)
			hs.AttendanceFactorPred = &v
		}
		hotspots = append(hotspots, hs)
	}
	return hotspots
}

// centroid applies the configured coordinate policy. The default is the plain
// mean of the contributing events.
func (s *Scorer) centroid(cell *gridCell) (float64, float64) {
	if s.cfg.Centroid == model.CentroidScoreWeighted && cell.scoreSum > 0 {
		return cell.wLatSum / cell.scoreSum, cell.wLonSum / cell.scoreSum
	}
	n := float64(cell.count)
	return cell.latSum / n, cell.lonSum / n
}

// ApplyFactor scales every hotspot score by factor, keeping 4 decimals.
func ApplyFactor(hotspots []model.HotspotPoint, factor float64) {
	for i := range hotspots {
		hotspots[i].Score = round4(hotspots[i].Score * factor)
	}
}

type categoryFilter map[string]struct{}

func categorySet(categories []string) categoryFilter {
	if len(categories) == 0 {
		return nil
	}
	set := make(categoryFilter, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			set[c] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

func (f categoryFilter) contains(category string) bool {
	if f == nil {
		return true
	}
	_, ok := f[category]
	return ok
}
