package core

import (
	"math"

	"hotspot_service/internal/domain/model"
)

// Unit selects the output unit of Distance.
type Unit float64

const (
	Meters     Unit = 1
	Kilometers Unit = 1000
)

const earthRadiusM = 6371000.0

// Distance returns the great-circle (haversine) distance between two points.
func Distance(lat1, lon1, lat2, lon2 float64, unit Unit) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c / float64(unit)
}

func DistanceM(lat1, lon1, lat2, lon2 float64) float64 {
	return Distance(lat1, lon1, lat2, lon2, Meters)
}

func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	return Distance(lat1, lon1, lat2, lon2, Kilometers)
}

// SpatialWeight decays linearly from 1 at the event location to 0 at the
// category radius. Events without coordinates weigh 0.
func (s *Scorer) SpatialWeight(ev model.Event, lat, lon float64) float64 {
	if ev.Lat == nil || ev.Lon == nil {
		return 0
	}
	radius := s.Radius(ev.CategoryKey())
	d := DistanceM(*ev.Lat, *ev.Lon, lat, lon)
	if d >= radius {
		return 0
	}
	return math.Max(0, 1-d/radius)
}
