package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// UnknownCategory is used for events that arrive without a category.
const UnknownCategory = "unknown"

// Mode selects how hotspots are scored.
type Mode string

const (
	ModeHeuristic Mode = "heuristic"
	ModeML        Mode = "ml"
)

var ErrInvalidMode = errors.New("invalid mode")

// ParseMode converts a request value into a Mode. Empty means heuristic.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeHeuristic):
		return ModeHeuristic, nil
	case string(ModeML):
		return ModeML, nil
	default:
		return "", fmt.Errorf("%w: %q (expected heuristic or ml)", ErrInvalidMode, s)
	}
}

// Point is a reference location in degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// DefaultCenter is the city centre used when a request gives no reference point.
var DefaultCenter = Point{Lat: 40.4168, Lon: -3.7038}

type Event struct {
	ID                 string     `json:"id" db:"id"`
	Title              string     `json:"title" db:"title"`
	Category           string     `json:"category" db:"category"`
	Start              time.Time  `json:"start_dt" db:"start_dt"`
	End                *time.Time `json:"end_dt,omitempty" db:"end_dt"`
	Lat                *float64   `json:"lat,omitempty" db:"lat"`
	Lon                *float64   `json:"lon,omitempty" db:"lon"`
	Source             *string    `json:"source,omitempty" db:"source"`
	ExpectedAttendance *int       `json:"expected_attendance,omitempty" db:"expected_attendance"`
	VenueName          *string    `json:"venue_name,omitempty" db:"venue_name"`
}

// CategoryKey returns the lowercase category, or UnknownCategory when absent.
func (e Event) CategoryKey() string {
	c := strings.ToLower(strings.TrimSpace(e.Category))
	if c == "" {
		return UnknownCategory
	}
	return c
}

// Located reports whether the event has coordinates and a start time.
func (e Event) Located() bool {
	return e.Lat != nil && e.Lon != nil && !e.Start.IsZero()
}

type Venue struct {
	ID          int64   `db:"id"`
	Source      string  `db:"source"`
	ExternalID  string  `db:"external_id"`
	Name        string  `db:"name"`
	Lat         float64 `db:"lat"`
	Lon         float64 `db:"lon"`
	City        string  `db:"city"`
	Country     string  `db:"country"`
	Kind        string  `db:"kind"`
	MaxCapacity *int    `db:"max_capacity"`
}

// WeatherObservation is the reading nearest to a target moment at a reference point.
type WeatherObservation struct {
	Source          string    `json:"source" db:"source"`
	Lat             float64   `json:"lat" db:"lat"`
	Lon             float64   `json:"lon" db:"lon"`
	ObservedAt      time.Time `json:"observed_at" db:"observed_at"`
	TemperatureC    *float64  `json:"temperature_c" db:"temperature_c"`
	PrecipitationMM *float64  `json:"precipitation_mm" db:"precipitation_mm"`
	RainMM          *float64  `json:"rain_mm" db:"rain_mm"`
	SnowfallMM      *float64  `json:"snowfall_mm" db:"snowfall_mm"`
	WindSpeedKMH    *float64  `json:"wind_speed_kmh" db:"wind_speed_kmh"`
	WindGustKMH     *float64  `json:"wind_gust_kmh" db:"wind_gust_kmh"`
	CloudCoverPct   *float64  `json:"cloud_cover_pct" db:"cloud_cover_pct"`
	HumidityPct     *float64  `json:"humidity_pct" db:"humidity_pct"`
	PressureHPA     *float64  `json:"pressure_hpa" db:"pressure_hpa"`
	VisibilityM     *float64  `json:"visibility_m" db:"visibility_m"`
	WeatherCode     *int      `json:"weather_code" db:"weather_code"`
}

// HotspotPoint is one aggregated grid cell.
type HotspotPoint struct {
	Lat                  float64  `json:"lat"`
	Lon                  float64  `json:"lon"`
	Score                float64  `json:"score"`
	RadiusM              float64  `json:"radius_m"`
	LeadTimeMinPred      *float64 `json:"lead_time_min_pred"`
	AttendanceFactorPred *float64 `json:"attendance_factor_pred"`
}

// HotspotEvent is an event inside a hotspot, as returned by the drill-down endpoint.
type HotspotEvent struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Category           string    `json:"category"`
	Start              time.Time `json:"start_dt"`
	VenueName          *string   `json:"venue_name"`
	ExpectedAttendance *int      `json:"expected_attendance"`
	DistanceM          float64   `json:"distance_m"`
	Score              float64   `json:"score"`
}

type HeatmapRequest struct {
	Date       time.Time
	Hour       int
	Lat        *float64
	Lon        *float64
	Mode       Mode
	Categories []string
	MaxPoints  *int
}

type HeatmapResult struct {
	Mode     Mode                `json:"mode"`
	Weather  *WeatherObservation `json:"weather"`
	Hotspots []HotspotPoint      `json:"hotspots"`
}

type HotspotEventsRequest struct {
	Date    time.Time
	Hour    int
	Lat     float64
	Lon     float64
	RadiusM float64
}

// FeatureSnapshot is an event scored at a target moment, materialized for training.
type FeatureSnapshot struct {
	ID                 int64      `db:"id"`
	TargetAt           time.Time  `db:"target_at"`
	EventID            string     `db:"event_id"`
	EventStart         time.Time  `db:"event_start_dt"`
	EventEnd           *time.Time `db:"event_end_dt"`
	Lat                float64    `db:"lat"`
	Lon                float64    `db:"lon"`
	Category           string     `db:"category"`
	ExpectedAttendance *int       `db:"expected_attendance"`
	HoursToStart       float64    `db:"hours_to_start"`
	Weekday            int        `db:"weekday"`
	Month              int        `db:"month"`
	TemperatureC       *float64   `db:"temperature_c"`
	PrecipitationMM    *float64   `db:"precipitation_mm"`
	RainMM             *float64   `db:"rain_mm"`
	SnowfallMM         *float64   `db:"snowfall_mm"`
	WindSpeedKMH       *float64   `db:"wind_speed_kmh"`
	WindGustKMH        *float64   `db:"wind_gust_kmh"`
	CloudCoverPct      *float64   `db:"cloud_cover_pct"`
	HumidityPct        *float64   `db:"humidity_pct"`
	PressureHPA        *float64   `db:"pressure_hpa"`
	VisibilityM        *float64   `db:"visibility_m"`
	WeatherCode        *int       `db:"weather_code"`
	ScoreBase          float64    `db:"score_base"`
	ScoreWeatherFactor float64    `db:"score_weather_factor"`
	ScoreFinal         float64    `db:"score_final"`
}
