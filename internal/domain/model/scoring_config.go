package model

import "time"

// Centroid policies for hotspot coordinates.
const (
	CentroidMean          = "mean"
	CentroidScoreWeighted = "score_weighted"
)

// ScoringConfig holds the category tables and aggregation parameters.
// It is loaded once at startup and treated as read-only afterwards.
type ScoringConfig struct {
	DurationHours    map[string]float64 `yaml:"duration_hours"`
	RadiusM          map[string]float64 `yaml:"radius_m"`
	Boost            map[string]float64 `yaml:"boost"`
	DefaultDurationH float64            `yaml:"default_duration_hours"`
	DefaultRadiusM   float64            `yaml:"default_radius_m"`
	DefaultBoost     float64            `yaml:"default_boost"`
	PreWindow        time.Duration      `yaml:"pre_window"`
	PostWindow       time.Duration      `yaml:"post_window"`
	CellSizeDeg      float64            `yaml:"cell_size_deg"`
	MaxPoints        int                `yaml:"max_points"`
	Centroid         string             `yaml:"centroid"`      // mean | score_weighted
	EarlyPenalty     float64            `yaml:"early_penalty"` // applied when an event is further away than its lead time
}

// DefaultScoringConfig returns the production tables.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		DurationHours: map[string]float64{
			"concert": 2.0,
			"theatre": 2.5,
			"cinema":  2.0,
			"fair":    6.0,
			"protest": 3.0,
			"sports":  3.0,
		},
		RadiusM: map[string]float64{
			"concert": 350,
			"theatre": 250,
			"cinema":  200,
			"fair":    500,
			"protest": 400,
			"sports":  450,
		},
		Boost: map[string]float64{
			"concert": 1.2,
			"theatre": 1.1,
			"cinema":  0.9,
			"fair":    1.3,
		},
		DefaultDurationH: 2.0,
		DefaultRadiusM:   300,
		DefaultBoost:     1.0,
		PreWindow:        60 * time.Minute,
		PostWindow:       60 * time.Minute,
		CellSizeDeg:      0.001,
		MaxPoints:        20,
		Centroid:         CentroidMean,
		EarlyPenalty:     0.2,
	}
}

// WeatherRules are the thresholds of the weather dampening factor.
type WeatherRules struct {
	LightRainMM     float64 `yaml:"light_rain_mm"`
	RainMM          float64 `yaml:"rain_mm"`
	HeavyRainMM     float64 `yaml:"heavy_rain_mm"`
	LightRainDrop   float64 `yaml:"light_rain_drop"`
	RainDrop        float64 `yaml:"rain_drop"`
	HeavyRainDrop   float64 `yaml:"heavy_rain_drop"`
	WindKMH         float64 `yaml:"wind_kmh"`
	StormKMH        float64 `yaml:"storm_kmh"`
	WindDrop        float64 `yaml:"wind_drop"`
	StormDrop       float64 `yaml:"storm_drop"`
	ComfortMinC     float64 `yaml:"comfort_min_c"`
	ComfortMaxC     float64 `yaml:"comfort_max_c"`
	TempStepC       float64 `yaml:"temp_step_c"`
	TempDropPerStep float64 `yaml:"temp_drop_per_step"`
	TempMaxSteps    int     `yaml:"temp_max_steps"`
	MinFactor       float64 `yaml:"min_factor"`
	MaxFactor       float64 `yaml:"max_factor"`
}

// DefaultWeatherRules: comfortable between 10 and 28 °C, -0.05 per 5 °C step
// outside that band (at most three steps).
func DefaultWeatherRules() *WeatherRules {
	return &WeatherRules{
		LightRainMM:     0.2,
		RainMM:          1.0,
		HeavyRainMM:     5.0,
		LightRainDrop:   0.10,
		RainDrop:        0.25,
		HeavyRainDrop:   0.35,
		WindKMH:         35,
		StormKMH:        50,
		WindDrop:        0.10,
		StormDrop:       0.20,
		ComfortMinC:     10,
		ComfortMaxC:     28,
		TempStepC:       5,
		TempDropPerStep: 0.05,
		TempMaxSteps:    3,
		MinFactor:       0.3,
		MaxFactor:       1.0,
	}
}
