// Package config loads service and job settings from the environment and an
// optional YAML file with scoring tables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"hotspot_service/internal/domain/model"
)

const (
	DefaultOverpassURL = "https://overpass-api.de/api/interpreter"
	DefaultHTTPAddr    = ":8080"
	DefaultModelDir    = "models"
)

type Config struct {
	DatabaseDriver  string
	DatabaseURL     string
	HTTPAddr        string
	RequestTimeout  time.Duration
	ModelDir        string
	OverpassURL     string
	OverpassTimeout time.Duration
	OpenMeteoURL    string
	LogLevel        string
	LogFormat       string

	// Set from the YAML file; defaults otherwise.
	Center  model.Point
	Scoring *model.ScoringConfig
	Weather *model.WeatherRules
}

// fileConfig is the YAML layout. Values present in the file override defaults;
// category maps are merged key by key.
type fileConfig struct {
	Center  *model.Point         `yaml:"center"`
	Scoring *model.ScoringConfig `yaml:"scoring"`
	Weather *model.WeatherRules  `yaml:"weather"`
}

// Load reads configuration from environment variables with sensible defaults.
// If HOTSPOT_CONFIG names a file, it is applied on top.
func Load() (Config, error) {
	cfg := Config{
		DatabaseDriver:  getenv("DB_DRIVER", "postgres"),
		DatabaseURL:     os.Getenv("POSTGRES_URL"),
		HTTPAddr:        getenv("HTTP_ADDR", DefaultHTTPAddr),
		RequestTimeout:  getenvDuration("HTTP_TIMEOUT", 30*time.Second),
		ModelDir:        getenv("MODEL_DIR", DefaultModelDir),
		OverpassURL:     getenv("OVERPASS_URL", DefaultOverpassURL),
		OverpassTimeout: getenvDuration("OVERPASS_TIMEOUT", 60*time.Second),
		OpenMeteoURL:    os.Getenv("OPEN_METEO_URL"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
		Center: model.Point{
			Lat: getenvFloat("CENTER_LAT", model.DefaultCenter.Lat),
			Lon: getenvFloat("CENTER_LON", model.DefaultCenter.Lon),
		},
		Scoring: model.DefaultScoringConfig(),
		Weather: model.DefaultWeatherRules(),
	}

	if path := os.Getenv("HOTSPOT_CONFIG"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyFile merges a YAML file into cfg.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	fc := fileConfig{Scoring: c.Scoring, Weather: c.Weather}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.Center != nil {
		c.Center = *fc.Center
	}
	if fc.Scoring != nil {
		c.Scoring = fc.Scoring
	}
	if fc.Weather != nil {
		c.Weather = fc.Weather
	}
	return nil
}

func (c *Config) Validate() error {
	s := c.Scoring
	if s == nil {
		return errors.New("scoring config is missing")
	}
	if s.CellSizeDeg <= 0 {
		return fmt.Errorf("cell_size_deg must be positive, got %v", s.CellSizeDeg)
	}
	if s.MaxPoints < 0 {
		return fmt.Errorf("max_points must not be negative, got %d", s.MaxPoints)
	}
	if s.PreWindow < 0 || s.PostWindow < 0 {
		return errors.New("pre_window and post_window must not be negative")
	}
	if s.EarlyPenalty < 0 || s.EarlyPenalty > 1 {
		return fmt.Errorf("early_penalty must be within [0, 1], got %v", s.EarlyPenalty)
	}
	switch s.Centroid {
	case model.CentroidMean, model.CentroidScoreWeighted:
	default:
		return fmt.Errorf("unknown centroid policy %q", s.Centroid)
	}
	if w := c.Weather; w != nil && w.MinFactor > w.MaxFactor {
		return fmt.Errorf("weather min_factor %v exceeds max_factor %v", w.MinFactor, w.MaxFactor)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
