package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"hotspot_service/internal/domain/model"
)

// Nearest-observation search window around the requested moment and point.
const (
	weatherWindow  = 3 * time.Hour
	weatherBoxDeg  = 0.5
	weatherColumns = `
		source, lat, lon, observed_at,
		temperature_c, precipitation_mm, rain_mm, snowfall_mm,
		wind_speed_kmh, wind_gust_kmh, cloud_cover_pct, humidity_pct,
		pressure_hpa, visibility_m, weather_code`
)

type WeatherRepository struct {
	db *sqlx.DB
}

func NewWeatherRepository(db *sqlx.DB) *WeatherRepository {
	return &WeatherRepository{db: db}
}

// GetObservationAt returns the observation closest in time to at (then closest
// in space) near the point, or nil when none is within the search window.
func (r *WeatherRepository) GetObservationAt(ctx context.Context, lat, lon float64, at time.Time) (*model.WeatherObservation, error) {
	at = at.UTC()
	query := r.db.Rebind(`
		SELECT` + weatherColumns + `
		FROM weather_observations
		WHERE observed_at >= ? AND observed_at <= ?
		AND lat BETWEEN ? AND ?
		AND lon BETWEEN ? AND ?`)

	var rows []model.WeatherObservation
	err := r.db.SelectContext(ctx, &rows, query,
		at.Add(-weatherWindow), at.Add(weatherWindow),
		lat-weatherBoxDeg, lat+weatherBoxDeg,
		lon-weatherBoxDeg, lon+weatherBoxDeg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query weather: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	best := -1
	var bestDT, bestDD float64
	for i := range rows {
		rows[i].ObservedAt = rows[i].ObservedAt.UTC()
		dt := math.Abs(rows[i].ObservedAt.Sub(at).Seconds())
		dd := math.Hypot(rows[i].Lat-lat, rows[i].Lon-lon)
		if best < 0 || dt < bestDT || (dt == bestDT && dd < bestDD) {
			best, bestDT, bestDD = i, dt, dd
		}
	}
	obs := rows[best]
	return &obs, nil
}

// UpsertMany stores observations keyed by (source, lat, lon, observed_at).
func (r *WeatherRepository) UpsertMany(ctx context.Context, obs []model.WeatherObservation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO weather_observations (` + weatherColumns + `
		) VALUES (
			:source, :lat, :lon, :observed_at,
			:temperature_c, :precipitation_mm, :rain_mm, :snowfall_mm,
			:wind_speed_kmh, :wind_gust_kmh, :cloud_cover_pct, :humidity_pct,
			:pressure_hpa, :visibility_m, :weather_code
		)
		ON CONFLICT (source, lat, lon, observed_at) DO UPDATE SET
			temperature_c = excluded.temperature_c,
			precipitation_mm = excluded.precipitation_mm,
			rain_mm = excluded.rain_mm,
			snowfall_mm = excluded.snowfall_mm,
			wind_speed_kmh = excluded.wind_speed_kmh,
			wind_gust_kmh = excluded.wind_gust_kmh,
			cloud_cover_pct = excluded.cloud_cover_pct,
			humidity_pct = excluded.humidity_pct,
			pressure_hpa = excluded.pressure_hpa,
			visibility_m = excluded.visibility_m,
			weather_code = excluded.weather_code`

	for _, o := range obs {
		o.ObservedAt = o.ObservedAt.UTC()
		if _, err := tx.NamedExecContext(ctx, query, o); err != nil {
			return 0, fmt.Errorf("failed to upsert observation %s: %w", o.ObservedAt.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit weather: %w", err)
	}
	return len(obs), nil
}
