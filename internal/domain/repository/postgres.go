package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const DriverPostgres = "postgres"

// Connect opens and pings a database. driver is "postgres" in production;
// tests use "sqlite".
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if driver == "" {
		driver = DriverPostgres
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == DriverPostgres {
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	return db, nil
}

func isPostgres(db *sqlx.DB) bool {
	return db.DriverName() == DriverPostgres
}

var tables = []struct {
	name    string
	columns string
}{
	{"venues", `
		id %[1]s,
		source TEXT NOT NULL,
		external_id TEXT NOT NULL,
		name TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT '',
		max_capacity INTEGER,
		UNIQUE (source, external_id)`},
	{"events", `
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		start_dt %[2]s NOT NULL,
		end_dt %[2]s,
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION,
		source TEXT,
		venue_id BIGINT REFERENCES venues(id),
		venue_name TEXT,
		expected_attendance INTEGER`},
	{"weather_observations", `
		id %[1]s,
		source TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		observed_at %[2]s NOT NULL,
		temperature_c DOUBLE PRECISION,
		precipitation_mm DOUBLE PRECISION,
		rain_mm DOUBLE PRECISION,
		snowfall_mm DOUBLE PRECISION,
		wind_speed_kmh DOUBLE PRECISION,
		wind_gust_kmh DOUBLE PRECISION,
		cloud_cover_pct DOUBLE PRECISION,
		humidity_pct DOUBLE PRECISION,
		pressure_hpa DOUBLE PRECISION,
		visibility_m DOUBLE PRECISION,
		weather_code INTEGER,
		UNIQUE (source, lat, lon, observed_at)`},
	{"event_feature_snapshots", `
		id %[1]s,
		target_at %[2]s NOT NULL,
		event_id TEXT NOT NULL,
		event_start_dt %[2]s NOT NULL,
		event_end_dt %[2]s,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		category TEXT NOT NULL,
		expected_attendance INTEGER,
		hours_to_start DOUBLE PRECISION NOT NULL,
		weekday INTEGER NOT NULL,
		month INTEGER NOT NULL,
		temperature_c DOUBLE PRECISION,
		precipitation_mm DOUBLE PRECISION,
		rain_mm DOUBLE PRECISION,
		snowfall_mm DOUBLE PRECISION,
		wind_speed_kmh DOUBLE PRECISION,
		wind_gust_kmh DOUBLE PRECISION,
		cloud_cover_pct DOUBLE PRECISION,
		humidity_pct DOUBLE PRECISION,
		pressure_hpa DOUBLE PRECISION,
		visibility_m DOUBLE PRECISION,
		weather_code INTEGER,
		score_base DOUBLE PRECISION NOT NULL,
		score_weather_factor DOUBLE PRECISION NOT NULL,
		score_final DOUBLE PRECISION NOT NULL,
		UNIQUE (event_id, target_at)`},
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_events_start_dt ON events (start_dt)`,
	`CREATE INDEX IF NOT EXISTS idx_weather_observed_at ON weather_observations (observed_at)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_target_at ON event_feature_snapshots (target_at)`,
}

// EnsureSchema creates missing tables and indexes. It is idempotent.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	idCol, tsCol := "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	if isPostgres(db) {
		idCol, tsCol = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}
	for _, t := range tables {
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n)", t.name, fmt.Sprintf(t.columns, idCol, tsCol))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
