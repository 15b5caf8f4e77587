package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"hotspot_service/internal/domain/model"
)

// SnapshotRecorder stores scored events used to build training datasets.
type SnapshotRecorder interface {
	UpsertMany(ctx context.Context, snapshots []model.FeatureSnapshot) (inserted, updated int, err error)
	ListByRange(ctx context.Context, from, to time.Time) ([]model.FeatureSnapshot, error)
}

const snapshotColumns = `
	target_at, event_id, event_start_dt, event_end_dt, lat, lon, category,
	expected_attendance, hours_to_start, weekday, month,
	temperature_c, precipitation_mm, rain_mm, snowfall_mm,
	wind_speed_kmh, wind_gust_kmh, cloud_cover_pct, humidity_pct,
	pressure_hpa, visibility_m, weather_code,
	score_base, score_weather_factor, score_final`

type SnapshotsRepository struct {
	db *sqlx.DB
}

func NewSnapshotsRepository(db *sqlx.DB) *SnapshotsRepository {
	return &SnapshotsRepository{db: db}
}

// UpsertMany writes snapshots keyed by (event_id, target_at) in one transaction
// and reports how many rows were new and how many were refreshed.
func (r *SnapshotsRepository) UpsertMany(ctx context.Context, snapshots []model.FeatureSnapshot) (int, int, error) {
	if len(snapshots) == 0 {
		return 0, 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lookup := tx.Rebind(`SELECT id FROM event_feature_snapshots WHERE event_id = ? AND target_at = ?`)
	insert := `INSERT INTO event_feature_snapshots (` + snapshotColumns + `
		) VALUES (
			:target_at, :event_id, :event_start_dt, :event_end_dt, :lat, :lon, :category,
			:expected_attendance, :hours_to_start, :weekday, :month,
			:temperature_c, :precipitation_mm, :rain_mm, :snowfall_mm,
			:wind_speed_kmh, :wind_gust_kmh, :cloud_cover_pct, :humidity_pct,
			:pressure_hpa, :visibility_m, :weather_code,
			:score_base, :score_weather_factor, :score_final
		)`
	update := `UPDATE event_feature_snapshots SET
			event_start_dt = :event_start_dt,
			event_end_dt = :event_end_dt,
			lat = :lat,
			lon = :lon,
			category = :category,
			expected_attendance = :expected_attendance,
			hours_to_start = :hours_to_start,
			weekday = :weekday,
			month = :month,
			temperature_c = :temperature_c,
			precipitation_mm = :precipitation_mm,
			rain_mm = :rain_mm,
			snowfall_mm = :snowfall_mm,
			wind_speed_kmh = :wind_speed_kmh,
			wind_gust_kmh = :wind_gust_kmh,
			cloud_cover_pct = :cloud_cover_pct,
			humidity_pct = :humidity_pct,
			pressure_hpa = :pressure_hpa,
			visibility_m = :visibility_m,
			weather_code = :weather_code,
			score_base = :score_base,
			score_weather_factor = :score_weather_factor,
			score_final = :score_final
		WHERE id = :id`

	var inserted, updated int
	for _, s := range snapshots {
		s.TargetAt = s.TargetAt.UTC()
		s.EventStart = s.EventStart.UTC()
		if s.EventEnd != nil {
			t := s.EventEnd.UTC()
			s.EventEnd = &t
		}

		var id int64
		err := tx.GetContext(ctx, &id, lookup, s.EventID, s.TargetAt)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.NamedExecContext(ctx, insert, s); err != nil {
				return 0, 0, fmt.Errorf("failed to insert snapshot %s: %w", s.EventID, err)
			}
			inserted++
		case err != nil:
			return 0, 0, fmt.Errorf("failed to look up snapshot %s: %w", s.EventID, err)
		default:
			s.ID = id
			if _, err := tx.NamedExecContext(ctx, update, s); err != nil {
				return 0, 0, fmt.Errorf("failed to update snapshot %s: %w", s.EventID, err)
			}
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return inserted, updated, nil
}

// ListByRange returns snapshots with target_at in [from, to), oldest first.
func (r *SnapshotsRepository) ListByRange(ctx context.Context, from, to time.Time) ([]model.FeatureSnapshot, error) {
	query := r.db.Rebind(`
		SELECT id,` + snapshotColumns + `
		FROM event_feature_snapshots
		WHERE target_at >= ? AND target_at < ?
		ORDER BY target_at, event_id`)

	var out []model.FeatureSnapshot
	if err := r.db.SelectContext(ctx, &out, query, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	for i := range out {
		out[i].TargetAt = out[i].TargetAt.UTC()
		out[i].EventStart = out[i].EventStart.UTC()
	}
	return out, nil
}
