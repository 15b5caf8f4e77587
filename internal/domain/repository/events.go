package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"hotspot_service/internal/domain/model"
)

// dayLookback pulls in events that started the previous evening and may
// still be running (or in their post-window) early in the day.
const dayLookback = 12 * time.Hour

// openEndedSpan is how long an event without an end time is assumed to
// keep running when matching it against an hour.
const openEndedSpan = 3 * time.Hour

const eventColumns = `
	e.id,
	e.title,
	e.category,
	e.start_dt,
	e.end_dt,
	COALESCE(e.lat, v.lat) AS lat,
	COALESCE(e.lon, v.lon) AS lon,
	e.source,
	e.expected_attendance,
	COALESCE(e.venue_name, v.name) AS venue_name`

type EventsRepository struct {
	db *sqlx.DB
}

func NewEventsRepository(db *sqlx.DB) *EventsRepository {
	return &EventsRepository{db: db}
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// ListEventsForDay returns events starting on the day, plus those started
// within the lookback before midnight.
func (r *EventsRepository) ListEventsForDay(ctx context.Context, day time.Time) ([]model.Event, error) {
	start, end := dayBounds(day)
	return r.listBetween(ctx, start.Add(-dayLookback), end)
}

// ListEventsFromHour returns the events overlapping the hour [fromHour,
// fromHour+1h) of the day. Events without an end time count as running for
// openEndedSpan after their start.
func (r *EventsRepository) ListEventsFromHour(ctx context.Context, day time.Time, fromHour int) ([]model.Event, error) {
	start, _ := dayBounds(day)
	hourStart := start.Add(time.Duration(fromHour) * time.Hour)
	hourEnd := hourStart.Add(time.Hour)

	query := r.db.Rebind(`
		SELECT` + eventColumns + `
		FROM events e
		LEFT JOIN venues v ON v.id = e.venue_id
		WHERE e.start_dt < ?
		  AND (
			(e.end_dt IS NOT NULL AND e.end_dt > ?)
			OR (e.end_dt IS NULL AND e.start_dt > ?)
		  )
		ORDER BY e.start_dt, e.id`)

	return r.selectEvents(ctx, query, hourEnd, hourStart, hourStart.Add(-openEndedSpan))
}

// ListEventsBetween returns events whose start falls in [from, to).
func (r *EventsRepository) ListEventsBetween(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	return r.listBetween(ctx, from.UTC(), to.UTC())
}

func (r *EventsRepository) listBetween(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	query := r.db.Rebind(`
		SELECT` + eventColumns + `
		FROM events e
		LEFT JOIN venues v ON v.id = e.venue_id
		WHERE e.start_dt >= ? AND e.start_dt < ?
		ORDER BY e.start_dt, e.id`)

	return r.selectEvents(ctx, query, from, to)
}

func (r *EventsRepository) selectEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	var events []model.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	for i := range events {
		events[i].Start = events[i].Start.UTC()
		if events[i].End != nil {
			t := events[i].End.UTC()
			events[i].End = &t
		}
	}
	return events, nil
}

// UpsertEvent inserts or replaces an event by id. Times are stored in UTC.
func (r *EventsRepository) UpsertEvent(ctx context.Context, ev model.Event, venueID *int64) error {
	var end *time.Time
	if ev.End != nil {
		t := ev.End.UTC()
		end = &t
	}
	query := r.db.Rebind(`
		INSERT INTO events (
			id, title, category, start_dt, end_dt, lat, lon,
			source, venue_id, venue_name, expected_attendance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			start_dt = excluded.start_dt,
			end_dt = excluded.end_dt,
			lat = excluded.lat,
			lon = excluded.lon,
			source = excluded.source,
			venue_id = excluded.venue_id,
			venue_name = excluded.venue_name,
			expected_attendance = excluded.expected_attendance`)

	_, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.Title, ev.CategoryKey(), ev.Start.UTC(), end, ev.Lat, ev.Lon,
		ev.Source, venueID, ev.VenueName, ev.ExpectedAttendance,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", ev.ID, err)
	}
	return nil
}
