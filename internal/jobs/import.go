package jobs

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotspot_service/internal/domain/model"
)

// DefaultAttendance is used when neither the row nor its venue gives a size.
const DefaultAttendance = 100

var requiredEventColumns = []string{"source", "external_id", "title", "category", "start_dt"}

type EventStore interface {
	UpsertEvent(ctx context.Context, ev model.Event, venueID *int64) error
}

type VenueLookup interface {
	Get(ctx context.Context, source, externalID string) (*model.Venue, error)
}

type ImportResult struct {
	Imported int
	Skipped  int
}

// EventImporter loads events from a CSV seed file.
type EventImporter struct {
	events EventStore
	venues VenueLookup
	log    zerolog.Logger
}

func NewEventImporter(events EventStore, venues VenueLookup, log zerolog.Logger) *EventImporter {
	return &EventImporter{events: events, venues: venues, log: log.With().Str("job", "import-events").Logger()}
}

// Import reads events with columns source, external_id, title, category,
// start_dt and optionally end_dt, lat, lon, venue_external_id, venue_name,
// expected_attendance. Rows with unparsable dates or coordinates are skipped.
// Without expected_attendance the venue capacity is used, then DefaultAttendance.
func (im *EventImporter) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ImportResult{}, nil
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredEventColumns {
		if _, ok := index[name]; !ok {
			return ImportResult{}, fmt.Errorf("missing column %q", name)
		}
	}
	field := func(rec []string, name string) string {
		if i, ok := index[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var res ImportResult
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}

		ev, err := parseEventRecord(func(name string) string { return field(rec, name) })
		if err != nil {
			im.log.Warn().Int("line", line).Err(err).Msg("skipping event")
			res.Skipped++
			continue
		}

		var venueID *int64
		var capacity *int
		if ext := field(rec, "venue_external_id"); ext != "" && im.venues != nil {
			v, err := im.venues.Get(ctx, *ev.Source, ext)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return res, err
			default:
				venueID = &v.ID
				capacity = v.MaxCapacity
				if ev.VenueName == nil {
					ev.VenueName = &v.Name
				}
			}
		}
		if ev.ExpectedAttendance == nil {
			n := DefaultAttendance
			if capacity != nil && *capacity != 0 {
				n = max(*capacity, 1)
			}
			ev.ExpectedAttendance = &n
		}

		if err := im.events.UpsertEvent(ctx, ev, venueID); err != nil {
			return res, err
		}
		res.Imported++
	}

	im.log.Info().Int("imported", res.Imported).Int("skipped", res.Skipped).Msg("events imported")
	return res, nil
}

func parseEventRecord(get func(string) string) (model.Event, error) {
	source := get("source")
	id := get("external_id")
	if id == "" {
		return model.Event{}, errors.New("empty external_id")
	}
	ev := model.Event{
		ID:       id,
		Title:    get("title"),
		Category: strings.ToLower(get("category")),
		Source:   &source,
	}

	start, err := parseTimestamp(get("start_dt"))
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s start_dt: %w", id, err)
	}
	ev.Start = start
	if s := get("end_dt"); s != "" {
		end, err := parseTimestamp(s)
		if err != nil {
			return model.Event{}, fmt.Errorf("event %s end_dt: %w", id, err)
		}
		ev.End = &end
	}

	if ev.Lat, err = parseOptional(get("lat")); err != nil {
		return model.Event{}, fmt.Errorf("event %s lat: %w", id, err)
	}
	if ev.Lon, err = parseOptional(get("lon")); err != nil {
		return model.Event{}, fmt.Errorf("event %s lon: %w", id, err)
	}
	if name := get("venue_name"); name != "" {
		ev.VenueName = &name
	}
	if s := get("expected_attendance"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return model.Event{}, fmt.Errorf("event %s expected_attendance: %w", id, err)
		}
		ev.ExpectedAttendance = &n
	}
	return ev, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseTimestamp accepts ISO timestamps; values without an offset are UTC.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
