package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"

	"hotspot_service/internal/domain/model"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int { return &v }

type RepositorySuite struct {
	suite.Suite
	ctx context.Context
	db  *sqlx.DB
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	dsn := filepath.Join(s.T().TempDir(), "test.db")
	db, err := Connect(s.ctx, "sqlite", dsn)
	s.Require().NoError(err)
	s.db = db
	s.Require().NoError(EnsureSchema(s.ctx, s.db))
}

func (s *RepositorySuite) TearDownTest() {
	s.db.Close()
}

func (s *RepositorySuite) TestEnsureSchemaIsIdempotent() {
	s.NoError(EnsureSchema(s.ctx, s.db))
}

func (s *RepositorySuite) TestEventsForDayAndFromHour() {
	repo := NewEventsRepository(s.db)
	venues := NewVenuesRepository(s.db)

	venueID, err := venues.Upsert(s.ctx, model.Venue{
		Source: "osm", ExternalID: "node/1", Name: "Teatro Real",
		Lat: 40.4183, Lon: -3.7101, City: "Madrid", Country: "ES", Kind: "theatre",
	})
	s.Require().NoError(err)

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	events := []struct {
		ev    model.Event
		venue *int64
	}{
		{model.Event{ID: "a", Title: "Late show", Category: "concert", Start: day.Add(-2 * time.Hour), Lat: f64(40.41), Lon: f64(-3.70)}, nil},
		{model.Event{ID: "b", Title: "Matinee", Category: "theatre", Start: day.Add(12 * time.Hour)}, &venueID},
		{model.Event{ID: "c", Title: "Evening", Category: "Cinema", Start: day.Add(20 * time.Hour), Lat: f64(40.42), Lon: f64(-3.69), ExpectedAttendance: intp(300)}, nil},
		{model.Event{ID: "d", Title: "Tomorrow", Category: "fair", Start: day.Add(26 * time.Hour), Lat: f64(40.42), Lon: f64(-3.69)}, nil},
		{model.Event{ID: "e", Title: "Two days ago", Category: "fair", Start: day.Add(-30 * time.Hour), Lat: f64(40.42), Lon: f64(-3.69)}, nil},
	}
	for _, e := range events {
		s.Require().NoError(repo.UpsertEvent(s.ctx, e.ev, e.venue))
	}

	got, err := repo.ListEventsForDay(s.ctx, day)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.Equal([]string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})

	// venue coordinates and name fill in for the event
	s.Require().NotNil(got[1].Lat)
	s.InDelta(40.4183, *got[1].Lat, 1e-9)
	s.Require().NotNil(got[1].VenueName)
	s.Equal("Teatro Real", *got[1].VenueName)
	s.Equal(day.Add(12*time.Hour), got[1].Start)

	s.Equal("cinema", got[2].Category)
	s.Require().NotNil(got[2].ExpectedAttendance)
	s.Equal(300, *got[2].ExpectedAttendance)

	// the open-ended matinee is still counted as running at 13:00
	fromHour, err := repo.ListEventsFromHour(s.ctx, day, 13)
	s.Require().NoError(err)
	s.Require().Len(fromHour, 1)
	s.Equal("b", fromHour[0].ID)

	// so is last night's late show right after midnight
	fromHour, err = repo.ListEventsFromHour(s.ctx, day, 0)
	s.Require().NoError(err)
	s.Require().Len(fromHour, 1)
	s.Equal("a", fromHour[0].ID)
}

func (s *RepositorySuite) TestEventsFromHourOverlap() {
	repo := NewEventsRepository(s.db)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fairEnd := day.Add(21 * time.Hour)
	shortEnd := day.Add(18 * time.Hour)

	for _, ev := range []model.Event{
		{ID: "fair", Title: "Street fair", Category: "fair", Start: day.Add(17 * time.Hour), End: &fairEnd, Lat: f64(40.42), Lon: f64(-3.69)},
		{ID: "short", Title: "Talk", Category: "conference", Start: day.Add(17 * time.Hour), End: &shortEnd, Lat: f64(40.42), Lon: f64(-3.69)},
		{ID: "open", Title: "Jam", Category: "concert", Start: day.Add(16 * time.Hour), Lat: f64(40.42), Lon: f64(-3.69)},
		{ID: "stale", Title: "Brunch", Category: "festival", Start: day.Add(14 * time.Hour), Lat: f64(40.42), Lon: f64(-3.69)},
		{ID: "half", Title: "Quiz", Category: "other", Start: day.Add(18*time.Hour + 30*time.Minute), Lat: f64(40.42), Lon: f64(-3.69)},
		{ID: "later", Title: "Concert", Category: "concert", Start: day.Add(22 * time.Hour), Lat: f64(40.42), Lon: f64(-3.69)},
	} {
		s.Require().NoError(repo.UpsertEvent(s.ctx, ev, nil))
	}

	got, err := repo.ListEventsFromHour(s.ctx, day, 18)
	s.Require().NoError(err)
	ids := make([]string, 0, len(got))
	for _, ev := range got {
		ids = append(ids, ev.ID)
	}
	s.Equal([]string{"open", "fair", "half"}, ids)

	got, err = repo.ListEventsFromHour(s.ctx, day, 23)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("later", got[0].ID)
	s.Equal(time.UTC, got[0].Start.Location())
}

func (s *RepositorySuite) TestUpsertEventReplaces() {
	repo := NewEventsRepository(s.db)
	start := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	ev := model.Event{ID: "x", Title: "Old", Category: "concert", Start: start, Lat: f64(1), Lon: f64(2)}
	s.Require().NoError(repo.UpsertEvent(s.ctx, ev, nil))
	ev.Title = "New"
	end := start.Add(3 * time.Hour)
	ev.End = &end
	s.Require().NoError(repo.UpsertEvent(s.ctx, ev, nil))

	got, err := repo.ListEventsBetween(s.ctx, start, start.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("New", got[0].Title)
	s.Require().NotNil(got[0].End)
	s.Equal(end, *got[0].End)
}

func (s *RepositorySuite) TestWeatherNearestObservation() {
	repo := NewWeatherRepository(s.db)
	base := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	obs := []model.WeatherObservation{
		{Source: "open_meteo", Lat: 40.4168, Lon: -3.7038, ObservedAt: base.Add(-time.Hour), TemperatureC: f64(20)},
		{Source: "open_meteo", Lat: 40.4168, Lon: -3.7038, ObservedAt: base, TemperatureC: f64(21), PrecipitationMM: f64(0.5), WeatherCode: intp(61)},
		{Source: "open_meteo", Lat: 40.4168, Lon: -3.7038, ObservedAt: base.Add(time.Hour), TemperatureC: f64(22)},
	}
	n, err := repo.UpsertMany(s.ctx, obs)
	s.Require().NoError(err)
	s.Equal(3, n)

	// re-import refreshes in place
	obs[1].TemperatureC = f64(19)
	_, err = repo.UpsertMany(s.ctx, obs)
	s.Require().NoError(err)

	got, err := repo.GetObservationAt(s.ctx, 40.42, -3.70, base.Add(10*time.Minute))
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(base, got.ObservedAt)
	s.InDelta(19.0, *got.TemperatureC, 1e-9)
	s.Require().NotNil(got.WeatherCode)
	s.Equal(61, *got.WeatherCode)

	var count int
	s.Require().NoError(s.db.Get(&count, "SELECT COUNT(*) FROM weather_observations"))
	s.Equal(3, count)
}

func (s *RepositorySuite) TestWeatherMissing() {
	repo := NewWeatherRepository(s.db)
	got, err := repo.GetObservationAt(s.ctx, 40.42, -3.70, time.Now())
	s.NoError(err)
	s.Nil(got)
}

func (s *RepositorySuite) TestSnapshotsUpsertAndRange() {
	repo := NewSnapshotsRepository(s.db)
	target := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	snaps := []model.FeatureSnapshot{
		{TargetAt: target, EventID: "a", EventStart: target, Lat: 1, Lon: 2, Category: "concert",
			HoursToStart: 0, Weekday: 2, Month: 5, ScoreBase: 1.2, ScoreWeatherFactor: 1, ScoreFinal: 1.2},
		{TargetAt: target, EventID: "b", EventStart: target.Add(time.Hour), Lat: 1, Lon: 2, Category: "fair",
			HoursToStart: 1, Weekday: 2, Month: 5, ScoreBase: 0.6, ScoreWeatherFactor: 0.9, ScoreFinal: 0.54,
			TemperatureC: f64(21), ExpectedAttendance: intp(1000)},
	}
	ins, upd, err := repo.UpsertMany(s.ctx, snaps)
	s.Require().NoError(err)
	s.Equal(2, ins)
	s.Equal(0, upd)

	snaps[0].ScoreFinal = 0.9
	ins, upd, err = repo.UpsertMany(s.ctx, snaps)
	s.Require().NoError(err)
	s.Equal(0, ins)
	s.Equal(2, upd)

	got, err := repo.ListByRange(s.ctx, target, target.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("a", got[0].EventID)
	s.InDelta(0.9, got[0].ScoreFinal, 1e-9)
	s.Equal(target, got[0].TargetAt)
	s.Require().NotNil(got[1].ExpectedAttendance)
	s.Equal(1000, *got[1].ExpectedAttendance)

	none, err := repo.ListByRange(s.ctx, target.Add(time.Hour), target.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *RepositorySuite) TestVenueUpsertKeepsID() {
	repo := NewVenuesRepository(s.db)
	v := model.Venue{Source: "osm", ExternalID: "way/7", Name: "Estadio", Lat: 40.45, Lon: -3.69, Kind: "stadium", MaxCapacity: intp(80000)}
	id1, err := repo.Upsert(s.ctx, v)
	s.Require().NoError(err)

	v.Name = "Estadio Nuevo"
	v.MaxCapacity = nil
	id2, err := repo.Upsert(s.ctx, v)
	s.Require().NoError(err)
	s.Equal(id1, id2)

	got, err := repo.Get(s.ctx, "osm", "way/7")
	s.Require().NoError(err)
	s.Equal("Estadio Nuevo", got.Name)
	s.Require().NotNil(got.MaxCapacity)
	s.Equal(80000, *got.MaxCapacity)
}

func TestVenueFromTags(t *testing.T) {
	suite.Run(t, new(venueTagsSuite))
}

type venueTagsSuite struct{ suite.Suite }

func (s *venueTagsSuite) TestKinds() {
	s.Equal("theatre", venueKind(map[string]string{"amenity": "theatre"}))
	s.Equal("stadium", venueKind(map[string]string{"leisure": "stadium"}))
	s.Equal("", venueKind(map[string]string{"amenity": "bench"}))
}

func (s *venueTagsSuite) TestUnnamedDropped() {
	_, ok := venueFromTags("node/1", 1, 2, map[string]string{"amenity": "cinema"})
	s.False(ok)
}

func (s *venueTagsSuite) TestCapacityParsed() {
	v, ok := venueFromTags("node/2", 40.1, -3.2, map[string]string{
		"amenity": "concert_hall", "name": " Auditorio ", "capacity": "2300", "addr:city": "Madrid",
	})
	s.Require().True(ok)
	s.Equal("Auditorio", v.Name)
	s.Equal(OverpassSource, v.Source)
	s.Equal("Madrid", v.City)
	s.Require().NotNil(v.MaxCapacity)
	s.Equal(2300, *v.MaxCapacity)
}

func (s *venueTagsSuite) TestBBoxAround() {
	b := BBoxAround(40.4168, -3.7038, 5)
	s.InDelta(40.4168, (b.MinLat+b.MaxLat)/2, 1e-9)
	s.Greater(b.MaxLon-b.MinLon, b.MaxLat-b.MinLat)
	s.Contains(b.String(), "40.")
}
