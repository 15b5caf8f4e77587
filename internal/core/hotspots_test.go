package core

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotspot_service/internal/domain/model"
)

func spreadConcerts(n int) []model.Event {
	events := make([]model.Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, concertAt(40.0+float64(i)*0.01, -3.0, evening))
	}
	return events
}

func TestComputeHotspotsCap(t *testing.T) {
	s := NewScorer(nil)
	events := spreadConcerts(30)

	assert.Len(t, s.ComputeHotspots(events, evening, nil, 20), 20)
	assert.Len(t, s.ComputeHotspots(events, evening, nil, 5), 5)

	none := s.ComputeHotspots(events, evening, nil, 0)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestComputeHotspotsAdditiveWithinCell(t *testing.T) {
	s := NewScorer(nil)
	events := []model.Event{
		concertAt(40.41651, -3.70351, evening),
		concertAt(40.41659, -3.70359, evening),
	}
	hs := s.ComputeHotspots(events, evening, nil, 20)
	require.Len(t, hs, 1)
	assert.InDelta(t, 2.4, hs[0].Score, 1e-9)
	assert.Equal(t, 350.0, hs[0].RadiusM)
	assert.InDelta(t, 40.41655, hs[0].Lat, 1e-9)
	assert.InDelta(t, -3.70355, hs[0].Lon, 1e-9)
}

func TestComputeHotspotsRadiusIsCellMax(t *testing.T) {
	s := NewScorer(nil)
	fair := concertAt(40.41651, -3.70351, evening)
	fair.Category = "fair"
	cinema := concertAt(40.41652, -3.70352, evening)
	cinema.Category = "cinema"

	hs := s.ComputeHotspots([]model.Event{fair, cinema}, evening, nil, 20)
	require.Len(t, hs, 1)
	assert.Equal(t, 500.0, hs[0].RadiusM)
}

func TestComputeHotspotsSortedAndRounded(t *testing.T) {
	s := NewScorer(nil)
	early := concertAt(40.1, -3.0, evening.Add(20*time.Minute))
	hs := s.ComputeHotspots([]model.Event{early, concertAt(40.2, -3.0, evening)}, evening, nil, 20)
	require.Len(t, hs, 2)
	assert.InDelta(t, 1.2, hs[0].Score, 1e-9)
	// two thirds of the pre-window elapsed, times the concert boost
	assert.Equal(t, 0.8, hs[1].Score)
}

func TestComputeHotspotsTieBreakIsDeterministic(t *testing.T) {
	s := NewScorer(nil)
	events := spreadConcerts(10)
	want := s.ComputeHotspots(events, evening, nil, 20)
	require.Len(t, want, 10)
	for i := 1; i < len(want); i++ {
		assert.Less(t, want[i-1].Lat, want[i].Lat, "equal scores ordered south to north")
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		shuffled := append([]model.Event(nil), events...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, s.ComputeHotspots(shuffled, evening, nil, 20))
	}
}

func TestComputeHotspotsFilters(t *testing.T) {
	s := NewScorer(nil)
	theatre := concertAt(40.3, -3.0, evening)
	theatre.Category = "theatre"
	unlocated := model.Event{Category: "concert", Start: evening}
	inactive := concertAt(40.5, -3.0, evening.Add(5*time.Hour))

	events := []model.Event{concertAt(40.1, -3.0, evening), theatre, unlocated, inactive}

	assert.Len(t, s.ComputeHotspots(events, evening, nil, 20), 2)
	only := s.ComputeHotspots(events, evening, []string{" Theatre"}, 20)
	require.Len(t, only, 1)
	assert.InDelta(t, 1.1, only[0].Score, 1e-9)
	assert.Empty(t, s.ComputeHotspots(nil, evening, nil, 20))
}

func TestAggregateScoreWeightedCentroid(t *testing.T) {
	cfg := model.DefaultScoringConfig()
	cfg.Centroid = model.CentroidScoreWeighted
	s := NewScorer(cfg)

	hs := s.Aggregate([]Contribution{
		{Lat: 40.4161, Lon: -3.7031, Score: 3, RadiusM: 300},
		{Lat: 40.4165, Lon: -3.7035, Score: 1, RadiusM: 300},
		{Lat: 40.4169, Lon: -3.7039, Score: 0, RadiusM: 300},
	}, 20)
	require.Len(t, hs, 1)
	assert.InDelta(t, 40.4162, hs[0].Lat, 1e-9)
	assert.InDelta(t, -3.7032, hs[0].Lon, 1e-9)
	assert.Equal(t, 4.0, hs[0].Score)
}

func TestAggregateAveragesPredictions(t *testing.T) {
	s := NewScorer(nil)
	hs := s.Aggregate([]Contribution{
		{Lat: 40.4161, Lon: -3.7031, Score: 1, LeadTimeMin: f64(30), AttendanceFactor: f64(0.8)},
		{Lat: 40.4162, Lon: -3.7032, Score: 1, LeadTimeMin: f64(90), AttendanceFactor: f64(1.0)},
		{Lat: 41.0, Lon: -3.0, Score: 0.5},
	}, 20)
	require.Len(t, hs, 2)
	require.NotNil(t, hs[0].LeadTimeMinPred)
	assert.InDelta(t, 60, *hs[0].LeadTimeMinPred, 1e-9)
	assert.InDelta(t, 0.9, *hs[0].AttendanceFactorPred, 1e-9)
	assert.Nil(t, hs[1].LeadTimeMinPred)
	assert.Equal(t, 300.0, hs[1].RadiusM)
}

func TestApplyFactor(t *testing.T) {
	hs := []model.HotspotPoint{{Score: 1.2}, {Score: 0.33334}}
	ApplyFactor(hs, 0.5)
	assert.Equal(t, 0.6, hs[0].Score)
	assert.Equal(t, 0.1667, hs[1].Score)
}
