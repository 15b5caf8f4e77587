package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hotspot_service/internal/domain/model"
)

const defaultFetchConcurrency = 4

type WeatherFetcher interface {
	FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) ([]model.WeatherObservation, error)
}

type WeatherStore interface {
	UpsertMany(ctx context.Context, obs []model.WeatherObservation) (int, error)
}

// WeatherSync pulls hourly observations for a set of points and stores them.
type WeatherSync struct {
	fetcher     WeatherFetcher
	store       WeatherStore
	concurrency int
	log         zerolog.Logger
}

func NewWeatherSync(fetcher WeatherFetcher, store WeatherStore, concurrency int, log zerolog.Logger) *WeatherSync {
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	return &WeatherSync{
		fetcher:     fetcher,
		store:       store,
		concurrency: concurrency,
		log:         log.With().Str("job", "sync-weather").Logger(),
	}
}

// Run fetches the points in parallel and writes everything in one batch.
// Any failed fetch aborts the sync before anything is written.
func (w *WeatherSync) Run(ctx context.Context, points []model.Point, start, end time.Time) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	fetched := make([][]model.WeatherObservation, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, p := range points {
		g.Go(func() error {
			obs, err := w.fetcher.FetchHourly(gctx, p.Lat, p.Lon, start, end)
			if err != nil {
				return fmt.Errorf("fetch %.4f,%.4f: %w", p.Lat, p.Lon, err)
			}
			fetched[i] = obs
			w.log.Debug().Float64("lat", p.Lat).Float64("lon", p.Lon).Int("hours", len(obs)).Msg("weather fetched")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var all []model.WeatherObservation
	for _, obs := range fetched {
		all = append(all, obs...)
	}
	n, err := w.store.UpsertMany(ctx, all)
	if err != nil {
		return 0, err
	}
	w.log.Info().
		Int("points", len(points)).
		Int("observations", n).
		Str("start", start.Format(time.DateOnly)).
		Str("end", end.Format(time.DateOnly)).
		Msg("weather synced")
	return n, nil
}
