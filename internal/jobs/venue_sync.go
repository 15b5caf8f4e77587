package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"hotspot_service/internal/domain/model"
	"hotspot_service/internal/domain/repository"
)

type VenueSource interface {
	GetVenues(ctx context.Context, bbox repository.BBox) ([]model.Venue, error)
}

type VenueStore interface {
	Upsert(ctx context.Context, v model.Venue) (int64, error)
}

type VenueSync struct {
	source VenueSource
	store  VenueStore
	log    zerolog.Logger
}

func NewVenueSync(source VenueSource, store VenueStore, log zerolog.Logger) *VenueSync {
	return &VenueSync{source: source, store: store, log: log.With().Str("job", "sync-venues").Logger()}
}

// Run imports the venues within radiusKM of center and returns how many were stored.
func (s *VenueSync) Run(ctx context.Context, center model.Point, radiusKM float64) (int, error) {
	if radiusKM <= 0 {
		radiusKM = DefaultRadiusKM
	}
	bbox := repository.BBoxAround(center.Lat, center.Lon, radiusKM)
	venues, err := s.source.GetVenues(ctx, bbox)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch venues: %w", err)
	}

	stored := 0
	for _, v := range venues {
		if _, err := s.store.Upsert(ctx, v); err != nil {
			return stored, err
		}
		stored++
	}
	s.log.Info().Str("bbox", bbox.String()).Int("venues", stored).Msg("venues synced")
	return stored, nil
}
