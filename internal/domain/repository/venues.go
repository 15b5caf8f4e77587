package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"hotspot_service/internal/domain/model"
)

type VenuesRepository struct {
	db *sqlx.DB
}

func NewVenuesRepository(db *sqlx.DB) *VenuesRepository {
	return &VenuesRepository{db: db}
}

// Upsert stores a venue keyed by (source, external_id) and returns its id.
func (r *VenuesRepository) Upsert(ctx context.Context, v model.Venue) (int64, error) {
	query := r.db.Rebind(`
		INSERT INTO venues (source, external_id, name, lat, lon, city, country, kind, max_capacity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, external_id) DO UPDATE SET
			name = excluded.name,
			lat = excluded.lat,
			lon = excluded.lon,
			city = excluded.city,
			country = excluded.country,
			kind = excluded.kind,
			max_capacity = COALESCE(excluded.max_capacity, venues.max_capacity)
		RETURNING id`)

	var id int64
	err := r.db.GetContext(ctx, &id, query,
		v.Source, v.ExternalID, v.Name, v.Lat, v.Lon, v.City, v.Country, v.Kind, v.MaxCapacity,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert venue %s/%s: %w", v.Source, v.ExternalID, err)
	}
	return id, nil
}

// Get returns a venue by source and external id.
func (r *VenuesRepository) Get(ctx context.Context, source, externalID string) (*model.Venue, error) {
	query := r.db.Rebind(`
		SELECT id, source, external_id, name, lat, lon, city, country, kind, max_capacity
		FROM venues
		WHERE source = ? AND external_id = ?`)

	var v model.Venue
	if err := r.db.GetContext(ctx, &v, query, source, externalID); err != nil {
		return nil, fmt.Errorf("failed to get venue %s/%s: %w", source, externalID, err)
	}
	return &v, nil
}
