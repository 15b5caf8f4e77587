package repository

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"

	"hotspot_service/internal/domain/model"
)

const OverpassSource = "osm"

// BBox is a south-west / north-east box in degrees.
type BBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// BBoxAround returns a box of roughly radiusKM around a point.
func BBoxAround(lat, lon, radiusKM float64) BBox {
	dLat := radiusKM / 111.32
	dLon := dLat
	if c := math.Cos(lat * math.Pi / 180); c > 1e-6 {
		dLon = dLat / c
	}
	return BBox{MinLat: lat - dLat, MinLon: lon - dLon, MaxLat: lat + dLat, MaxLon: lon + dLon}
}

func (b BBox) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

type OverpassRepository struct {
	client  *overpass.Client
	timeout time.Duration
}

func NewOverpassRepository(endpoint string, timeout time.Duration) *OverpassRepository {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassRepository{
		client:  &client,
		timeout: timeout,
	}
}

// GetVenues returns event venues (theatres, cinemas, arts centres, concert
// halls, stadiums) inside bbox.
func (r *OverpassRepository) GetVenues(ctx context.Context, bbox BBox) ([]model.Venue, error) {
	query := fmt.Sprintf(`
		[out:json];
		(
			node["amenity"~"theatre|cinema|arts_centre|concert_hall"](%[1]s);
			way["amenity"~"theatre|cinema|arts_centre|concert_hall"](%[1]s);
			node["leisure"="stadium"](%[1]s);
			way["leisure"="stadium"](%[1]s);
		);
		out body;
		>;
		out skel qt;
	`, bbox)

	result, err := r.executeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute venue query: %w", err)
	}
	return convertToVenues(result), nil
}

func (r *OverpassRepository) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		res overpass.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.client.Query(query)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("overpass query: %w", ctx.Err())
	case o := <-done:
		if o.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", o.err)
		}
		return &o.res, nil
	}
}

func convertToVenues(result *overpass.Result) []model.Venue {
	var venues []model.Venue

	for _, node := range result.Nodes {
		if v, ok := venueFromTags("node/"+strconv.FormatInt(node.ID, 10), node.Lat, node.Lon, node.Tags); ok {
			venues = append(venues, v)
		}
	}

	// для way берём среднюю точку узлов
	for _, way := range result.Ways {
		count := len(way.Nodes)
		if count == 0 {
			continue
		}
		var lat, lon float64
		for _, node := range way.Nodes {
			lat += node.Lat
			lon += node.Lon
		}
		lat /= float64(count)
		lon /= float64(count)
		if v, ok := venueFromTags("way/"+strconv.FormatInt(way.ID, 10), lat, lon, way.Tags); ok {
			venues = append(venues, v)
		}
	}
	return venues
}

// venueFromTags keeps only named elements of a known kind. Skeleton nodes
// returned for ways carry no tags and are dropped here.
func venueFromTags(externalID string, lat, lon float64, tags map[string]string) (model.Venue, bool) {
	kind := venueKind(tags)
	name := strings.TrimSpace(tags["name"])
	if kind == "" || name == "" {
		return model.Venue{}, false
	}
	v := model.Venue{
		Source:     OverpassSource,
		ExternalID: externalID,
		Name:       name,
		Lat:        lat,
		Lon:        lon,
		City:       tags["addr:city"],
		Country:    tags["addr:country"],
		Kind:       kind,
	}
	if c, err := strconv.Atoi(strings.TrimSpace(tags["capacity"])); err == nil && c > 0 {
		v.MaxCapacity = &c
	}
	return v, true
}

func venueKind(tags map[string]string) string {
	switch tags["amenity"] {
	case "theatre", "cinema", "arts_centre", "concert_hall":
		return tags["amenity"]
	}
	if tags["leisure"] == "stadium" {
		return "stadium"
	}
	return ""
}
