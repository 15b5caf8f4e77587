// Package openmeteo fetches hourly weather from the Open-Meteo forecast/archive API.
package openmeteo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"hotspot_service/internal/domain/model"
)

const (
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"
	Source         = "open_meteo"
	timeLayout     = "2006-01-02T15:04"
)

var hourlyFields = []string{
	"temperature_2m",
	"precipitation",
	"rain",
	"snowfall",
	"cloud_cover",
	"wind_speed_10m",
	"wind_gusts_10m",
	"relative_humidity_2m",
	"surface_pressure",
	"visibility",
	"weather_code",
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type hourlyResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Hourly    struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		Precipitation []*float64 `json:"precipitation"`
		Rain          []*float64 `json:"rain"`
		Snowfall      []*float64 `json:"snowfall"`
		CloudCover    []*float64 `json:"cloud_cover"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		WindGusts     []*float64 `json:"wind_gusts_10m"`
		Humidity      []*float64 `json:"relative_humidity_2m"`
		Pressure      []*float64 `json:"surface_pressure"`
		Visibility    []*float64 `json:"visibility"`
		WeatherCode   []*float64 `json:"weather_code"`
	} `json:"hourly"`
}

// FetchHourly returns one observation per hour between start and end dates (inclusive), in UTC.
// Observations are reported at the requested point, not the grid point Open-Meteo snaps to.
func (c *Client) FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) ([]model.WeatherObservation, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("start_date", start.UTC().Format("2006-01-02"))
	q.Set("end_date", end.UTC().Format("2006-01-02"))
	q.Set("hourly", strings.Join(hourlyFields, ","))
	q.Set("timezone", "UTC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo returned status: %d", resp.StatusCode)
	}

	var body hourlyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}

	h := body.Hourly
	out := make([]model.WeatherObservation, 0, len(h.Time))
	for i, ts := range h.Time {
		at, err := time.ParseInLocation(timeLayout, ts, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bad hourly time %q: %w", ts, err)
		}
		obs := model.WeatherObservation{
			Source:          Source,
			Lat:             lat,
			Lon:             lon,
			ObservedAt:      at,
			TemperatureC:    valueAt(h.Temperature, i),
			PrecipitationMM: valueAt(h.Precipitation, i),
			RainMM:          valueAt(h.Rain, i),
			SnowfallMM:      valueAt(h.Snowfall, i),
			CloudCoverPct:   valueAt(h.CloudCover, i),
			WindSpeedKMH:    valueAt(h.WindSpeed, i),
			WindGustKMH:     valueAt(h.WindGusts, i),
			HumidityPct:     valueAt(h.Humidity, i),
			PressureHPA:     valueAt(h.Pressure, i),
			VisibilityM:     valueAt(h.Visibility, i),
		}
		if code := valueAt(h.WeatherCode, i); code != nil {
			v := int(*code)
			obs.WeatherCode = &v
		}
		out = append(out, obs)
	}
	return out, nil
}

// valueAt tolerates series shorter than the time axis.
func valueAt(series []*float64, i int) *float64 {
	if i >= len(series) {
		return nil
	}
	return series[i]
}
