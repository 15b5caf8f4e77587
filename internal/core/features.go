package core

import (
	"time"

	"hotspot_service/internal/domain/model"
)

// BuildFeatureRow produces the inference feature record for one event. The
// keys match the columns written by the dataset export, so a model trained on
// that export can be applied directly.
func BuildFeatureRow(ev model.Event, target time.Time, centerLat, centerLon float64, weather *model.WeatherObservation) model.FeatureRow {
	t := target.UTC()
	row := model.NewFeatureRow(ev.CategoryKey())

	hour := float64(t.Hour())
	dow := float64(Weekday(t))
	row.Set("hour", &hour)
	row.Set("dow", &dow)
	row.Set("lat", ev.Lat)
	row.Set("lon", ev.Lon)
	if ev.Lat != nil && ev.Lon != nil {
		dist := round4(DistanceKM(centerLat, centerLon, *ev.Lat, *ev.Lon))
		row.Set("dist_km", &dist)
	}

	for name, v := range WeatherValues(weather) {
		row.Set(name, v)
	}
	return row
}

// WeatherValues returns the weather feature fields keyed by feature name.
// Every name in model.WeatherFields is present; values are nil when unknown.
func WeatherValues(w *model.WeatherObservation) map[string]*float64 {
	out := make(map[string]*float64, len(model.WeatherFields))
	for _, name := range model.WeatherFields {
		out[name] = nil
	}
	if w == nil {
		return out
	}
	out["temperature_c"] = w.TemperatureC
	out["precipitation_mm"] = w.PrecipitationMM
	out["rain_mm"] = w.RainMM
	out["snowfall_mm"] = w.SnowfallMM
	out["wind_speed_kmh"] = w.WindSpeedKMH
	out["wind_gust_kmh"] = w.WindGustKMH
	out["cloud_cover_pct"] = w.CloudCoverPct
	out["humidity_pct"] = w.HumidityPct
	out["pressure_hpa"] = w.PressureHPA
	out["visibility_m"] = w.VisibilityM
	return out
}

// Weekday returns the day of week with Monday as 0.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
