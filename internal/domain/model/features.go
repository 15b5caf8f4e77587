package model

// CategoryPrefix marks one-hot category columns in a model artifact.
const CategoryPrefix = "cat_"

// WeatherFields are copied verbatim from the weather observation into a feature row.
var WeatherFields = []string{
	"temperature_c",
	"precipitation_mm",
	"rain_mm",
	"snowfall_mm",
	"wind_speed_kmh",
	"wind_gust_kmh",
	"cloud_cover_pct",
	"humidity_pct",
	"pressure_hpa",
	"visibility_m",
}

// NumericFeatures is the ordered numeric part of the feature schema shared by
// dataset export, training and inference.
var NumericFeatures = append([]string{"hour", "dow", "lat", "lon", "dist_km"}, WeatherFields...)

// Training targets exported with every dataset row.
const (
	LabelColumn           = "label"
	LeadTimeLabel         = "label_lead_time_min"
	AttendanceFactorLabel = "label_attendance_factor"
)

// FeatureRow is one flat feature record. A key missing from Values is a missing value.
type FeatureRow struct {
	Category string
	Values   map[string]float64
}

func NewFeatureRow(category string) FeatureRow {
	if category == "" {
		category = UnknownCategory
	}
	return FeatureRow{Category: category, Values: make(map[string]float64, len(NumericFeatures))}
}

// Set stores v under name; a nil v leaves the feature missing.
func (r FeatureRow) Set(name string, v *float64) {
	if v != nil {
		r.Values[name] = *v
	}
}

func (r FeatureRow) Value(name string) (float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// TrainingRow pairs a feature row with its label columns. A label present with a
// nil value was an empty cell in the dataset.
type TrainingRow struct {
	Features FeatureRow
	Labels   map[string]*float64
}
