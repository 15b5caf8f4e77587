package jobs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"hotspot_service/internal/core"
	"hotspot_service/internal/domain/model"
)

// DatasetHeader is the column order of an exported training dataset.
var DatasetHeader = []string{
	"snapshot_id",
	"event_external_id",
	"target_at",
	"hour",
	"dow",
	"category",
	"lat",
	"lon",
	"dist_km",
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
	"weather_code",
	model.LabelColumn,
	model.LeadTimeLabel,
	model.AttendanceFactorLabel,
}

// WriteDataset writes snapshots as training rows. dist_km is measured from center.
func WriteDataset(w io.Writer, snapshots []model.FeatureSnapshot, center model.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DatasetHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, s := range snapshots {
		if err := cw.Write(datasetRecord(s, center)); err != nil {
			return fmt.Errorf("failed to write snapshot %d: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func datasetRecord(s model.FeatureSnapshot, center model.Point) []string {
	target := s.TargetAt.UTC()
	category := s.Category
	if category == "" {
		category = model.UnknownCategory
	}
	label := s.ScoreFinal
	if s.ExpectedAttendance != nil {
		label = float64(*s.ExpectedAttendance)
	}
	dist := round4(core.DistanceKM(center.Lat, center.Lon, s.Lat, s.Lon))

	var code *float64
	if s.WeatherCode != nil {
		c := float64(*s.WeatherCode)
		code = &c
	}

	return []string{
		strconv.FormatInt(s.ID, 10),
		s.EventID,
		target.Format(time.RFC3339),
		strconv.Itoa(target.Hour()),
		strconv.Itoa(core.Weekday(target)),
		category,
		formatFloat(s.Lat),
		formatFloat(s.Lon),
		formatFloat(dist),
		formatOptional(s.TemperatureC),
		formatOptional(s.PrecipitationMM),
		formatOptional(s.RainMM),
		formatOptional(s.SnowfallMM),
		formatOptional(s.WindSpeedKMH),
		formatOptional(s.WindGustKMH),
		formatOptional(s.CloudCoverPct),
		formatOptional(s.HumidityPct),
		formatOptional(s.PressureHPA),
		formatOptional(s.VisibilityM),
		formatOptional(code),
		formatFloat(label),
		strconv.Itoa(LabelLeadTime(s.PrecipitationMM, s.WindSpeedKMH, s.TemperatureC)),
		formatFloat(LabelAttendanceFactor(s.PrecipitationMM, s.WindSpeedKMH, s.TemperatureC, s.CloudCoverPct)),
	}
}

// ReadDataset parses a training CSV. Columns are matched by header name, so
// extra or reordered columns are accepted. Every column that is neither a
// feature nor category is kept as a candidate label: label* columns must be
// numeric, other columns keep non-numeric cells as missing values. Empty cells
// are missing values.
func ReadDataset(r io.Reader) ([]model.TrainingRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var rows []model.TrainingRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		category := ""
		if i, ok := index["category"]; ok {
			category = strings.TrimSpace(rec[i])
		}
		row := model.TrainingRow{
			Features: model.NewFeatureRow(category),
			Labels:   make(map[string]*float64),
		}
		for _, name := range model.NumericFeatures {
			i, ok := index[name]
			if !ok {
				continue
			}
			v, err := parseOptional(rec[i])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, name, err)
			}
			row.Features.Set(name, v)
		}
		for name, i := range index {
			if name == "category" || isNumericFeature(name) {
				continue
			}
			v, err := parseOptional(rec[i])
			if err != nil {
				if strings.HasPrefix(name, model.LabelColumn) {
					return nil, fmt.Errorf("line %d column %s: %w", line, name, err)
				}
				v = nil
			}
			row.Labels[name] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isNumericFeature(name string) bool {
	for _, f := range model.NumericFeatures {
		if f == name {
			return true
		}
	}
	return false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseOptional(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
