package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hotspot_service/internal/domain/model"
)

func TestWeatherFactorNeutralWithoutReadings(t *testing.T) {
	assert.Equal(t, 1.0, WeatherFactor(nil, nil, nil, nil))
	assert.Equal(t, 1.0, ObservationFactor(nil, nil))
	assert.Equal(t, 1.0, ObservationFactor(nil, &model.WeatherObservation{}))
}

func TestWeatherFactorGoodBeatsBad(t *testing.T) {
	good := WeatherFactor(nil, f64(20), f64(0), f64(5))
	bad := WeatherFactor(nil, f64(5), f64(5), f64(40))
	assert.Equal(t, 1.0, good)
	assert.InDelta(t, 0.50, bad, 1e-9)
	assert.Greater(t, good, bad)
}

func TestWeatherFactorThresholds(t *testing.T) {
	tests := []struct {
		name   string
		temp   *float64
		precip *float64
		wind   *float64
		want   float64
	}{
		{"drizzle", nil, f64(0.2), nil, 0.90},
		{"rain", nil, f64(1.0), nil, 0.75},
		{"heavy rain", nil, f64(5.0), nil, 0.65},
		{"breeze", nil, nil, f64(34.9), 1.0},
		{"wind", nil, nil, f64(35), 0.90},
		{"storm", nil, nil, f64(50), 0.80},
		{"comfort low edge", f64(10), nil, nil, 1.0},
		{"comfort high edge", f64(28), nil, nil, 1.0},
		{"cool", f64(9), nil, nil, 0.95},
		{"cold", f64(4.9), nil, nil, 0.90},
		{"hot", f64(34), nil, nil, 0.90},
		{"freezing", f64(-10), nil, nil, 0.85},
		{"everything", f64(-20), f64(10), f64(60), 0.30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, WeatherFactor(nil, tt.temp, tt.precip, tt.wind), 1e-9)
		})
	}
}

func TestWeatherFactorMonotonic(t *testing.T) {
	prev := 1.0
	for p := 0.0; p <= 10; p += 0.1 {
		f := WeatherFactor(nil, nil, f64(p), nil)
		assert.LessOrEqual(t, f, prev)
		prev = f
	}
	prev = 1.0
	for w := 0.0; w <= 80; w += 1 {
		f := WeatherFactor(nil, nil, nil, f64(w))
		assert.LessOrEqual(t, f, prev)
		prev = f
	}
	prev = 1.0
	for temp := 28.0; temp <= 50; temp += 0.5 {
		f := WeatherFactor(nil, f64(temp), nil, nil)
		assert.LessOrEqual(t, f, prev)
		prev = f
	}
}

func TestWeatherFactorBounds(t *testing.T) {
	for _, temp := range []float64{-30, 0, 15, 45} {
		for _, p := range []float64{0, 0.5, 3, 20} {
			for _, w := range []float64{0, 40, 90} {
				f := WeatherFactor(nil, f64(temp), f64(p), f64(w))
				assert.GreaterOrEqual(t, f, 0.3)
				assert.LessOrEqual(t, f, 1.0)
			}
		}
	}
}

func TestWeatherFactorCustomRules(t *testing.T) {
	rules := model.DefaultWeatherRules()
	rules.MinFactor = 0.6
	assert.InDelta(t, 0.6, WeatherFactor(rules, f64(-20), f64(10), f64(60)), 1e-9)
}
