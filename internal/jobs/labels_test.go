package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelLeadTime(t *testing.T) {
	tests := []struct {
		name               string
		precip, wind, temp *float64
		want               int
	}{
		{"no weather", nil, nil, nil, 90},
		{"dry", f64(0.1), f64(10), f64(20), 90},
		{"light rain", f64(0.2), nil, nil, 45},
		{"rain", f64(1.0), nil, nil, 30},
		{"windy", nil, f64(35), nil, 75},
		{"cold", nil, nil, f64(5), 75},
		{"hot", nil, nil, f64(32), 75},
		{"rain wind and cold floor at 15", f64(3), f64(40), f64(0), 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LabelLeadTime(tt.precip, tt.wind, tt.temp))
		})
	}
}

func TestLabelAttendanceFactor(t *testing.T) {
	tests := []struct {
		name                       string
		precip, wind, temp, clouds *float64
		want                       float64
	}{
		{"no weather", nil, nil, nil, nil, 1.0},
		{"light rain", f64(0.5), nil, nil, nil, 0.9},
		{"rain", f64(2), nil, nil, nil, 0.75},
		{"overcast", nil, nil, nil, f64(85), 0.97},
		{"everything", f64(2), f64(40), f64(35), f64(100), 0.57},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LabelAttendanceFactor(tt.precip, tt.wind, tt.temp, tt.clouds))
		})
	}
}

func TestParseHours(t *testing.T) {
	all := make([]int, 24)
	for i := range all {
		all[i] = i
	}
	tests := []struct {
		spec string
		want []int
	}{
		{"", all},
		{"0-23", all},
		{"18-20", []int{18, 19, 20}},
		{"20-18", []int{18, 19, 20}},
		{"5, 18-19,5", []int{5, 18, 19}},
		{"7", []int{7}},
	}
	for _, tt := range tests {
		got, err := ParseHours(tt.spec)
		require.NoError(t, err, tt.spec)
		assert.Equal(t, tt.want, got, tt.spec)
	}

	for _, bad := range []string{"24", "-1", "a", "3-x", ","} {
		_, err := ParseHours(bad)
		assert.Error(t, err, bad)
	}
}

func TestDayRange(t *testing.T) {
	from, to := DayRange(day.AddDate(0, 0, 2), day.Add(15*time.Hour))
	assert.Equal(t, day, from)
	assert.Equal(t, day.AddDate(0, 0, 3), to)
}
