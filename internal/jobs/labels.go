package jobs

import "math"

// LabelLeadTime derives the lead time target (minutes before start that
// attendees arrive) from the weather at the target moment.
func LabelLeadTime(precipitationMM, windSpeedKMH, temperatureC *float64) int {
	lead := 90
	if p := precipitationMM; p != nil {
		switch {
		case *p >= 1.0:
			lead = 30
		case *p >= 0.2:
			lead = 45
		}
	}
	if windSpeedKMH != nil && *windSpeedKMH >= 35 {
		lead -= 15
	}
	if extremeTemperature(temperatureC) {
		lead -= 15
	}
	return min(max(lead, 15), 120)
}

// LabelAttendanceFactor derives the attendance multiplier target, rounded to 3 decimals.
func LabelAttendanceFactor(precipitationMM, windSpeedKMH, temperatureC, cloudCoverPct *float64) float64 {
	factor := 1.0
	if p := precipitationMM; p != nil {
		switch {
		case *p >= 1.0:
			factor -= 0.25
		case *p >= 0.2:
			factor -= 0.10
		}
	}
	if windSpeedKMH != nil && *windSpeedKMH >= 35 {
		factor -= 0.10
	}
	if extremeTemperature(temperatureC) {
		factor -= 0.05
	}
	if cloudCoverPct != nil && *cloudCoverPct >= 85 {
		factor -= 0.03
	}
	factor = min(max(factor, 0.50), 1.10)
	return math.Round(factor*1000) / 1000
}

func extremeTemperature(t *float64) bool {
	return t != nil && (*t <= 5 || *t >= 32)
}
