package core

import (
	"math"

	"hotspot_service/internal/domain/model"
)

// WeatherFactor maps conditions to a multiplicative dampening factor.
// With no readings at all the factor is exactly 1. Each reading can only
// lower the factor, and the result stays within [MinFactor, MaxFactor].
func WeatherFactor(rules *model.WeatherRules, temperatureC, precipitationMM, windSpeedKMH *float64) float64 {
	if temperatureC == nil && precipitationMM == nil && windSpeedKMH == nil {
		return 1.0
	}
	if rules == nil {
		rules = model.DefaultWeatherRules()
	}
	factor := 1.0

	if precipitationMM != nil {
		p := *precipitationMM
		switch {
		case p >= rules.HeavyRainMM:
			factor -= rules.HeavyRainDrop
		case p >= rules.RainMM:
			factor -= rules.RainDrop
		case p >= rules.LightRainMM:
			factor -= rules.LightRainDrop
		}
	}

	if windSpeedKMH != nil {
		w := *windSpeedKMH
		switch {
		case w >= rules.StormKMH:
			factor -= rules.StormDrop
		case w >= rules.WindKMH:
			factor -= rules.WindDrop
		}
	}

	if temperatureC != nil {
		factor -= temperaturePenalty(rules, *temperatureC)
	}

	return clamp(factor, rules.MinFactor, rules.MaxFactor)
}

// temperaturePenalty grows by one step for every TempStepC (or part of it)
// outside the comfort band.
func temperaturePenalty(rules *model.WeatherRules, t float64) float64 {
	var excess float64
	switch {
	case t < rules.ComfortMinC:
		excess = rules.ComfortMinC - t
	case t > rules.ComfortMaxC:
		excess = t - rules.ComfortMaxC
	default:
		return 0
	}
	steps := 1
	if rules.TempStepC > 0 {
		steps = int(math.Ceil(excess / rules.TempStepC))
	}
	if steps > rules.TempMaxSteps {
		steps = rules.TempMaxSteps
	}
	return float64(steps) * rules.TempDropPerStep
}

// ObservationFactor is WeatherFactor for an optional observation.
func ObservationFactor(rules *model.WeatherRules, obs *model.WeatherObservation) float64 {
	if obs == nil {
		return 1.0
	}
	return WeatherFactor(rules, obs.TemperatureC, obs.PrecipitationMM, obs.WindSpeedKMH)
}
