package model

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable means a model artifact could not be found in the model directory.
	// It is a deployment fault, not a bad query.
	ErrModelUnavailable = errors.New("model unavailable")
	ErrInvalidArtifact  = errors.New("invalid model artifact")
)

// Artifact names used by the serving layer and the training jobs.
const (
	LeadTimeModel         = "model_lead_time"
	AttendanceFactorModel = "model_attendance_factor"
)

type ModelMetrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
}

// LinearModelArtifact is the JSON file written by training and read at inference time.
// FeatureColumns, Scales and Weights are parallel slices.
type LinearModelArtifact struct {
	TargetCol      string       `json:"target_col"`
	FeatureColumns []string     `json:"feature_columns"`
	Scales         []float64    `json:"scales"`
	Weights        []float64    `json:"weights"`
	Bias           float64      `json:"bias"`
	Categories     []string     `json:"categories"`
	Metrics        ModelMetrics `json:"metrics"`
}

// Validate checks the parallel slices before any inference is attempted.
func (a *LinearModelArtifact) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil artifact", ErrInvalidArtifact)
	}
	n := len(a.FeatureColumns)
	if n == 0 {
		return fmt.Errorf("%w: no feature columns", ErrInvalidArtifact)
	}
	if len(a.Weights) != n || len(a.Scales) != n {
		return fmt.Errorf("%w: %d feature columns, %d weights, %d scales",
			ErrInvalidArtifact, n, len(a.Weights), len(a.Scales))
	}
	for i, s := range a.Scales {
		if s == 0 {
			return fmt.Errorf("%w: zero scale for column %q", ErrInvalidArtifact, a.FeatureColumns[i])
		}
	}
	return nil
}
