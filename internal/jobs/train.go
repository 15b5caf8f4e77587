package jobs

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"hotspot_service/internal/core"
	"hotspot_service/internal/domain/model"
	"hotspot_service/internal/infrastructure/modelstore"
)

// ModelNameFor maps a label column to the artifact name the service loads.
func ModelNameFor(targetCol string) string {
	switch targetCol {
	case model.LeadTimeLabel:
		return model.LeadTimeModel
	case model.AttendanceFactorLabel:
		return model.AttendanceFactorModel
	default:
		return "model_" + targetCol
	}
}

type TrainResult struct {
	Samples  int
	Artifact *model.LinearModelArtifact
}

// TrainModel fits a linear model on the dataset at datasetPath and, when
// outPath is set, saves the artifact there.
func TrainModel(datasetPath, targetCol, outPath string, opts core.TrainOptions, log zerolog.Logger) (*TrainResult, error) {
	log = log.With().Str("job", "train").Str("target", targetCol).Logger()

	f, err := os.Open(datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	rows, err := ReadDataset(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", datasetPath, err)
	}
	artifact, err := core.Train(rows, targetCol, opts)
	if err != nil {
		return nil, err
	}

	if outPath != "" {
		if err := modelstore.Save(outPath, artifact); err != nil {
			return nil, err
		}
	}
	log.Info().
		Int("samples", len(rows)).
		Int("features", len(artifact.FeatureColumns)).
		Float64("mae", artifact.Metrics.MAE).
		Float64("rmse", artifact.Metrics.RMSE).
		Str("out", outPath).
		Msg("model trained")
	return &TrainResult{Samples: len(rows), Artifact: artifact}, nil
}
