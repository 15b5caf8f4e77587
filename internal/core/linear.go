package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"hotspot_service/internal/domain/model"
)

var (
	ErrEmptyDataset  = errors.New("dataset is empty")
	ErrMissingTarget = errors.New("target column not found in dataset")
)

// Business bounds for the two predicted quantities.
const (
	MinLeadTimeMin      = 15.0
	MaxLeadTimeMin      = 120.0
	MinAttendanceFactor = 0.50
	MaxAttendanceFactor = 1.10
	defaultEpochs       = 2000
	defaultLearningRate = 0.01
)

// TrainOptions controls full-batch gradient descent.
type TrainOptions struct {
	Epochs       int
	LearningRate float64
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{Epochs: defaultEpochs, LearningRate: defaultLearningRate}
}

// Train fits a linear regression of targetCol on the shared feature schema.
// Numeric features are max-abs scaled and categories one-hot encoded as
// cat_<category> columns. Metrics are computed on the training set.
func Train(rows []model.TrainingRow, targetCol string, opts TrainOptions) (*model.LinearModelArtifact, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	if _, ok := rows[0].Labels[targetCol]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingTarget, targetCol)
	}
	if opts.Epochs <= 0 {
		opts.Epochs = defaultEpochs
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = defaultLearningRate
	}

	categories := collectCategories(rows)
	columns := make([]string, 0, len(model.NumericFeatures)+len(categories))
	scales := make([]float64, 0, cap(columns))
	for _, name := range model.NumericFeatures {
		columns = append(columns, name)
		scales = append(scales, maxAbs(rows, name))
	}
	for _, cat := range categories {
		columns = append(columns, model.CategoryPrefix+cat)
		scales = append(scales, 1.0)
	}

	features := make([][]float64, len(rows))
	labels := make([]float64, len(rows))
	for i, row := range rows {
		features[i] = vectorize(columns, scales, row.Features)
		if v := row.Labels[targetCol]; v != nil {
			labels[i] = *v
		}
	}

	weights, bias := gradientDescent(features, labels, opts)

	var absSum, sqSum float64
	for i, vec := range features {
		e := dot(weights, vec) + bias - labels[i]
		absSum += math.Abs(e)
		sqSum += e * e
	}
	n := float64(len(rows))

	return &model.LinearModelArtifact{
		TargetCol:      targetCol,
		FeatureColumns: columns,
		Scales:         scales,
		Weights:        weights,
		Bias:           bias,
		Categories:     categories,
		Metrics: model.ModelMetrics{
			MAE:  absSum / n,
			RMSE: math.Sqrt(sqSum / n),
		},
	}, nil
}

// Predict rebuilds the feature vector from the artifact's own column list and
// returns the linear prediction. Missing values count as 0.
func Predict(a *model.LinearModelArtifact, row model.FeatureRow) float64 {
	return dot(a.Weights, vectorize(a.FeatureColumns, a.Scales, row)) + a.Bias
}

func ClampLeadTime(v float64) float64 {
	return clamp(v, MinLeadTimeMin, MaxLeadTimeMin)
}

func ClampAttendanceFactor(v float64) float64 {
	return clamp(v, MinAttendanceFactor, MaxAttendanceFactor)
}

func vectorize(columns []string, scales []float64, row model.FeatureRow) []float64 {
	category := row.Category
	if category == "" {
		category = model.UnknownCategory
	}
	vec := make([]float64, len(columns))
	for j, col := range columns {
		if strings.HasPrefix(col, model.CategoryPrefix) {
			if category == strings.TrimPrefix(col, model.CategoryPrefix) {
				vec[j] = 1.0
			}
			continue
		}
		v, _ := row.Value(col)
		if s := scales[j]; s != 0 {
			v /= s
		}
		vec[j] = v
	}
	return vec
}

func gradientDescent(features [][]float64, labels []float64, opts TrainOptions) ([]float64, float64) {
	n := float64(len(features))
	m := len(features[0])
	weights := make([]float64, m)
	grad := make([]float64, m)
	var bias float64

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradB float64
		for i, vec := range features {
			e := dot(weights, vec) + bias - labels[i]
			gradB += e
			for j, x := range vec {
				grad[j] += e * x
			}
		}
		bias -= opts.LearningRate * gradB / n
		for j := range weights {
			weights[j] -= opts.LearningRate * grad[j] / n
		}
	}
	return weights, bias
}

func collectCategories(rows []model.TrainingRow) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		c := row.Features.Category
		if c == "" {
			c = model.UnknownCategory
		}
		seen[c] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// maxAbs is the scale of a numeric feature: the largest absolute value seen,
// or 1 when the feature is absent or always zero.
func maxAbs(rows []model.TrainingRow, name string) float64 {
	var m float64
	for _, row := range rows {
		if v, ok := row.Features.Value(name); ok {
			m = math.Max(m, math.Abs(v))
		}
	}
	if m == 0 {
		return 1.0
	}
	return m
}

func dot(w, x []float64) float64 {
	var sum float64
	for i := range w {
		sum += w[i] * x[i]
	}
	return sum
}
