package training

import (
	"context"
	"fmt"

	"github.com/sajari/regression"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/metrics"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/model"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
)

// minExamples guards against fitting on a dataset too small to mean anything.
const minExamples = 20

// Trainer fits the three ensemble sub-models from a generated dataset.
type Trainer struct {
	generator *Generator
	version   string
}

func NewTrainer(generator *Generator, version string) *Trainer {
	return &Trainer{generator: generator, version: version}
}

// Train fits the scaler, both regressors and the per-class centroids and
// returns a ready ensemble. All sub-models see the same scaled encoding.
func (t *Trainer) Train(examples []*models.TrainingExample) (*model.Ensemble, error) {
	if len(examples) < minExamples {
		return nil, fmt.Errorf("need at least %d training examples, got %d", minExamples, len(examples))
	}

	rows := make([][]float64, len(examples))
	for i, ex := range examples {
		rows[i] = model.Vectorize(ex.Features)
	}

	scaler := fitScaler(rows)
	scaled := make([][]float64, len(rows))
	for i, row := range rows {
		scaled[i] = scaler.Transform(row)
	}

	violationCoeffs, err := fitRegressor("violations_next_30d", scaled, func(i int) float64 {
		return float64(examples[i].LabelViolationsNext30d)
	})
	if err != nil {
		return nil, fmt.Errorf("violation regressor failed: %w", err)
	}

	attendanceCoeffs, err := fitRegressor("attendance_issue", scaled, func(i int) float64 {
		if examples[i].LabelHasAttendanceIssue {
			return 1
		}
		return 0
	})
	if err != nil {
		return nil, fmt.Errorf("attendance classifier failed: %w", err)
	}

	centroids := fitCentroids(scaled, examples)
	if len(centroids) == 0 {
		return nil, fmt.Errorf("no risk classes present in training data")
	}

	logger.Info("Model trained",
		zap.String("version", t.version),
		zap.Int("examples", len(examples)),
		zap.Int("classes", len(centroids)),
	)

	return model.NewEnsemble(t.version, scaler, violationCoeffs, attendanceCoeffs, centroids), nil
}

// TrainAndSave runs the full retrain cycle: generate the dataset over
// lookbackDays, fit, and persist the artifact to path.
func (t *Trainer) TrainAndSave(ctx context.Context, lookbackDays int, path string) (*model.Ensemble, int, error) {
	examples, err := t.generator.Generate(ctx, lookbackDays)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		return nil, 0, err
	}

	ensemble, err := t.Train(examples)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		return nil, len(examples), err
	}

	if err := ensemble.Save(path); err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		return nil, len(examples), fmt.Errorf("failed to save model artifact: %w", err)
	}

	metrics.TrainingRuns.WithLabelValues("ok").Inc()
	return ensemble, len(examples), nil
}

func fitScaler(rows [][]float64) *model.Scaler {
	n := len(model.FeatureNames)
	mean := make([]float64, n)
	std := make([]float64, n)

	col := make([]float64, len(rows))
	for j := 0; j < n; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}
		mean[j], std[j] = stat.MeanStdDev(col, nil)
	}

	return &model.Scaler{Mean: mean, Std: std}
}

// fitRegressor returns intercept-first coefficients for a least-squares fit
// of target over the scaled features.
func fitRegressor(observed string, scaled [][]float64, target func(i int) float64) ([]float64, error) {
	var r regression.Regression
	r.SetObserved(observed)
	for i, name := range model.FeatureNames {
		r.SetVar(i, name)
	}

	for i, row := range scaled {
		r.Train(regression.DataPoint(target(i), row))
	}

	if err := r.Run(); err != nil {
		return nil, err
	}

	coeffs := r.GetCoeffs()
	if len(coeffs) != len(model.FeatureNames)+1 {
		return nil, fmt.Errorf("regression produced %d coefficients, expected %d",
			len(coeffs), len(model.FeatureNames)+1)
	}
	return coeffs, nil
}

// fitCentroids averages the scaled vectors of each labeled risk class.
// Classes absent from the dataset produce no centroid.
func fitCentroids(scaled [][]float64, examples []*models.TrainingExample) map[string][]float64 {
	sums := make(map[string][]float64)
	counts := make(map[string]int)

	for i, ex := range examples {
		class := ex.LabelRiskCategory
		if sums[class] == nil {
			sums[class] = make([]float64, len(scaled[i]))
		}
		for j, v := range scaled[i] {
			sums[class][j] += v
		}
		counts[class]++
	}

	centroids := make(map[string][]float64, len(sums))
	for class, sum := range sums {
		centroid := make([]float64, len(sum))
		for j, v := range sum {
			centroid[j] = v / float64(counts[class])
		}
		centroids[class] = centroid
	}
	return centroids
}
