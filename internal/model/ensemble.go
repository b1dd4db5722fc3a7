package model

import (
	"fmt"
	"math"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
)

// RiskClasses is the fixed class order of the 4-class sub-model.
var RiskClasses = []string{"low", "medium", "high", "critical"}

// countSaturation converts the predicted violation count into a [0,1] risk
// and bounds the count-error term of the confidence score.
const countSaturation = 10.0

// Scaler is the feature-scaling transform shared by all three sub-models.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		std := s.Std[i]
		if std == 0 {
			std = 1
		}
		out[i] = (v - s.Mean[i]) / std
	}
	return out
}

// Ensemble is the trained scoring backend: a violation-count regressor, a
// binary attendance-issue classifier and a 4-class risk classifier, co-scaled
// over the same feature encoding. Immutable after construction; safe for
// concurrent Infer calls.
type Ensemble struct {
	version          string
	scaler           *Scaler
	violationCoeffs  []float64 // intercept first
	attendanceCoeffs []float64 // intercept first
	centroids        map[string][]float64
}

func (e *Ensemble) Version() string {
	return e.version
}

func (e *Ensemble) Infer(fv *models.FeatureVector) (*models.ModelOutput, error) {
	x := Vectorize(fv)
	if len(x) != len(e.scaler.Mean) {
		return nil, fmt.Errorf("feature encoding mismatch: got %d values, artifact expects %d: %w",
			len(x), len(e.scaler.Mean), ErrModelUnavailable)
	}

	xs := e.scaler.Transform(x)

	predictedCount := linear(e.violationCoeffs, xs)
	if predictedCount < 0 {
		predictedCount = 0
	}
	violationRisk := clamp(predictedCount/countSaturation, 0, 1)

	attendanceRisk := clamp(linear(e.attendanceCoeffs, xs), 0, 1)

	category, probs := e.classify(xs)

	consecProb := attendanceRisk
	if fv.MaxConsecutiveAbsences30d < 1 {
		consecProb = attendanceRisk / 2
	}

	return &models.ModelOutput{
		PredictedViolationCount: predictedCount,
		ViolationRisk:           violationRisk,
		AttendanceRisk:          attendanceRisk,
		RiskCategoryRaw:         category,
		HighRiskItems:           deriveHighRiskItems(fv),
		AttendancePattern:       deriveAttendancePattern(fv),
		PredictedAbsences:       derivePredictedAbsences(fv),
		ConsecutiveAbsenceProb:  consecProb,
		Confidence:              e.confidence(fv, predictedCount, attendanceRisk, probs),
	}, nil
}

func linear(coeffs, x []float64) float64 {
	v := coeffs[0]
	for i, c := range coeffs[1:] {
		v += c * x[i]
	}
	return v
}

// classify assigns the nearest centroid in scaled feature space, with class
// probabilities from a softmax over negative distances.
func (e *Ensemble) classify(xs []float64) (string, []float64) {
	probs := make([]float64, len(RiskClasses))
	weights := make([]float64, len(RiskClasses))
	var sum float64

	for i, class := range RiskClasses {
		centroid, ok := e.centroids[class]
		if !ok {
			continue
		}
		weights[i] = math.Exp(-euclidean(xs, centroid))
		sum += weights[i]
	}

	if sum == 0 {
		return "medium", probs
	}

	best, bestProb := "medium", 0.0
	for i, class := range RiskClasses {
		probs[i] = weights[i] / sum
		if probs[i] > bestProb {
			best, bestProb = class, probs[i]
		}
	}

	return best, probs
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// confidence blends count-prediction agreement with the observed 30-day tally,
// class-probability peakedness, and how far the attendance probability sits
// from the 0.5 coin flip.
func (e *Ensemble) confidence(fv *models.FeatureVector, predictedCount, attendanceRisk float64, probs []float64) float64 {
	countTerm := 1 - math.Abs(predictedCount-float64(fv.ViolationsLast30d))/countSaturation

	var maxProb float64
	for _, p := range probs {
		if p > maxProb {
			maxProb = p
		}
	}

	attendanceTerm := 2 * math.Abs(attendanceRisk-0.5)

	return clamp(0.3*countTerm+0.4*maxProb+0.3*attendanceTerm, 0, 1)
}
