package model

import (
	"math"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
)

const fallbackVersion = "rule-fallback-v1"

// Fallback scores with fixed rules when no trained artifact is loadable. Its
// risk_category_raw is hardcoded "medium" regardless of inputs; the composer's
// score bands are authoritative anyway, so this is a known placeholder rather
// than a real classification.
type Fallback struct{}

func NewFallback() *Fallback {
	return &Fallback{}
}

func (f *Fallback) Version() string {
	return fallbackVersion
}

func (f *Fallback) Infer(fv *models.FeatureVector) (*models.ModelOutput, error) {
	predicted := math.Round(float64(fv.ViolationsLast30d) * 1.1)

	return &models.ModelOutput{
		PredictedViolationCount: predicted,
		ViolationRisk:           clamp(fv.ViolationRate30d, 0, 1),
		AttendanceRisk:          clamp((1-fv.AttendanceRate30d)/0.4, 0, 1),
		RiskCategoryRaw:         "medium",
		HighRiskItems:           deriveHighRiskItems(fv),
		AttendancePattern:       deriveAttendancePattern(fv),
		PredictedAbsences:       derivePredictedAbsences(fv),
		ConsecutiveAbsenceProb:  clamp(float64(fv.ConsecutiveAbsencesCurrent)/5, 0, 1),
		Confidence:              0.6,
	}, nil
}
