package model

import (
	"errors"
	"math"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
)

// ErrModelUnavailable marks a missing or corrupt trained artifact. Callers
// recover by scoring with the rule-based fallback; it is never surfaced past
// the prediction service.
var ErrModelUnavailable = errors.New("scoring model unavailable")

// Scorer maps a feature vector to the shared model output shape. Both the
// trained ensemble and the rule-based fallback implement it; downstream
// composition and explanation never branch on which variant ran.
type Scorer interface {
	Infer(fv *models.FeatureVector) (*models.ModelOutput, error)
	Version() string
}

// deriveHighRiskItems flags any PPE item whose 30-day violation tally exceeds
// 30% of the 30-day entry count. This is a deterministic derivation shared by
// all scoring variants, not a model output.
func deriveHighRiskItems(fv *models.FeatureVector) []string {
	threshold := 0.3 * float64(fv.EntriesLast30d)
	var items []string
	for _, item := range models.PPEItems {
		if float64(fv.ItemViolations30d(item)) > threshold {
			items = append(items, item)
		}
	}
	return items
}

func deriveAttendancePattern(fv *models.FeatureVector) string {
	switch {
	case fv.AttendanceRate30d >= 0.9 && fv.AttendanceVariability < 0.3:
		return "regular"
	case fv.AttendanceRate30d < 0.75:
		return "declining"
	default:
		return "irregular"
	}
}

// derivePredictedAbsences projects the current attendance shortfall over the
// next 30 calendar days.
func derivePredictedAbsences(fv *models.FeatureVector) float64 {
	rate := clamp(fv.AttendanceRate30d, 0, 1)
	return math.Round((1 - rate) * 30)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
