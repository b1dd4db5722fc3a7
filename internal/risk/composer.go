package risk

import (
	"math"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
)

// Sub-score weights of the composite risk score.
const (
	violationWeight      = 0.40
	attendanceWeight     = 0.30
	complianceWeight     = 0.20
	behavioralWeight     = 0.10
	warningScoreStep     = 20.0
	interventionScoreBar = 85.0
)

// Category bands on the composite score. The bands are authoritative over the
// model's own raw category so thresholds stay uniform regardless of which
// scoring backend ran.
const (
	mediumBand   = 30.0
	highBand     = 60.0
	criticalBand = 85.0
)

type Composition struct {
	OverallRiskScore     float64
	RiskCategory         string
	RequiresIntervention bool

	ViolationScore       float64
	AttendanceScore      float64
	ComplianceTrendScore float64
	BehavioralScore      float64
}

// Compose collapses the model output and feature vector into the composite
// 0-100 score, its category band and the intervention flag.
func Compose(fv *models.FeatureVector, out *models.ModelOutput) Composition {
	violationScore := out.ViolationRisk * 100
	attendanceScore := out.AttendanceRisk * 100
	complianceTrendScore := math.Max(0, 100-fv.ComplianceScore)
	behavioralScore := math.Min(100, float64(fv.WarningsLast30d)*warningScoreStep)

	score := violationScore*violationWeight +
		attendanceScore*attendanceWeight +
		complianceTrendScore*complianceWeight +
		behavioralScore*behavioralWeight
	score = math.Max(0, math.Min(100, score))

	category := Categorize(score)

	intervention := category == "critical" ||
		fv.ConsecutiveAbsencesCurrent >= 3 ||
		fv.ViolationsLast7d >= 5 ||
		score >= interventionScoreBar

	return Composition{
		OverallRiskScore:     score,
		RiskCategory:         category,
		RequiresIntervention: intervention,
		ViolationScore:       violationScore,
		AttendanceScore:      attendanceScore,
		ComplianceTrendScore: complianceTrendScore,
		BehavioralScore:      behavioralScore,
	}
}

func Categorize(score float64) string {
	switch {
	case score < mediumBand:
		return "low"
	case score < highBand:
		return "medium"
	case score < criticalBand:
		return "high"
	default:
		return "critical"
	}
}
