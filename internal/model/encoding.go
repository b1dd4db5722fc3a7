package model

import "github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"

// FeatureNames is the ordered numeric encoding of the feature vector shared by
// the scaler, the sub-models and the persisted artifact. Order changes break
// saved artifacts, so append only.
var FeatureNames = []string{
	"violations_last_7d",
	"violations_last_14d",
	"violations_last_30d",
	"violation_rate_7d",
	"violation_rate_14d",
	"violation_rate_30d",
	"helmet_violations_30d",
	"vest_violations_30d",
	"goggles_violations_30d",
	"gloves_violations_30d",
	"mask_violations_30d",
	"shoes_violations_30d",
	"days_since_last_violation",
	"violation_trend",
	"entries_last_7d",
	"entries_last_30d",
	"attendance_rate_30d",
	"consecutive_absences_current",
	"max_consecutive_absences_30d",
	"attendance_variability",
	"shift_consistency",
	"compliance_score",
	"total_violations_lifetime",
	"badge_count",
	"has_safety_training_badge",
	"has_ppe_certified_badge",
	"warnings_last_30d",
	"days_since_last_warning",
	"related_alerts_30d",
	"tenure_days",
	"experience_level",
	"assigned_shift",
	"zone_risk_level",
	"mine_compliance_rate",
}

// Fixed ordinal mappings for categorical features. Unseen values fall back to
// the default ordinal rather than failing inference.
var (
	experienceOrdinals = map[string]float64{"new": 0, "intermediate": 1, "experienced": 2}
	shiftOrdinals      = map[string]float64{"morning": 0, "afternoon": 1, "night": 2}
	zoneRiskOrdinals   = map[string]float64{"low": 0, "normal": 1, "high": 2, "critical": 3}
)

const (
	defaultExperienceOrdinal = 1
	defaultShiftOrdinal      = 0
	defaultZoneRiskOrdinal   = 1
)

func ordinal(m map[string]float64, value string, fallback float64) float64 {
	if v, ok := m[value]; ok {
		return v
	}
	return fallback
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Vectorize flattens a feature vector into the fixed numeric encoding, in
// FeatureNames order.
func Vectorize(fv *models.FeatureVector) []float64 {
	return []float64{
		float64(fv.ViolationsLast7d),
		float64(fv.ViolationsLast14d),
		float64(fv.ViolationsLast30d),
		fv.ViolationRate7d,
		fv.ViolationRate14d,
		fv.ViolationRate30d,
		float64(fv.HelmetViolations30d),
		float64(fv.VestViolations30d),
		float64(fv.GogglesViolations30d),
		float64(fv.GlovesViolations30d),
		float64(fv.MaskViolations30d),
		float64(fv.ShoesViolations30d),
		float64(fv.DaysSinceLastViolation),
		fv.ViolationTrend,
		float64(fv.EntriesLast7d),
		float64(fv.EntriesLast30d),
		fv.AttendanceRate30d,
		float64(fv.ConsecutiveAbsencesCurrent),
		float64(fv.MaxConsecutiveAbsences30d),
		fv.AttendanceVariability,
		fv.ShiftConsistency,
		fv.ComplianceScore,
		float64(fv.TotalViolationsLifetime),
		float64(fv.BadgeCount),
		boolFeature(fv.HasSafetyTrainingBadge),
		boolFeature(fv.HasPPECertifiedBadge),
		float64(fv.WarningsLast30d),
		float64(fv.DaysSinceLastWarning),
		float64(fv.RelatedAlerts30d),
		float64(fv.TenureDays),
		ordinal(experienceOrdinals, fv.ExperienceLevel, defaultExperienceOrdinal),
		ordinal(shiftOrdinals, fv.AssignedShift, defaultShiftOrdinal),
		ordinal(zoneRiskOrdinals, fv.ZoneRiskLevel, defaultZoneRiskOrdinal),
		fv.MineComplianceRate,
	}
}
