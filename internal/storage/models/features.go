package models

// FeatureVector is the fixed-schema summary of a worker's recent history.
// Every field is always populated; absent source data produces the documented
// defaults (zero counts, 999 day-since sentinels, "normal" zone risk, 80.0
// mine compliance). The json names form the persisted snapshot contract.
type FeatureVector struct {
	WorkerID string `json:"worker_id"`

	// Violation history
	ViolationsLast7d       int     `json:"violations_last_7d"`
	ViolationsLast14d      int     `json:"violations_last_14d"`
	ViolationsLast30d      int     `json:"violations_last_30d"`
	ViolationRate7d        float64 `json:"violation_rate_7d"`
	ViolationRate14d       float64 `json:"violation_rate_14d"`
	ViolationRate30d       float64 `json:"violation_rate_30d"`
	HelmetViolations30d    int     `json:"helmet_violations_30d"`
	VestViolations30d      int     `json:"vest_violations_30d"`
	GogglesViolations30d   int     `json:"goggles_violations_30d"`
	GlovesViolations30d    int     `json:"gloves_violations_30d"`
	MaskViolations30d      int     `json:"mask_violations_30d"`
	ShoesViolations30d     int     `json:"shoes_violations_30d"`
	DaysSinceLastViolation int     `json:"days_since_last_violation"`
	ViolationTrend         float64 `json:"violation_trend"`

	// Attendance pattern
	EntriesLast7d              int     `json:"entries_last_7d"`
	EntriesLast30d             int     `json:"entries_last_30d"`
	AttendanceRate30d          float64 `json:"attendance_rate_30d"`
	ConsecutiveAbsencesCurrent int     `json:"consecutive_absences_current"`
	MaxConsecutiveAbsences30d  int     `json:"max_consecutive_absences_30d"`
	AttendanceVariability      float64 `json:"attendance_variability"`
	ShiftConsistency           float64 `json:"shift_consistency"`

	// Compliance
	ComplianceScore         float64 `json:"compliance_score"`
	TotalViolationsLifetime int     `json:"total_violations_lifetime"`
	BadgeCount              int     `json:"badge_count"`
	HasSafetyTrainingBadge  bool    `json:"has_safety_training_badge"`
	HasPPECertifiedBadge    bool    `json:"has_ppe_certified_badge"`

	// Behavioral
	WarningsLast30d      int `json:"warnings_last_30d"`
	DaysSinceLastWarning int `json:"days_since_last_warning"`
	RelatedAlerts30d     int `json:"related_alerts_30d"`

	// Temporal
	TenureDays      int    `json:"tenure_days"`
	ExperienceLevel string `json:"experience_level"`
	AssignedShift   string `json:"assigned_shift"`

	// Contextual
	ZoneRiskLevel      string  `json:"zone_risk_level"`
	MineComplianceRate float64 `json:"mine_compliance_rate"`
}

// PPEItems are the tracked equipment categories, in tally order.
var PPEItems = []string{"helmet", "vest", "goggles", "gloves", "mask", "shoes"}

// ItemViolations30d returns the 30-day violation tally for one PPE item.
func (f *FeatureVector) ItemViolations30d(item string) int {
	switch item {
	case "helmet":
		return f.HelmetViolations30d
	case "vest":
		return f.VestViolations30d
	case "goggles":
		return f.GogglesViolations30d
	case "gloves":
		return f.GlovesViolations30d
	case "mask":
		return f.MaskViolations30d
	case "shoes":
		return f.ShoesViolations30d
	}
	return 0
}
