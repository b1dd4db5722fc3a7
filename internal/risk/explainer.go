package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
)

const maxFactors = 5

// Explain derives the ranked risk-factor list from a fixed condition table.
// Within each category only the highest matching tier fires. The result is
// sorted by descending impact and truncated to five entries; a synthetic
// general_risk factor stands in when nothing fired but the score is high.
func Explain(score float64, fv *models.FeatureVector, out *models.ModelOutput) []models.RiskFactor {
	var factors []models.RiskFactor
	add := func(id string, impact float64, description string) {
		factors = append(factors, models.RiskFactor{FactorID: id, Impact: impact, Description: description})
	}

	switch {
	case fv.ViolationsLast30d >= 10:
		add("high_violation_count", 0.9,
			fmt.Sprintf("%d PPE violations in the last 30 days", fv.ViolationsLast30d))
	case fv.ViolationsLast30d >= 5:
		add("elevated_violation_count", 0.6,
			fmt.Sprintf("%d PPE violations in the last 30 days", fv.ViolationsLast30d))
	case fv.ViolationsLast30d >= 2:
		add("recent_violations", 0.3,
			fmt.Sprintf("%d PPE violations in the last 30 days", fv.ViolationsLast30d))
	}

	switch {
	case fv.AttendanceRate30d < 0.6:
		add("poor_attendance", 0.9,
			fmt.Sprintf("attendance rate %.0f%% over the last 30 days", fv.AttendanceRate30d*100))
	case fv.AttendanceRate30d < 0.75:
		add("low_attendance", 0.7,
			fmt.Sprintf("attendance rate %.0f%% over the last 30 days", fv.AttendanceRate30d*100))
	}

	switch {
	case fv.ConsecutiveAbsencesCurrent >= 5:
		add("extended_absence", 0.95,
			fmt.Sprintf("absent for %d consecutive days", fv.ConsecutiveAbsencesCurrent))
	case fv.ConsecutiveAbsencesCurrent >= 3:
		add("consecutive_absences", 0.7,
			fmt.Sprintf("absent for %d consecutive days", fv.ConsecutiveAbsencesCurrent))
	}

	switch {
	case fv.ComplianceScore < 60:
		add("low_compliance_score", 0.85,
			fmt.Sprintf("compliance score %.0f is below acceptable levels", fv.ComplianceScore))
	case fv.ComplianceScore < 70:
		add("declining_compliance", 0.6,
			fmt.Sprintf("compliance score %.0f is trending low", fv.ComplianceScore))
	}

	switch {
	case fv.WarningsLast30d >= 3:
		add("multiple_warnings", 0.7,
			fmt.Sprintf("%d disciplinary warnings in the last 30 days", fv.WarningsLast30d))
	case fv.WarningsLast30d >= 1:
		add("recent_warning", 0.4,
			fmt.Sprintf("%d disciplinary warning(s) in the last 30 days", fv.WarningsLast30d))
	}

	if len(out.HighRiskItems) > 0 {
		add("ppe_risk_items", 0.5,
			fmt.Sprintf("repeated violations for: %s", strings.Join(out.HighRiskItems, ", ")))
	}

	if fv.TenureDays < 30 && fv.ViolationsLast30d > 0 {
		add("new_worker_violations", 0.4,
			"violations during the first 30 days on the job")
	}

	if fv.ShiftConsistency < 0.7 {
		add("shift_inconsistency", 0.3,
			fmt.Sprintf("only %.0f%% of entries match the assigned shift", fv.ShiftConsistency*100))
	}

	if len(factors) == 0 && score > 60 {
		add("general_risk", 0.5, "elevated composite risk without a single dominant factor")
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Impact > factors[j].Impact
	})

	if len(factors) > maxFactors {
		factors = factors[:maxFactors]
	}

	return factors
}

var recommendationTemplates = map[string]string{
	"high_violation_count":     "Schedule mandatory PPE refresher training before the next shift",
	"elevated_violation_count": "Enroll in PPE refresher training within the week",
	"recent_violations":        "Review recent PPE violations with the shift supervisor",
	"poor_attendance":          "Hold an attendance counseling session with HR present",
	"low_attendance":           "Discuss attendance expectations in the next one-on-one",
	"extended_absence":         "Perform a welfare check and evaluate temporary reassignment",
	"consecutive_absences":     "Contact the worker to confirm fitness to return",
	"low_compliance_score":     "Restrict to supervised-access zones until compliance recovers",
	"declining_compliance":     "Pair supervised zone access with a compliance review",
	"multiple_warnings":        "Escalate to a formal disciplinary review",
	"recent_warning":           "Document the warning follow-up with the shift supervisor",
	"ppe_risk_items":           "Issue targeted equipment training for the flagged PPE items",
	"new_worker_violations":    "Assign an experienced mentor for the onboarding period",
	"shift_inconsistency":      "Review shift scheduling and confirm the assigned roster",
	"general_risk":             "Increase supervision frequency and reassess within one week",
}

var criticalEscalation = []string{
	"Escalate immediately to the mine safety officer",
	"Suspend unsupervised zone access pending review",
	"Schedule an intervention meeting within 24 hours",
}

// Recommend maps ranked factors to intervention recommendations, at most five.
// A critical worker with no matched factor still gets the fixed escalation set.
func Recommend(category string, factors []models.RiskFactor, out *models.ModelOutput) []string {
	if category == "critical" && len(factors) == 0 {
		return append([]string(nil), criticalEscalation...)
	}

	var recs []string
	seen := make(map[string]bool)
	add := func(template string) {
		if template == "" || seen[template] || len(recs) >= maxFactors {
			return
		}
		seen[template] = true
		recs = append(recs, template)
	}

	for _, f := range factors {
		add(recommendationTemplates[f.FactorID])
	}

	if out.AttendancePattern == "declining" {
		add("Monitor the declining attendance pattern over the next two weeks")
	}

	return recs
}
