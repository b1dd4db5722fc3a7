package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
)

func TestComposeWeightedScore(t *testing.T) {
	fv := &models.FeatureVector{
		ComplianceScore: 70, // trend score 30
		WarningsLast30d: 2,  // behavioral score 40
	}
	out := &models.ModelOutput{
		ViolationRisk:  0.5, // violation score 50
		AttendanceRisk: 0.2, // attendance score 20
	}

	comp := Compose(fv, out)

	// 50*0.40 + 20*0.30 + 30*0.20 + 40*0.10 = 36
	assert.InDelta(t, 36.0, comp.OverallRiskScore, 1e-9)
	assert.Equal(t, 50.0, comp.ViolationScore)
	assert.Equal(t, 20.0, comp.AttendanceScore)
	assert.Equal(t, 30.0, comp.ComplianceTrendScore)
	assert.Equal(t, 40.0, comp.BehavioralScore)
	assert.Equal(t, "medium", comp.RiskCategory)
	assert.False(t, comp.RequiresIntervention)
}

func TestComposeBehavioralScoreCapped(t *testing.T) {
	fv := &models.FeatureVector{WarningsLast30d: 9}
	comp := Compose(fv, &models.ModelOutput{})

	assert.Equal(t, 100.0, comp.BehavioralScore)
}

func TestComposeComplianceTrendFloor(t *testing.T) {
	fv := &models.FeatureVector{ComplianceScore: 120}
	comp := Compose(fv, &models.ModelOutput{})

	assert.Equal(t, 0.0, comp.ComplianceTrendScore, "compliance above 100 must not go negative")
}

func TestComposeMaxScore(t *testing.T) {
	fv := &models.FeatureVector{WarningsLast30d: 10, ComplianceScore: 0}
	out := &models.ModelOutput{ViolationRisk: 1, AttendanceRisk: 1}

	comp := Compose(fv, out)

	assert.Equal(t, 100.0, comp.OverallRiskScore)
	assert.Equal(t, "critical", comp.RiskCategory)
	assert.True(t, comp.RequiresIntervention)
}

func TestCategorizeBandBoundaries(t *testing.T) {
	tests := []struct {
		score    float64
		category string
	}{
		{0, "low"},
		{29.999, "low"},
		{30, "medium"},
		{59.999, "medium"},
		{60, "high"},
		{84.999, "high"},
		{85, "critical"},
		{100, "critical"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.category, Categorize(tt.score), "score %v", tt.score)
	}
}

func TestComposeInterventionTriggers(t *testing.T) {
	base := func() (*models.FeatureVector, *models.ModelOutput) {
		return &models.FeatureVector{ComplianceScore: 100}, &models.ModelOutput{}
	}

	t.Run("consecutive absences alone", func(t *testing.T) {
		fv, out := base()
		fv.ConsecutiveAbsencesCurrent = 3
		comp := Compose(fv, out)
		assert.Equal(t, "low", comp.RiskCategory)
		assert.True(t, comp.RequiresIntervention)
	})

	t.Run("violation burst alone", func(t *testing.T) {
		fv, out := base()
		fv.ViolationsLast7d = 5
		comp := Compose(fv, out)
		assert.Equal(t, "low", comp.RiskCategory)
		assert.True(t, comp.RequiresIntervention)
	})

	t.Run("critical category alone", func(t *testing.T) {
		fv, out := base()
		fv.ComplianceScore = 0
		out.ViolationRisk = 1
		out.AttendanceRisk = 1
		fv.WarningsLast30d = 10
		comp := Compose(fv, out)
		assert.Equal(t, "critical", comp.RiskCategory)
		assert.True(t, comp.RequiresIntervention)
	})

	t.Run("below all thresholds", func(t *testing.T) {
		fv, out := base()
		fv.ConsecutiveAbsencesCurrent = 2
		fv.ViolationsLast7d = 4
		comp := Compose(fv, out)
		assert.False(t, comp.RequiresIntervention)
	})
}
