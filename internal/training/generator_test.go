package training

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/features"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/storagetest"
)

func TestLabelCategory(t *testing.T) {
	tests := []struct {
		violations int
		rate       float64
		category   string
	}{
		{0, 1.0, "low"},
		{1, 0.9, "low"},
		{2, 1.0, "medium"},
		{0, 0.84, "medium"},
		{5, 1.0, "high"},
		{0, 0.74, "high"},
		{10, 1.0, "critical"},
		{0, 0.59, "critical"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.category, labelCategory(tt.violations, tt.rate),
			"violations=%d rate=%v", tt.violations, tt.rate)
	}
}

func TestLabelOutcomes(t *testing.T) {
	asOf := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	var entries []models.EventRecord
	// Attended days 0..9 and 15..29; absent 10..14 (run of 5).
	for off := 0; off < 30; off++ {
		if off >= 10 && off < 15 {
			continue
		}
		var violations []string
		switch off {
		case 3:
			violations = []string{"helmet", "vest"}
		case 20:
			violations = []string{"mask"}
		}
		entries = append(entries, models.EventRecord{
			WorkerID:   "W1",
			EventType:  "entry",
			Violations: violations,
			Timestamp:  asOf.AddDate(0, 0, off).Add(8 * time.Hour),
		})
	}

	violations, rate, maxRun := labelOutcomes(entries, asOf)

	assert.Equal(t, 2, violations, "flagged entries count once each, not per missing item")
	assert.InDelta(t, 25.0/30.0, rate, 1e-9)
	assert.Equal(t, 5, maxRun)
}

func TestLabelOutcomesIgnoresNonEntryEvents(t *testing.T) {
	asOf := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	entries := []models.EventRecord{
		{EventType: "exit", Violations: []string{"helmet"}, Timestamp: asOf.Add(8 * time.Hour)},
	}

	violations, rate, maxRun := labelOutcomes(entries, asOf)

	assert.Equal(t, 0, violations, "flagged exits are not violations")
	assert.Equal(t, 0.0, rate, "only entry events mark attendance")
	assert.Equal(t, 30, maxRun)
}

func TestLabelViolationsMatchExtractorCounts(t *testing.T) {
	store := storagetest.NewFake()
	windowStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.AddDate(0, 0, 30)

	store.Workers["W1"] = &models.WorkerSnapshot{
		ID:              "W1",
		Active:          true,
		ComplianceScore: 100,
		CreatedAt:       windowStart.AddDate(0, 0, -100),
	}
	store.Entries["W1"] = []models.EventRecord{
		{
			WorkerID:   "W1",
			EventType:  "entry",
			Violations: []string{"helmet", "vest", "gloves"},
			Timestamp:  windowStart.AddDate(0, 0, 5).Add(8 * time.Hour),
		},
		{
			WorkerID:   "W1",
			EventType:  "exit",
			Violations: []string{"mask"},
			Timestamp:  windowStart.AddDate(0, 0, 5).Add(16 * time.Hour),
		},
	}

	violations, _, _ := labelOutcomes(store.Entries["W1"], windowStart)

	fv, err := features.NewExtractor(store, nil).Extract(context.Background(), "W1", windowEnd)
	require.NoError(t, err)

	assert.Equal(t, 1, violations)
	assert.Equal(t, fv.ViolationsLast30d, violations,
		"the label window and the feature window count the same events")
}

func TestGenerateSnapshotWindows(t *testing.T) {
	store := storagetest.NewFake()
	now := time.Now().UTC()

	store.Workers["W1"] = &models.WorkerSnapshot{
		ID:        "W1",
		Active:    true,
		CreatedAt: now.AddDate(0, 0, -200),
	}

	// Daily clean entries over the whole period keep extraction and labels
	// deterministic.
	for off := 1; off <= 200; off++ {
		store.Entries["W1"] = append([]models.EventRecord{{
			WorkerID:  "W1",
			EventType: "entry",
			Timestamp: now.AddDate(0, 0, -off),
		}}, store.Entries["W1"]...)
	}

	generator := NewGenerator(store, features.NewExtractor(store, nil))
	examples, err := generator.Generate(context.Background(), 120)
	require.NoError(t, err)

	// Snapshots run weekly from now-90d through now-30d inclusive: 9 of them.
	assert.Len(t, examples, 9)
	for _, ex := range examples {
		assert.Equal(t, "W1", ex.Features.WorkerID)
		assert.Equal(t, 0, ex.LabelViolationsNext30d)
		assert.False(t, ex.LabelHasAttendanceIssue)
		assert.Equal(t, "low", ex.LabelRiskCategory)
	}
}

func TestGenerateSkipsYoungWorkers(t *testing.T) {
	store := storagetest.NewFake()
	now := time.Now().UTC()

	store.Workers["W1"] = &models.WorkerSnapshot{
		ID:        "W1",
		Active:    true,
		CreatedAt: now.AddDate(0, 0, -20),
	}

	generator := NewGenerator(store, features.NewExtractor(store, nil))
	examples, err := generator.Generate(context.Background(), 120)
	require.NoError(t, err)

	assert.Empty(t, examples, "a 20-day-old worker has no labelable snapshot yet")
}

func TestGenerateSkipsInactiveWorkers(t *testing.T) {
	store := storagetest.NewFake()
	now := time.Now().UTC()

	store.Workers["W1"] = &models.WorkerSnapshot{
		ID:        "W1",
		Active:    false,
		CreatedAt: now.AddDate(0, 0, -400),
	}

	generator := NewGenerator(store, features.NewExtractor(store, nil))
	examples, err := generator.Generate(context.Background(), 120)
	require.NoError(t, err)

	assert.Empty(t, examples)
}

func TestTrainRejectsTinyDatasets(t *testing.T) {
	trainer := NewTrainer(nil, "test-v1")

	_, err := trainer.Train([]*models.TrainingExample{
		{Features: &models.FeatureVector{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "training examples")
}

func TestFitScaler(t *testing.T) {
	rows := [][]float64{
		make([]float64, 34),
		make([]float64, 34),
		make([]float64, 34),
	}
	rows[0][0], rows[1][0], rows[2][0] = 1, 2, 3

	scaler := fitScaler(rows)

	require.Len(t, scaler.Mean, 34)
	assert.InDelta(t, 2.0, scaler.Mean[0], 1e-9)
	assert.InDelta(t, 1.0, scaler.Std[0], 1e-9, "sample standard deviation")
	assert.Equal(t, 0.0, scaler.Std[1], "constant columns keep std 0; Transform guards the division")
}

func TestFitCentroids(t *testing.T) {
	scaled := [][]float64{
		{0, 0},
		{2, 2},
		{10, 10},
	}
	examples := []*models.TrainingExample{
		{LabelRiskCategory: "low"},
		{LabelRiskCategory: "low"},
		{LabelRiskCategory: "critical"},
	}

	centroids := fitCentroids(scaled, examples)

	require.Len(t, centroids, 2)
	assert.Equal(t, []float64{1, 1}, centroids["low"])
	assert.Equal(t, []float64{10, 10}, centroids["critical"])
}
