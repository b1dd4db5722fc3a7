package training

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/features"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/metrics"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
)

const (
	// labelWindowDays is the forward window each snapshot is labeled from.
	labelWindowDays = 30

	// snapshotStepDays spaces the historical snapshots per worker.
	snapshotStepDays = 7
)

// Generator replays history into (feature vector, future outcome) pairs.
// Snapshots are taken weekly per worker, each labeled from the 30 days that
// followed it, so no snapshot can see its own label window.
type Generator struct {
	store     storage.Gateway
	extractor *features.Extractor
}

func NewGenerator(store storage.Gateway, extractor *features.Extractor) *Generator {
	return &Generator{store: store, extractor: extractor}
}

// Generate builds the dataset over the trailing lookbackDays of history.
// Individual snapshot failures are logged and skipped; the run only fails
// when the worker roster itself cannot be read.
func (g *Generator) Generate(ctx context.Context, lookbackDays int) ([]*models.TrainingExample, error) {
	now := time.Now().UTC()
	earliest := now.AddDate(0, 0, -lookbackDays+labelWindowDays)
	latest := now.AddDate(0, 0, -labelWindowDays)

	workers, err := g.store.ListActiveWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers for training: %w", err)
	}

	var examples []*models.TrainingExample
	skipped := 0

	for _, worker := range workers {
		// A snapshot needs at least 30 days of history behind it.
		start := earliest
		if minStart := worker.CreatedAt.AddDate(0, 0, labelWindowDays); minStart.After(start) {
			start = minStart
		}

		for asOf := start; !asOf.After(latest); asOf = asOf.AddDate(0, 0, snapshotStepDays) {
			example, err := g.buildExample(ctx, worker.ID, asOf)
			if err != nil {
				logger.Warn("Skipping training snapshot",
					zap.String("worker_id", worker.ID),
					zap.Time("as_of", asOf),
					zap.Error(err),
				)
				skipped++
				continue
			}
			examples = append(examples, example)
		}
	}

	metrics.TrainingExamplesGenerated.Add(float64(len(examples)))
	logger.Info("Training dataset generated",
		zap.Int("examples", len(examples)),
		zap.Int("skipped", skipped),
		zap.Int("workers", len(workers)),
	)

	return examples, nil
}

func (g *Generator) buildExample(ctx context.Context, workerID string, asOf time.Time) (*models.TrainingExample, error) {
	fv, err := g.extractor.Extract(ctx, workerID, asOf)
	if err != nil {
		return nil, err
	}

	entries, err := g.store.ListEntries(ctx, workerID, asOf, asOf.AddDate(0, 0, labelWindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to load label window: %w", err)
	}

	violations, attendanceRate, maxConsecutive := labelOutcomes(entries, asOf)

	return &models.TrainingExample{
		Features:                    fv,
		LabelViolationsNext30d:      violations,
		LabelAttendanceRateNext30d:  attendanceRate,
		LabelHasAttendanceIssue:     attendanceRate < 0.75 || maxConsecutive >= 3,
		LabelRiskCategory:           labelCategory(violations, attendanceRate),
		LabelMaxConsecutiveAbsences: maxConsecutive,
	}, nil
}

// labelOutcomes summarizes the 30 days after asOf: violation-flagged entry
// events, attendance rate over attended days, and the longest absence run.
// A violation is a flagged entry, counted once regardless of how many PPE
// items were missing, matching how the extractor counts them.
func labelOutcomes(entries []models.EventRecord, asOf time.Time) (int, float64, int) {
	attended := make(map[string]bool)
	violations := 0

	for _, ev := range entries {
		if ev.EventType != "entry" {
			continue
		}
		attended[ev.Timestamp.UTC().Format("2006-01-02")] = true
		if len(ev.Violations) > 0 {
			violations++
		}
	}

	attendanceRate := float64(len(attended)) / float64(labelWindowDays)

	maxRun, run := 0, 0
	for off := 0; off < labelWindowDays; off++ {
		day := asOf.AddDate(0, 0, off).UTC().Format("2006-01-02")
		if attended[day] {
			run = 0
			continue
		}
		run++
		if run > maxRun {
			maxRun = run
		}
	}

	return violations, attendanceRate, maxRun
}

func labelCategory(violations int, attendanceRate float64) string {
	switch {
	case violations >= 10 || attendanceRate < 0.6:
		return "critical"
	case violations >= 5 || attendanceRate < 0.75:
		return "high"
	case violations >= 2 || attendanceRate < 0.85:
		return "medium"
	default:
		return "low"
	}
}
