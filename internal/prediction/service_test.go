package prediction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/features"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/model"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/storagetest"
)

var testAsOf = time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	alerts []*models.AlertRecord
}

func (s *recordingSink) Notify(alert *models.AlertRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

type fakeDeduper struct {
	mu     sync.Mutex
	marked map[string]bool
	err    error
	clears int
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{marked: make(map[string]bool)}
}

func (d *fakeDeduper) MarkAlertSent(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.marked[key] {
		return false, nil
	}
	d.marked[key] = true
	return true, nil
}

func (d *fakeDeduper) ClearAlertMark(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.marked, key)
	d.clears++
	return nil
}

// failingScorer stands in for a corrupt trained model.
type failingScorer struct{}

func (failingScorer) Infer(fv *models.FeatureVector) (*models.ModelOutput, error) {
	return nil, model.ErrModelUnavailable
}

func (failingScorer) Version() string { return "broken" }

func addWorker(store *storagetest.Fake, id string, cleanDays int) {
	store.Workers[id] = &models.WorkerSnapshot{
		ID:              id,
		MineID:          "M1",
		ZoneID:          "Z1",
		AssignedShift:   "morning",
		ComplianceScore: 90,
		CreatedAt:       testAsOf.AddDate(0, 0, -300),
		Active:          true,
	}
	for k := cleanDays; k >= 1; k-- {
		store.Entries[id] = append(store.Entries[id], models.EventRecord{
			WorkerID:  id,
			EventType: "entry",
			Shift:     "morning",
			Timestamp: testAsOf.AddDate(0, 0, -k),
		})
	}
}

// riskyWorker has a violation and absence history bad enough to land in the
// critical band under the fallback scorer.
func addRiskyWorker(store *storagetest.Fake, id string) {
	store.Workers[id] = &models.WorkerSnapshot{
		ID:              id,
		MineID:          "M1",
		ZoneID:          "Z1",
		AssignedShift:   "morning",
		ComplianceScore: 30,
		CreatedAt:       testAsOf.AddDate(0, 0, -300),
		Active:          true,
	}
	// Entries only on 6 of the last 30 days, every one a violation.
	for k := 30; k >= 25; k-- {
		store.Entries[id] = append(store.Entries[id], models.EventRecord{
			WorkerID:   id,
			EventType:  "entry",
			Shift:      "morning",
			Violations: []string{"helmet"},
			Timestamp:  testAsOf.AddDate(0, 0, -k),
		})
	}
	store.Warnings[id] = []models.WarningRecord{
		{WorkerID: id, IssuedAt: testAsOf.AddDate(0, 0, -15)},
		{WorkerID: id, IssuedAt: testAsOf.AddDate(0, 0, -8)},
		{WorkerID: id, IssuedAt: testAsOf.AddDate(0, 0, -3)},
	}
}

func newTestService(store *storagetest.Fake, sink AlertSink, deduper Deduper) *Service {
	extractor := features.NewExtractor(store, nil)
	provider := model.NewProvider("")
	return NewService(store, extractor, provider, sink, deduper, Config{BatchWorkers: 4})
}

func TestPredictPersistsRecord(t *testing.T) {
	store := storagetest.NewFake()
	addWorker(store, "W1", 30)
	store.MineCompliance["M1"] = 85

	svc := newTestService(store, nil, nil)

	record, err := svc.Predict(context.Background(), "W1", testAsOf)
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "W1", record.WorkerID)
	assert.Equal(t, "M1", record.MineID)
	assert.Equal(t, "low", record.RiskCategory)
	assert.False(t, record.RequiresIntervention)
	assert.Equal(t, "rule-fallback-v1", record.ModelVersion)
	assert.Equal(t, testAsOf, record.CreatedAt)
	assert.Equal(t, testAsOf.Add(7*24*time.Hour), record.ExpiresAt)
	require.NotNil(t, record.Features)
	assert.Equal(t, 1.0, record.Features.AttendanceRate30d)

	assert.Equal(t, 1, store.PredictionCount())
	assert.Equal(t, 0, store.AlertCount(), "low risk emits no alert")
}

func TestPredictBrandNewWorkerIsBenign(t *testing.T) {
	store := storagetest.NewFake()
	store.Workers["W001"] = &models.WorkerSnapshot{
		ID:              "W001",
		MineID:          "M1",
		ZoneID:          "Z1",
		ComplianceScore: 100,
		CreatedAt:       testAsOf.AddDate(0, 0, -10),
		Active:          true,
	}

	svc := newTestService(store, nil, nil)

	record, err := svc.Predict(context.Background(), "W001", testAsOf)
	require.NoError(t, err)

	assert.Equal(t, "low", record.RiskCategory)
	assert.False(t, record.RequiresIntervention)
	assert.Empty(t, record.Factors)
	assert.Equal(t, 0, store.AlertCount())
}

func TestPredictUnknownWorker(t *testing.T) {
	store := storagetest.NewFake()
	svc := newTestService(store, nil, nil)

	_, err := svc.Predict(context.Background(), "ghost", testAsOf)
	require.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, store.PredictionCount())
}

func TestPredictRiskyWorkerEmitsAlert(t *testing.T) {
	store := storagetest.NewFake()
	addRiskyWorker(store, "W9")
	sink := &recordingSink{}

	svc := newTestService(store, sink, nil)

	record, err := svc.Predict(context.Background(), "W9", testAsOf)
	require.NoError(t, err)

	assert.True(t, record.RequiresIntervention)
	assert.GreaterOrEqual(t, record.OverallRiskScore, 60.0)
	assert.NotEmpty(t, record.Factors)
	assert.NotEmpty(t, record.Recommendations)

	require.Equal(t, 1, store.AlertCount())
	alert := store.Alerts[0]
	assert.Equal(t, AlertTypeRiskPrediction, alert.AlertType)
	assert.Equal(t, "W9", alert.WorkerID)
	assert.Equal(t, record.RiskCategory, alert.Severity)
	assert.Equal(t, record.OverallRiskScore, alert.Metadata["risk_score"])
	assert.Equal(t, true, alert.Metadata["requires_intervention"])

	assert.Equal(t, 1, sink.count(), "alert reaches the websocket sink")
}

func TestPredictSameDayAlertDeduplicated(t *testing.T) {
	store := storagetest.NewFake()
	addRiskyWorker(store, "W9")
	deduper := newFakeDeduper()

	svc := newTestService(store, nil, deduper)

	_, err := svc.Predict(context.Background(), "W9", testAsOf)
	require.NoError(t, err)
	_, err = svc.Predict(context.Background(), "W9", testAsOf.Add(4*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, store.PredictionCount(), "predictions are never deduplicated")
	assert.Equal(t, 1, store.AlertCount(), "one alert per worker per UTC day")
}

func TestPredictDedupFallsBackToStore(t *testing.T) {
	store := storagetest.NewFake()
	addRiskyWorker(store, "W9")
	deduper := newFakeDeduper()
	deduper.err = errors.New("redis down")

	svc := newTestService(store, nil, deduper)

	_, err := svc.Predict(context.Background(), "W9", testAsOf)
	require.NoError(t, err)
	_, err = svc.Predict(context.Background(), "W9", testAsOf.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, store.AlertCount(), "store existence check backstops a dead cache")
}

func TestPredictNextDayAlertsAgain(t *testing.T) {
	store := storagetest.NewFake()
	addRiskyWorker(store, "W9")
	deduper := newFakeDeduper()

	svc := newTestService(store, nil, deduper)

	_, err := svc.Predict(context.Background(), "W9", testAsOf)
	require.NoError(t, err)
	_, err = svc.Predict(context.Background(), "W9", testAsOf.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, 2, store.AlertCount())
}

func TestPredictReleasesDedupSlotOnInsertFailure(t *testing.T) {
	store := storagetest.NewFake()
	addRiskyWorker(store, "W9")
	store.Errs["InsertAlert"] = errors.New("disk full")
	deduper := newFakeDeduper()

	svc := newTestService(store, nil, deduper)

	_, err := svc.Predict(context.Background(), "W9", testAsOf)
	require.NoError(t, err, "alert persistence failure does not fail the prediction")

	assert.Equal(t, 0, store.AlertCount())
	assert.Equal(t, 1, deduper.clears, "slot released so a retry can alert")
}

func TestPredictAbsorbsModelFailure(t *testing.T) {
	store := storagetest.NewFake()
	addWorker(store, "W1", 30)

	extractor := features.NewExtractor(store, nil)
	provider := model.NewProvider("")
	provider.Swap(failingScorer{})

	svc := NewService(store, extractor, provider, nil, nil, Config{})

	record, err := svc.Predict(context.Background(), "W1", testAsOf)
	require.NoError(t, err)
	assert.Equal(t, "rule-fallback-v1", record.ModelVersion)
}

func TestPredictBatchFaultIsolation(t *testing.T) {
	store := storagetest.NewFake()
	addWorker(store, "W1", 30)
	addWorker(store, "W2", 30)

	svc := newTestService(store, nil, nil)

	results := svc.PredictBatch(context.Background(), []string{"W1", "missing", "W2"})

	require.Len(t, results, 3)
	assert.Equal(t, "W1", results[0].WorkerID)
	assert.NoError(t, results[0].Err)
	assert.NotNil(t, results[0].Record)

	assert.Equal(t, "missing", results[1].WorkerID)
	assert.ErrorIs(t, results[1].Err, storage.ErrNotFound)
	assert.Nil(t, results[1].Record)

	assert.NoError(t, results[2].Err)
	assert.Equal(t, 2, store.PredictionCount())
}

func TestPredictBatchHonorsCancellation(t *testing.T) {
	store := storagetest.NewFake()
	for _, id := range []string{"W1", "W2", "W3", "W4"} {
		addWorker(store, id, 5)
	}

	svc := newTestService(store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := svc.PredictBatch(ctx, []string{"W1", "W2", "W3", "W4"})
	require.Len(t, results, 4)
	for _, res := range results {
		assert.NotEmpty(t, res.WorkerID)
	}
}

func TestLatestPrediction(t *testing.T) {
	store := storagetest.NewFake()
	addWorker(store, "W1", 30)
	svc := newTestService(store, nil, nil)

	_, err := svc.LatestPrediction(context.Background(), "W1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	now := time.Now().UTC()
	record, err := svc.Predict(context.Background(), "W1", now)
	require.NoError(t, err)

	latest, err := svc.LatestPrediction(context.Background(), "W1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, latest.ID)
}
