package prediction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/features"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/metrics"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/model"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/risk"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/utils"
)

const AlertTypeRiskPrediction = "worker_risk_prediction"

// AlertSink receives emitted alerts for delivery beyond the store (websocket
// stream, notification fan-out). Optional.
type AlertSink interface {
	Notify(alert *models.AlertRecord)
}

// Deduper claims the one-alert-per-worker-per-UTC-day slot. Optional; when it
// is absent or failing, suppression falls back to a store existence check so
// duplicate protection never depends on cache availability.
type Deduper interface {
	MarkAlertSent(ctx context.Context, dedupKey string) (bool, error)
	ClearAlertMark(ctx context.Context, dedupKey string) error
}

type Config struct {
	BatchWorkers int
	Expiry       time.Duration
}

type Service struct {
	store        storage.Gateway
	extractor    *features.Extractor
	provider     *model.Provider
	sink         AlertSink
	deduper      Deduper
	batchWorkers int
	expiry       time.Duration
}

type BatchResult struct {
	WorkerID string
	Record   *models.PredictionRecord
	Err      error
}

func NewService(store storage.Gateway, extractor *features.Extractor, provider *model.Provider, sink AlertSink, deduper Deduper, cfg Config) *Service {
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = 8
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 7 * 24 * time.Hour
	}

	return &Service{
		store:        store,
		extractor:    extractor,
		provider:     provider,
		sink:         sink,
		deduper:      deduper,
		batchWorkers: cfg.BatchWorkers,
		expiry:       cfg.Expiry,
	}
}

// Predict runs the full pipeline for one worker: features, scoring, composite
// score, explanation, persistence, conditional alert. A zero asOf means now.
// NotFound propagates; model unavailability is absorbed via the fallback.
func (s *Service) Predict(ctx context.Context, workerID string, asOf time.Time) (*models.PredictionRecord, error) {
	start := time.Now()
	if asOf.IsZero() {
		asOf = time.Now()
	}
	asOf = asOf.UTC()

	worker, err := s.store.GetWorker(ctx, workerID)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	fv, err := s.extractor.Extract(ctx, workerID, asOf)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	scorer := s.provider.Current()
	out, err := scorer.Infer(fv)
	if err != nil {
		// Any trained-model failure drops to the rule-based fallback
		// rather than failing the call.
		logger.Warn("Trained model inference failed, using fallback",
			zap.String("worker_id", workerID),
			zap.Error(err),
		)
		metrics.FallbackInferences.Inc()
		scorer = s.provider.Fallback()
		out, err = scorer.Infer(fv)
		if err != nil {
			metrics.PredictionsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("fallback inference failed for worker %s: %w", workerID, err)
		}
	}

	comp := risk.Compose(fv, out)
	factors := risk.Explain(comp.OverallRiskScore, fv, out)
	recommendations := risk.Recommend(comp.RiskCategory, factors, out)

	record := &models.PredictionRecord{
		ID:                   uuid.New().String(),
		WorkerID:             workerID,
		MineID:               worker.MineID,
		ZoneID:               worker.ZoneID,
		OverallRiskScore:     comp.OverallRiskScore,
		RiskCategory:         comp.RiskCategory,
		ViolationScore:       comp.ViolationScore,
		AttendanceScore:      comp.AttendanceScore,
		ComplianceTrendScore: comp.ComplianceTrendScore,
		BehavioralScore:      comp.BehavioralScore,
		PredictedViolations:  out.PredictedViolationCount,
		PredictedAbsences:    out.PredictedAbsences,
		RequiresIntervention: comp.RequiresIntervention,
		Factors:              factors,
		Recommendations:      recommendations,
		Features:             fv,
		ModelVersion:         scorer.Version(),
		Confidence:           out.Confidence,
		CreatedAt:            asOf,
		ExpiresAt:            asOf.Add(s.expiry),
	}

	if err := s.store.InsertPrediction(ctx, record); err != nil {
		metrics.PredictionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if comp.RiskCategory == "critical" || comp.RequiresIntervention {
		s.emitAlert(ctx, worker, record, fv)
	}

	metrics.PredictionsTotal.WithLabelValues("ok").Inc()
	metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	metrics.RiskScore.Observe(comp.OverallRiskScore)
	metrics.RiskCategoryTotal.WithLabelValues(comp.RiskCategory).Inc()

	logger.Info("Prediction completed",
		zap.String("worker_id", workerID),
		zap.Float64("risk_score", comp.OverallRiskScore),
		zap.String("risk_category", comp.RiskCategory),
		zap.Bool("requires_intervention", comp.RequiresIntervention),
		zap.String("model_version", record.ModelVersion),
	)

	return record, nil
}

// emitAlert raises at most one risk alert per worker per UTC calendar day.
// Alert delivery problems are logged, never propagated into the prediction.
func (s *Service) emitAlert(ctx context.Context, worker *models.WorkerSnapshot, record *models.PredictionRecord, fv *models.FeatureVector) {
	day := record.CreatedAt
	dedupKey := utils.AlertDedupKey(worker.ID, day)

	claimed := false
	if s.deduper != nil {
		won, err := s.deduper.MarkAlertSent(ctx, dedupKey)
		if err != nil {
			logger.Warn("Alert dedup cache unavailable, checking store",
				zap.String("worker_id", worker.ID),
				zap.Error(err),
			)
		} else if !won {
			metrics.AlertsSuppressed.Inc()
			return
		} else {
			claimed = true
		}
	}

	if !claimed {
		exists, err := s.store.HasAlertOnDay(ctx, worker.ID, AlertTypeRiskPrediction, day)
		if err != nil {
			logger.Error("Same-day alert check failed, skipping alert",
				zap.String("worker_id", worker.ID),
				zap.Error(err),
			)
			return
		}
		if exists {
			metrics.AlertsSuppressed.Inc()
			return
		}
	}

	alert := &models.AlertRecord{
		ID:        uuid.New().String(),
		AlertType: AlertTypeRiskPrediction,
		Severity:  record.RiskCategory,
		Message: fmt.Sprintf("Worker %s risk score %.1f (%s); intervention required: %t",
			worker.ID, record.OverallRiskScore, record.RiskCategory, record.RequiresIntervention),
		WorkerID: worker.ID,
		MineID:   worker.MineID,
		ZoneID:   worker.ZoneID,
		Metadata: map[string]interface{}{
			"risk_score":            record.OverallRiskScore,
			"risk_category":         record.RiskCategory,
			"predicted_violations":  record.PredictedViolations,
			"attendance_rate":       fv.AttendanceRate30d,
			"requires_intervention": record.RequiresIntervention,
		},
		CreatedAt: day,
	}

	if err := s.store.InsertAlert(ctx, alert); err != nil {
		logger.Error("Failed to persist alert",
			zap.String("worker_id", worker.ID),
			zap.Error(err),
		)
		if claimed && s.deduper != nil {
			if clearErr := s.deduper.ClearAlertMark(ctx, dedupKey); clearErr != nil {
				logger.Warn("Failed to release alert dedup slot", zap.Error(clearErr))
			}
		}
		return
	}

	metrics.AlertsEmitted.Inc()

	if s.sink != nil {
		s.sink.Notify(alert)
	}
}

// PredictBatch runs independent per-worker pipelines over a bounded pool.
// One worker's failure is recorded in its slot and never aborts the batch.
func (s *Service) PredictBatch(ctx context.Context, workerIDs []string) []BatchResult {
	results := make([]BatchResult, len(workerIDs))
	jobs := make(chan int)

	workers := s.batchWorkers
	if workers > len(workerIDs) {
		workers = len(workerIDs)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				workerID := workerIDs[idx]
				record, err := s.Predict(ctx, workerID, time.Time{})
				if err != nil {
					logger.Warn("Batch prediction failed for worker",
						zap.String("worker_id", workerID),
						zap.Error(err),
					)
					metrics.BatchFailures.Inc()
				}
				results[idx] = BatchResult{WorkerID: workerID, Record: record, Err: err}
			}
		}()
	}

	for idx := range workerIDs {
		select {
		case <-ctx.Done():
			// Mark everything not yet dispatched as cancelled.
			for rest := idx; rest < len(workerIDs); rest++ {
				if results[rest].WorkerID == "" {
					results[rest] = BatchResult{WorkerID: workerIDs[rest], Err: ctx.Err()}
				}
			}
			close(jobs)
			wg.Wait()
			return results
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// LatestPrediction returns the newest non-expired persisted record.
func (s *Service) LatestPrediction(ctx context.Context, workerID string) (*models.PredictionRecord, error) {
	record, err := s.store.LatestPrediction(ctx, workerID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load latest prediction: %w", err)
	}
	return record, nil
}
