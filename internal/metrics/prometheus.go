package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ppe_risk_prediction_duration_seconds",
			Help:    "End-to-end single prediction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppe_risk_predictions_total",
			Help: "Total predictions by outcome",
		},
		[]string{"status"},
	)

	RiskScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ppe_risk_score",
			Help:    "Distribution of overall risk scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 100},
		},
	)

	RiskCategoryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppe_risk_category_total",
			Help: "Predictions per risk category",
		},
		[]string{"category"},
	)

	FallbackInferences = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppe_risk_fallback_inferences_total",
			Help: "Predictions scored by the rule-based fallback",
		},
	)

	AlertsEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppe_risk_alerts_emitted_total",
			Help: "Risk alerts persisted and dispatched",
		},
	)

	AlertsSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppe_risk_alerts_suppressed_total",
			Help: "Alerts skipped by same-day deduplication",
		},
	)

	BatchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppe_risk_batch_failures_total",
			Help: "Per-worker failures inside batch predictions",
		},
	)

	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ppe_risk_batch_size",
			Help:    "Number of workers per batch request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	TrainingExamplesGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppe_risk_training_examples_generated_total",
			Help: "Training examples produced by the dataset generator",
		},
	)

	TrainingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppe_risk_training_runs_total",
			Help: "Model training runs by outcome",
		},
		[]string{"status"},
	)

	ModelReloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ppe_risk_model_reloads_total",
			Help: "Successful model artifact reloads",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppe_risk_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppe_risk_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(PredictionDuration)
	prometheus.MustRegister(PredictionsTotal)
	prometheus.MustRegister(RiskScore)
	prometheus.MustRegister(RiskCategoryTotal)
	prometheus.MustRegister(FallbackInferences)
	prometheus.MustRegister(AlertsEmitted)
	prometheus.MustRegister(AlertsSuppressed)
	prometheus.MustRegister(BatchFailures)
	prometheus.MustRegister(BatchSize)
	prometheus.MustRegister(TrainingExamplesGenerated)
	prometheus.MustRegister(TrainingRuns)
	prometheus.MustRegister(ModelReloads)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
