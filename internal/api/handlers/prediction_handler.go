package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/features"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/metrics"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/prediction"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
)

type PredictionHandler struct {
	service *prediction.Service
}

func NewPredictionHandler(service *prediction.Service) *PredictionHandler {
	return &PredictionHandler{
		service: service,
	}
}

func (h *PredictionHandler) HandlePredict(c *fiber.Ctx) error {
	workerID := c.Params("worker_id")
	if workerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "worker_id is required",
		})
	}

	asOf := time.Time{}
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "as_of must be RFC3339",
			})
		}
		asOf = parsed
	}

	record, err := h.service.Predict(c.Context(), workerID, asOf)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Worker not found",
			})
		}

		var extractErr *features.ExtractionError
		if errors.As(err, &extractErr) {
			logger.Error("Feature extraction failed",
				zap.String("worker_id", workerID),
				zap.String("stage", extractErr.Stage),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to extract worker features",
			})
		}

		logger.Error("Prediction failed", zap.String("worker_id", workerID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate prediction",
		})
	}

	return c.JSON(predictionResponse(record))
}

func (h *PredictionHandler) HandleLatest(c *fiber.Ctx) error {
	workerID := c.Params("worker_id")
	if workerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "worker_id is required",
		})
	}

	record, err := h.service.LatestPrediction(c.Context(), workerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No current prediction for worker",
			})
		}
		logger.Error("Failed to load latest prediction", zap.String("worker_id", workerID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load prediction",
		})
	}

	return c.JSON(predictionResponse(record))
}

func (h *PredictionHandler) HandleBatch(c *fiber.Ctx) error {
	var req struct {
		WorkerIDs []string `json:"worker_ids"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.WorkerIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "worker_ids is required",
		})
	}

	metrics.BatchSize.Observe(float64(len(req.WorkerIDs)))

	results := h.service.PredictBatch(c.Context(), req.WorkerIDs)

	items := make([]fiber.Map, 0, len(results))
	succeeded := 0
	for _, res := range results {
		item := fiber.Map{
			"worker_id": res.WorkerID,
		}
		switch {
		case res.Err == nil:
			item["status"] = "ok"
			item["prediction"] = predictionResponse(res.Record)
			succeeded++
		case errors.Is(res.Err, storage.ErrNotFound):
			item["status"] = "not_found"
		default:
			item["status"] = "error"
		}
		items = append(items, item)
	}

	return c.JSON(fiber.Map{
		"total":     len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
		"results":   items,
	})
}

func predictionResponse(record *models.PredictionRecord) fiber.Map {
	factors := make([]fiber.Map, 0, len(record.Factors))
	for _, f := range record.Factors {
		factors = append(factors, fiber.Map{
			"factor_id":   f.FactorID,
			"impact":      f.Impact,
			"description": f.Description,
		})
	}

	return fiber.Map{
		"id":                 record.ID,
		"worker_id":          record.WorkerID,
		"mine_id":            record.MineID,
		"zone_id":            record.ZoneID,
		"overall_risk_score": record.OverallRiskScore,
		"risk_category":      record.RiskCategory,
		"component_scores": fiber.Map{
			"violation":        record.ViolationScore,
			"attendance":       record.AttendanceScore,
			"compliance_trend": record.ComplianceTrendScore,
			"behavioral":       record.BehavioralScore,
		},
		"predicted_violations":  record.PredictedViolations,
		"predicted_absences":    record.PredictedAbsences,
		"requires_intervention": record.RequiresIntervention,
		"factors":               factors,
		"recommendations":       record.Recommendations,
		"features":              record.Features,
		"model_version":         record.ModelVersion,
		"confidence":            record.Confidence,
		"created_at":            record.CreatedAt,
		"expires_at":            record.ExpiresAt,
	}
}
