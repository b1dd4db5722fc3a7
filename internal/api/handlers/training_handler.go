package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/metrics"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/model"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/training"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
)

type TrainingHandler struct {
	trainer      *training.Trainer
	provider     *model.Provider
	lookbackDays int
	artifactPath string
}

func NewTrainingHandler(trainer *training.Trainer, provider *model.Provider, lookbackDays int, artifactPath string) *TrainingHandler {
	return &TrainingHandler{
		trainer:      trainer,
		provider:     provider,
		lookbackDays: lookbackDays,
		artifactPath: artifactPath,
	}
}

// HandleTrain retrains the ensemble from stored history, persists the
// artifact and swaps it in for subsequent predictions.
func (h *TrainingHandler) HandleTrain(c *fiber.Ctx) error {
	var req struct {
		LookbackDays int `json:"lookback_days"`
	}

	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	lookback := h.lookbackDays
	if req.LookbackDays > 0 {
		lookback = req.LookbackDays
	}

	ensemble, examples, err := h.trainer.TrainAndSave(c.Context(), lookback, h.artifactPath)
	if err != nil {
		logger.Error("Model training failed",
			zap.Int("lookback_days", lookback),
			zap.Int("examples", examples),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Model training failed",
		})
	}

	h.provider.Swap(ensemble)
	metrics.ModelReloads.Inc()

	return c.JSON(fiber.Map{
		"model_version": ensemble.Version(),
		"examples":      examples,
		"lookback_days": lookback,
		"artifact_path": h.artifactPath,
	})
}

// HandleReload re-reads the artifact from disk, e.g. after an external
// training job replaced it.
func (h *TrainingHandler) HandleReload(c *fiber.Ctx) error {
	if err := h.provider.Reload(h.artifactPath); err != nil {
		logger.Error("Model reload failed", zap.String("path", h.artifactPath), zap.Error(err))
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Model artifact could not be loaded",
		})
	}

	metrics.ModelReloads.Inc()

	return c.JSON(fiber.Map{
		"model_version": h.provider.Current().Version(),
	})
}

func (h *TrainingHandler) HandleModelInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"model_version": h.provider.Current().Version(),
		"features":      len(model.FeatureNames),
		"feature_names": model.FeatureNames,
	})
}
