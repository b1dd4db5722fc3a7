package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/alerts"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/api/handlers"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/cache/redis"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/features"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/metrics"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/middleware/ratelimit"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/middleware/security"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/middleware/validation"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/model"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/prediction"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/sqlite"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/training"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/config"
	appLogger "github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting PPE Risk Prediction API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// Redis is optional; without it predictions still run and alert
	// deduplication falls back to the store.
	var complianceCache features.ComplianceCache
	var deduper prediction.Deduper
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Prediction.MineCacheTTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			complianceCache = redisClient
			deduper = redisClient
		}
	}

	provider := model.NewProvider(cfg.Model.ArtifactPath)
	extractor := features.NewExtractor(sqliteClient, complianceCache)
	hub := alerts.NewHub()

	predictionService := prediction.NewService(sqliteClient, extractor, provider, hub, deduper, prediction.Config{
		BatchWorkers: cfg.Prediction.BatchWorkers,
		Expiry:       time.Duration(cfg.Prediction.ExpiryDays) * 24 * time.Hour,
	})

	generator := training.NewGenerator(sqliteClient, extractor)
	trainer := training.NewTrainer(generator, cfg.Model.Version)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Client-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxBatchSize: 500,
		Logger:       appLogger.GetLogger(),
	}))

	predictionHandler := handlers.NewPredictionHandler(predictionService)
	trainingHandler := handlers.NewTrainingHandler(trainer, provider, cfg.Training.LookbackDays, cfg.Model.ArtifactPath)

	api := app.Group("/api/v1")

	api.Post("/workers/:worker_id/predictions", predictionHandler.HandlePredict)
	api.Get("/workers/:worker_id/predictions/latest", predictionHandler.HandleLatest)
	api.Post("/predictions/batch", predictionHandler.HandleBatch)

	api.Post("/model/train", trainingHandler.HandleTrain)
	api.Post("/model/reload", trainingHandler.HandleReload)
	api.Get("/model", trainingHandler.HandleModelInfo)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":        "ready",
			"model_version": provider.Current().Version(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws/alerts", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/alerts", websocket.New(hub.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
