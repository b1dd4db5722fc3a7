package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// workerIDPattern matches the badge-derived IDs the detection pipeline
// assigns; anything else never reaches the store.
var workerIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

type Config struct {
	MaxBatchSize        int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = 500
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}
		}

		if workerID := workerIDFromPath(c.Path()); workerID != "" && !ValidWorkerID(workerID) {
			cfg.Logger.Warn("Rejected malformed worker id",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid worker_id format",
			})
		}

		if strings.HasSuffix(c.Path(), "/predictions/batch") {
			var req struct {
				WorkerIDs []string `json:"worker_ids"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			if len(req.WorkerIDs) == 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "worker_ids is required",
				})
			}

			if len(req.WorkerIDs) > cfg.MaxBatchSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "worker_ids exceeds maximum batch size",
				})
			}

			for _, id := range req.WorkerIDs {
				if !ValidWorkerID(id) {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "worker_ids contains an invalid id",
					})
				}
			}
		}

		return c.Next()
	}
}

func ValidWorkerID(id string) bool {
	return workerIDPattern.MatchString(id)
}

// workerIDFromPath pulls the path segment following "workers", if any. The
// middleware runs before routing, so it cannot rely on bound route params.
func workerIDFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if seg == "workers" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}
