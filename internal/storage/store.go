package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
)

var ErrNotFound = errors.New("record not found")

// Gateway is the time-ranged read/write surface the prediction pipeline
// consumes. The sqlite client implements it; tests substitute in-memory fakes.
type Gateway interface {
	GetWorker(ctx context.Context, workerID string) (*models.WorkerSnapshot, error)
	ListActiveWorkers(ctx context.Context) ([]models.WorkerSnapshot, error)

	ListEntries(ctx context.Context, workerID string, from, to time.Time) ([]models.EventRecord, error)
	ListWarnings(ctx context.Context, workerID string, from, to time.Time) ([]models.WarningRecord, error)
	CountAlerts(ctx context.Context, workerID string, from, to time.Time) (int, error)

	GetZone(ctx context.Context, zoneID string) (*models.ZoneRecord, error)
	MineAverageCompliance(ctx context.Context, mineID string) (float64, error)

	InsertPrediction(ctx context.Context, record *models.PredictionRecord) error
	LatestPrediction(ctx context.Context, workerID string, now time.Time) (*models.PredictionRecord, error)

	InsertAlert(ctx context.Context, alert *models.AlertRecord) error
	HasAlertOnDay(ctx context.Context, workerID, alertType string, day time.Time) (bool, error)
}
