package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/circuitbreaker"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/retry"
)

type Client struct {
	db          *sql.DB
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("datastore", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   50 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		RetryableCheck: isTransient,
		Logger:         logger.GetLogger(),
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, cb: cb, retryConfig: retryConfig}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		mine_id TEXT NOT NULL,
		zone_id TEXT,
		assigned_shift TEXT,
		compliance_score REAL NOT NULL DEFAULT 100,
		total_violations INTEGER NOT NULL DEFAULT 0,
		badges TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_workers_mine ON workers(mine_id);
	CREATE INDEX IF NOT EXISTS idx_workers_active ON workers(active);

	CREATE TABLE IF NOT EXISTS entry_events (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		mine_id TEXT,
		zone_id TEXT,
		event_type TEXT NOT NULL,
		shift TEXT,
		ppe_compliance TEXT,
		violations TEXT,
		timestamp INTEGER NOT NULL,
		FOREIGN KEY (worker_id) REFERENCES workers(id)
	);
	CREATE INDEX IF NOT EXISTS idx_events_worker_ts ON entry_events(worker_id, timestamp);

	CREATE TABLE IF NOT EXISTS warnings (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		category TEXT,
		message TEXT,
		issued_at INTEGER NOT NULL,
		FOREIGN KEY (worker_id) REFERENCES workers(id)
	);
	CREATE INDEX IF NOT EXISTS idx_warnings_worker_ts ON warnings(worker_id, issued_at);

	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT,
		worker_id TEXT,
		mine_id TEXT,
		zone_id TEXT,
		metadata TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_worker_ts ON alerts(worker_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_type ON alerts(alert_type);

	CREATE TABLE IF NOT EXISTS zones (
		id TEXT PRIMARY KEY,
		mine_id TEXT NOT NULL,
		name TEXT,
		risk_level TEXT NOT NULL DEFAULT 'normal'
	);

	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		mine_id TEXT,
		zone_id TEXT,
		overall_risk_score REAL NOT NULL,
		risk_category TEXT NOT NULL,
		violation_score REAL,
		attendance_score REAL,
		compliance_trend_score REAL,
		behavioral_score REAL,
		predicted_violations REAL,
		predicted_absences REAL,
		requires_intervention INTEGER NOT NULL DEFAULT 0,
		factors TEXT,
		recommendations TEXT,
		features TEXT,
		model_version TEXT,
		confidence REAL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		FOREIGN KEY (worker_id) REFERENCES workers(id)
	);
	CREATE INDEX IF NOT EXISTS idx_predictions_worker_created ON predictions(worker_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_predictions_expires ON predictions(expires_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) read(ctx context.Context, op func() error) error {
	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, op)
	})
}

func isTransient(err error) bool {
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func (c *Client) GetWorker(ctx context.Context, workerID string) (*models.WorkerSnapshot, error) {
	query := `SELECT id, mine_id, zone_id, assigned_shift, compliance_score, total_violations, badges, active, created_at
		FROM workers WHERE id = ?`

	var w models.WorkerSnapshot
	var zoneID, shift, badgesJSON sql.NullString
	var active int
	var createdAt int64

	err := c.read(ctx, func() error {
		err := c.db.QueryRowContext(ctx, query, workerID).Scan(
			&w.ID, &w.MineID, &zoneID, &shift, &w.ComplianceScore,
			&w.TotalViolations, &badgesJSON, &active, &createdAt,
		)
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("worker %s: %w", workerID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}

	w.ZoneID = zoneID.String
	w.AssignedShift = shift.String
	w.Active = active == 1
	w.CreatedAt = time.Unix(createdAt, 0).UTC()
	if badgesJSON.String != "" {
		json.Unmarshal([]byte(badgesJSON.String), &w.Badges)
	}

	return &w, nil
}

func (c *Client) ListActiveWorkers(ctx context.Context) ([]models.WorkerSnapshot, error) {
	query := `SELECT id, mine_id, zone_id, assigned_shift, compliance_score, total_violations, badges, created_at
		FROM workers WHERE active = 1 ORDER BY id`

	var workers []models.WorkerSnapshot
	err := c.read(ctx, func() error {
		rows, err := c.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		workers = workers[:0]
		for rows.Next() {
			var w models.WorkerSnapshot
			var zoneID, shift, badgesJSON sql.NullString
			var createdAt int64

			err := rows.Scan(&w.ID, &w.MineID, &zoneID, &shift, &w.ComplianceScore,
				&w.TotalViolations, &badgesJSON, &createdAt)
			if err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}

			w.ZoneID = zoneID.String
			w.AssignedShift = shift.String
			w.Active = true
			w.CreatedAt = time.Unix(createdAt, 0).UTC()
			if badgesJSON.String != "" {
				json.Unmarshal([]byte(badgesJSON.String), &w.Badges)
			}
			workers = append(workers, w)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active workers: %w", err)
	}

	return workers, nil
}

func (c *Client) ListEntries(ctx context.Context, workerID string, from, to time.Time) ([]models.EventRecord, error) {
	query := `SELECT id, worker_id, mine_id, zone_id, event_type, shift, ppe_compliance, violations, timestamp
		FROM entry_events
		WHERE worker_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp`

	var events []models.EventRecord
	err := c.read(ctx, func() error {
		rows, err := c.db.QueryContext(ctx, query, workerID, from.Unix(), to.Unix())
		if err != nil {
			return err
		}
		defer rows.Close()

		events = events[:0]
		for rows.Next() {
			var e models.EventRecord
			var mineID, zoneID, shift, ppeJSON, violationsJSON sql.NullString
			var ts int64

			err := rows.Scan(&e.ID, &e.WorkerID, &mineID, &zoneID, &e.EventType,
				&shift, &ppeJSON, &violationsJSON, &ts)
			if err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}

			e.MineID = mineID.String
			e.ZoneID = zoneID.String
			e.Shift = shift.String
			e.Timestamp = time.Unix(ts, 0).UTC()
			if ppeJSON.String != "" {
				json.Unmarshal([]byte(ppeJSON.String), &e.PPECompliance)
			}
			if violationsJSON.String != "" {
				json.Unmarshal([]byte(violationsJSON.String), &e.Violations)
			}
			events = append(events, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	return events, nil
}

func (c *Client) ListWarnings(ctx context.Context, workerID string, from, to time.Time) ([]models.WarningRecord, error) {
	query := `SELECT id, worker_id, category, message, issued_at
		FROM warnings
		WHERE worker_id = ? AND issued_at >= ? AND issued_at < ?
		ORDER BY issued_at`

	var warnings []models.WarningRecord
	err := c.read(ctx, func() error {
		rows, err := c.db.QueryContext(ctx, query, workerID, from.Unix(), to.Unix())
		if err != nil {
			return err
		}
		defer rows.Close()

		warnings = warnings[:0]
		for rows.Next() {
			var w models.WarningRecord
			var category, message sql.NullString
			var issuedAt int64

			err := rows.Scan(&w.ID, &w.WorkerID, &category, &message, &issuedAt)
			if err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}

			w.Category = category.String
			w.Message = message.String
			w.IssuedAt = time.Unix(issuedAt, 0).UTC()
			warnings = append(warnings, w)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list warnings: %w", err)
	}

	return warnings, nil
}

func (c *Client) CountAlerts(ctx context.Context, workerID string, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM alerts WHERE worker_id = ? AND created_at >= ? AND created_at < ?`

	var count int
	err := c.read(ctx, func() error {
		return c.db.QueryRowContext(ctx, query, workerID, from.Unix(), to.Unix()).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	return count, nil
}

func (c *Client) GetZone(ctx context.Context, zoneID string) (*models.ZoneRecord, error) {
	query := `SELECT id, mine_id, name, risk_level FROM zones WHERE id = ?`

	var z models.ZoneRecord
	var name sql.NullString

	err := c.read(ctx, func() error {
		err := c.db.QueryRowContext(ctx, query, zoneID).Scan(&z.ID, &z.MineID, &name, &z.RiskLevel)
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("zone %s: %w", zoneID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}

	z.Name = name.String
	return &z, nil
}

func (c *Client) MineAverageCompliance(ctx context.Context, mineID string) (float64, error) {
	query := `SELECT AVG(compliance_score), COUNT(*) FROM workers WHERE mine_id = ? AND active = 1`

	var avg sql.NullFloat64
	var count int
	err := c.read(ctx, func() error {
		return c.db.QueryRowContext(ctx, query, mineID).Scan(&avg, &count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate mine compliance: %w", err)
	}
	if count == 0 || !avg.Valid {
		return 0, fmt.Errorf("mine %s: %w", mineID, storage.ErrNotFound)
	}

	return avg.Float64, nil
}

func (c *Client) InsertPrediction(ctx context.Context, record *models.PredictionRecord) error {
	factorsJSON, _ := json.Marshal(record.Factors)
	recsJSON, _ := json.Marshal(record.Recommendations)
	featuresJSON, _ := json.Marshal(record.Features)

	query := `
		INSERT INTO predictions (id, worker_id, mine_id, zone_id, overall_risk_score, risk_category,
			violation_score, attendance_score, compliance_trend_score, behavioral_score,
			predicted_violations, predicted_absences, requires_intervention,
			factors, recommendations, features, model_version, confidence, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	requiresIntervention := 0
	if record.RequiresIntervention {
		requiresIntervention = 1
	}

	_, err := c.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.WorkerID,
		record.MineID,
		record.ZoneID,
		record.OverallRiskScore,
		record.RiskCategory,
		record.ViolationScore,
		record.AttendanceScore,
		record.ComplianceTrendScore,
		record.BehavioralScore,
		record.PredictedViolations,
		record.PredictedAbsences,
		requiresIntervention,
		string(factorsJSON),
		string(recsJSON),
		string(featuresJSON),
		record.ModelVersion,
		record.Confidence,
		record.CreatedAt.Unix(),
		record.ExpiresAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}

	logger.Debug("Prediction persisted",
		zap.String("prediction_id", record.ID),
		zap.String("worker_id", record.WorkerID),
		zap.Float64("risk_score", record.OverallRiskScore),
	)

	return nil
}

func (c *Client) LatestPrediction(ctx context.Context, workerID string, now time.Time) (*models.PredictionRecord, error) {
	query := `SELECT id, worker_id, mine_id, zone_id, overall_risk_score, risk_category,
			violation_score, attendance_score, compliance_trend_score, behavioral_score,
			predicted_violations, predicted_absences, requires_intervention,
			factors, recommendations, features, model_version, confidence, created_at, expires_at
		FROM predictions
		WHERE worker_id = ? AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1`

	var r models.PredictionRecord
	var mineID, zoneID, factorsJSON, recsJSON, featuresJSON, modelVersion sql.NullString
	var requiresIntervention int
	var createdAt, expiresAt int64

	err := c.read(ctx, func() error {
		err := c.db.QueryRowContext(ctx, query, workerID, now.Unix()).Scan(
			&r.ID, &r.WorkerID, &mineID, &zoneID, &r.OverallRiskScore, &r.RiskCategory,
			&r.ViolationScore, &r.AttendanceScore, &r.ComplianceTrendScore, &r.BehavioralScore,
			&r.PredictedViolations, &r.PredictedAbsences, &requiresIntervention,
			&factorsJSON, &recsJSON, &featuresJSON, &modelVersion, &r.Confidence,
			&createdAt, &expiresAt,
		)
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("prediction for worker %s: %w", workerID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest prediction: %w", err)
	}

	r.MineID = mineID.String
	r.ZoneID = zoneID.String
	r.ModelVersion = modelVersion.String
	r.RequiresIntervention = requiresIntervention == 1
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	r.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if factorsJSON.String != "" {
		json.Unmarshal([]byte(factorsJSON.String), &r.Factors)
	}
	if recsJSON.String != "" {
		json.Unmarshal([]byte(recsJSON.String), &r.Recommendations)
	}
	if featuresJSON.String != "" {
		json.Unmarshal([]byte(featuresJSON.String), &r.Features)
	}

	return &r, nil
}

func (c *Client) InsertAlert(ctx context.Context, alert *models.AlertRecord) error {
	metadataJSON, _ := json.Marshal(alert.Metadata)

	query := `INSERT INTO alerts (id, alert_type, severity, message, worker_id, mine_id, zone_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(
		ctx,
		query,
		alert.ID,
		alert.AlertType,
		alert.Severity,
		alert.Message,
		alert.WorkerID,
		alert.MineID,
		alert.ZoneID,
		string(metadataJSON),
		alert.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	logger.Info("Alert persisted",
		zap.String("alert_id", alert.ID),
		zap.String("worker_id", alert.WorkerID),
		zap.String("severity", alert.Severity),
	)

	return nil
}

func (c *Client) HasAlertOnDay(ctx context.Context, workerID, alertType string, day time.Time) (bool, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `SELECT COUNT(*) FROM alerts
		WHERE worker_id = ? AND alert_type = ? AND created_at >= ? AND created_at < ?`

	var count int
	err := c.read(ctx, func() error {
		return c.db.QueryRowContext(ctx, query, workerID, alertType, dayStart.Unix(), dayEnd.Unix()).Scan(&count)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check same-day alerts: %w", err)
	}

	return count > 0, nil
}
