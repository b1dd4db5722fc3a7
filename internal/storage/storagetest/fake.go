package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
)

// Fake is an in-memory storage.Gateway for tests. Populate the maps directly;
// set Errs["MethodName"] to force a failure from that method.
type Fake struct {
	mu sync.Mutex

	Workers        map[string]*models.WorkerSnapshot
	Entries        map[string][]models.EventRecord
	Warnings       map[string][]models.WarningRecord
	AlertCounts    map[string]int
	Zones          map[string]*models.ZoneRecord
	MineCompliance map[string]float64

	Predictions []*models.PredictionRecord
	Alerts      []*models.AlertRecord

	Errs map[string]error
}

func NewFake() *Fake {
	return &Fake{
		Workers:        make(map[string]*models.WorkerSnapshot),
		Entries:        make(map[string][]models.EventRecord),
		Warnings:       make(map[string][]models.WarningRecord),
		AlertCounts:    make(map[string]int),
		Zones:          make(map[string]*models.ZoneRecord),
		MineCompliance: make(map[string]float64),
		Errs:           make(map[string]error),
	}
}

var _ storage.Gateway = (*Fake)(nil)

func (f *Fake) forced(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Errs[method]
}

func (f *Fake) GetWorker(ctx context.Context, workerID string) (*models.WorkerSnapshot, error) {
	if err := f.forced("GetWorker"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	worker, ok := f.Workers[workerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *worker
	return &copied, nil
}

func (f *Fake) ListActiveWorkers(ctx context.Context) ([]models.WorkerSnapshot, error) {
	if err := f.forced("ListActiveWorkers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var workers []models.WorkerSnapshot
	for _, w := range f.Workers {
		if w.Active {
			workers = append(workers, *w)
		}
	}
	return workers, nil
}

func (f *Fake) ListEntries(ctx context.Context, workerID string, from, to time.Time) ([]models.EventRecord, error) {
	if err := f.forced("ListEntries"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EventRecord
	for _, ev := range f.Entries[workerID] {
		if !ev.Timestamp.Before(from) && ev.Timestamp.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *Fake) ListWarnings(ctx context.Context, workerID string, from, to time.Time) ([]models.WarningRecord, error) {
	if err := f.forced("ListWarnings"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WarningRecord
	for _, w := range f.Warnings[workerID] {
		if !w.IssuedAt.Before(from) && w.IssuedAt.Before(to) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *Fake) CountAlerts(ctx context.Context, workerID string, from, to time.Time) (int, error) {
	if err := f.forced("CountAlerts"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.AlertCounts[workerID], nil
}

func (f *Fake) GetZone(ctx context.Context, zoneID string) (*models.ZoneRecord, error) {
	if err := f.forced("GetZone"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	zone, ok := f.Zones[zoneID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *zone
	return &copied, nil
}

func (f *Fake) MineAverageCompliance(ctx context.Context, mineID string) (float64, error) {
	if err := f.forced("MineAverageCompliance"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rate, ok := f.MineCompliance[mineID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return rate, nil
}

func (f *Fake) InsertPrediction(ctx context.Context, record *models.PredictionRecord) error {
	if err := f.forced("InsertPrediction"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Predictions = append(f.Predictions, record)
	return nil
}

func (f *Fake) LatestPrediction(ctx context.Context, workerID string, now time.Time) (*models.PredictionRecord, error) {
	if err := f.forced("LatestPrediction"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.PredictionRecord
	for _, p := range f.Predictions {
		if p.WorkerID != workerID || p.ExpiresAt.Before(now) {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

func (f *Fake) InsertAlert(ctx context.Context, alert *models.AlertRecord) error {
	if err := f.forced("InsertAlert"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Alerts = append(f.Alerts, alert)
	return nil
}

func (f *Fake) HasAlertOnDay(ctx context.Context, workerID, alertType string, day time.Time) (bool, error) {
	if err := f.forced("HasAlertOnDay"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := day.UTC().Format("2006-01-02")
	for _, a := range f.Alerts {
		if a.WorkerID == workerID && a.AlertType == alertType &&
			a.CreatedAt.UTC().Format("2006-01-02") == key {
			return true, nil
		}
	}
	return false, nil
}

// AlertCount returns the number of stored alerts, for assertions.
func (f *Fake) AlertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Alerts)
}

// PredictionCount returns the number of stored predictions, for assertions.
func (f *Fake) PredictionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Predictions)
}
