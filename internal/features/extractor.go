package features

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage"
	"github.com/Sourav19o7/ppe-detector-sub000/internal/storage/models"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
)

const (
	// DaysSinceSentinel is reported when no violation or warning exists in
	// the scanned history.
	DaysSinceSentinel = 999

	// historyDays bounds the single entry/warning scan per extraction; all
	// smaller windows are sliced out of it.
	historyDays = 365

	absenceScanCap = 30

	defaultZoneRisk       = "normal"
	defaultMineCompliance = 80.0
)

const (
	BadgeSafetyTraining = "safety_training"
	BadgePPECertified   = "ppe_certified"
)

// ComplianceCache is an optional read-through cache for the mine-wide
// average-compliance aggregate.
type ComplianceCache interface {
	GetMineCompliance(ctx context.Context, mineID string) (float64, bool, error)
	SetMineCompliance(ctx context.Context, mineID string, rate float64) error
}

type Extractor struct {
	store storage.Gateway
	cache ComplianceCache
}

func NewExtractor(store storage.Gateway, cache ComplianceCache) *Extractor {
	return &Extractor{store: store, cache: cache}
}

// dayStats is the per-calendar-day aggregate the windowed features slide over.
type dayStats struct {
	entries        int
	violations     int
	itemViolations map[string]int
	shiftMatches   int
}

// Extract assembles the full feature vector for one worker as of the given
// instant. Worker resolution failures surface storage.ErrNotFound; any other
// store failure surfaces as *ExtractionError and is never defaulted.
//
// All event-history features share one boundary convention: they cover
// completed UTC calendar days strictly before the as-of day. Events on the
// as-of day itself are ignored, including by the days-since recency features.
func (e *Extractor) Extract(ctx context.Context, workerID string, asOf time.Time) (*models.FeatureVector, error) {
	asOf = asOf.UTC()

	worker, err := e.store.GetWorker(ctx, workerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, &ExtractionError{WorkerID: workerID, Stage: "worker", Err: err}
	}

	historyFrom := asOf.AddDate(0, 0, -historyDays)
	entries, err := e.store.ListEntries(ctx, workerID, historyFrom, asOf)
	if err != nil {
		return nil, &ExtractionError{WorkerID: workerID, Stage: "entries", Err: err}
	}

	warnings, err := e.store.ListWarnings(ctx, workerID, historyFrom, asOf)
	if err != nil {
		return nil, &ExtractionError{WorkerID: workerID, Stage: "warnings", Err: err}
	}

	dayStart := startOfDay(asOf)
	alerts30d, err := e.store.CountAlerts(ctx, workerID, dayStart.AddDate(0, 0, -30), dayStart)
	if err != nil {
		return nil, &ExtractionError{WorkerID: workerID, Stage: "alerts", Err: err}
	}

	fv := &models.FeatureVector{WorkerID: workerID}

	days := buildDayStats(entries, worker.AssignedShift, dayStart)

	e.violationFeatures(fv, days, entries, asOf)
	e.attendanceFeatures(fv, days, asOf)
	e.complianceFeatures(fv, worker)
	e.behavioralFeatures(fv, warnings, alerts30d, asOf)
	e.temporalFeatures(fv, worker, asOf)

	if err := e.contextualFeatures(ctx, fv, worker); err != nil {
		return nil, err
	}

	logger.Debug("Features extracted",
		zap.String("worker_id", workerID),
		zap.Time("as_of", asOf),
		zap.Int("violations_30d", fv.ViolationsLast30d),
		zap.Float64("attendance_rate", fv.AttendanceRate30d),
	)

	return fv, nil
}

func buildDayStats(entries []models.EventRecord, assignedShift string, dayStart time.Time) map[string]*dayStats {
	days := make(map[string]*dayStats)
	for _, ev := range entries {
		if ev.EventType != "entry" || !ev.Timestamp.Before(dayStart) {
			continue
		}
		key := ev.Timestamp.UTC().Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &dayStats{itemViolations: make(map[string]int)}
			days[key] = d
		}
		d.entries++
		if len(ev.Violations) > 0 {
			d.violations++
			for _, item := range ev.Violations {
				d.itemViolations[normalizeItem(item)]++
			}
		}
		if assignedShift == "" || strings.EqualFold(ev.Shift, assignedShift) {
			d.shiftMatches++
		}
	}
	return days
}

func normalizeItem(item string) string {
	return strings.ToLower(strings.TrimSpace(item))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// windowTotals sums per-day aggregates over `span` completed calendar days,
// starting `back` days before the as-of day. The as-of day is never included.
func windowTotals(days map[string]*dayStats, asOf time.Time, back, span int) (entries, violations int) {
	for off := back; off < back+span; off++ {
		key := asOf.AddDate(0, 0, -(off + 1)).Format("2006-01-02")
		if d, ok := days[key]; ok {
			entries += d.entries
			violations += d.violations
		}
	}
	return entries, violations
}

func (e *Extractor) violationFeatures(fv *models.FeatureVector, days map[string]*dayStats, entries []models.EventRecord, asOf time.Time) {
	entries7, violations7 := windowTotals(days, asOf, 0, 7)
	entries14, violations14 := windowTotals(days, asOf, 0, 14)
	entries30, violations30 := windowTotals(days, asOf, 0, 30)

	fv.ViolationsLast7d = violations7
	fv.ViolationsLast14d = violations14
	fv.ViolationsLast30d = violations30
	fv.ViolationRate7d = round3(float64(violations7) / math.Max(float64(entries7), 1))
	fv.ViolationRate14d = round3(float64(violations14) / math.Max(float64(entries14), 1))
	fv.ViolationRate30d = round3(float64(violations30) / math.Max(float64(entries30), 1))

	tallies := make(map[string]int)
	for off := 0; off < 30; off++ {
		key := asOf.AddDate(0, 0, -(off + 1)).Format("2006-01-02")
		if d, ok := days[key]; ok {
			for item, n := range d.itemViolations {
				tallies[item] += n
			}
		}
	}
	fv.HelmetViolations30d = tallies["helmet"]
	fv.VestViolations30d = tallies["vest"]
	fv.GogglesViolations30d = tallies["goggles"]
	fv.GlovesViolations30d = tallies["gloves"]
	fv.MaskViolations30d = tallies["mask"]
	fv.ShoesViolations30d = tallies["shoes"]

	dayStart := startOfDay(asOf)
	fv.DaysSinceLastViolation = DaysSinceSentinel
	for i := len(entries) - 1; i >= 0; i-- {
		ev := entries[i]
		if !ev.Timestamp.Before(dayStart) {
			continue
		}
		if ev.EventType == "entry" && len(ev.Violations) > 0 {
			fv.DaysSinceLastViolation = int(dayStart.Sub(startOfDay(ev.Timestamp)).Hours() / 24)
			break
		}
	}

	// Trend: violation rate over the last 7 days minus the rate over the 7
	// days before that. Positive means the worker is getting worse.
	entriesPrev7, violationsPrev7 := windowTotals(days, asOf, 7, 7)
	rateLast7 := float64(violations7) / math.Max(float64(entries7), 1)
	ratePrev7 := float64(violationsPrev7) / math.Max(float64(entriesPrev7), 1)
	fv.ViolationTrend = round3(rateLast7 - ratePrev7)
}

func (e *Extractor) attendanceFeatures(fv *models.FeatureVector, days map[string]*dayStats, asOf time.Time) {
	// A worker with no entry events at all has no attendance baseline:
	// absences can only be counted against observed attendance, so the
	// attendance features stay at their benign defaults.
	if len(days) == 0 {
		fv.AttendanceRate30d = 1.0
		fv.ShiftConsistency = 1.0
		return
	}

	entries7, _ := windowTotals(days, asOf, 0, 7)
	entries30, _ := windowTotals(days, asOf, 0, 30)

	fv.EntriesLast7d = entries7
	fv.EntriesLast30d = entries30
	// Flat calendar-day denominator, not shift-roster-aware.
	fv.AttendanceRate30d = round3(float64(entries30) / 30.0)

	consecutive := 0
	for off := 0; off < absenceScanCap; off++ {
		key := asOf.AddDate(0, 0, -(off + 1)).Format("2006-01-02")
		if d, ok := days[key]; ok && d.entries > 0 {
			break
		}
		consecutive++
	}
	fv.ConsecutiveAbsencesCurrent = consecutive

	maxRun, run := 0, 0
	dailyCounts := make([]float64, 0, 30)
	totalMatches, totalEntries := 0, 0
	for off := 29; off >= 0; off-- {
		key := asOf.AddDate(0, 0, -(off + 1)).Format("2006-01-02")
		d, ok := days[key]
		if !ok || d.entries == 0 {
			run++
			if run > maxRun {
				maxRun = run
			}
			dailyCounts = append(dailyCounts, 0)
			continue
		}
		run = 0
		dailyCounts = append(dailyCounts, float64(d.entries))
		totalMatches += d.shiftMatches
		totalEntries += d.entries
	}
	fv.MaxConsecutiveAbsences30d = maxRun
	fv.AttendanceVariability = round3(stat.PopStdDev(dailyCounts, nil))

	fv.ShiftConsistency = 1.0
	if totalEntries > 0 {
		fv.ShiftConsistency = round3(float64(totalMatches) / float64(totalEntries))
	}
}

func (e *Extractor) complianceFeatures(fv *models.FeatureVector, worker *models.WorkerSnapshot) {
	fv.ComplianceScore = worker.ComplianceScore
	fv.TotalViolationsLifetime = worker.TotalViolations
	fv.BadgeCount = len(worker.Badges)
	for _, badge := range worker.Badges {
		switch normalizeItem(badge) {
		case BadgeSafetyTraining:
			fv.HasSafetyTrainingBadge = true
		case BadgePPECertified:
			fv.HasPPECertifiedBadge = true
		}
	}
}

func (e *Extractor) behavioralFeatures(fv *models.FeatureVector, warnings []models.WarningRecord, alerts30d int, asOf time.Time) {
	dayStart := startOfDay(asOf)
	cutoff := dayStart.AddDate(0, 0, -30)

	fv.DaysSinceLastWarning = DaysSinceSentinel
	for i := len(warnings) - 1; i >= 0; i-- {
		w := warnings[i]
		if !w.IssuedAt.Before(dayStart) {
			continue
		}
		if fv.DaysSinceLastWarning == DaysSinceSentinel {
			fv.DaysSinceLastWarning = int(dayStart.Sub(startOfDay(w.IssuedAt)).Hours() / 24)
		}
		if !w.IssuedAt.Before(cutoff) {
			fv.WarningsLast30d++
		}
	}
	fv.RelatedAlerts30d = alerts30d
}

func (e *Extractor) temporalFeatures(fv *models.FeatureVector, worker *models.WorkerSnapshot, asOf time.Time) {
	tenure := int(asOf.Sub(worker.CreatedAt).Hours() / 24)
	if tenure < 0 {
		tenure = 0
	}
	fv.TenureDays = tenure

	switch {
	case tenure < 30:
		fv.ExperienceLevel = "new"
	case tenure < 180:
		fv.ExperienceLevel = "intermediate"
	default:
		fv.ExperienceLevel = "experienced"
	}

	fv.AssignedShift = worker.AssignedShift
}

func (e *Extractor) contextualFeatures(ctx context.Context, fv *models.FeatureVector, worker *models.WorkerSnapshot) error {
	fv.ZoneRiskLevel = defaultZoneRisk
	if worker.ZoneID != "" {
		zone, err := e.store.GetZone(ctx, worker.ZoneID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return &ExtractionError{WorkerID: worker.ID, Stage: "zone", Err: err}
		}
		if err == nil && zone.RiskLevel != "" {
			fv.ZoneRiskLevel = zone.RiskLevel
		}
	}

	fv.MineComplianceRate = defaultMineCompliance
	if worker.MineID != "" {
		rate, err := e.mineCompliance(ctx, worker.MineID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return &ExtractionError{WorkerID: worker.ID, Stage: "mine_compliance", Err: err}
		}
		if err == nil {
			fv.MineComplianceRate = round3(rate)
		}
	}

	return nil
}

func (e *Extractor) mineCompliance(ctx context.Context, mineID string) (float64, error) {
	if e.cache != nil {
		if rate, ok, err := e.cache.GetMineCompliance(ctx, mineID); err == nil && ok {
			return rate, nil
		} else if err != nil {
			logger.Warn("Mine compliance cache read failed", zap.String("mine_id", mineID), zap.Error(err))
		}
	}

	rate, err := e.store.MineAverageCompliance(ctx, mineID)
	if err != nil {
		return 0, err
	}

	if e.cache != nil {
		if err := e.cache.SetMineCompliance(ctx, mineID, rate); err != nil {
			logger.Warn("Mine compliance cache write failed", zap.String("mine_id", mineID), zap.Error(err))
		}
	}

	return rate, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
