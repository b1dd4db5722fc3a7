package model

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
)

// artifact is the persisted form of a trained ensemble: fitted sub-model
// parameters, the shared scaling transform, the ordered feature-name list and
// a version tag.
type artifact struct {
	Version          string               `json:"version"`
	FeatureNames     []string             `json:"feature_names"`
	Scaler           *Scaler              `json:"scaler"`
	ViolationCoeffs  []float64            `json:"violation_coeffs"`
	AttendanceCoeffs []float64            `json:"attendance_coeffs"`
	Centroids        map[string][]float64 `json:"centroids"`
}

// NewEnsemble assembles a scorer from fitted parts. Coefficient slices are
// intercept-first with one term per feature.
func NewEnsemble(version string, scaler *Scaler, violationCoeffs, attendanceCoeffs []float64, centroids map[string][]float64) *Ensemble {
	return &Ensemble{
		version:          version,
		scaler:           scaler,
		violationCoeffs:  violationCoeffs,
		attendanceCoeffs: attendanceCoeffs,
		centroids:        centroids,
	}
}

// Save writes the ensemble artifact to path.
func (e *Ensemble) Save(path string) error {
	a := artifact{
		Version:          e.version,
		FeatureNames:     FeatureNames,
		Scaler:           e.scaler,
		ViolationCoeffs:  e.violationCoeffs,
		AttendanceCoeffs: e.attendanceCoeffs,
		Centroids:        e.centroids,
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model artifact: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}

	logger.Info("Model artifact saved", zap.String("path", path), zap.String("version", e.version))
	return nil
}

// Load reads a trained artifact back into a scorer. Any missing, unreadable or
// structurally invalid artifact reports ErrModelUnavailable so callers can
// drop to the rule-based fallback.
func Load(path string) (*Ensemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact %s: %v: %w", path, err, ErrModelUnavailable)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %v: %w", path, err, ErrModelUnavailable)
	}

	if err := validateArtifact(&a); err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %v: %w", path, err, ErrModelUnavailable)
	}

	logger.Info("Model artifact loaded", zap.String("path", path), zap.String("version", a.Version))

	return NewEnsemble(a.Version, a.Scaler, a.ViolationCoeffs, a.AttendanceCoeffs, a.Centroids), nil
}

func validateArtifact(a *artifact) error {
	n := len(FeatureNames)

	if len(a.FeatureNames) != n {
		return fmt.Errorf("expected %d features, artifact has %d", n, len(a.FeatureNames))
	}
	for i, name := range a.FeatureNames {
		if name != FeatureNames[i] {
			return fmt.Errorf("feature %d is %q, expected %q", i, name, FeatureNames[i])
		}
	}
	if a.Scaler == nil || len(a.Scaler.Mean) != n || len(a.Scaler.Std) != n {
		return fmt.Errorf("scaler dimensions do not match feature count")
	}
	if len(a.ViolationCoeffs) != n+1 || len(a.AttendanceCoeffs) != n+1 {
		return fmt.Errorf("coefficient dimensions do not match feature count")
	}
	if len(a.Centroids) == 0 {
		return fmt.Errorf("no class centroids present")
	}
	for class, centroid := range a.Centroids {
		if len(centroid) != n {
			return fmt.Errorf("centroid %q dimensions do not match feature count", class)
		}
	}

	return nil
}
