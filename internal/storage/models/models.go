package models

import "time"

type WorkerSnapshot struct {
	ID              string
	MineID          string
	ZoneID          string
	AssignedShift   string
	ComplianceScore float64
	TotalViolations int
	Badges          []string
	CreatedAt       time.Time
	Active          bool
}

type EventRecord struct {
	ID            string
	WorkerID      string
	MineID        string
	ZoneID        string
	EventType     string
	Shift         string
	PPECompliance map[string]bool
	Violations    []string
	Timestamp     time.Time
}

type WarningRecord struct {
	ID       string
	WorkerID string
	Category string
	Message  string
	IssuedAt time.Time
}

type AlertRecord struct {
	ID        string
	AlertType string
	Severity  string
	Message   string
	WorkerID  string
	MineID    string
	ZoneID    string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

type ZoneRecord struct {
	ID        string
	MineID    string
	Name      string
	RiskLevel string
}

type RiskFactor struct {
	FactorID    string
	Impact      float64
	Description string
}

type ModelOutput struct {
	PredictedViolationCount float64
	ViolationRisk           float64
	AttendanceRisk          float64
	RiskCategoryRaw         string
	HighRiskItems           []string
	AttendancePattern       string
	PredictedAbsences       float64
	ConsecutiveAbsenceProb  float64
	Confidence              float64
}

type PredictionRecord struct {
	ID                   string
	WorkerID             string
	MineID               string
	ZoneID               string
	OverallRiskScore     float64
	RiskCategory         string
	ViolationScore       float64
	AttendanceScore      float64
	ComplianceTrendScore float64
	BehavioralScore      float64
	PredictedViolations  float64
	PredictedAbsences    float64
	RequiresIntervention bool
	Factors              []RiskFactor
	Recommendations      []string
	Features             *FeatureVector
	ModelVersion         string
	Confidence           float64
	CreatedAt            time.Time
	ExpiresAt            time.Time
}

type TrainingExample struct {
	Features                    *FeatureVector
	LabelViolationsNext30d      int
	LabelAttendanceRateNext30d  float64
	LabelHasAttendanceIssue     bool
	LabelRiskCategory           string
	LabelMaxConsecutiveAbsences int
}
