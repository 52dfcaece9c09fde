package models

import "time"

// RiskLevel classifies flare risk into an ordered severity scale.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Severity returns the ordinal position of the level, Low first.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return -1
	}
}

// Prediction is one flare forecast computed from a window of observations.
// Timestamp is the instant the prediction was computed and serves as the
// store key, so a retried run at the same instant overwrites its own row.
type Prediction struct {
	Timestamp         time.Time `json:"timestamp"`
	MClassProbability float64   `json:"m_class_probability"`
	RiskLevel         RiskLevel `json:"risk_level"`
	ModelVersion      string    `json:"model_version"`
}
