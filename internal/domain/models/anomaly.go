package models

import (
	"github.com/google/uuid"
)

// AnomalyType classifies a flagged deviation
type AnomalyType string

const (
	AnomalyBehavioral AnomalyType = "behavioral"
	AnomalyNetwork    AnomalyType = "network"
	AnomalyTemporal   AnomalyType = "temporal"
	AnomalyContent    AnomalyType = "content"
)

// AnomalySeverity is derived from deviation magnitude
type AnomalySeverity string

const (
	AnomalySeverityLow      AnomalySeverity = "low"
	AnomalySeverityMedium   AnomalySeverity = "medium"
	AnomalySeverityHigh     AnomalySeverity = "high"
	AnomalySeverityCritical AnomalySeverity = "critical"
)

// Detection methods recorded in Anomaly.Method and prefixed in Reason.
const (
	DetectionStatistical = "statistical"
	DetectionRule        = "rule"
)

// Anomaly is a flagged deviation for one entity or relationship. Produced by
// the anomaly detector, consumed read-only by the correlator.
type Anomaly struct {
	ID             uuid.UUID       `json:"id"`
	Type           AnomalyType     `json:"type"`
	EntityID       *uuid.UUID      `json:"entity_id,omitempty"`
	RelationshipID *uuid.UUID      `json:"relationship_id,omitempty"`
	MetricFamily   string          `json:"metric_family"`
	Value          float64         `json:"value"`
	ZScore         float64         `json:"z_score"`
	Severity       AnomalySeverity `json:"severity"`
	Method         string          `json:"method"` // statistical or rule
	Reason         string          `json:"reason"`
}

// Weight maps the severity to a numeric weight for scoring.
func (s AnomalySeverity) Weight() float64 {
	switch s {
	case AnomalySeverityCritical:
		return 1.0
	case AnomalySeverityHigh:
		return 0.75
	case AnomalySeverityMedium:
		return 0.5
	case AnomalySeverityLow:
		return 0.25
	default:
		return 0
	}
}
