package models

import (
	"github.com/google/uuid"
)

// ThreatLevel is the categorical threat judgment derived from a score
type ThreatLevel string

const (
	ThreatLevelNone     ThreatLevel = "none"
	ThreatLevelLow      ThreatLevel = "low"
	ThreatLevelMedium   ThreatLevel = "medium"
	ThreatLevelHigh     ThreatLevel = "high"
	ThreatLevelCritical ThreatLevel = "critical"
)

// SubjectKind distinguishes what a threat assessment is about
type SubjectKind string

const (
	SubjectEntity       SubjectKind = "entity"
	SubjectRelationship SubjectKind = "relationship"
)

// RiskFactor is one contributing factor of a threat assessment with its weight
// as applied.
type RiskFactor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"` // sub-score in [0,1] before weighting
}

// ThreatAssessment is the terminal weighted-risk judgment for one entity or
// relationship. Produced once per analysis run by the correlator; immutable
// thereafter.
type ThreatAssessment struct {
	SubjectID       uuid.UUID    `json:"subject_id"`
	SubjectKind     SubjectKind  `json:"subject_kind"`
	ThreatScore     float64      `json:"threat_score"` // 0.0 - 1.0
	ThreatLevel     ThreatLevel  `json:"threat_level"`
	Indicators      []string     `json:"indicators"` // every signal that fired, in order
	RiskFactors     []RiskFactor `json:"risk_factors"`
	Confidence      float64      `json:"confidence"` // evidence diversity
	Recommendations []string     `json:"recommendations"`
}
