package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportNote is an informational annotation attached to a report, e.g. a
// detector that skipped a metric family for lack of samples.
type ReportNote struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// ReportStats summarizes one analysis run.
type ReportStats struct {
	RecordCount       int `json:"record_count"`
	EntityCount       int `json:"entity_count"`
	RelationshipCount int `json:"relationship_count"`
	PatternCount      int `json:"pattern_count"`
	AnomalyCount      int `json:"anomaly_count"`
	AssessmentCount   int `json:"assessment_count"`
	UnresolvedCount   int `json:"unresolved_count"`
}

// IntelligenceReport binds the full output of one analysis run for one
// investigation. Analytical content is deterministic for a fixed record
// snapshot and configuration; GeneratedAt and ProcessingTime are wall-clock
// metadata.
type IntelligenceReport struct {
	ID               uuid.UUID           `json:"id"`
	InvestigationID  uuid.UUID           `json:"investigation_id"`
	Entities         []*Entity           `json:"entities"`
	Relationships    []*Relationship     `json:"relationships"`
	Patterns         []*Pattern          `json:"patterns"`
	Anomalies        []*Anomaly          `json:"anomalies"`
	Assessments      []*ThreatAssessment `json:"assessments"`
	Unresolved       []UnresolvedRecord  `json:"unresolved,omitempty"`
	Notes            []ReportNote        `json:"notes,omitempty"`
	ExecutiveSummary string              `json:"executive_summary"`
	ConfidenceScore  float64             `json:"confidence_score"`
	Stats            ReportStats         `json:"stats"`
	GeneratedAt      time.Time           `json:"generated_at"`
	ProcessingTime   time.Duration       `json:"processing_time"`
}

// AssessmentFor returns the assessment for a subject, or nil.
func (r *IntelligenceReport) AssessmentFor(subjectID uuid.UUID) *ThreatAssessment {
	for _, a := range r.Assessments {
		if a.SubjectID == subjectID {
			return a
		}
	}
	return nil
}

// TopThreats returns up to n assessments ordered by descending score. The
// report's assessment list is already canonically ordered, so ties keep their
// subject-ID order.
func (r *IntelligenceReport) TopThreats(n int) []*ThreatAssessment {
	sorted := make([]*ThreatAssessment, len(r.Assessments))
	copy(sorted, r.Assessments)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].ThreatScore > sorted[j-1].ThreatScore; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
