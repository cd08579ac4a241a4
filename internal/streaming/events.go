package streaming

import (
	"time"

	"github.com/google/uuid"

	"intelgraph-lab/internal/domain/models"
)

// EventType represents the type of analysis event
type EventType string

const (
	EventTypeRecordsIngested EventType = "records_ingested"
	EventTypeAnalysisStarted EventType = "analysis_started"
	EventTypeAnalysisFailed  EventType = "analysis_failed"
	EventTypeReportReady     EventType = "report_ready"
	EventTypeThreatEscalated EventType = "threat_escalated"
)

// AnalysisEvent is a real-time update about an investigation's pipeline
type AnalysisEvent struct {
	ID              string    `json:"id"`
	Type            EventType `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	InvestigationID string    `json:"investigation_id"`

	// Report details
	ReportID        string  `json:"report_id,omitempty"`
	EntityCount     int     `json:"entity_count,omitempty"`
	AnomalyCount    int     `json:"anomaly_count,omitempty"`
	PatternCount    int     `json:"pattern_count,omitempty"`
	ConfidenceScore float64 `json:"confidence_score,omitempty"`

	// Threat escalation details
	SubjectID   string             `json:"subject_id,omitempty"`
	ThreatLevel models.ThreatLevel `json:"threat_level,omitempty"`
	ThreatScore float64            `json:"threat_score,omitempty"`
	Indicators  []string           `json:"indicators,omitempty"`

	// Ingest details
	RecordCount int `json:"record_count,omitempty"`

	// Failure details
	Error string `json:"error,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewReportReadyEvent creates a report completion event
func NewReportReadyEvent(report *models.IntelligenceReport) *AnalysisEvent {
	return &AnalysisEvent{
		ID:              uuid.New().String(),
		Type:            EventTypeReportReady,
		Timestamp:       time.Now().UTC(),
		InvestigationID: report.InvestigationID.String(),
		ReportID:        report.ID.String(),
		EntityCount:     report.Stats.EntityCount,
		AnomalyCount:    report.Stats.AnomalyCount,
		PatternCount:    report.Stats.PatternCount,
		ConfidenceScore: report.ConfidenceScore,
	}
}

// NewThreatEscalatedEvent creates an event for a high or critical assessment
func NewThreatEscalatedEvent(investigationID uuid.UUID, assessment *models.ThreatAssessment) *AnalysisEvent {
	return &AnalysisEvent{
		ID:              uuid.New().String(),
		Type:            EventTypeThreatEscalated,
		Timestamp:       time.Now().UTC(),
		InvestigationID: investigationID.String(),
		SubjectID:       assessment.SubjectID.String(),
		ThreatLevel:     assessment.ThreatLevel,
		ThreatScore:     assessment.ThreatScore,
		Indicators:      assessment.Indicators,
	}
}

// NewAnalysisStartedEvent creates a pipeline start event
func NewAnalysisStartedEvent(investigationID uuid.UUID, recordCount int) *AnalysisEvent {
	return &AnalysisEvent{
		ID:              uuid.New().String(),
		Type:            EventTypeAnalysisStarted,
		Timestamp:       time.Now().UTC(),
		InvestigationID: investigationID.String(),
		RecordCount:     recordCount,
	}
}

// NewAnalysisFailedEvent creates a pipeline failure event
func NewAnalysisFailedEvent(investigationID uuid.UUID, runErr error) *AnalysisEvent {
	event := &AnalysisEvent{
		ID:              uuid.New().String(),
		Type:            EventTypeAnalysisFailed,
		Timestamp:       time.Now().UTC(),
		InvestigationID: investigationID.String(),
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}
	return event
}

// NewRecordsIngestedEvent creates an ingest event
func NewRecordsIngestedEvent(investigationID uuid.UUID, count int) *AnalysisEvent {
	return &AnalysisEvent{
		ID:              uuid.New().String(),
		Type:            EventTypeRecordsIngested,
		Timestamp:       time.Now().UTC(),
		InvestigationID: investigationID.String(),
		RecordCount:     count,
	}
}

// Subscription represents a client's subscription preferences
type Subscription struct {
	// Filter by investigation (empty = all)
	InvestigationIDs []string `json:"investigation_ids,omitempty"`

	// Filter by event types (empty = all)
	Types []EventType `json:"types,omitempty"`

	// Minimum threat level for escalation events (empty = all)
	MinThreatLevel models.ThreatLevel `json:"min_threat_level,omitempty"`
}

// threatLevelOrder ranks levels for subscription filtering.
var threatLevelOrder = map[models.ThreatLevel]int{
	models.ThreatLevelNone:     1,
	models.ThreatLevelLow:      2,
	models.ThreatLevelMedium:   3,
	models.ThreatLevelHigh:     4,
	models.ThreatLevelCritical: 5,
}

// Matches checks if an event matches the subscription filters
func (s *Subscription) Matches(event *AnalysisEvent) bool {
	if len(s.InvestigationIDs) > 0 {
		found := false
		for _, id := range s.InvestigationIDs {
			if id == event.InvestigationID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(s.Types) > 0 {
		found := false
		for _, t := range s.Types {
			if t == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if s.MinThreatLevel != "" && event.Type == EventTypeThreatEscalated {
		if threatLevelOrder[event.ThreatLevel] < threatLevelOrder[s.MinThreatLevel] {
			return false
		}
	}

	return true
}
