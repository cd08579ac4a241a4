package models

import (
	"time"

	"github.com/google/uuid"
)

// InvestigationStatus tracks an investigation's lifecycle
type InvestigationStatus string

const (
	InvestigationStatusOpen      InvestigationStatus = "open"
	InvestigationStatusAnalyzing InvestigationStatus = "analyzing"
	InvestigationStatusComplete  InvestigationStatus = "complete"
	InvestigationStatusFailed    InvestigationStatus = "failed"
	InvestigationStatusClosed    InvestigationStatus = "closed"
)

// Investigation groups the raw records and reports for one set of targets.
type Investigation struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Targets     []string            `json:"targets,omitempty"` // usernames/emails/domains under investigation
	Status      InvestigationStatus `json:"status"`
	RecordCount int                 `json:"record_count"`
	LastReportID *uuid.UUID         `json:"last_report_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// AnalysisJob is the payload queued for asynchronous analysis.
type AnalysisJob struct {
	ID              uuid.UUID `json:"id"`
	InvestigationID uuid.UUID `json:"investigation_id"`
	EnqueuedAt      time.Time `json:"enqueued_at"`
	Attempt         int       `json:"attempt"`
}
