package streaming

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"intelgraph-lab/internal/domain/models"
)

func TestSubscriptionMatchesEmptyFilterAcceptsEverything(t *testing.T) {
	sub := &Subscription{}

	event := NewRecordsIngestedEvent(uuid.New(), 10)
	assert.True(t, sub.Matches(event))
}

func TestSubscriptionFiltersByInvestigation(t *testing.T) {
	wanted := uuid.New()
	other := uuid.New()
	sub := &Subscription{InvestigationIDs: []string{wanted.String()}}

	assert.True(t, sub.Matches(NewRecordsIngestedEvent(wanted, 1)))
	assert.False(t, sub.Matches(NewRecordsIngestedEvent(other, 1)))
}

func TestSubscriptionFiltersByEventType(t *testing.T) {
	invID := uuid.New()
	sub := &Subscription{Types: []EventType{EventTypeReportReady, EventTypeThreatEscalated}}

	assert.False(t, sub.Matches(NewRecordsIngestedEvent(invID, 1)))
	assert.False(t, sub.Matches(NewAnalysisStartedEvent(invID, 1)))

	escalation := NewThreatEscalatedEvent(invID, &models.ThreatAssessment{
		SubjectID:   uuid.New(),
		ThreatLevel: models.ThreatLevelHigh,
		ThreatScore: 0.7,
	})
	assert.True(t, sub.Matches(escalation))
}

func TestSubscriptionMinThreatLevel(t *testing.T) {
	invID := uuid.New()
	sub := &Subscription{MinThreatLevel: models.ThreatLevelHigh}

	low := NewThreatEscalatedEvent(invID, &models.ThreatAssessment{
		SubjectID:   uuid.New(),
		ThreatLevel: models.ThreatLevelMedium,
		ThreatScore: 0.4,
	})
	high := NewThreatEscalatedEvent(invID, &models.ThreatAssessment{
		SubjectID:   uuid.New(),
		ThreatLevel: models.ThreatLevelCritical,
		ThreatScore: 0.9,
	})

	assert.False(t, sub.Matches(low))
	assert.True(t, sub.Matches(high))

	// The floor only applies to escalation events.
	assert.True(t, sub.Matches(NewRecordsIngestedEvent(invID, 1)))
}

func TestReportReadyEventCarriesStats(t *testing.T) {
	report := &models.IntelligenceReport{
		ID:              uuid.New(),
		InvestigationID: uuid.New(),
		ConfidenceScore: 0.82,
		Stats: models.ReportStats{
			EntityCount:  4,
			AnomalyCount: 2,
			PatternCount: 3,
		},
	}

	event := NewReportReadyEvent(report)
	assert.Equal(t, EventTypeReportReady, event.Type)
	assert.Equal(t, report.ID.String(), event.ReportID)
	assert.Equal(t, report.InvestigationID.String(), event.InvestigationID)
	assert.Equal(t, 4, event.EntityCount)
	assert.Equal(t, 2, event.AnomalyCount)
	assert.Equal(t, 3, event.PatternCount)
	assert.InDelta(t, 0.82, event.ConfidenceScore, 1e-9)
}
