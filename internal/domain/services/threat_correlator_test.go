package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelgraph-lab/internal/domain/models"
)

func newTestCorrelator(t *testing.T) *ThreatCorrelator {
	t.Helper()
	return NewThreatCorrelator(models.DefaultEngineConfig().Threat, testLogger())
}

func entityAnomaly(e *models.Entity, family string, severity models.AnomalySeverity) *models.Anomaly {
	id := e.ID
	return &models.Anomaly{
		ID:           uuid.New(),
		Type:         models.AnomalyBehavioral,
		EntityID:     &id,
		MetricFamily: family,
		Severity:     severity,
		Method:       models.DetectionStatistical,
	}
}

func TestCorrelateBenignEntity(t *testing.T) {
	e := newEntity(func(e *models.Entity) { e.Attributes.Verified = true })

	assessments := newTestCorrelator(t).Correlate(context.Background(),
		[]*models.Entity{e}, nil, nil, nil, anomalyRefTime)

	require.Len(t, assessments, 1)
	a := assessments[0]
	assert.Equal(t, models.SubjectEntity, a.SubjectKind)
	assert.Equal(t, 0.0, a.ThreatScore)
	assert.Equal(t, models.ThreatLevelNone, a.ThreatLevel)
	assert.Empty(t, a.Indicators)
	assert.Empty(t, a.RiskFactors)
}

func TestCorrelateKeywordsAndCriticalAnomaly(t *testing.T) {
	e := newEntity(
		withBio("offering ddos and botnet services"),
		func(e *models.Entity) { e.Attributes.Verified = true },
	)
	anomaly := entityAnomaly(e, "follower_count", models.AnomalySeverityCritical)

	assessments := newTestCorrelator(t).Correlate(context.Background(),
		[]*models.Entity{e}, nil, nil, []*models.Anomaly{anomaly}, anomalyRefTime)

	require.Len(t, assessments, 1)
	a := assessments[0]
	assert.Contains(t, []models.ThreatLevel{
		models.ThreatLevelHigh, models.ThreatLevelCritical,
	}, a.ThreatLevel)
	assert.Contains(t, a.Indicators, "keyword:ddos")
	assert.Contains(t, a.Indicators, "keyword:botnet")
	assert.Contains(t, a.Indicators, "anomaly:follower_count(critical)")
	assert.NotEmpty(t, a.Recommendations)
}

func TestCorrelateScoreMonotoneInEvidence(t *testing.T) {
	correlator := newTestCorrelator(t)
	e := newEntity(withBio("ddos services"))

	one := correlator.Correlate(context.Background(), []*models.Entity{e}, nil, nil,
		[]*models.Anomaly{entityAnomaly(e, "follower_count", models.AnomalySeverityMedium)}, anomalyRefTime)
	two := correlator.Correlate(context.Background(), []*models.Entity{e}, nil, nil,
		[]*models.Anomaly{
			entityAnomaly(e, "follower_count", models.AnomalySeverityMedium),
			entityAnomaly(e, "posting_frequency", models.AnomalySeverityHigh),
		}, anomalyRefTime)

	require.Len(t, one, 1)
	require.Len(t, two, 1)
	assert.GreaterOrEqual(t, two[0].ThreatScore, one[0].ThreatScore)
	assert.Greater(t, two[0].ThreatScore, 0.0)
}

func TestCorrelateStructuralFactors(t *testing.T) {
	dormant := newEntity(
		withPlatforms(models.PlatformTwitter, models.PlatformInstagram),
		withMetric(models.MetricFollowerCount, 50000),
		withMetric(models.MetricPostingRate, 0.01),
	)

	assessments := newTestCorrelator(t).Correlate(context.Background(),
		[]*models.Entity{dormant}, nil, nil, nil, anomalyRefTime)

	require.Len(t, assessments, 1)
	a := assessments[0]
	assert.Contains(t, a.Indicators, "structural:"+factorDormantPopular)
	assert.Contains(t, a.Indicators, "structural:"+factorUnverifiedSpread)
	assert.Greater(t, a.ThreatScore, 0.0)
	assert.Contains(t, a.Recommendations, "Audit follower authenticity for the dormant audience")
}

func TestCorrelatePatternMembership(t *testing.T) {
	e1, e2, e3 := newEntity(), newEntity(), newEntity()
	cluster := &models.Pattern{
		ID:         uuid.New(),
		Type:       models.PatternNetwork,
		Name:       "dense-cluster",
		EntityIDs:  []uuid.UUID{e1.ID, e2.ID, e3.ID},
		Confidence: 0.8,
	}

	assessments := newTestCorrelator(t).Correlate(context.Background(),
		[]*models.Entity{e1, e2, e3}, nil, []*models.Pattern{cluster}, nil, anomalyRefTime)

	for _, a := range assessments {
		assert.Contains(t, a.Indicators, "pattern:dense-cluster")
		assert.Greater(t, a.ThreatScore, 0.0)
	}
}

func TestCorrelateRelationshipInheritsEndpointRisk(t *testing.T) {
	risky := newEntity(func(e *models.Entity) { e.Attributes.Verified = true })
	other := newEntity(func(e *models.Entity) { e.Attributes.Verified = true })
	link := &models.Relationship{
		ID:       uuid.New(),
		Type:     models.RelationshipSharedDomain,
		SourceID: risky.ID,
		TargetID: other.ID,
		Strength: 0.8,
	}
	anomaly := entityAnomaly(risky, "follower_count", models.AnomalySeverityCritical)

	assessments := newTestCorrelator(t).Correlate(context.Background(),
		[]*models.Entity{risky, other}, []*models.Relationship{link},
		nil, []*models.Anomaly{anomaly}, anomalyRefTime)

	require.Len(t, assessments, 3)
	// Entities sort before relationships.
	assert.Equal(t, models.SubjectEntity, assessments[0].SubjectKind)
	assert.Equal(t, models.SubjectEntity, assessments[1].SubjectKind)
	relAssessment := assessments[2]
	assert.Equal(t, models.SubjectRelationship, relAssessment.SubjectKind)
	assert.Equal(t, link.ID, relAssessment.SubjectID)
	assert.Contains(t, relAssessment.Indicators, "structural:"+factorStrongRiskyLink)
	assert.Greater(t, relAssessment.ThreatScore, 0.0)
}

func TestLevelForCutpoints(t *testing.T) {
	correlator := newTestCorrelator(t)
	tests := []struct {
		score    float64
		expected models.ThreatLevel
	}{
		{0.0, models.ThreatLevelNone},
		{0.14, models.ThreatLevelNone},
		{0.15, models.ThreatLevelLow},
		{0.29, models.ThreatLevelLow},
		{0.31, models.ThreatLevelMedium},
		{0.59, models.ThreatLevelMedium},
		{0.60, models.ThreatLevelHigh},
		{0.84, models.ThreatLevelHigh},
		{0.85, models.ThreatLevelCritical},
		{1.0, models.ThreatLevelCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, correlator.levelFor(tt.score), "score %.2f", tt.score)
	}
}

func TestConfidenceScalesWithEvidenceDiversity(t *testing.T) {
	correlator := newTestCorrelator(t)
	quiet := newEntity(func(e *models.Entity) { e.Attributes.Verified = true })
	noisy := newEntity(withBio("ddos for hire"))

	assessments := correlator.Correlate(context.Background(),
		[]*models.Entity{quiet, noisy}, nil, nil,
		[]*models.Anomaly{entityAnomaly(noisy, "follower_count", models.AnomalySeverityHigh)}, anomalyRefTime)

	byID := make(map[uuid.UUID]*models.ThreatAssessment)
	for _, a := range assessments {
		byID[a.SubjectID] = a
	}
	assert.Greater(t, byID[noisy.ID].Confidence, byID[quiet.ID].Confidence)
}
