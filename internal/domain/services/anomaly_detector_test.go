package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelgraph-lab/internal/domain/models"
)

var anomalyRefTime = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestDetector(t *testing.T) *AnomalyDetector {
	t.Helper()
	return NewAnomalyDetector(models.DefaultEngineConfig().Anomaly, testLogger())
}

func TestDetectEmptyInput(t *testing.T) {
	result := newTestDetector(t).Detect(context.Background(), nil, nil, anomalyRefTime)
	assert.Empty(t, result.Anomalies)
	assert.Empty(t, result.Notes)
}

func TestDetectMinSampleGuard(t *testing.T) {
	// Two entities cannot form a statistical population with minimum 3.
	entities := []*models.Entity{
		newEntity(withMetric(models.MetricFollowerCount, 10)),
		newEntity(withMetric(models.MetricFollowerCount, 1000000)),
	}

	result := newTestDetector(t).Detect(context.Background(), entities, nil, anomalyRefTime)
	assert.Empty(t, result.Anomalies)

	var noted bool
	for _, note := range result.Notes {
		if strings.Contains(note.Message, "follower_count") {
			noted = true
			assert.Equal(t, "anomaly-detection", note.Stage)
			assert.Contains(t, note.Message, "below minimum sample size")
		}
	}
	assert.True(t, noted, "expected a skip note for follower_count")
}

func TestDetectFollowerOutlier(t *testing.T) {
	entities := make([]*models.Entity, 0, 51)
	for i := 0; i < 50; i++ {
		entities = append(entities, newEntity(withMetric(models.MetricFollowerCount, float64(90+i%21))))
	}
	outlier := newEntity(withMetric(models.MetricFollowerCount, 100000))
	entities = append(entities, outlier)

	result := newTestDetector(t).Detect(context.Background(), entities, nil, anomalyRefTime)

	var behavioral []*models.Anomaly
	for _, a := range result.Anomalies {
		if a.Type == models.AnomalyBehavioral {
			behavioral = append(behavioral, a)
		}
	}
	require.Len(t, behavioral, 1)
	found := behavioral[0]
	require.NotNil(t, found.EntityID)
	assert.Equal(t, outlier.ID, *found.EntityID)
	assert.Equal(t, "follower_count", found.MetricFamily)
	assert.Equal(t, models.DetectionStatistical, found.Method)
	assert.True(t, strings.HasPrefix(found.Reason, "statistical:"))
	assert.Contains(t, []models.AnomalySeverity{
		models.AnomalySeverityHigh, models.AnomalySeverityCritical,
	}, found.Severity)
}

func TestDetectUniformPopulationIsQuiet(t *testing.T) {
	var entities []*models.Entity
	for i := 0; i < 10; i++ {
		entities = append(entities, newEntity(withMetric(models.MetricFollowerCount, 100)))
	}
	result := newTestDetector(t).Detect(context.Background(), entities, nil, anomalyRefTime)
	assert.Empty(t, result.Anomalies)
}

func TestDetectNewAccountRule(t *testing.T) {
	young := newEntity(withCreatedAt(anomalyRefTime.AddDate(0, 0, -5)))
	old := newEntity(withCreatedAt(anomalyRefTime.AddDate(-3, 0, 0)))

	result := newTestDetector(t).Detect(context.Background(), []*models.Entity{young, old}, nil, anomalyRefTime)

	var found *models.Anomaly
	for _, a := range result.Anomalies {
		if a.MetricFamily == "account_age" {
			found = a
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, young.ID, *found.EntityID)
	assert.Equal(t, models.AnomalyTemporal, found.Type)
	assert.Equal(t, models.AnomalySeverityMedium, found.Severity)
	assert.Equal(t, models.DetectionRule, found.Method)
	assert.True(t, strings.HasPrefix(found.Reason, "rule:"))
}

func TestDetectSuspiciousKeywordsRule(t *testing.T) {
	single := newEntity(withBio("researching ransomware defenses"))
	double := newEntity(withBio("selling ddos and botnet access"))
	clean := newEntity(withBio("gardening and tea"))

	result := newTestDetector(t).Detect(context.Background(),
		[]*models.Entity{single, double, clean}, nil, anomalyRefTime)

	bySubject := make(map[string]*models.Anomaly)
	for _, a := range result.Anomalies {
		if a.MetricFamily == "suspicious_keywords" {
			bySubject[a.EntityID.String()] = a
		}
	}
	require.Len(t, bySubject, 2)
	assert.Equal(t, models.AnomalySeverityMedium, bySubject[single.ID.String()].Severity)
	assert.Equal(t, models.AnomalySeverityHigh, bySubject[double.ID.String()].Severity)
}

func TestDetectBotCadenceRule(t *testing.T) {
	bot := newEntity(
		withMetric(models.MetricCadenceStdDev, 0.1),
		withMetric(models.MetricPostingRate, 48),
	)
	human := newEntity(
		withMetric(models.MetricCadenceStdDev, 6.5),
		withMetric(models.MetricPostingRate, 48),
	)

	result := newTestDetector(t).Detect(context.Background(), []*models.Entity{bot, human}, nil, anomalyRefTime)

	var cadence []*models.Anomaly
	for _, a := range result.Anomalies {
		if a.MetricFamily == "bot_cadence" {
			cadence = append(cadence, a)
		}
	}
	require.Len(t, cadence, 1)
	assert.Equal(t, bot.ID, *cadence[0].EntityID)
	assert.Equal(t, models.AnomalySeverityHigh, cadence[0].Severity)
	assert.Equal(t, models.AnomalyBehavioral, cadence[0].Type)
}

func TestDetectDeterministicOutput(t *testing.T) {
	entities := make([]*models.Entity, 0, 12)
	for i := 0; i < 11; i++ {
		entities = append(entities, newEntity(withMetric(models.MetricFollowerCount, float64(100+i))))
	}
	entities = append(entities, newEntity(
		withMetric(models.MetricFollowerCount, 50000),
		withBio(fmt.Sprintf("promoting %s kits", "phishing")),
	))

	detector := newTestDetector(t)
	first := detector.Detect(context.Background(), entities, nil, anomalyRefTime)
	second := detector.Detect(context.Background(), entities, nil, anomalyRefTime)

	require.Len(t, second.Anomalies, len(first.Anomalies))
	for i := range first.Anomalies {
		assert.Equal(t, first.Anomalies[i].ID, second.Anomalies[i].ID)
		assert.Equal(t, first.Anomalies[i].ZScore, second.Anomalies[i].ZScore)
	}
	assert.Equal(t, first.Notes, second.Notes)
}

func TestSeverityBands(t *testing.T) {
	detector := newTestDetector(t)
	assert.Equal(t, models.AnomalySeverityLow, detector.severityFromZ(2.0))
	assert.Equal(t, models.AnomalySeverityMedium, detector.severityFromZ(2.5))
	assert.Equal(t, models.AnomalySeverityHigh, detector.severityFromZ(3.5))
	assert.Equal(t, models.AnomalySeverityCritical, detector.severityFromZ(5.0))
}
