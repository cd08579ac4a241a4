package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelgraph-lab/internal/domain/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(models.DefaultEngineConfig(), testLogger())
	require.NoError(t, err)
	return engine
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := models.DefaultEngineConfig()
	cfg.Resolver.MatchThreshold = 0

	engine, err := NewEngine(cfg, testLogger())
	assert.Nil(t, engine)

	var cfgErr *models.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "resolver.match_threshold", cfgErr.Field)
}

func TestNewEngineRejectsBadCutpoints(t *testing.T) {
	cfg := models.DefaultEngineConfig()
	cfg.Threat.Cutpoints.High = cfg.Threat.Cutpoints.Medium

	_, err := NewEngine(cfg, testLogger())
	var cfgErr *models.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "threat.cutpoints", cfgErr.Field)
}

func TestAnalyzeEndToEnd(t *testing.T) {
	investigationID := uuid.New()
	records := []*models.RawRecord{
		newRecord(models.PlatformGitHub, "alice_dev", func(r *models.RawRecord) {
			r.InvestigationID = investigationID
			r.Email = "alice@x.com"
		}),
		newRecord(models.PlatformTwitter, "alice.dev", func(r *models.RawRecord) {
			r.InvestigationID = investigationID
			r.Email = "alice@x.com"
			r.Bio = "offering ddos and botnet services"
		}),
		newRecord(models.PlatformReddit, "bystander", func(r *models.RawRecord) {
			r.InvestigationID = investigationID
			r.Bio = "gardening and tea"
		}),
		newRecord("", ""), // malformed
	}

	report, err := newTestEngine(t).Analyze(context.Background(), investigationID, records)
	require.NoError(t, err)

	assert.Equal(t, investigationID, report.InvestigationID)
	assert.Equal(t, 4, report.Stats.RecordCount)
	assert.Equal(t, 2, report.Stats.EntityCount)
	assert.Len(t, report.Entities, 2)
	assert.Len(t, report.Unresolved, 1)
	assert.Equal(t, len(report.Assessments), report.Stats.AssessmentCount)
	assert.NotEmpty(t, report.ExecutiveSummary)
	assert.False(t, report.GeneratedAt.IsZero())

	// The alice records merged across platforms on the shared email.
	var alice *models.Entity
	for _, e := range report.Entities {
		if e.CrossPlatform() {
			alice = e
		}
	}
	require.NotNil(t, alice)
	assert.GreaterOrEqual(t, alice.ResolutionConfidence, 0.9)

	// The keyword-laden merged entity carries a suspicious-keyword anomaly
	// and an assessment referencing it.
	assessment := report.AssessmentFor(alice.ID)
	require.NotNil(t, assessment)
	assert.Contains(t, assessment.Indicators, "keyword:ddos")
}

func TestAnalyzeDeterministicContent(t *testing.T) {
	investigationID := uuid.New()
	records := []*models.RawRecord{
		newRecord(models.PlatformGitHub, "alice_dev", func(r *models.RawRecord) { r.Email = "alice@x.com" }),
		newRecord(models.PlatformTwitter, "alice.dev", func(r *models.RawRecord) { r.Email = "alice@x.com" }),
		newRecord(models.PlatformReddit, "bystander", func(r *models.RawRecord) { r.Bio = "gardening" }),
	}

	engine := newTestEngine(t)
	first, err := engine.Analyze(context.Background(), investigationID, records)
	require.NoError(t, err)
	second, err := engine.Analyze(context.Background(), investigationID, records)
	require.NoError(t, err)

	// Identical snapshots yield identical analytical content; only the
	// wall-clock metadata differs.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Entities, second.Entities)
	assert.Equal(t, first.Relationships, second.Relationships)
	assert.Equal(t, first.Patterns, second.Patterns)
	assert.Equal(t, first.Anomalies, second.Anomalies)
	assert.Equal(t, first.Assessments, second.Assessments)
	assert.Equal(t, first.Notes, second.Notes)
	assert.Equal(t, first.ExecutiveSummary, second.ExecutiveSummary)
	assert.Equal(t, first.ConfidenceScore, second.ConfidenceScore)
	assert.Equal(t, first.Stats, second.Stats)
}

func TestAnalyzeEmptySnapshot(t *testing.T) {
	report, err := newTestEngine(t).Analyze(context.Background(), uuid.New(), nil)
	require.NoError(t, err)

	assert.Zero(t, report.Stats.EntityCount)
	assert.Equal(t, 0.0, report.ConfidenceScore)

	var skipped bool
	for _, note := range report.Notes {
		if note.Stage == "pattern-analysis" {
			skipped = true
		}
	}
	assert.True(t, skipped, "expected a pattern-analysis skip note")
}

func TestAnalyzeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := newTestEngine(t)
	_, err := engine.Analyze(ctx, uuid.New(), []*models.RawRecord{
		newRecord(models.PlatformGitHub, "alice_dev"),
		newRecord(models.PlatformTwitter, "alice.dev"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int64(1), engine.Stats().RunsFailed)
}

func TestEngineStatsAccumulate(t *testing.T) {
	engine := newTestEngine(t)
	records := []*models.RawRecord{
		newRecord(models.PlatformGitHub, "alice_dev"),
		newRecord(models.PlatformTwitter, "bob_b"),
	}

	_, err := engine.Analyze(context.Background(), uuid.New(), records)
	require.NoError(t, err)
	_, err = engine.Analyze(context.Background(), uuid.New(), records)
	require.NoError(t, err)

	stats := engine.Stats()
	assert.Equal(t, int64(2), stats.RunsCompleted)
	assert.Equal(t, int64(4), stats.RecordsProcessed)
	assert.False(t, stats.LastRunAt.IsZero())
}
