package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelgraph-lab/internal/domain/models"
)

func newEntity(mutate ...func(*models.Entity)) *models.Entity {
	e := &models.Entity{
		ID:                   uuid.New(),
		Platforms:            []models.SourcePlatform{models.PlatformTwitter},
		ResolutionConfidence: 1.0,
	}
	for _, m := range mutate {
		m(e)
	}
	return e
}

func withMetric(name string, value float64) func(*models.Entity) {
	return func(e *models.Entity) {
		if e.Attributes.Metrics == nil {
			e.Attributes.Metrics = make(map[string]float64)
		}
		e.Attributes.Metrics[name] = value
	}
}

func withBio(bio string) func(*models.Entity) {
	return func(e *models.Entity) {
		e.Attributes.Bios = append(e.Attributes.Bios, bio)
	}
}

func withCreatedAt(t time.Time) func(*models.Entity) {
	return func(e *models.Entity) {
		e.Attributes.EarliestSeen = &t
	}
}

func withLocation(loc string) func(*models.Entity) {
	return func(e *models.Entity) {
		e.Attributes.Locations = append(e.Attributes.Locations, loc)
	}
}

func withPlatforms(platforms ...models.SourcePlatform) func(*models.Entity) {
	return func(e *models.Entity) {
		e.Platforms = platforms
	}
}

func edge(a, b *models.Entity, strength float64) *models.Relationship {
	return &models.Relationship{
		ID:       uuid.New(),
		Type:     models.RelationshipCoOccurrence,
		SourceID: a.ID,
		TargetID: b.ID,
		Strength: strength,
	}
}

func newTestAnalyzer(t *testing.T) *PatternAnalyzer {
	t.Helper()
	return NewPatternAnalyzer(models.DefaultEngineConfig().Pattern, testLogger())
}

func patternsNamed(patterns []*models.Pattern, name string) []*models.Pattern {
	var out []*models.Pattern
	for _, p := range patterns {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

func TestAnalyzeNeedsTwoEntities(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	assert.Nil(t, analyzer.Analyze(context.Background(), nil, nil))
	assert.Nil(t, analyzer.Analyze(context.Background(), []*models.Entity{newEntity()}, nil))
}

func TestDetectBehavioralSharedBand(t *testing.T) {
	entities := []*models.Entity{
		newEntity(withMetric(models.MetricPostingRate, 10)),
		newEntity(withMetric(models.MetricPostingRate, 12)),
		newEntity(withMetric(models.MetricPostingRate, 14)),
		newEntity(withMetric(models.MetricPostingRate, 500)),
	}

	patterns := newTestAnalyzer(t).Analyze(context.Background(), entities, nil)
	bands := patternsNamed(patterns, "shared-posting-rate-band")
	require.Len(t, bands, 1)
	assert.Equal(t, models.PatternBehavioral, bands[0].Type)
	assert.Len(t, bands[0].EntityIDs, 3)
	assert.Greater(t, bands[0].Confidence, 0.0)
	assert.False(t, bands[0].Involves(entities[3].ID))
}

func TestDetectTemporalCreationBurst(t *testing.T) {
	burst := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	entities := []*models.Entity{
		newEntity(withCreatedAt(burst.Add(2 * time.Hour))),
		newEntity(withCreatedAt(burst.Add(7 * time.Hour))),
		newEntity(withCreatedAt(burst.Add(21 * time.Hour))),
		newEntity(withCreatedAt(burst.AddDate(0, -6, 0))),
	}

	patterns := newTestAnalyzer(t).Analyze(context.Background(), entities, nil)
	bursts := patternsNamed(patterns, "creation-burst")
	require.Len(t, bursts, 1)
	assert.Equal(t, models.PatternTemporal, bursts[0].Type)
	assert.Len(t, bursts[0].EntityIDs, 3)
	assert.Equal(t, 3.0, bursts[0].SupportingMetrics["burst_size"])
}

func TestDetectContentSharedHashtag(t *testing.T) {
	entities := []*models.Entity{
		newEntity(withBio("tracking #opsec daily")),
		newEntity(withBio("all about #opsec and more")),
		newEntity(withBio("#OPSEC enthusiast")),
		newEntity(withBio("gardening and tea")),
	}

	patterns := newTestAnalyzer(t).Analyze(context.Background(), entities, nil)
	shared := patternsNamed(patterns, "shared-hashtag")
	require.Len(t, shared, 1)
	assert.Equal(t, models.PatternContent, shared[0].Type)
	assert.Len(t, shared[0].EntityIDs, 3)
	assert.Contains(t, shared[0].Description, "#opsec")
}

func TestDetectGeographicRegionalCluster(t *testing.T) {
	entities := []*models.Entity{
		newEntity(withLocation("Berlin, Germany")),
		newEntity(withLocation("Hamburg, Germany")),
		newEntity(withLocation("Munich,germany")),
		newEntity(withLocation("Lyon, France")),
	}

	patterns := newTestAnalyzer(t).Analyze(context.Background(), entities, nil)
	clusters := patternsNamed(patterns, "regional-cluster")
	require.Len(t, clusters, 1)
	assert.Equal(t, models.PatternGeographic, clusters[0].Type)
	assert.Len(t, clusters[0].EntityIDs, 3)
}

func TestDetectNetworkDenseCluster(t *testing.T) {
	a, b, c := newEntity(), newEntity(), newEntity()
	loner := newEntity()
	entities := []*models.Entity{a, b, c, loner}
	relationships := []*models.Relationship{
		edge(a, b, 0.7),
		edge(b, c, 0.7),
		edge(a, c, 0.7),
	}

	patterns := newTestAnalyzer(t).Analyze(context.Background(), entities, relationships)
	dense := patternsNamed(patterns, "dense-cluster")
	require.Len(t, dense, 1)
	assert.Equal(t, models.PatternNetwork, dense[0].Type)
	assert.Len(t, dense[0].EntityIDs, 3)
	assert.InDelta(t, 1.0, dense[0].SupportingMetrics["density"], 0.001)
	assert.Len(t, dense[0].RelationshipIDs, 3)
	assert.False(t, dense[0].Involves(loner.ID))
}

func TestWeakEdgesDoNotFormClusters(t *testing.T) {
	a, b, c := newEntity(), newEntity(), newEntity()
	relationships := []*models.Relationship{
		edge(a, b, 0.2),
		edge(b, c, 0.2),
		edge(a, c, 0.2),
	}

	patterns := newTestAnalyzer(t).Analyze(context.Background(), []*models.Entity{a, b, c}, relationships)
	assert.Empty(t, patternsNamed(patterns, "dense-cluster"))
}

func TestCrossPlatformRecurrence(t *testing.T) {
	// Three cross-platform entities recurring in both a content and a
	// geographic pattern.
	mutators := []func(*models.Entity){
		withPlatforms(models.PlatformGitHub, models.PlatformTwitter),
		withBio("coordinating via #signalboost"),
		withLocation("Berlin, Germany"),
	}
	entities := []*models.Entity{
		newEntity(mutators...),
		newEntity(mutators...),
		newEntity(mutators...),
	}

	patterns := newTestAnalyzer(t).Analyze(context.Background(), entities, nil)
	recurrence := patternsNamed(patterns, "cross-platform-recurrence")
	require.Len(t, recurrence, 3)
	for _, p := range recurrence {
		assert.Equal(t, models.PatternCrossPlatform, p.Type)
		assert.Equal(t, 2.0, p.SupportingMetrics["pattern_types"])
	}
}

func TestAnalyzeDeterministicOutput(t *testing.T) {
	entities := []*models.Entity{
		newEntity(withBio("tracking #opsec"), withLocation("Berlin, Germany")),
		newEntity(withBio("more #opsec"), withLocation("Hamburg, Germany")),
		newEntity(withBio("#opsec again"), withLocation("Munich, Germany")),
	}

	analyzer := newTestAnalyzer(t)
	first := analyzer.Analyze(context.Background(), entities, nil)
	second := analyzer.Analyze(context.Background(), entities, nil)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Confidence, second[i].Confidence)
	}
}
