package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

var testCollectedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecord(platform models.SourcePlatform, identifier string, mutate ...func(*models.RawRecord)) *models.RawRecord {
	rec := &models.RawRecord{
		ID:               uuid.New(),
		InvestigationID:  uuid.New(),
		SourcePlatform:   platform,
		SourceIdentifier: identifier,
		CollectedAt:      testCollectedAt,
	}
	for _, m := range mutate {
		m(rec)
	}
	return rec
}

func newTestResolver(t *testing.T) *EntityResolver {
	t.Helper()
	return NewEntityResolver(models.DefaultEngineConfig().Resolver, testLogger())
}

func TestResolvePartitionsEveryRecord(t *testing.T) {
	malformed := newRecord("", "")
	records := []*models.RawRecord{
		newRecord(models.PlatformGitHub, "alice_dev"),
		newRecord(models.PlatformTwitter, "unrelated_handle_xyz"),
		malformed,
	}

	result, err := newTestResolver(t).Resolve(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, result.Unresolved, 1)
	assert.Equal(t, malformed.ID, result.Unresolved[0].RecordID)

	// Every usable record lands in exactly one entity.
	seen := make(map[uuid.UUID]int)
	for _, e := range result.Entities {
		for _, id := range e.MemberRecords {
			seen[id]++
		}
	}
	assert.Len(t, seen, 2)
	for id, count := range seen {
		assert.Equal(t, 1, count, "record %s assigned to %d entities", id, count)
	}
}

func TestResolveSameKeyDuplicatesMerge(t *testing.T) {
	early := testCollectedAt
	late := testCollectedAt.Add(time.Hour)
	a := newRecord(models.PlatformGitHub, "alice_dev", func(r *models.RawRecord) {
		r.CollectedAt = early
		r.Metrics = map[string]float64{models.MetricFollowerCount: 100}
	})
	b := newRecord(models.PlatformGitHub, "Alice_Dev", func(r *models.RawRecord) {
		r.CollectedAt = late
		r.Metrics = map[string]float64{models.MetricFollowerCount: 120}
	})

	result, err := newTestResolver(t).Resolve(context.Background(), []*models.RawRecord{a, b})
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	entity := result.Entities[0]
	assert.Len(t, entity.MemberRecords, 2)
	assert.Equal(t, 1.0, entity.ResolutionConfidence)

	// Metrics keep the maximum observed value.
	followers, ok := entity.Metric(models.MetricFollowerCount)
	require.True(t, ok)
	assert.Equal(t, 120.0, followers)
}

func TestResolveEmailMatchMergesAcrossPlatforms(t *testing.T) {
	github := newRecord(models.PlatformGitHub, "alice_dev", func(r *models.RawRecord) {
		r.Email = "alice@x.com"
	})
	twitter := newRecord(models.PlatformTwitter, "alice.dev", func(r *models.RawRecord) {
		r.Email = "alice@x.com"
	})

	result, err := newTestResolver(t).Resolve(context.Background(), []*models.RawRecord{github, twitter})
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	entity := result.Entities[0]
	assert.GreaterOrEqual(t, entity.ResolutionConfidence, 0.9)
	assert.True(t, entity.CrossPlatform())
	assert.ElementsMatch(t, []models.SourcePlatform{models.PlatformGitHub, models.PlatformTwitter}, entity.Platforms)
}

func TestResolveCorroboratedProfileMergesWithoutEmail(t *testing.T) {
	github := newRecord(models.PlatformGitHub, "night_owl", func(r *models.RawRecord) {
		r.DisplayName = "Night Owl"
		r.Bio = "reverse engineering and embedded firmware"
	})
	twitter := newRecord(models.PlatformTwitter, "night.owl", func(r *models.RawRecord) {
		r.DisplayName = "Night Owl"
		r.Bio = "reverse engineering and embedded firmware"
	})

	result, err := newTestResolver(t).Resolve(context.Background(), []*models.RawRecord{github, twitter})
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	assert.True(t, result.Entities[0].CrossPlatform())
}

func TestResolveUsernameAloneDoesNotMerge(t *testing.T) {
	// Matching handles with no corroborating field stay separate.
	a := newRecord(models.PlatformGitHub, "night_owl")
	b := newRecord(models.PlatformTwitter, "night.owl")

	result, err := newTestResolver(t).Resolve(context.Background(), []*models.RawRecord{a, b})
	require.NoError(t, err)
	assert.Len(t, result.Entities, 2)
}

func TestResolveTransitiveMerge(t *testing.T) {
	// A joins B through the duplicate platform key, B joins C through the
	// shared email; A and C have nothing in common on their own.
	a := newRecord(models.PlatformGitHub, "night_owl")
	b := newRecord(models.PlatformGitHub, "night_owl", func(r *models.RawRecord) {
		r.CollectedAt = testCollectedAt.Add(time.Hour)
		r.Email = "owl@corp-a.example"
	})
	c := newRecord(models.PlatformTwitter, "completely_other_handle", func(r *models.RawRecord) {
		r.Email = "owl@corp-a.example"
	})

	resolver := newTestResolver(t)
	require.Less(t, resolver.matchScore(a, c), resolver.config.MatchThreshold)

	result, err := resolver.Resolve(context.Background(), []*models.RawRecord{a, b, c})
	require.NoError(t, err)

	counts := map[int]int{}
	for _, e := range result.Entities {
		counts[len(e.MemberRecords)]++
	}
	// All three records end up together through the B bridge.
	assert.Equal(t, map[int]int{3: 1}, counts)
}

func TestResolveKeepsDistinctIdentitiesApart(t *testing.T) {
	a := newRecord(models.PlatformGitHub, "alice_dev", func(r *models.RawRecord) {
		r.Email = "alice@x.com"
		r.DisplayName = "Alice"
	})
	b := newRecord(models.PlatformGitHub, "bob_the_builder", func(r *models.RawRecord) {
		r.Email = "bob@y.com"
		r.DisplayName = "Bob"
	})

	result, err := newTestResolver(t).Resolve(context.Background(), []*models.RawRecord{a, b})
	require.NoError(t, err)
	assert.Len(t, result.Entities, 2)
}

func TestResolveSingletonConfidenceIsOne(t *testing.T) {
	result, err := newTestResolver(t).Resolve(context.Background(),
		[]*models.RawRecord{newRecord(models.PlatformGitHub, "loner")})
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	assert.Equal(t, 1.0, result.Entities[0].ResolutionConfidence)
}

func TestResolveDeterministicAcrossInputOrder(t *testing.T) {
	records := []*models.RawRecord{
		newRecord(models.PlatformGitHub, "alice_dev", func(r *models.RawRecord) { r.Email = "alice@x.com" }),
		newRecord(models.PlatformTwitter, "alice.dev", func(r *models.RawRecord) { r.Email = "alice@x.com" }),
		newRecord(models.PlatformReddit, "someone_else", func(r *models.RawRecord) { r.Email = "other@z.com" }),
	}
	reversed := []*models.RawRecord{records[2], records[1], records[0]}

	resolver := newTestResolver(t)
	first, err := resolver.Resolve(context.Background(), records)
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), reversed)
	require.NoError(t, err)

	require.Len(t, second.Entities, len(first.Entities))
	for i := range first.Entities {
		assert.Equal(t, first.Entities[i].ID, second.Entities[i].ID)
		assert.Equal(t, first.Entities[i].ResolutionConfidence, second.Entities[i].ResolutionConfidence)
	}
	require.Len(t, second.Relationships, len(first.Relationships))
	for i := range first.Relationships {
		assert.Equal(t, first.Relationships[i].ID, second.Relationships[i].ID)
	}
}

func TestResolveSharedDomainRelationship(t *testing.T) {
	a := newRecord(models.PlatformGitHub, "dev_one", func(r *models.RawRecord) {
		r.Email = "one@corp-a.example"
	})
	b := newRecord(models.PlatformTwitter, "totally_different", func(r *models.RawRecord) {
		r.Email = "two@corp-a.example"
	})

	result, err := newTestResolver(t).Resolve(context.Background(), []*models.RawRecord{a, b})
	require.NoError(t, err)
	require.Len(t, result.Entities, 2)

	require.NotEmpty(t, result.Relationships)
	found := false
	for _, rel := range result.Relationships {
		if rel.Type == models.RelationshipSharedDomain {
			found = true
			assert.Equal(t, 0.6, rel.Strength)
			assert.False(t, rel.Directed)
		}
	}
	assert.True(t, found, "expected a shared-domain relationship")
}

func TestResolveFreemailDomainNotLinked(t *testing.T) {
	a := newRecord(models.PlatformGitHub, "dev_one", func(r *models.RawRecord) {
		r.Email = "one@gmail.com"
	})
	b := newRecord(models.PlatformTwitter, "totally_different", func(r *models.RawRecord) {
		r.Email = "two@gmail.com"
	})

	result, err := newTestResolver(t).Resolve(context.Background(), []*models.RawRecord{a, b})
	require.NoError(t, err)

	for _, rel := range result.Relationships {
		assert.NotEqual(t, models.RelationshipSharedDomain, rel.Type)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	result, err := newTestResolver(t).Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Unresolved)
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestResolver(t).Resolve(ctx, []*models.RawRecord{
		newRecord(models.PlatformGitHub, "alice_dev"),
		newRecord(models.PlatformTwitter, "alice.dev"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
