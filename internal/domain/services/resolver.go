package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/pkg/logger"
)

// Namespaces for deterministic IDs. Re-running resolution on an identical
// record snapshot must yield identical entity and relationship IDs.
var (
	nsEntity       = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	nsRelationship = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	nsArtifact     = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")
)

// freemailDomains are excluded from shared-domain relationship inference since
// sharing them carries no signal.
var freemailDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true,
	"hotmail.com": true, "outlook.com": true, "proton.me": true,
	"protonmail.com": true, "icloud.com": true, "aol.com": true,
}

// EntityResolver merges raw per-source records into canonical entities using
// weighted similarity channels over a union-find match graph.
type EntityResolver struct {
	config models.ResolverConfig
	logger *logger.Logger
}

// NewEntityResolver creates a new entity resolver
func NewEntityResolver(cfg models.ResolverConfig, log *logger.Logger) *EntityResolver {
	return &EntityResolver{
		config: cfg,
		logger: log.WithComponent("entity-resolver"),
	}
}

// pairScore is one scored record pair within the match graph.
type pairScore struct {
	a, b  int
	score float64
}

// Resolve assigns every usable record to exactly one entity. Records missing
// identity fields entirely are excluded from matching but reported as
// unresolved rather than failing the run.
func (r *EntityResolver) Resolve(ctx context.Context, records []*models.RawRecord) (*models.ResolutionResult, error) {
	result := &models.ResolutionResult{}

	// Partition out malformed records.
	usable := make([]*models.RawRecord, 0, len(records))
	for _, rec := range records {
		if rec.HasIdentity() {
			usable = append(usable, rec)
		} else {
			result.Unresolved = append(result.Unresolved, models.UnresolvedRecord{
				RecordID: rec.ID,
				Reason:   "record is missing source platform or identifier",
			})
		}
	}

	// Canonical input order makes the whole pass deterministic.
	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].Key() != usable[j].Key() {
			return usable[i].Key() < usable[j].Key()
		}
		return usable[i].CollectedAt.Before(usable[j].CollectedAt)
	})

	if len(usable) == 0 {
		result.Entities = []*models.Entity{}
		return result, nil
	}

	uf := newUnionFind(len(usable))
	var merged []pairScore

	// Trivial case first: same platform, same identifier.
	byKey := make(map[string][]int, len(usable))
	for i, rec := range usable {
		byKey[rec.Key()] = append(byKey[rec.Key()], i)
	}
	for _, group := range byKey {
		for k := 1; k < len(group); k++ {
			uf.union(group[0], group[k])
			merged = append(merged, pairScore{a: group[0], b: group[k], score: 1.0})
		}
	}

	// Cross-record matching over the weighted similarity channels.
	crossScores := make(map[[2]int]float64)
	for i := 0; i < len(usable); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolution cancelled: %w", err)
		}
		for j := i + 1; j < len(usable); j++ {
			if usable[i].Key() == usable[j].Key() {
				continue
			}
			score := r.matchScore(usable[i], usable[j])
			result.PairsScored++
			crossScores[[2]int{i, j}] = score
			if score >= r.config.MatchThreshold {
				uf.union(i, j)
				merged = append(merged, pairScore{a: i, b: j, score: score})
				result.PairsMerged++
			}
		}
	}

	entities, indexToEntity := r.buildEntities(usable, uf, merged)
	result.Entities = entities
	result.Relationships = r.linkEntities(indexToEntity, entities, crossScores)

	r.logger.Debug().
		Int("records", len(records)).
		Int("entities", len(entities)).
		Int("unresolved", len(result.Unresolved)).
		Int("pairs_merged", result.PairsMerged).
		Msg("resolution pass complete")

	return result, nil
}

// matchScore combines the per-channel similarity scores with the configured
// weights. Only channels populated on both records count toward the weight
// mass, so fields absent from either side do not dilute the ones present.
func (r *EntityResolver) matchScore(a, b *models.RawRecord) float64 {
	w := r.config.ChannelWeights
	email := emailScore(a, b)

	var sum, mass float64
	channels := 0
	add := func(weight, score float64, populated bool) {
		if !populated || weight <= 0 {
			return
		}
		sum += weight * score
		mass += weight
		channels++
	}
	add(w.Username, usernameScore(a, b), a.SourceIdentifier != "" && b.SourceIdentifier != "")
	add(w.Email, email, a.Email != "" && b.Email != "")
	add(w.DisplayName, displayNameScore(a, b), a.DisplayName != "" && b.DisplayName != "")
	add(w.Content, contentScore(a, b), a.Bio != "" && b.Bio != "")
	add(w.Domain, domainScore(a, b), domainsComparable(a, b))

	// A lone populated channel is normalized against the full weight mass,
	// so a bare username collision cannot clear the threshold by itself.
	if channels < 2 {
		mass = w.Sum()
	}
	if mass <= 0 {
		return 0
	}
	score := sum / mass

	// An exact email match is near-conclusive identity evidence on its own,
	// regardless of how the weaker channels score.
	if email == 1.0 && w.Email > 0 && score < 0.95 {
		score = 0.95
	}
	return score
}

func usernameScore(a, b *models.RawRecord) float64 {
	na, nb := normalizeUsername(a.SourceIdentifier), normalizeUsername(b.SourceIdentifier)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	return similarityRatio(na, nb)
}

func emailScore(a, b *models.RawRecord) float64 {
	if a.Email == "" || b.Email == "" {
		return 0
	}
	ea, eb := normalizeEmail(a.Email), normalizeEmail(b.Email)
	if ea == eb {
		return 1.0
	}
	if ratio := similarityRatio(ea, eb); ratio >= 0.9 {
		return ratio
	}
	return 0
}

func displayNameScore(a, b *models.RawRecord) float64 {
	if a.DisplayName == "" || b.DisplayName == "" {
		return 0
	}
	ratio := similarityRatio(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName))
	if overlap := tokenOverlap(a.DisplayName, b.DisplayName); overlap > ratio {
		return overlap
	}
	return ratio
}

func contentScore(a, b *models.RawRecord) float64 {
	if a.Bio == "" || b.Bio == "" {
		return 0
	}
	return tokenOverlap(a.Bio, b.Bio)
}

// domainsComparable reports whether the domain channel applies to a pair:
// at least one domain-typed record, with a derivable domain on both sides.
func domainsComparable(a, b *models.RawRecord) bool {
	if a.SourcePlatform != models.PlatformDomain && b.SourcePlatform != models.PlatformDomain {
		return false
	}
	return recordDomain(a) != "" && recordDomain(b) != ""
}

// domainScore applies only when at least one side is a domain-typed record.
// It compares the domain against the other record's domain or email host.
func domainScore(a, b *models.RawRecord) float64 {
	da, db := recordDomain(a), recordDomain(b)
	if a.SourcePlatform != models.PlatformDomain && b.SourcePlatform != models.PlatformDomain {
		return 0
	}
	if da == "" || db == "" {
		return 0
	}
	return domainContainment(da, db)
}

// recordDomain extracts the comparable domain for a record: the identifier for
// domain records, otherwise the email host.
func recordDomain(rec *models.RawRecord) string {
	if rec.SourcePlatform == models.PlatformDomain {
		return strings.ToLower(rec.SourceIdentifier)
	}
	if rec.Email != "" {
		if at := strings.LastIndex(rec.Email, "@"); at >= 0 && at+1 < len(rec.Email) {
			return strings.ToLower(rec.Email[at+1:])
		}
	}
	return ""
}

// buildEntities materializes union-find clusters into canonical entities with
// merged attributes and a resolution confidence.
func (r *EntityResolver) buildEntities(records []*models.RawRecord, uf *unionFind, merged []pairScore) ([]*models.Entity, map[int]*models.Entity) {
	// Collect merge scores per cluster root.
	scoresByRoot := make(map[int][]float64)
	for _, p := range merged {
		root := uf.find(p.a)
		scoresByRoot[root] = append(scoresByRoot[root], p.score)
	}

	clusters := uf.sets()
	entities := make([]*models.Entity, 0, len(clusters))
	indexToEntity := make(map[int]*models.Entity, len(records))

	for _, cluster := range clusters {
		keys := make([]string, 0, len(cluster))
		for _, idx := range cluster {
			keys = append(keys, records[idx].Key())
		}
		sorted := append([]string(nil), keys...)
		sort.Strings(sorted)

		entity := &models.Entity{
			ID: uuid.NewSHA1(nsEntity, []byte(strings.Join(sorted, "|"))),
		}
		for _, idx := range cluster {
			mergeRecord(entity, records[idx])
			indexToEntity[idx] = entity
		}
		entity.ResolutionConfidence = r.clusterConfidence(scoresByRoot[uf.find(cluster[0])])
		entities = append(entities, entity)
	}

	// Canonical output order by entity ID.
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID.String() < entities[j].ID.String()
	})
	return entities, indexToEntity
}

// clusterConfidence aggregates pairwise merge scores. A singleton has nothing
// to conflict with and is certain by definition.
func (r *EntityResolver) clusterConfidence(scores []float64) float64 {
	if len(scores) == 0 {
		return 1.0
	}
	if r.config.ConfidenceMode == models.ConfidenceMean {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores))
	}
	minScore := scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
	}
	return minScore
}

// mergeRecord unions a record's attributes into an entity. Values accumulate,
// never overwrite; metrics keep the maximum observed value per name.
func mergeRecord(e *models.Entity, rec *models.RawRecord) {
	e.MemberRecords = append(e.MemberRecords, rec.ID)

	hasPlatform := false
	for _, p := range e.Platforms {
		if p == rec.SourcePlatform {
			hasPlatform = true
			break
		}
	}
	if !hasPlatform {
		e.Platforms = append(e.Platforms, rec.SourcePlatform)
	}

	attrs := &e.Attributes
	attrs.Usernames = appendUnique(attrs.Usernames, rec.SourceIdentifier)
	if rec.DisplayName != "" {
		attrs.DisplayNames = appendUnique(attrs.DisplayNames, rec.DisplayName)
	}
	if rec.Email != "" {
		attrs.Emails = appendUnique(attrs.Emails, normalizeEmail(rec.Email))
	}
	if rec.Bio != "" {
		attrs.Bios = appendUnique(attrs.Bios, rec.Bio)
	}
	if rec.Location != "" {
		attrs.Locations = appendUnique(attrs.Locations, rec.Location)
	}
	if rec.Verified {
		attrs.Verified = true
	}
	if rec.CreatedAt != nil {
		if attrs.EarliestSeen == nil || rec.CreatedAt.Before(*attrs.EarliestSeen) {
			t := *rec.CreatedAt
			attrs.EarliestSeen = &t
		}
	}
	for name, value := range rec.Metrics {
		if attrs.Metrics == nil {
			attrs.Metrics = make(map[string]float64)
		}
		if existing, ok := attrs.Metrics[name]; !ok || value > existing {
			attrs.Metrics[name] = value
		}
	}
}

// linkEntities emits cross-entity relationship edges found during resolution:
// near-miss pairs that scored below the merge threshold but above half of it
// become co-occurrence edges, and entities sharing a non-freemail email domain
// become shared-domain edges.
func (r *EntityResolver) linkEntities(indexToEntity map[int]*models.Entity, entities []*models.Entity, crossScores map[[2]int]float64) []*models.Relationship {
	best := make(map[edgeKey]float64)

	for pair, score := range crossScores {
		if score >= r.config.MatchThreshold || score < r.config.MatchThreshold/2 {
			continue
		}
		ea, eb := indexToEntity[pair[0]], indexToEntity[pair[1]]
		if ea == nil || eb == nil || ea.ID == eb.ID {
			continue
		}
		key := orderedEdgeKey(ea.ID, eb.ID, models.RelationshipCoOccurrence)
		if score > best[key] {
			best[key] = score
		}
	}

	// Shared email domains across distinct entities.
	byDomain := make(map[string][]*models.Entity)
	for _, e := range entities {
		seen := map[string]bool{}
		for _, email := range e.Attributes.Emails {
			at := strings.LastIndex(email, "@")
			if at < 0 || at+1 >= len(email) {
				continue
			}
			domain := email[at+1:]
			if freemailDomains[domain] || seen[domain] {
				continue
			}
			seen[domain] = true
			byDomain[domain] = append(byDomain[domain], e)
		}
	}
	for _, group := range byDomain {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				key := orderedEdgeKey(group[i].ID, group[j].ID, models.RelationshipSharedDomain)
				if 0.6 > best[key] {
					best[key] = 0.6
				}
			}
		}
	}

	edges := make([]*models.Relationship, 0, len(best))
	for key, strength := range best {
		edges = append(edges, &models.Relationship{
			ID:       uuid.NewSHA1(nsRelationship, []byte(string(key.typ)+"|"+key.a.String()+"|"+key.b.String())),
			Type:     key.typ,
			SourceID: key.a,
			TargetID: key.b,
			Directed: false,
			Strength: strength,
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].ID.String() < edges[j].ID.String()
	})
	return edges
}

// edgeKey identifies an undirected typed edge between two entities.
type edgeKey struct {
	a, b uuid.UUID
	typ  models.RelationshipType
}

// orderedEdgeKey normalizes an undirected edge so (a,b) and (b,a) collapse.
func orderedEdgeKey(a, b uuid.UUID, typ models.RelationshipType) edgeKey {
	if a.String() > b.String() {
		a, b = b, a
	}
	return edgeKey{a: a, b: b, typ: typ}
}

// appendUnique appends value when not already present, preserving order.
func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
