package services

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/pkg/logger"
)

var (
	hashtagPattern = regexp.MustCompile(`#[a-zA-Z0-9_]{2,}`)
	mentionPattern = regexp.MustCompile(`@[a-zA-Z0-9_.]{2,}`)
	urlPattern     = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"')]+`)
)

// PatternAnalyzer detects recurring behavioral, network, temporal, content and
// geographic regularities across resolved entities. Each detector is a pure
// function over the resolved graph and tolerates empty or singleton inputs.
type PatternAnalyzer struct {
	config models.PatternConfig
	logger *logger.Logger
}

// NewPatternAnalyzer creates a new pattern analyzer
func NewPatternAnalyzer(cfg models.PatternConfig, log *logger.Logger) *PatternAnalyzer {
	return &PatternAnalyzer{
		config: cfg,
		logger: log.WithComponent("pattern-analyzer"),
	}
}

// Analyze runs all detectors and returns their union in canonical order.
func (a *PatternAnalyzer) Analyze(ctx context.Context, entities []*models.Entity, relationships []*models.Relationship) []*models.Pattern {
	if len(entities) < 2 {
		return nil
	}

	var patterns []*models.Pattern
	patterns = append(patterns, a.detectBehavioral(entities)...)
	patterns = append(patterns, a.detectNetwork(entities, relationships)...)
	patterns = append(patterns, a.detectTemporal(entities)...)
	patterns = append(patterns, a.detectContent(entities)...)
	patterns = append(patterns, a.detectGeographic(entities)...)

	if err := ctx.Err(); err != nil {
		// Best-effort cancellation between detector groups.
		return nil
	}

	patterns = append(patterns, a.correlateCrossPlatform(entities, patterns)...)

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Type != patterns[j].Type {
			return patterns[i].Type < patterns[j].Type
		}
		if patterns[i].Name != patterns[j].Name {
			return patterns[i].Name < patterns[j].Name
		}
		return patterns[i].ID.String() < patterns[j].ID.String()
	})

	a.logger.Debug().
		Int("entities", len(entities)).
		Int("relationships", len(relationships)).
		Int("patterns", len(patterns)).
		Msg("pattern analysis complete")

	return patterns
}

// behavioralMetrics are the per-entity rates the behavioral detector groups on.
var behavioralMetrics = []string{
	models.MetricPostingRate,
	models.MetricEngagementRate,
	models.MetricGrowthRate,
}

// detectBehavioral finds groups of entities sharing the same order of
// magnitude for a behavioral rate. A single outlier is the anomaly detector's
// job; this detector only reports shapes shared by at least MinGroupSize
// entities.
func (a *PatternAnalyzer) detectBehavioral(entities []*models.Entity) []*models.Pattern {
	var patterns []*models.Pattern

	metrics := append([]string(nil), behavioralMetrics...)
	metrics = append(metrics, "follower_following_ratio")

	for _, metric := range metrics {
		bands := make(map[int][]*models.Entity)
		population := 0
		for _, e := range entities {
			value, ok := entityMetric(e, metric)
			if !ok {
				continue
			}
			population++
			bands[magnitudeBand(value)] = append(bands[magnitudeBand(value)], e)
		}
		if population < a.config.MinGroupSize {
			continue
		}

		bandKeys := make([]int, 0, len(bands))
		for band := range bands {
			bandKeys = append(bandKeys, band)
		}
		sort.Ints(bandKeys)

		for _, band := range bandKeys {
			group := bands[band]
			if len(group) < a.config.MinGroupSize {
				continue
			}
			ids := entityIDs(group)
			patterns = append(patterns, &models.Pattern{
				ID:   patternID("behavioral", metric, ids),
				Type: models.PatternBehavioral,
				Name: fmt.Sprintf("shared-%s-band", strings.ReplaceAll(metric, "_", "-")),
				Description: fmt.Sprintf("%d entities share a similar %s (band %d)",
					len(group), strings.ReplaceAll(metric, "_", " "), band),
				EntityIDs:  ids,
				Confidence: groupConfidence(len(group), population, 1.0),
				SupportingMetrics: map[string]float64{
					"group_size": float64(len(group)),
					"population": float64(population),
				},
			})
		}
	}
	return patterns
}

// detectNetwork computes degree metrics over the relationship graph, reports
// dense components over strong edges and flags centrality outliers.
func (a *PatternAnalyzer) detectNetwork(entities []*models.Entity, relationships []*models.Relationship) []*models.Pattern {
	if len(relationships) == 0 {
		return nil
	}
	var patterns []*models.Pattern

	degree := make(map[uuid.UUID]int)
	for _, rel := range relationships {
		degree[rel.SourceID]++
		degree[rel.TargetID]++
	}

	// Dense components over strong edges.
	components := a.strongComponents(entities, relationships)
	for _, comp := range components {
		if len(comp.members) < a.config.DenseClusterMin {
			continue
		}
		n := len(comp.members)
		possible := n * (n - 1) / 2
		density := float64(comp.edges) / float64(possible)

		patterns = append(patterns, &models.Pattern{
			ID:   patternID("network", "dense-cluster", comp.members),
			Type: models.PatternNetwork,
			Name: "dense-cluster",
			Description: fmt.Sprintf("%d entities form a densely connected cluster (density %.2f)",
				n, density),
			EntityIDs:       comp.members,
			RelationshipIDs: comp.edgeIDs,
			Confidence:      groupConfidence(n, len(entities), density),
			SupportingMetrics: map[string]float64{
				"cluster_size": float64(n),
				"density":      density,
			},
		})
	}

	// Centrality outliers: degree at least two standard deviations above mean.
	if len(degree) >= a.config.MinGroupSize {
		values := make([]float64, 0, len(entities))
		for _, e := range entities {
			values = append(values, float64(degree[e.ID]))
		}
		mean := stat.Mean(values, nil)
		stddev := stat.StdDev(values, nil)
		if stddev > 0 {
			for _, e := range entities {
				d := float64(degree[e.ID])
				z := (d - mean) / stddev
				if z < 2.0 {
					continue
				}
				ids := []uuid.UUID{e.ID}
				patterns = append(patterns, &models.Pattern{
					ID:   patternID("network", "influence-hub", ids),
					Type: models.PatternNetwork,
					Name: "influence-hub",
					Description: fmt.Sprintf("entity holds %d connections, %.1f standard deviations above the population mean",
						int(d), z),
					EntityIDs:  ids,
					Confidence: clamp(z/4.0, 0, 1),
					SupportingMetrics: map[string]float64{
						"degree":  d,
						"z_score": z,
					},
				})
			}
		}
	}
	return patterns
}

type component struct {
	members []uuid.UUID
	edgeIDs []uuid.UUID
	edges   int
}

// strongComponents computes connected components over edges whose strength
// meets the configured floor.
func (a *PatternAnalyzer) strongComponents(entities []*models.Entity, relationships []*models.Relationship) []component {
	index := make(map[uuid.UUID]int, len(entities))
	for i, e := range entities {
		index[e.ID] = i
	}
	uf := newUnionFind(len(entities))
	for _, rel := range relationships {
		if rel.Strength < a.config.StrongEdgeMin {
			continue
		}
		si, okS := index[rel.SourceID]
		ti, okT := index[rel.TargetID]
		if okS && okT {
			uf.union(si, ti)
		}
	}

	comps := make(map[int]*component)
	var roots []int
	for i, e := range entities {
		root := uf.find(i)
		if _, ok := comps[root]; !ok {
			comps[root] = &component{}
			roots = append(roots, root)
		}
		comps[root].members = append(comps[root].members, e.ID)
	}
	for _, rel := range relationships {
		if rel.Strength < a.config.StrongEdgeMin {
			continue
		}
		if si, ok := index[rel.SourceID]; ok {
			root := uf.find(si)
			comps[root].edges++
			comps[root].edgeIDs = append(comps[root].edgeIDs, rel.ID)
		}
	}

	out := make([]component, 0, len(roots))
	for _, root := range roots {
		out = append(out, *comps[root])
	}
	return out
}

// detectTemporal groups entities by account-creation window to find bursts,
// the signature of coordinated account farming.
func (a *PatternAnalyzer) detectTemporal(entities []*models.Entity) []*models.Pattern {
	var patterns []*models.Pattern

	windows := make(map[time.Time][]*models.Entity)
	dated := 0
	for _, e := range entities {
		if e.Attributes.EarliestSeen == nil {
			continue
		}
		dated++
		start := e.Attributes.EarliestSeen.Truncate(a.config.BurstWindow)
		windows[start] = append(windows[start], e)
	}
	if dated < a.config.MinGroupSize {
		return nil
	}

	starts := make([]time.Time, 0, len(windows))
	for start := range windows {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	for _, start := range starts {
		group := windows[start]
		if len(group) < a.config.MinGroupSize {
			continue
		}
		ids := entityIDs(group)
		patterns = append(patterns, &models.Pattern{
			ID:   patternID("temporal", "creation-burst", ids),
			Type: models.PatternTemporal,
			Name: "creation-burst",
			Description: fmt.Sprintf("%d accounts created within the %s window starting %s",
				len(group), a.config.BurstWindow, start.UTC().Format(time.RFC3339)),
			EntityIDs:  ids,
			Confidence: groupConfidence(len(group), dated, 1.0),
			SupportingMetrics: map[string]float64{
				"burst_size": float64(len(group)),
				"population": float64(dated),
			},
		})
	}
	return patterns
}

// detectContent finds hashtags, mentions, URLs and keywords recurring across
// entity bios.
func (a *PatternAnalyzer) detectContent(entities []*models.Entity) []*models.Pattern {
	type tokenGroup struct {
		kind    string
		members []*models.Entity
	}
	groups := make(map[string]*tokenGroup)

	record := func(token, kind string, e *models.Entity) {
		g, ok := groups[token]
		if !ok {
			g = &tokenGroup{kind: kind}
			groups[token] = g
		}
		for _, m := range g.members {
			if m.ID == e.ID {
				return
			}
		}
		g.members = append(g.members, e)
	}

	population := 0
	for _, e := range entities {
		if len(e.Attributes.Bios) == 0 {
			continue
		}
		population++
		text := strings.Join(e.Attributes.Bios, " ")
		for _, tag := range hashtagPattern.FindAllString(text, -1) {
			record(strings.ToLower(tag), "hashtag", e)
		}
		for _, mention := range mentionPattern.FindAllString(text, -1) {
			record(strings.ToLower(mention), "mention", e)
		}
		for _, url := range urlPattern.FindAllString(text, -1) {
			record(strings.ToLower(url), "url", e)
		}
	}
	if population < a.config.MinGroupSize {
		return nil
	}

	tokens := make([]string, 0, len(groups))
	for token := range groups {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	var patterns []*models.Pattern
	for _, token := range tokens {
		g := groups[token]
		if len(g.members) < a.config.MinGroupSize {
			continue
		}
		ids := entityIDs(g.members)
		patterns = append(patterns, &models.Pattern{
			ID:   patternID("content", token, ids),
			Type: models.PatternContent,
			Name: "shared-" + g.kind,
			Description: fmt.Sprintf("%d entities share the %s %q in profile content",
				len(g.members), g.kind, token),
			EntityIDs:  ids,
			Confidence: groupConfidence(len(g.members), population, 1.0),
			SupportingMetrics: map[string]float64{
				"group_size": float64(len(g.members)),
				"population": float64(population),
			},
		})
	}
	return patterns
}

// detectGeographic clusters entities by normalized declared location.
func (a *PatternAnalyzer) detectGeographic(entities []*models.Entity) []*models.Pattern {
	regions := make(map[string][]*models.Entity)
	located := 0
	for _, e := range entities {
		region := normalizeRegion(e.Attributes.Locations)
		if region == "" {
			continue
		}
		located++
		regions[region] = append(regions[region], e)
	}
	if located < a.config.MinGroupSize {
		return nil
	}

	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	sort.Strings(names)

	var patterns []*models.Pattern
	for _, name := range names {
		group := regions[name]
		if len(group) < a.config.MinGroupSize {
			continue
		}
		ids := entityIDs(group)
		patterns = append(patterns, &models.Pattern{
			ID:   patternID("geographic", name, ids),
			Type: models.PatternGeographic,
			Name: "regional-cluster",
			Description: fmt.Sprintf("%d entities declare locations in %q",
				len(group), name),
			EntityIDs:  ids,
			Confidence: groupConfidence(len(group), located, 1.0),
			SupportingMetrics: map[string]float64{
				"group_size": float64(len(group)),
				"population": float64(located),
			},
		})
	}
	return patterns
}

// correlateCrossPlatform raises the confidence of patterns whose member
// entities span multiple platforms and emits a cross-platform pattern for
// entities recurring across detectors while spanning platforms.
func (a *PatternAnalyzer) correlateCrossPlatform(entities []*models.Entity, patterns []*models.Pattern) []*models.Pattern {
	byID := make(map[uuid.UUID]*models.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	patternCount := make(map[uuid.UUID]map[models.PatternType]bool)
	for _, p := range patterns {
		spans := false
		for _, id := range p.EntityIDs {
			e := byID[id]
			if e == nil {
				continue
			}
			if e.CrossPlatform() {
				spans = true
			}
			if patternCount[id] == nil {
				patternCount[id] = make(map[models.PatternType]bool)
			}
			patternCount[id][p.Type] = true
		}
		if spans {
			p.Confidence = clamp(p.Confidence*1.15, 0, 1)
		}
	}

	var extra []*models.Pattern
	for _, e := range entities {
		if !e.CrossPlatform() || len(patternCount[e.ID]) < 2 {
			continue
		}
		ids := []uuid.UUID{e.ID}
		extra = append(extra, &models.Pattern{
			ID:   patternID("cross_platform", "recurring", ids),
			Type: models.PatternCrossPlatform,
			Name: "cross-platform-recurrence",
			Description: fmt.Sprintf("entity exhibits %d distinct pattern types across %d platforms",
				len(patternCount[e.ID]), len(e.Platforms)),
			EntityIDs:  ids,
			Platforms:  e.Platforms,
			Confidence: clamp(0.5+0.15*float64(len(patternCount[e.ID])), 0, 1),
			SupportingMetrics: map[string]float64{
				"pattern_types": float64(len(patternCount[e.ID])),
				"platforms":     float64(len(e.Platforms)),
			},
		})
	}
	return extra
}

// entityMetric resolves a metric name for an entity, deriving the
// follower/following ratio when asked for.
func entityMetric(e *models.Entity, name string) (float64, bool) {
	if name == "follower_following_ratio" {
		followers, okF := e.Metric(models.MetricFollowerCount)
		following, okG := e.Metric(models.MetricFollowingCount)
		if !okF || !okG || following == 0 {
			return 0, false
		}
		return followers / following, true
	}
	return e.Metric(name)
}

// magnitudeBand buckets a non-negative value by order of magnitude.
func magnitudeBand(value float64) int {
	if value <= 0 {
		return -1
	}
	return int(math.Floor(math.Log2(value + 1)))
}

// groupConfidence derives a pattern confidence from sample size and effect
// size: larger groups covering more of the population score higher.
func groupConfidence(groupSize, population int, effect float64) float64 {
	if population == 0 {
		return 0
	}
	sizeScore := clamp(float64(groupSize)/10.0, 0, 1)
	coverage := float64(groupSize) / float64(population)
	return clamp((0.5*sizeScore+0.5*coverage)*effect, 0, 1)
}

// patternID derives a deterministic pattern ID from its kind and members.
func patternID(kind, name string, members []uuid.UUID) uuid.UUID {
	parts := make([]string, 0, len(members)+2)
	parts = append(parts, "pattern", kind, name)
	for _, id := range members {
		parts = append(parts, id.String())
	}
	return uuid.NewSHA1(nsArtifact, []byte(strings.Join(parts, "|")))
}

// entityIDs extracts the IDs of a group in canonical order.
func entityIDs(group []*models.Entity) []uuid.UUID {
	ids := make([]uuid.UUID, len(group))
	for i, e := range group {
		ids[i] = e.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
