package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/pkg/logger"
)

// metricFamily describes one statistically monitored metric family.
type metricFamily struct {
	name    string
	kind    models.AnomalyType
	extract func(e *models.Entity, g *graphMetrics, ref time.Time) (float64, bool)
}

// graphMetrics holds per-entity structural measurements derived from the
// relationship graph once per detection pass.
type graphMetrics struct {
	degree      map[uuid.UUID]int
	clusterSize map[uuid.UUID]int
}

// DetectionResult is the anomaly detector's output: flagged anomalies plus
// informational notes for skipped metric families.
type DetectionResult struct {
	Anomalies []*models.Anomaly
	Notes     []models.ReportNote
}

// AnomalyDetector flags entities whose metrics deviate statistically from the
// investigation population, unioned with rule-based detections. Statistical
// flagging for a metric family is skipped entirely when the population is
// below the configured minimum sample size.
type AnomalyDetector struct {
	config models.AnomalyConfig
	logger *logger.Logger
}

// NewAnomalyDetector creates a new anomaly detector
func NewAnomalyDetector(cfg models.AnomalyConfig, log *logger.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		config: cfg,
		logger: log.WithComponent("anomaly-detector"),
	}
}

// families enumerates the monitored metric families in canonical order.
func (d *AnomalyDetector) families() []metricFamily {
	return []metricFamily{
		{"posting_frequency", models.AnomalyBehavioral, func(e *models.Entity, _ *graphMetrics, _ time.Time) (float64, bool) {
			return e.Metric(models.MetricPostingRate)
		}},
		{"follower_count", models.AnomalyBehavioral, func(e *models.Entity, _ *graphMetrics, _ time.Time) (float64, bool) {
			return e.Metric(models.MetricFollowerCount)
		}},
		{"follower_following_ratio", models.AnomalyBehavioral, func(e *models.Entity, _ *graphMetrics, _ time.Time) (float64, bool) {
			return entityMetric(e, "follower_following_ratio")
		}},
		{"growth_rate", models.AnomalyTemporal, func(e *models.Entity, _ *graphMetrics, _ time.Time) (float64, bool) {
			return e.Metric(models.MetricGrowthRate)
		}},
		{"account_age_days", models.AnomalyTemporal, func(e *models.Entity, _ *graphMetrics, ref time.Time) (float64, bool) {
			age, ok := e.AccountAge(ref)
			if !ok {
				return 0, false
			}
			return age.Hours() / 24, true
		}},
		{"content_length", models.AnomalyContent, func(e *models.Entity, _ *graphMetrics, _ time.Time) (float64, bool) {
			if len(e.Attributes.Bios) == 0 {
				return 0, false
			}
			total := 0
			for _, bio := range e.Attributes.Bios {
				total += len(bio)
			}
			return float64(total), true
		}},
		{"hashtag_frequency", models.AnomalyContent, func(e *models.Entity, _ *graphMetrics, _ time.Time) (float64, bool) {
			return e.Metric(models.MetricHashtagFreq)
		}},
		{"degree_centrality", models.AnomalyNetwork, func(e *models.Entity, g *graphMetrics, _ time.Time) (float64, bool) {
			deg, ok := g.degree[e.ID]
			if !ok {
				return 0, false
			}
			return float64(deg), true
		}},
		{"cluster_size", models.AnomalyNetwork, func(e *models.Entity, g *graphMetrics, _ time.Time) (float64, bool) {
			size, ok := g.clusterSize[e.ID]
			if !ok || size < 2 {
				return 0, false
			}
			return float64(size), true
		}},
	}
}

// Detect runs statistical and rule-based detection over the resolved graph.
// referenceTime anchors age computations to the input snapshot so identical
// snapshots yield identical results.
func (d *AnomalyDetector) Detect(ctx context.Context, entities []*models.Entity, relationships []*models.Relationship, referenceTime time.Time) *DetectionResult {
	result := &DetectionResult{}
	if len(entities) == 0 {
		return result
	}

	graph := buildGraphMetrics(entities, relationships)

	for _, family := range d.families() {
		if ctx.Err() != nil {
			return result
		}
		d.detectFamily(family, entities, graph, referenceTime, result)
	}

	result.Anomalies = append(result.Anomalies, d.detectRules(entities, referenceTime)...)

	sort.Slice(result.Anomalies, func(i, j int) bool {
		a, b := result.Anomalies[i], result.Anomalies[j]
		if a.EntityID != nil && b.EntityID != nil && *a.EntityID != *b.EntityID {
			return a.EntityID.String() < b.EntityID.String()
		}
		if a.MetricFamily != b.MetricFamily {
			return a.MetricFamily < b.MetricFamily
		}
		return a.Method < b.Method
	})

	d.logger.Debug().
		Int("entities", len(entities)).
		Int("anomalies", len(result.Anomalies)).
		Int("skipped_families", len(result.Notes)).
		Msg("anomaly detection complete")

	return result
}

// detectFamily flags population outliers for one metric family.
func (d *AnomalyDetector) detectFamily(family metricFamily, entities []*models.Entity, graph *graphMetrics, ref time.Time, result *DetectionResult) {
	type sample struct {
		entity *models.Entity
		value  float64
	}
	var samples []sample
	for _, e := range entities {
		if value, ok := family.extract(e, graph, ref); ok {
			samples = append(samples, sample{entity: e, value: value})
		}
	}

	// Statistical floor: a z-score over a tiny population is meaningless.
	if len(samples) < d.config.MinSampleSize {
		result.Notes = append(result.Notes, models.ReportNote{
			Stage: "anomaly-detection",
			Message: fmt.Sprintf("metric family %s skipped: population %d below minimum sample size %d",
				family.name, len(samples), d.config.MinSampleSize),
		})
		return
	}

	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.value
	}
	mean := stat.Mean(values, nil)
	stddev := stat.StdDev(values, nil)
	if stddev == 0 {
		return
	}

	for _, s := range samples {
		z := (s.value - mean) / stddev
		if math.Abs(z) < d.config.ZThreshold {
			continue
		}
		entityID := s.entity.ID
		result.Anomalies = append(result.Anomalies, &models.Anomaly{
			ID:           anomalyID(family.name, models.DetectionStatistical, entityID),
			Type:         family.kind,
			EntityID:     &entityID,
			MetricFamily: family.name,
			Value:        s.value,
			ZScore:       z,
			Severity:     d.severityFromZ(math.Abs(z)),
			Method:       models.DetectionStatistical,
			Reason: fmt.Sprintf("statistical: %s %.2f deviates %.1f standard deviations from population mean %.2f",
				family.name, s.value, z, mean),
		})
	}
}

// detectRules runs the non-statistical detectors: account age floor,
// suspicious keyword matches and bot-like posting cadence.
func (d *AnomalyDetector) detectRules(entities []*models.Entity, ref time.Time) []*models.Anomaly {
	var anomalies []*models.Anomaly

	for _, e := range entities {
		entityID := e.ID

		if age, ok := e.AccountAge(ref); ok && age >= 0 && age < d.config.NewAccountAge {
			anomalies = append(anomalies, &models.Anomaly{
				ID:           anomalyID("account_age", models.DetectionRule, entityID),
				Type:         models.AnomalyTemporal,
				EntityID:     &entityID,
				MetricFamily: "account_age",
				Value:        age.Hours() / 24,
				Severity:     models.AnomalySeverityMedium,
				Method:       models.DetectionRule,
				Reason: fmt.Sprintf("rule: account created %.0f days ago, below the %.0f day threshold",
					age.Hours()/24, d.config.NewAccountAge.Hours()/24),
			})
		}

		if matched := d.matchKeywords(e); len(matched) > 0 {
			severity := models.AnomalySeverityMedium
			if len(matched) >= 2 {
				severity = models.AnomalySeverityHigh
			}
			anomalies = append(anomalies, &models.Anomaly{
				ID:           anomalyID("suspicious_keywords", models.DetectionRule, entityID),
				Type:         models.AnomalyContent,
				EntityID:     &entityID,
				MetricFamily: "suspicious_keywords",
				Value:        float64(len(matched)),
				Severity:     severity,
				Method:       models.DetectionRule,
				Reason: fmt.Sprintf("rule: profile content matches suspicious keywords: %s",
					strings.Join(matched, ", ")),
			})
		}

		cadence, okC := e.Metric(models.MetricCadenceStdDev)
		rate, okR := e.Metric(models.MetricPostingRate)
		if okC && okR && cadence <= d.config.BotCadenceStdDevMax && rate >= d.config.BotPostingRateMin {
			anomalies = append(anomalies, &models.Anomaly{
				ID:           anomalyID("bot_cadence", models.DetectionRule, entityID),
				Type:         models.AnomalyBehavioral,
				EntityID:     &entityID,
				MetricFamily: "bot_cadence",
				Value:        cadence,
				Severity:     models.AnomalySeverityHigh,
				Method:       models.DetectionRule,
				Reason: fmt.Sprintf("rule: %.0f posts/day at near-constant cadence (stddev %.2fh) suggests automation",
					rate, cadence),
			})
		}
	}
	return anomalies
}

// matchKeywords returns the configured suspicious keywords found in the
// entity's profile content, in lexicon order.
func (d *AnomalyDetector) matchKeywords(e *models.Entity) []string {
	if len(e.Attributes.Bios) == 0 {
		return nil
	}
	text := strings.ToLower(strings.Join(e.Attributes.Bios, " "))
	var matched []string
	for _, keyword := range d.config.SuspiciousKeywords {
		if strings.Contains(text, strings.ToLower(keyword)) {
			matched = append(matched, keyword)
		}
	}
	return matched
}

// severityFromZ maps deviation magnitude to a severity band.
func (d *AnomalyDetector) severityFromZ(absZ float64) models.AnomalySeverity {
	switch {
	case absZ < d.config.SeverityBandMedium:
		return models.AnomalySeverityLow
	case absZ < d.config.SeverityBandHigh:
		return models.AnomalySeverityMedium
	case absZ < d.config.SeverityBandCritical:
		return models.AnomalySeverityHigh
	default:
		return models.AnomalySeverityCritical
	}
}

// buildGraphMetrics computes degree and connected-component sizes once.
func buildGraphMetrics(entities []*models.Entity, relationships []*models.Relationship) *graphMetrics {
	g := &graphMetrics{
		degree:      make(map[uuid.UUID]int, len(entities)),
		clusterSize: make(map[uuid.UUID]int, len(entities)),
	}

	index := make(map[uuid.UUID]int, len(entities))
	for i, e := range entities {
		index[e.ID] = i
	}
	uf := newUnionFind(len(entities))
	for _, rel := range relationships {
		g.degree[rel.SourceID]++
		g.degree[rel.TargetID]++
		si, okS := index[rel.SourceID]
		ti, okT := index[rel.TargetID]
		if okS && okT {
			uf.union(si, ti)
		}
	}

	sizes := make(map[int]int)
	for i := range entities {
		sizes[uf.find(i)]++
	}
	for i, e := range entities {
		g.clusterSize[e.ID] = sizes[uf.find(i)]
	}
	return g
}

// anomalyID derives a deterministic anomaly ID.
func anomalyID(family, method string, entityID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(nsArtifact, []byte("anomaly|"+family+"|"+method+"|"+entityID.String()))
}
