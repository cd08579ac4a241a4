package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/pkg/logger"
)

// Structural risk factor names. Each one that fires is listed in the
// assessment's risk factors and indicators for auditability.
const (
	factorIndicatorMatch      = "indicator_match"
	factorAnomaly             = "anomaly_signal"
	factorPattern             = "pattern_membership"
	factorNewAccountConnected = "new_account_high_connectivity"
	factorDormantPopular      = "dormant_popular"
	factorUnverifiedSpread    = "unverified_cross_platform"
	factorStrongRiskyLink     = "strong_link_to_high_threat"
)

// ThreatCorrelator combines indicator matches, anomaly signals, pattern
// membership and structural risk factors into one weighted assessment per
// entity and relationship.
type ThreatCorrelator struct {
	config models.ThreatConfig
	logger *logger.Logger
}

// NewThreatCorrelator creates a new threat correlator
func NewThreatCorrelator(cfg models.ThreatConfig, log *logger.Logger) *ThreatCorrelator {
	return &ThreatCorrelator{
		config: cfg,
		logger: log.WithComponent("threat-correlator"),
	}
}

// Correlate produces assessments for all entities, then relationships, in
// canonical subject-ID order. referenceTime anchors age-derived factors to
// the input snapshot.
func (c *ThreatCorrelator) Correlate(ctx context.Context, entities []*models.Entity, relationships []*models.Relationship, patterns []*models.Pattern, anomalies []*models.Anomaly, referenceTime time.Time) []*models.ThreatAssessment {
	degree := make(map[uuid.UUID]int)
	for _, rel := range relationships {
		degree[rel.SourceID]++
		degree[rel.TargetID]++
	}

	anomaliesByEntity := make(map[uuid.UUID][]*models.Anomaly)
	anomaliesByRel := make(map[uuid.UUID][]*models.Anomaly)
	for _, an := range anomalies {
		if an.EntityID != nil {
			anomaliesByEntity[*an.EntityID] = append(anomaliesByEntity[*an.EntityID], an)
		}
		if an.RelationshipID != nil {
			anomaliesByRel[*an.RelationshipID] = append(anomaliesByRel[*an.RelationshipID], an)
		}
	}

	patternsByEntity := make(map[uuid.UUID][]*models.Pattern)
	patternsByRel := make(map[uuid.UUID][]*models.Pattern)
	for _, p := range patterns {
		for _, id := range p.EntityIDs {
			patternsByEntity[id] = append(patternsByEntity[id], p)
		}
		for _, id := range p.RelationshipIDs {
			patternsByRel[id] = append(patternsByRel[id], p)
		}
	}

	assessments := make([]*models.ThreatAssessment, 0, len(entities)+len(relationships))
	entityScores := make(map[uuid.UUID]float64, len(entities))

	for _, e := range entities {
		if ctx.Err() != nil {
			return assessments
		}
		assessment := c.assessEntity(e, degree[e.ID], anomaliesByEntity[e.ID], patternsByEntity[e.ID], referenceTime)
		entityScores[e.ID] = assessment.ThreatScore
		assessments = append(assessments, assessment)
	}

	for _, rel := range relationships {
		assessments = append(assessments, c.assessRelationship(rel, anomaliesByRel[rel.ID], patternsByRel[rel.ID], entityScores))
	}

	sort.Slice(assessments, func(i, j int) bool {
		if assessments[i].SubjectKind != assessments[j].SubjectKind {
			return assessments[i].SubjectKind < assessments[j].SubjectKind
		}
		return assessments[i].SubjectID.String() < assessments[j].SubjectID.String()
	})

	c.logger.Debug().
		Int("entities", len(entities)).
		Int("relationships", len(relationships)).
		Int("assessments", len(assessments)).
		Msg("threat correlation complete")

	return assessments
}

// assessEntity computes the weighted threat score for one entity.
func (c *ThreatCorrelator) assessEntity(e *models.Entity, degree int, anomalies []*models.Anomaly, patterns []*models.Pattern, ref time.Time) *models.ThreatAssessment {
	var indicators []string
	var factors []models.RiskFactor

	// (a) indicator lexicon matches over content fields
	matched := c.matchLexicon(e)
	indicatorScore := clamp(float64(len(matched))/2.0, 0, 1)
	for _, m := range matched {
		indicators = append(indicators, "keyword:"+m)
	}
	if len(matched) > 0 {
		factors = append(factors, models.RiskFactor{
			Name:   factorIndicatorMatch,
			Weight: c.config.Weights.IndicatorMatch,
			Score:  indicatorScore,
		})
	}

	// (b) anomaly contribution proportional to severity
	var anomalyMass float64
	for _, an := range anomalies {
		anomalyMass += an.Severity.Weight()
		indicators = append(indicators, fmt.Sprintf("anomaly:%s(%s)", an.MetricFamily, an.Severity))
	}
	anomalyScore := clamp(anomalyMass, 0, 1)
	if len(anomalies) > 0 {
		factors = append(factors, models.RiskFactor{
			Name:   factorAnomaly,
			Weight: c.config.Weights.Anomaly,
			Score:  anomalyScore,
		})
	}

	// (c) membership in high-risk patterns
	var patternMass float64
	for _, p := range patterns {
		risk := patternRisk(p)
		if risk == 0 {
			continue
		}
		patternMass += risk * p.Confidence
		indicators = append(indicators, "pattern:"+p.Name)
	}
	patternScore := clamp(patternMass, 0, 1)
	if patternScore > 0 {
		factors = append(factors, models.RiskFactor{
			Name:   factorPattern,
			Weight: c.config.Weights.Pattern,
			Score:  patternScore,
		})
	}

	// (d) structural risk factors
	structural, structIndicators := c.structuralRisk(e, degree, ref)
	indicators = append(indicators, structIndicators...)
	if structural > 0 {
		factors = append(factors, models.RiskFactor{
			Name:   factorStructural(structIndicators),
			Weight: c.config.Weights.StructuralRisk,
			Score:  structural,
		})
	}

	score := clamp(
		c.config.Weights.IndicatorMatch*indicatorScore+
			c.config.Weights.Anomaly*anomalyScore+
			c.config.Weights.Pattern*patternScore+
			c.config.Weights.StructuralRisk*structural,
		0, 1)

	return &models.ThreatAssessment{
		SubjectID:       e.ID,
		SubjectKind:     models.SubjectEntity,
		ThreatScore:     score,
		ThreatLevel:     c.levelFor(score),
		Indicators:      indicators,
		RiskFactors:     factors,
		Confidence:      evidenceConfidence(factors),
		Recommendations: c.recommend(factors, structIndicators),
	}
}

// assessRelationship scores a relationship from its own anomalies and
// patterns plus the threat of its endpoints.
func (c *ThreatCorrelator) assessRelationship(rel *models.Relationship, anomalies []*models.Anomaly, patterns []*models.Pattern, entityScores map[uuid.UUID]float64) *models.ThreatAssessment {
	var indicators []string
	var factors []models.RiskFactor

	var anomalyMass float64
	for _, an := range anomalies {
		anomalyMass += an.Severity.Weight()
		indicators = append(indicators, fmt.Sprintf("anomaly:%s(%s)", an.MetricFamily, an.Severity))
	}
	anomalyScore := clamp(anomalyMass, 0, 1)
	if len(anomalies) > 0 {
		factors = append(factors, models.RiskFactor{
			Name:   factorAnomaly,
			Weight: c.config.Weights.Anomaly,
			Score:  anomalyScore,
		})
	}

	var patternMass float64
	for _, p := range patterns {
		risk := patternRisk(p)
		if risk == 0 {
			continue
		}
		patternMass += risk * p.Confidence
		indicators = append(indicators, "pattern:"+p.Name)
	}
	patternScore := clamp(patternMass, 0, 1)
	if patternScore > 0 {
		factors = append(factors, models.RiskFactor{
			Name:   factorPattern,
			Weight: c.config.Weights.Pattern,
			Score:  patternScore,
		})
	}

	// Structural: a strong edge whose endpoints both carry elevated threat.
	var structural float64
	endpointMax := entityScores[rel.SourceID]
	if s := entityScores[rel.TargetID]; s > endpointMax {
		endpointMax = s
	}
	if rel.Strength >= 0.5 && endpointMax >= c.config.Cutpoints.Medium {
		structural = clamp(rel.Strength*endpointMax, 0, 1)
		indicators = append(indicators, "structural:"+factorStrongRiskyLink)
		factors = append(factors, models.RiskFactor{
			Name:   factorStrongRiskyLink,
			Weight: c.config.Weights.StructuralRisk,
			Score:  structural,
		})
	}

	score := clamp(
		c.config.Weights.Anomaly*anomalyScore+
			c.config.Weights.Pattern*patternScore+
			c.config.Weights.StructuralRisk*structural,
		0, 1)

	return &models.ThreatAssessment{
		SubjectID:       rel.ID,
		SubjectKind:     models.SubjectRelationship,
		ThreatScore:     score,
		ThreatLevel:     c.levelFor(score),
		Indicators:      indicators,
		RiskFactors:     factors,
		Confidence:      evidenceConfidence(factors),
		Recommendations: c.recommend(factors, nil),
	}
}

// matchLexicon returns lexicon keywords present in the entity's content
// fields, in lexicon order.
func (c *ThreatCorrelator) matchLexicon(e *models.Entity) []string {
	fields := make([]string, 0, 8)
	fields = append(fields, e.Attributes.Bios...)
	fields = append(fields, e.Attributes.DisplayNames...)
	fields = append(fields, e.Attributes.Usernames...)
	text := strings.ToLower(strings.Join(fields, " "))
	if text == "" {
		return nil
	}
	var matched []string
	for _, keyword := range c.config.IndicatorLexicon {
		if strings.Contains(text, strings.ToLower(keyword)) {
			matched = append(matched, keyword)
		}
	}
	return matched
}

// structuralRisk evaluates account-shape heuristics. Each fired heuristic
// contributes equally; the sub-score is clamped to [0,1].
func (c *ThreatCorrelator) structuralRisk(e *models.Entity, degree int, ref time.Time) (float64, []string) {
	var fired []string

	if age, ok := e.AccountAge(ref); ok && age < 30*24*time.Hour && degree >= 3 {
		fired = append(fired, "structural:"+factorNewAccountConnected)
	}

	followers, okF := e.Metric(models.MetricFollowerCount)
	rate, okR := e.Metric(models.MetricPostingRate)
	if okF && okR && followers >= 10000 && rate < 0.1 {
		fired = append(fired, "structural:"+factorDormantPopular)
	}

	if !e.Attributes.Verified && e.CrossPlatform() {
		fired = append(fired, "structural:"+factorUnverifiedSpread)
	}

	return clamp(float64(len(fired))/2.0, 0, 1), fired
}

// patternRisk weights pattern kinds by how threatening membership is.
func patternRisk(p *models.Pattern) float64 {
	switch p.Name {
	case "dense-cluster":
		return 1.0
	case "creation-burst":
		return 0.8
	case "cross-platform-recurrence":
		return 0.6
	case "regional-cluster":
		return 0.4
	case "influence-hub":
		return 0.5
	default:
		if p.Type == models.PatternContent {
			return 0.3
		}
		return 0
	}
}

// levelFor maps a score onto the configured cut-points. The mapping is a
// deterministic step function; cut-point validity is checked at config load.
func (c *ThreatCorrelator) levelFor(score float64) models.ThreatLevel {
	cp := c.config.Cutpoints
	switch {
	case score < cp.Low:
		return models.ThreatLevelNone
	case score < cp.Medium:
		return models.ThreatLevelLow
	case score < cp.High:
		return models.ThreatLevelMedium
	case score < cp.Critical:
		return models.ThreatLevelHigh
	default:
		return models.ThreatLevelCritical
	}
}

// evidenceConfidence scales with the diversity of independent signal types
// backing the score.
func evidenceConfidence(factors []models.RiskFactor) float64 {
	if len(factors) == 0 {
		return 0.3
	}
	return clamp(0.4+0.15*float64(len(factors)), 0, 0.95)
}

// factorStructural names the structural factor from what fired.
func factorStructural(fired []string) string {
	if len(fired) == 1 {
		return strings.TrimPrefix(fired[0], "structural:")
	}
	return "structural_risk"
}

// recommend emits templated recommendations keyed off the fired factors.
func (c *ThreatCorrelator) recommend(factors []models.RiskFactor, structIndicators []string) []string {
	var recs []string
	for _, f := range factors {
		switch f.Name {
		case factorIndicatorMatch:
			recs = append(recs, "Review profile content for the matched indicator terms")
		case factorAnomaly:
			recs = append(recs, "Investigate the flagged statistical deviations before escalation")
		case factorPattern:
			recs = append(recs, "Map the surrounding cluster for signs of coordination")
		case factorStrongRiskyLink:
			recs = append(recs, "Examine both endpoints of this link together")
		}
	}
	for _, ind := range structIndicators {
		switch strings.TrimPrefix(ind, "structural:") {
		case factorNewAccountConnected:
			recs = append(recs, "Verify account age and registration details")
		case factorDormantPopular:
			recs = append(recs, "Audit follower authenticity for the dormant audience")
		case factorUnverifiedSpread:
			recs = append(recs, "Confirm cross-platform accounts belong to the same operator")
		}
	}
	return recs
}
