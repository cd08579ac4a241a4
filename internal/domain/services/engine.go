package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/pkg/logger"
)

// EngineStats tracks engine activity across runs.
type EngineStats struct {
	RunsCompleted    int64         `json:"runs_completed"`
	RunsFailed       int64         `json:"runs_failed"`
	RecordsProcessed int64         `json:"records_processed"`
	LastRunAt        time.Time     `json:"last_run_at"`
	LastRunDuration  time.Duration `json:"last_run_duration"`
}

// Engine orchestrates one full analysis pipeline: resolution, then pattern
// analysis and anomaly detection in parallel, then threat correlation, then
// report assembly. The configuration is validated once at construction and
// never mutated afterwards, so concurrent Analyze calls are safe.
type Engine struct {
	config models.EngineConfig
	logger *logger.Logger

	resolver   *EntityResolver
	patterns   *PatternAnalyzer
	anomalies  *AnomalyDetector
	correlator *ThreatCorrelator

	mu    sync.RWMutex
	stats EngineStats
}

// NewEngine validates the configuration and wires the pipeline stages. An
// invalid configuration is fatal; no engine is returned.
func NewEngine(cfg models.EngineConfig, log *logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		config:     cfg,
		logger:     log.WithComponent("correlation-engine"),
		resolver:   NewEntityResolver(cfg.Resolver, log),
		patterns:   NewPatternAnalyzer(cfg.Pattern, log),
		anomalies:  NewAnomalyDetector(cfg.Anomaly, log),
		correlator: NewThreatCorrelator(cfg.Threat, log),
	}, nil
}

// Analyze runs the full pipeline over one investigation's record snapshot.
// The analytical content of the returned report is a pure function of the
// records and the configuration; only GeneratedAt and ProcessingTime vary
// between runs.
func (e *Engine) Analyze(ctx context.Context, investigationID uuid.UUID, records []*models.RawRecord) (*models.IntelligenceReport, error) {
	start := time.Now()
	log := e.logger.WithInvestigation(investigationID.String())
	log.Info().Int("records", len(records)).Msg("analysis run started")

	resolution, err := e.resolver.Resolve(ctx, records)
	if err != nil {
		e.recordRun(start, len(records), false)
		return nil, fmt.Errorf("entity resolution: %w", err)
	}
	if err := ctx.Err(); err != nil {
		e.recordRun(start, len(records), false)
		return nil, err
	}

	referenceTime := latestCollection(records)

	// Pattern analysis and anomaly detection are independent given the
	// resolved graph; run them concurrently.
	var wg sync.WaitGroup
	var patterns []*models.Pattern
	var detection *DetectionResult

	wg.Add(2)
	go func() {
		defer wg.Done()
		patterns = e.patterns.Analyze(ctx, resolution.Entities, resolution.Relationships)
	}()
	go func() {
		defer wg.Done()
		detection = e.anomalies.Detect(ctx, resolution.Entities, resolution.Relationships, referenceTime)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		e.recordRun(start, len(records), false)
		return nil, err
	}

	assessments := e.correlator.Correlate(ctx, resolution.Entities, resolution.Relationships, patterns, detection.Anomalies, referenceTime)
	if err := ctx.Err(); err != nil {
		e.recordRun(start, len(records), false)
		return nil, err
	}

	report := e.assembleReport(investigationID, records, resolution, patterns, detection, assessments)
	report.GeneratedAt = time.Now().UTC()
	report.ProcessingTime = time.Since(start)

	e.recordRun(start, len(records), true)
	log.Info().
		Int("entities", report.Stats.EntityCount).
		Int("patterns", report.Stats.PatternCount).
		Int("anomalies", report.Stats.AnomalyCount).
		Dur("took", report.ProcessingTime).
		Msg("analysis run complete")

	return report, nil
}

// Stats returns a copy of the engine's run counters.
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

func (e *Engine) recordRun(start time.Time, records int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ok {
		e.stats.RunsCompleted++
		e.stats.RecordsProcessed += int64(records)
	} else {
		e.stats.RunsFailed++
	}
	e.stats.LastRunAt = time.Now().UTC()
	e.stats.LastRunDuration = time.Since(start)
}

// assembleReport binds stage outputs into one report with canonical ordering
// and a deterministic ID derived from the input snapshot.
func (e *Engine) assembleReport(investigationID uuid.UUID, records []*models.RawRecord, resolution *models.ResolutionResult, patterns []*models.Pattern, detection *DetectionResult, assessments []*models.ThreatAssessment) *models.IntelligenceReport {
	notes := make([]models.ReportNote, 0, len(detection.Notes)+1)
	if len(resolution.Entities) < 2 {
		notes = append(notes, models.ReportNote{
			Stage:   "pattern-analysis",
			Message: fmt.Sprintf("pattern analysis skipped: %d entities below minimum of 2", len(resolution.Entities)),
		})
	}
	notes = append(notes, detection.Notes...)

	report := &models.IntelligenceReport{
		ID:              reportID(investigationID, records),
		InvestigationID: investigationID,
		Entities:        resolution.Entities,
		Relationships:   resolution.Relationships,
		Patterns:        patterns,
		Anomalies:       detection.Anomalies,
		Assessments:     assessments,
		Unresolved:      resolution.Unresolved,
		Notes:           notes,
		Stats: models.ReportStats{
			RecordCount:       len(records),
			EntityCount:       len(resolution.Entities),
			RelationshipCount: len(resolution.Relationships),
			PatternCount:      len(patterns),
			AnomalyCount:      len(detection.Anomalies),
			AssessmentCount:   len(assessments),
			UnresolvedCount:   len(resolution.Unresolved),
		},
	}
	report.ConfidenceScore = overallConfidence(report)
	report.ExecutiveSummary = e.summarize(report)
	return report
}

// summarize renders the executive summary from the report's own content.
func (e *Engine) summarize(r *models.IntelligenceReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyzed %d records into %d entities and %d relationships.",
		r.Stats.RecordCount, r.Stats.EntityCount, r.Stats.RelationshipCount)
	fmt.Fprintf(&b, " Detected %d patterns and %d anomalies.",
		r.Stats.PatternCount, r.Stats.AnomalyCount)

	levels := make(map[models.ThreatLevel]int)
	for _, a := range r.Assessments {
		if a.SubjectKind == models.SubjectEntity {
			levels[a.ThreatLevel]++
		}
	}
	if n := levels[models.ThreatLevelCritical] + levels[models.ThreatLevelHigh]; n > 0 {
		fmt.Fprintf(&b, " %d entities assessed at high or critical threat.", n)
	} else {
		b.WriteString(" No entities assessed above medium threat.")
	}

	top := r.TopThreats(e.config.SummaryTopN)
	for i, a := range top {
		if a.ThreatScore == 0 {
			break
		}
		if i == 0 {
			b.WriteString(" Top subjects:")
		}
		fmt.Fprintf(&b, " %s %s (%.2f, %s);", a.SubjectKind, a.SubjectID, a.ThreatScore, a.ThreatLevel)
	}
	if r.Stats.UnresolvedCount > 0 {
		fmt.Fprintf(&b, " %d records could not be resolved.", r.Stats.UnresolvedCount)
	}
	return strings.TrimSuffix(b.String(), ";")
}

// overallConfidence blends mean resolution confidence with mean assessment
// confidence. An empty report carries no confidence.
func overallConfidence(r *models.IntelligenceReport) float64 {
	if len(r.Entities) == 0 {
		return 0
	}
	var resolution float64
	for _, e := range r.Entities {
		resolution += e.ResolutionConfidence
	}
	resolution /= float64(len(r.Entities))

	if len(r.Assessments) == 0 {
		return clamp(resolution, 0, 1)
	}
	var assessment float64
	for _, a := range r.Assessments {
		assessment += a.Confidence
	}
	assessment /= float64(len(r.Assessments))

	return clamp(0.6*resolution+0.4*assessment, 0, 1)
}

// reportID derives a stable ID from the investigation and its record set, so
// rerunning the same snapshot yields the same report identity.
func reportID(investigationID uuid.UUID, records []*models.RawRecord) uuid.UUID {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID.String())
	}
	sort.Strings(ids)
	return uuid.NewSHA1(nsArtifact, []byte("report|"+investigationID.String()+"|"+strings.Join(ids, "|")))
}

// latestCollection returns the newest CollectedAt across the snapshot. It
// anchors all age-derived computations so reruns of the same snapshot agree.
func latestCollection(records []*models.RawRecord) time.Time {
	var latest time.Time
	for _, r := range records {
		if r.CollectedAt.After(latest) {
			latest = r.CollectedAt
		}
	}
	return latest
}
