package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/internal/domain/services"
	"intelgraph-lab/internal/infrastructure/cache"
	"intelgraph-lab/internal/infrastructure/database/repository"
	"intelgraph-lab/internal/infrastructure/graph"
	"intelgraph-lab/internal/streaming"
	"intelgraph-lab/pkg/logger"
)

// ErrAlreadyRunning is returned when an analysis pass for the same
// investigation holds the run lock.
var ErrAlreadyRunning = errors.New("analysis already running for investigation")

const (
	runLockTTL     = 10 * time.Minute
	reportCacheTTL = 15 * time.Minute
)

// Runner executes one full analysis pass for an investigation: load the
// record snapshot, run the engine, persist and publish the report. It is
// shared by the queue worker and the API's synchronous trigger.
type Runner struct {
	repos  *repository.Repositories
	engine *services.Engine
	cache  *cache.RedisCache
	graph  *graph.GraphRepository
	bus    *streaming.EventBus
	logger *logger.Logger
}

// NewRunner creates a Runner. graph and bus may be nil; projection and event
// publishing are then skipped.
func NewRunner(repos *repository.Repositories, engine *services.Engine, c *cache.RedisCache, g *graph.GraphRepository, bus *streaming.EventBus, log *logger.Logger) *Runner {
	return &Runner{
		repos:  repos,
		engine: engine,
		cache:  c,
		graph:  g,
		bus:    bus,
		logger: log.WithComponent("analysis-runner"),
	}
}

// Run analyzes the investigation's current record snapshot and returns the
// persisted report.
func (r *Runner) Run(ctx context.Context, investigationID uuid.UUID) (*models.IntelligenceReport, error) {
	inv, err := r.repos.Investigations.GetByID(ctx, investigationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load investigation: %w", err)
	}

	lockKey := investigationID.String()
	acquired, err := r.cache.AcquireLock(ctx, lockKey, runLockTTL)
	if err != nil {
		r.logger.Warn().Err(err).Msg("run lock unavailable, continuing without it")
	} else if !acquired {
		return nil, ErrAlreadyRunning
	} else {
		defer func() {
			if err := r.cache.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
				r.logger.Warn().Err(err).Msg("failed to release run lock")
			}
		}()
	}

	records, err := r.repos.Records.ListByInvestigation(ctx, investigationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	if err := r.repos.Investigations.UpdateStatus(ctx, investigationID, models.InvestigationStatusAnalyzing); err != nil {
		return nil, fmt.Errorf("failed to mark investigation analyzing: %w", err)
	}
	if r.bus != nil {
		_ = r.bus.Publish(ctx, streaming.NewAnalysisStartedEvent(investigationID, len(records)))
	}

	report, err := r.engine.Analyze(ctx, investigationID, records)
	if err != nil {
		r.fail(ctx, investigationID, err)
		return nil, err
	}

	if err := r.repos.Reports.Save(ctx, report); err != nil {
		r.fail(ctx, investigationID, err)
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}
	if err := r.repos.Investigations.SetLastReport(ctx, investigationID, report.ID); err != nil {
		r.logger.Warn().Err(err).Msg("failed to update last report pointer")
	}
	if err := r.repos.Investigations.UpdateStatus(ctx, investigationID, models.InvestigationStatusComplete); err != nil {
		r.logger.Warn().Err(err).Msg("failed to mark investigation complete")
	}

	if err := r.cache.CacheReport(ctx, report, report.ID.String(), investigationID.String(), reportCacheTTL); err != nil {
		r.logger.Warn().Err(err).Msg("failed to cache report")
	}

	if r.graph != nil {
		if err := r.graph.ProjectReport(ctx, report); err != nil {
			r.logger.Warn().Err(err).Msg("failed to project report into graph")
		}
	}

	if r.bus != nil {
		if err := r.bus.PublishReport(ctx, report); err != nil {
			r.logger.Warn().Err(err).Msg("failed to publish report events")
		}
	}

	r.logger.Info().
		Str("investigation_id", investigationID.String()).
		Str("investigation", inv.Name).
		Str("report_id", report.ID.String()).
		Int("entities", report.Stats.EntityCount).
		Int("assessments", report.Stats.AssessmentCount).
		Dur("processing_time", report.ProcessingTime).
		Msg("analysis run complete")

	return report, nil
}

func (r *Runner) fail(ctx context.Context, investigationID uuid.UUID, runErr error) {
	// Best effort: the run error itself is what callers see.
	ctx = context.WithoutCancel(ctx)
	if err := r.repos.Investigations.UpdateStatus(ctx, investigationID, models.InvestigationStatusFailed); err != nil {
		r.logger.Warn().Err(err).Msg("failed to mark investigation failed")
	}
	if r.bus != nil {
		_ = r.bus.Publish(ctx, streaming.NewAnalysisFailedEvent(investigationID, runErr))
	}
	r.logger.Error().Err(runErr).
		Str("investigation_id", investigationID.String()).
		Msg("analysis run failed")
}
