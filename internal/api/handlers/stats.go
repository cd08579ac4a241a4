package handlers

import (
	"net/http"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/internal/domain/services"
	"intelgraph-lab/internal/infrastructure/cache"
	"intelgraph-lab/internal/infrastructure/database/repository"
	"intelgraph-lab/internal/infrastructure/queue"
	"intelgraph-lab/pkg/logger"
)

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	repos  *repository.Repositories
	cache  *cache.RedisCache
	queue  *queue.AnalysisQueue
	engine *services.Engine
	logger *logger.Logger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(repos *repository.Repositories, c *cache.RedisCache, q *queue.AnalysisQueue, engine *services.Engine, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		repos:  repos,
		cache:  c,
		queue:  q,
		engine: engine,
		logger: log.WithComponent("stats"),
	}
}

// ServiceStats is the body for GET /api/v1/stats
type ServiceStats struct {
	Investigations map[string]int64     `json:"investigations"`
	QueueDepth     int64                `json:"queue_depth"`
	Engine         services.EngineStats `json:"engine"`
}

// Get handles GET /api/v1/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats := ServiceStats{
		Investigations: make(map[string]int64),
	}

	if h.engine != nil {
		stats.Engine = h.engine.Stats()
	}

	if h.queue != nil {
		if depth, err := h.queue.Depth(r.Context()); err == nil {
			stats.QueueDepth = depth
		} else {
			h.logger.Warn().Err(err).Msg("failed to read queue depth")
		}
	}

	if h.repos != nil {
		statuses := []models.InvestigationStatus{
			models.InvestigationStatusOpen,
			models.InvestigationStatusAnalyzing,
			models.InvestigationStatusComplete,
			models.InvestigationStatusFailed,
			models.InvestigationStatusClosed,
		}
		for _, status := range statuses {
			_, total, err := h.repos.Investigations.List(r.Context(), status, 1, 0)
			if err != nil {
				h.logger.Warn().Err(err).Str("status", string(status)).Msg("failed to count investigations")
				continue
			}
			stats.Investigations[string(status)] = total
		}
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	respondJSON(w, http.StatusOK, stats)
}
