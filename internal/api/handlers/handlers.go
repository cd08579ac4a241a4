package handlers

import (
	"intelgraph-lab/internal/domain/services"
	"intelgraph-lab/internal/infrastructure/cache"
	"intelgraph-lab/internal/infrastructure/database/repository"
	"intelgraph-lab/internal/infrastructure/graph"
	"intelgraph-lab/internal/infrastructure/queue"
	"intelgraph-lab/internal/streaming"
	"intelgraph-lab/internal/worker"
	"intelgraph-lab/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health         *HealthHandler
	Investigations *InvestigationsHandler
	Analysis       *AnalysisHandler
	Reports        *ReportsHandler
	Stats          *StatsHandler
	Streaming      *StreamingHandler
}

// Dependencies holds dependencies for handlers
type Dependencies struct {
	Repos    *repository.Repositories
	Cache    *cache.RedisCache
	Queue    *queue.AnalysisQueue
	Engine   *services.Engine
	Runner   *worker.Runner
	Graph    *graph.GraphRepository
	WSHub    *streaming.WebSocketHub
	EventBus *streaming.EventBus
	Logger   *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(deps.Cache, deps.Repos, deps.Logger),
		Investigations: NewInvestigationsHandler(deps.Repos, deps.EventBus, deps.Logger),
		Analysis:       NewAnalysisHandler(deps.Repos, deps.Queue, deps.Runner, deps.Logger),
		Reports:        NewReportsHandler(deps.Repos, deps.Cache, deps.Graph, deps.Logger),
		Stats:          NewStatsHandler(deps.Repos, deps.Cache, deps.Queue, deps.Engine, deps.Logger),
		Streaming:      NewStreamingHandler(deps.WSHub, deps.EventBus, deps.Logger),
	}
}
