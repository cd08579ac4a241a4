package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"intelgraph-lab/internal/api/handlers"
	apimiddleware "intelgraph-lab/internal/api/middleware"
	"intelgraph-lab/internal/config"
	"intelgraph-lab/internal/infrastructure/cache"
	"intelgraph-lab/pkg/logger"
)

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	cache    *cache.RedisCache
	logger   *logger.Logger
}

// NewRouter creates a new Router instance
func NewRouter(cfg config.Config, h *handlers.Handlers, c *cache.RedisCache, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		cache:    c,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Rate limiting
	if r.config.RateLimit.Enabled {
		router.Use(apimiddleware.RateLimiter(r.cache, r.config.RateLimit))
	}

	// Public routes
	router.Group(func(pub chi.Router) {
		pub.Get("/health", r.handlers.Health.Check)
		pub.Get("/ready", r.handlers.Health.Ready)
	})

	// API v1 routes (authenticated)
	router.Route("/api/v1", func(api chi.Router) {
		api.Use(apimiddleware.APIKeyAuth(r.config.Auth))

		api.Get("/stats", r.handlers.Stats.Get)

		// Investigation lifecycle and record ingestion
		api.Route("/investigations", func(inv chi.Router) {
			inv.Post("/", r.handlers.Investigations.Create)
			inv.Get("/", r.handlers.Investigations.List)
			inv.Get("/{id}", r.handlers.Investigations.Get)
			inv.Delete("/{id}", r.handlers.Investigations.Delete)

			inv.Post("/{id}/records", r.handlers.Investigations.IngestRecords)
			inv.Get("/{id}/records", r.handlers.Investigations.ListRecords)

			inv.Post("/{id}/analyze", r.handlers.Analysis.Trigger)

			inv.Get("/{id}/reports", r.handlers.Reports.History)
			inv.Get("/{id}/reports/latest", r.handlers.Reports.Latest)
		})

		// Reports by deterministic ID
		api.Get("/reports/{id}", r.handlers.Reports.Get)

		// Analysis queue
		api.Get("/analysis/queue", r.handlers.Analysis.QueueDepth)

		// Graph-backed queries
		api.Get("/entities/{id}/neighborhood", r.handlers.Reports.Neighborhood)
		api.Get("/threats", r.handlers.Reports.HighThreats)

		// Streaming stats
		api.Get("/streaming/stats", r.handlers.Streaming.GetStats)
	})

	// WebSocket streaming endpoint (real-time analysis events)
	router.Get("/ws/events", r.handlers.Streaming.HandleWebSocket)

	return router
}
