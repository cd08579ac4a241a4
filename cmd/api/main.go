package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"intelgraph-lab/internal/api"
	"intelgraph-lab/internal/api/handlers"
	"intelgraph-lab/internal/config"
	"intelgraph-lab/internal/domain/services"
	grpcserver "intelgraph-lab/internal/grpc/intel"
	"intelgraph-lab/internal/infrastructure/cache"
	"intelgraph-lab/internal/infrastructure/database"
	"intelgraph-lab/internal/infrastructure/database/repository"
	"intelgraph-lab/internal/infrastructure/graph"
	"intelgraph-lab/internal/infrastructure/queue"
	"intelgraph-lab/internal/streaming"
	"intelgraph-lab/internal/worker"
	"intelgraph-lab/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var log *logger.Logger
	if cfg.App.Environment == "production" {
		log = logger.NewProduction()
	} else {
		log = logger.NewDevelopment()
	}
	logger.SetGlobal(log)

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting IntelGraph Lab")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize infrastructure
	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer db.Close()

	redisCache, err := cache.NewRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisCache.Close()

	repos := repository.NewRepositories(db.Pool())

	// Initialize streaming infrastructure
	var natsPublisher *streaming.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing without real-time streaming")
		} else {
			log.Info().Str("url", cfg.NATS.URL).Msg("connected to NATS")
		}
	}

	wsHub := streaming.NewWebSocketHub(log)
	go wsHub.Run(ctx)

	eventBus := streaming.NewEventBus(natsPublisher, wsHub, log)
	defer eventBus.Close()
	log.Info().Bool("nats_enabled", natsPublisher != nil).Msg("event bus initialized")

	// Initialize Neo4j graph projection (if enabled)
	var graphRepo *graph.GraphRepository
	if cfg.Neo4j.Enabled {
		neo4jClient, err := graph.NewNeo4jClient(ctx, cfg.Neo4j, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Neo4j, graph features disabled")
		} else {
			defer neo4jClient.Close(ctx)
			graphRepo = graph.NewGraphRepository(neo4jClient, log)
			log.Info().Str("uri", cfg.Neo4j.URI).Msg("Neo4j graph projection initialized")
		}
	}

	// Initialize the correlation engine and analysis plumbing
	engine, err := services.NewEngine(cfg.Engine, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid engine configuration")
	}

	analysisQueue := queue.NewAnalysisQueue(redisCache, log)
	runner := worker.NewRunner(repos, engine, redisCache, graphRepo, eventBus, log)

	// Optionally consume the queue in-process
	if cfg.Worker.Enabled {
		w := worker.NewWorker(analysisQueue, runner, cfg.Worker, log)
		go w.Start(ctx)
	}

	// Initialize handlers
	h := handlers.NewHandlers(handlers.Dependencies{
		Repos:    repos,
		Cache:    redisCache,
		Queue:    analysisQueue,
		Engine:   engine,
		Runner:   runner,
		Graph:    graphRepo,
		WSHub:    wsHub,
		EventBus: eventBus,
		Logger:   log,
	})

	// Create router
	router := api.NewRouter(*cfg, h, redisCache, log)
	httpHandler := router.Setup()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC server (health checks)
	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gRPC listener")
	}

	grpcServer := grpc.NewServer()
	grpcserver.RegisterHealthServer(ctx, grpcServer, db, redisCache)

	go func() {
		log.Info().
			Str("addr", grpcListener.Addr().String()).
			Msg("starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	// Cancel context to stop background services
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	grpcServer.GracefulStop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("shutdown complete")
}
