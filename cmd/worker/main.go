package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"intelgraph-lab/internal/config"
	"intelgraph-lab/internal/domain/services"
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
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

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
		Msg("starting IntelGraph Lab worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	var natsPublisher *streaming.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, events disabled")
		}
	}

	wsHub := streaming.NewWebSocketHub(log)
	go wsHub.Run(ctx)

	eventBus := streaming.NewEventBus(natsPublisher, wsHub, log)
	defer eventBus.Close()

	var graphRepo *graph.GraphRepository
	if cfg.Neo4j.Enabled {
		neo4jClient, err := graph.NewNeo4jClient(ctx, cfg.Neo4j, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Neo4j, graph projection disabled")
		} else {
			defer neo4jClient.Close(ctx)
			graphRepo = graph.NewGraphRepository(neo4jClient, log)
		}
	}

	engine, err := services.NewEngine(cfg.Engine, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid engine configuration")
	}

	analysisQueue := queue.NewAnalysisQueue(redisCache, log)
	runner := worker.NewRunner(repos, engine, redisCache, graphRepo, eventBus, log)
	w := worker.NewWorker(analysisQueue, runner, cfg.Worker, log)

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")
	cancel()
	<-done
	log.Info().Msg("shutdown complete")
}
