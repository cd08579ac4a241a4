package intel

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"intelgraph-lab/internal/infrastructure/cache"
	"intelgraph-lab/internal/infrastructure/database"
)

// ServiceName is the health-check service identifier exposed alongside the
// default empty service.
const ServiceName = "intelgraph.v1.IntelligenceService"

// RegisterHealthServer registers the gRPC health check service and starts a
// background checker that tracks Postgres and Redis connectivity.
func RegisterHealthServer(ctx context.Context, grpcServer *grpc.Server, db *database.PostgresDB, c *cache.RedisCache) {
	healthServer := health.NewServer()

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			healthy := true
			if db != nil {
				if err := db.Ping(ctx); err != nil {
					healthy = false
				}
			}
			if healthy && c != nil {
				if err := c.Client().Ping(ctx).Err(); err != nil {
					healthy = false
				}
			}

			status := grpc_health_v1.HealthCheckResponse_SERVING
			if !healthy {
				status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			}
			healthServer.SetServingStatus("", status)
			healthServer.SetServingStatus(ServiceName, status)
		}
	}()

	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
}
