package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"intelgraph-lab/internal/config"
	"intelgraph-lab/pkg/logger"
)

// Neo4jClient wraps the Neo4j driver
type Neo4jClient struct {
	driver neo4j.DriverWithContext
	config config.Neo4jConfig
	logger *logger.Logger
}

// NewNeo4jClient creates a new Neo4j client
func NewNeo4jClient(ctx context.Context, cfg config.Neo4jConfig, log *logger.Logger) (*Neo4jClient, error) {
	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxConnections
		c.MaxConnectionLifetime = time.Duration(cfg.MaxLifetimeMinutes) * time.Minute
		c.ConnectionAcquisitionTimeout = 30 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	// Verify connectivity
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	client := &Neo4jClient{
		driver: driver,
		config: cfg,
		logger: log.WithComponent("neo4j"),
	}

	// Initialize schema/indexes
	if err := client.initializeSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to initialize Neo4j schema")
	}

	log.Info().
		Str("uri", cfg.URI).
		Msg("connected to Neo4j")

	return client, nil
}

// Close closes the Neo4j driver
func (c *Neo4jClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// ReadSession creates a read-only session
func (c *Neo4jClient) ReadSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.config.Database,
	})
}

// WriteSession creates a read-write session
func (c *Neo4jClient) WriteSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.config.Database,
	})
}

// ExecuteWrite executes a write transaction
func (c *Neo4jClient) ExecuteWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) (interface{}, error)) (interface{}, error) {
	session := c.WriteSession(ctx)
	defer session.Close(ctx)

	return session.ExecuteWrite(ctx, work)
}

// ExecuteRead executes a read transaction
func (c *Neo4jClient) ExecuteRead(ctx context.Context, work func(tx neo4j.ManagedTransaction) (interface{}, error)) (interface{}, error) {
	session := c.ReadSession(ctx)
	defer session.Close(ctx)

	return session.ExecuteRead(ctx, work)
}

// initializeSchema creates indexes and constraints
func (c *Neo4jClient) initializeSchema(ctx context.Context) error {
	session := c.WriteSession(ctx)
	defer session.Close(ctx)

	indexes := []string{
		"CREATE INDEX entity_id IF NOT EXISTS FOR (e:Entity) ON (e.id)",
		"CREATE INDEX entity_display_name IF NOT EXISTS FOR (e:Entity) ON (e.display_name)",
		"CREATE INDEX entity_threat_level IF NOT EXISTS FOR (e:Entity) ON (e.threat_level)",

		"CREATE INDEX investigation_id IF NOT EXISTS FOR (v:Investigation) ON (v.id)",

		"CREATE FULLTEXT INDEX entity_search IF NOT EXISTS FOR (e:Entity) ON EACH [e.display_name, e.usernames]",
	}

	for _, idx := range indexes {
		_, err := session.Run(ctx, idx, nil)
		if err != nil {
			c.logger.Warn().Err(err).Str("index", idx).Msg("failed to create index")
		}
	}

	c.logger.Info().Msg("Neo4j schema initialized")
	return nil
}

// Health checks Neo4j connectivity
func (c *Neo4jClient) Health(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// Stats returns basic database statistics
func (c *Neo4jClient) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)

	session := c.ReadSession(ctx)
	defer session.Close(ctx)

	nodeLabels := []string{"Entity", "Investigation"}
	for _, label := range nodeLabels {
		result, err := session.Run(ctx, fmt.Sprintf("MATCH (n:%s) RETURN count(n) as count", label), nil)
		if err != nil {
			continue
		}
		if result.Next(ctx) {
			count, _ := result.Record().Get("count")
			if c, ok := count.(int64); ok {
				stats[label] = c
			}
		}
	}

	result, err := session.Run(ctx, "MATCH ()-[r]->() RETURN count(r) as count", nil)
	if err == nil && result.Next(ctx) {
		count, _ := result.Record().Get("count")
		if c, ok := count.(int64); ok {
			stats["relationships"] = c
		}
	}

	return stats, nil
}
