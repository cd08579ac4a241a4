package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/pkg/logger"
)

// GraphRepository projects analysis reports into the graph database so that
// resolved identities and their link structure can be explored across runs.
type GraphRepository struct {
	client *Neo4jClient
	logger *logger.Logger
}

// NewGraphRepository creates a new graph repository
func NewGraphRepository(client *Neo4jClient, log *logger.Logger) *GraphRepository {
	return &GraphRepository{
		client: client,
		logger: log.WithComponent("graph-repo"),
	}
}

// ProjectReport replaces the investigation's subgraph with the content of the
// given report. Entity and relationship IDs are deterministic for a fixed
// record snapshot, so re-projecting the same report is idempotent.
func (r *GraphRepository) ProjectReport(ctx context.Context, report *models.IntelligenceReport) error {
	if err := r.clearInvestigation(ctx, report.InvestigationID); err != nil {
		return err
	}

	if err := r.upsertInvestigation(ctx, report); err != nil {
		return err
	}

	if err := r.projectEntities(ctx, report); err != nil {
		return err
	}

	if err := r.projectRelationships(ctx, report); err != nil {
		return err
	}

	r.logger.Info().
		Str("investigation_id", report.InvestigationID.String()).
		Int("entities", len(report.Entities)).
		Int("relationships", len(report.Relationships)).
		Msg("projected report into graph")

	return nil
}

func (r *GraphRepository) clearInvestigation(ctx context.Context, investigationID uuid.UUID) error {
	cypher := `
		MATCH (e:Entity {investigation_id: $investigation_id})
		DETACH DELETE e`

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, err := tx.Run(ctx, cypher, map[string]interface{}{
			"investigation_id": investigationID.String(),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to clear investigation subgraph: %w", err)
	}
	return nil
}

func (r *GraphRepository) upsertInvestigation(ctx context.Context, report *models.IntelligenceReport) error {
	cypher := `
		MERGE (v:Investigation {id: $id})
		SET v.last_report_id = $report_id,
			v.confidence_score = $confidence_score,
			v.generated_at = $generated_at,
			v.updated_at = timestamp()`

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, err := tx.Run(ctx, cypher, map[string]interface{}{
			"id":               report.InvestigationID.String(),
			"report_id":        report.ID.String(),
			"confidence_score": report.ConfidenceScore,
			"generated_at":     report.GeneratedAt.Unix(),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert investigation node: %w", err)
	}
	return nil
}

func (r *GraphRepository) projectEntities(ctx context.Context, report *models.IntelligenceReport) error {
	if len(report.Entities) == 0 {
		return nil
	}

	batch := make([]map[string]interface{}, 0, len(report.Entities))
	for _, e := range report.Entities {
		platforms := make([]string, 0, len(e.Platforms))
		for _, p := range e.Platforms {
			platforms = append(platforms, string(p))
		}

		props := map[string]interface{}{
			"id":                    e.ID.String(),
			"investigation_id":      report.InvestigationID.String(),
			"display_name":          firstOr(e.Attributes.DisplayNames, strings.Join(e.Attributes.Usernames, ", ")),
			"usernames":             e.Attributes.Usernames,
			"platforms":             platforms,
			"verified":              e.Attributes.Verified,
			"cross_platform":        e.CrossPlatform(),
			"member_count":          len(e.MemberRecords),
			"resolution_confidence": e.ResolutionConfidence,
			"threat_level":          string(models.ThreatLevelNone),
			"threat_score":          0.0,
		}
		if a := report.AssessmentFor(e.ID); a != nil {
			props["threat_level"] = string(a.ThreatLevel)
			props["threat_score"] = a.ThreatScore
			props["indicators"] = a.Indicators
		}
		batch = append(batch, props)
	}

	cypher := `
		UNWIND $batch AS ent
		MERGE (e:Entity {id: ent.id})
		SET e += ent
		WITH e
		MATCH (v:Investigation {id: e.investigation_id})
		MERGE (v)-[:CONTAINS]->(e)`

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, err := tx.Run(ctx, cypher, map[string]interface{}{"batch": batch})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to project entities: %w", err)
	}
	return nil
}

func (r *GraphRepository) projectRelationships(ctx context.Context, report *models.IntelligenceReport) error {
	if len(report.Relationships) == 0 {
		return nil
	}

	batch := make([]map[string]interface{}, 0, len(report.Relationships))
	for _, rel := range report.Relationships {
		props := map[string]interface{}{
			"id":        rel.ID.String(),
			"type":      string(rel.Type),
			"source_id": rel.SourceID.String(),
			"target_id": rel.TargetID.String(),
			"strength":  rel.Strength,
		}
		if a := report.AssessmentFor(rel.ID); a != nil {
			props["threat_level"] = string(a.ThreatLevel)
			props["threat_score"] = a.ThreatScore
		}
		batch = append(batch, props)
	}

	cypher := `
		UNWIND $batch AS rel
		MATCH (a:Entity {id: rel.source_id})
		MATCH (b:Entity {id: rel.target_id})
		MERGE (a)-[l:LINKED_TO {id: rel.id}]->(b)
		SET l.type = rel.type,
			l.strength = rel.strength,
			l.threat_level = coalesce(rel.threat_level, l.threat_level),
			l.threat_score = coalesce(rel.threat_score, l.threat_score)`

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, err := tx.Run(ctx, cypher, map[string]interface{}{"batch": batch})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to project relationships: %w", err)
	}
	return nil
}

// Neighborhood returns the entities directly linked to the given entity along
// with the connecting edges.
func (r *GraphRepository) Neighborhood(ctx context.Context, entityID uuid.UUID) ([]map[string]interface{}, error) {
	cypher := `
		MATCH (e:Entity {id: $id})-[l:LINKED_TO]-(n:Entity)
		RETURN n.id AS id, n.display_name AS display_name, n.threat_level AS threat_level,
			l.type AS link_type, l.strength AS strength
		ORDER BY l.strength DESC, id`

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, cypher, map[string]interface{}{"id": entityID.String()})
		if err != nil {
			return nil, err
		}

		var rows []map[string]interface{}
		for res.Next(ctx) {
			record := res.Record()
			row := make(map[string]interface{}, len(record.Keys))
			for _, key := range record.Keys {
				val, _ := record.Get(key)
				row[key] = val
			}
			rows = append(rows, row)
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query neighborhood: %w", err)
	}

	return result.([]map[string]interface{}), nil
}

// HighThreatEntities returns entities at or above the given threat level across
// all investigations, ordered by descending score.
func (r *GraphRepository) HighThreatEntities(ctx context.Context, levels []models.ThreatLevel, limit int) ([]map[string]interface{}, error) {
	names := make([]string, 0, len(levels))
	for _, l := range levels {
		names = append(names, string(l))
	}
	if limit <= 0 {
		limit = 25
	}

	cypher := `
		MATCH (e:Entity)
		WHERE e.threat_level IN $levels
		RETURN e.id AS id, e.investigation_id AS investigation_id,
			e.display_name AS display_name, e.threat_level AS threat_level,
			e.threat_score AS threat_score
		ORDER BY e.threat_score DESC, id
		LIMIT $limit`

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, cypher, map[string]interface{}{
			"levels": names,
			"limit":  limit,
		})
		if err != nil {
			return nil, err
		}

		var rows []map[string]interface{}
		for res.Next(ctx) {
			record := res.Record()
			row := make(map[string]interface{}, len(record.Keys))
			for _, key := range record.Keys {
				val, _ := record.Get(key)
				row[key] = val
			}
			rows = append(rows, row)
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query high threat entities: %w", err)
	}

	return result.([]map[string]interface{}), nil
}

func firstOr(values []string, fallback string) string {
	if len(values) > 0 {
		return values[0]
	}
	return fallback
}
