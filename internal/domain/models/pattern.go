package models

import (
	"github.com/google/uuid"
)

// PatternType classifies a detected regularity
type PatternType string

const (
	PatternBehavioral    PatternType = "behavioral"
	PatternNetwork       PatternType = "network"
	PatternTemporal      PatternType = "temporal"
	PatternContent       PatternType = "content"
	PatternGeographic    PatternType = "geographic"
	PatternCrossPlatform PatternType = "cross_platform"
)

// Pattern is a detected regularity shared across entities or relationships.
// Produced by the pattern analyzer, consumed read-only by the correlator.
type Pattern struct {
	ID            uuid.UUID   `json:"id"`
	Type          PatternType `json:"type"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	EntityIDs     []uuid.UUID `json:"entity_ids,omitempty"`
	RelationshipIDs []uuid.UUID `json:"relationship_ids,omitempty"`
	Confidence    float64     `json:"confidence"` // from sample size and effect size
	SupportingMetrics map[string]float64 `json:"supporting_metrics,omitempty"`
	Platforms     []SourcePlatform `json:"platforms,omitempty"`
}

// Involves reports whether the pattern covers the given entity.
func (p *Pattern) Involves(entityID uuid.UUID) bool {
	for _, id := range p.EntityIDs {
		if id == entityID {
			return true
		}
	}
	return false
}
