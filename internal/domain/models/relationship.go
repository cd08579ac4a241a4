package models

import (
	"github.com/google/uuid"
)

// RelationshipType classifies an edge between two entities
type RelationshipType string

const (
	RelationshipMention           RelationshipType = "mention"
	RelationshipFollow            RelationshipType = "follow"
	RelationshipCoOccurrence      RelationshipType = "co-occurrence"
	RelationshipCrossPlatformLink RelationshipType = "cross-platform-link"
	RelationshipSharedDomain      RelationshipType = "shared-domain"
)

// Relationship is a typed edge between two entities. Edges are append-only
// within one analysis run and never mutated after creation.
type Relationship struct {
	ID       uuid.UUID        `json:"id"`
	Type     RelationshipType `json:"type"`
	SourceID uuid.UUID        `json:"source_id"`
	TargetID uuid.UUID        `json:"target_id"`
	Directed bool             `json:"directed"`
	Strength float64          `json:"strength"` // 0.0 - 1.0
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Touches reports whether the edge is incident to the given entity.
func (r *Relationship) Touches(entityID uuid.UUID) bool {
	return r.SourceID == entityID || r.TargetID == entityID
}

// Other returns the opposite endpoint of the edge relative to entityID.
func (r *Relationship) Other(entityID uuid.UUID) uuid.UUID {
	if r.SourceID == entityID {
		return r.TargetID
	}
	return r.SourceID
}
