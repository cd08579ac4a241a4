package models

import (
	"time"

	"github.com/google/uuid"
)

// Entity is a resolved, canonical identity merged from one or more raw records.
// Entities are created by the resolver during a single resolution pass and are
// read-only afterward.
type Entity struct {
	ID                   uuid.UUID      `json:"id"`
	MemberRecords        []uuid.UUID    `json:"member_records"` // insertion order = resolution order
	Platforms            []SourcePlatform `json:"platforms"`
	Attributes           EntityAttributes `json:"attributes"`
	ResolutionConfidence float64        `json:"resolution_confidence"`
}

// EntityAttributes holds identity fields merged across member records. Values
// are unioned, never overwritten.
type EntityAttributes struct {
	Usernames    []string   `json:"usernames,omitempty"`
	DisplayNames []string   `json:"display_names,omitempty"`
	Emails       []string   `json:"emails,omitempty"`
	Bios         []string   `json:"bios,omitempty"`
	Locations    []string   `json:"locations,omitempty"`
	Verified     bool       `json:"verified"`
	EarliestSeen *time.Time `json:"earliest_seen,omitempty"` // oldest account creation among members
	Metrics      map[string]float64 `json:"metrics,omitempty"` // max per metric across members
}

// CrossPlatform reports whether the entity spans more than one source platform.
func (e *Entity) CrossPlatform() bool {
	return len(e.Platforms) > 1
}

// AccountAge returns the age of the entity's oldest member account at the given
// reference time, or 0 and false when no creation timestamp is known.
func (e *Entity) AccountAge(at time.Time) (time.Duration, bool) {
	if e.Attributes.EarliestSeen == nil {
		return 0, false
	}
	return at.Sub(*e.Attributes.EarliestSeen), true
}

// Metric returns a merged metric value, or 0 and false when absent.
func (e *Entity) Metric(name string) (float64, bool) {
	if e.Attributes.Metrics == nil {
		return 0, false
	}
	v, ok := e.Attributes.Metrics[name]
	return v, ok
}

// UnresolvedRecord captures a raw record that was excluded from resolution
// because it lacked usable identity fields.
type UnresolvedRecord struct {
	RecordID uuid.UUID `json:"record_id"`
	Reason   string    `json:"reason"`
}

// ResolutionResult is the output of one resolver pass over an investigation's
// record snapshot.
type ResolutionResult struct {
	Entities     []*Entity          `json:"entities"`
	Unresolved   []UnresolvedRecord `json:"unresolved,omitempty"`
	Relationships []*Relationship   `json:"relationships,omitempty"` // cross-platform link edges
	PairsScored  int                `json:"pairs_scored"`
	PairsMerged  int                `json:"pairs_merged"`
}
