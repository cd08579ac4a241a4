package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourcePlatform identifies the platform a raw record was collected from
type SourcePlatform string

const (
	PlatformGitHub    SourcePlatform = "github"
	PlatformGitLab    SourcePlatform = "gitlab"
	PlatformTwitter   SourcePlatform = "twitter"
	PlatformInstagram SourcePlatform = "instagram"
	PlatformReddit    SourcePlatform = "reddit"
	PlatformLinkedIn  SourcePlatform = "linkedin"
	PlatformMastodon  SourcePlatform = "mastodon"
	PlatformDomain    SourcePlatform = "domain"
)

// Well-known metric names carried in RawRecord.Metrics. Collectors are free to
// attach additional counters; the engine only interprets the ones it knows.
const (
	MetricFollowerCount  = "follower_count"
	MetricFollowingCount = "following_count"
	MetricPostCount      = "post_count"
	MetricRepoCount      = "repo_count"
	MetricPostingRate    = "posting_rate"     // posts per day
	MetricGrowthRate     = "growth_rate"      // follower delta per day
	MetricEngagementRate = "engagement_rate"  // interactions per post
	MetricCadenceStdDev  = "cadence_stddev"   // stddev of inter-post gaps, hours
	MetricHashtagFreq    = "hashtag_frequency" // hashtags per post
)

// RawRecord is one observation about a candidate identity from a single source
// platform. Records are immutable once produced by a collector.
type RawRecord struct {
	ID               uuid.UUID       `json:"id"`
	InvestigationID  uuid.UUID       `json:"investigation_id"`
	SourcePlatform   SourcePlatform  `json:"source_platform"`
	SourceIdentifier string          `json:"source_identifier"`
	DisplayName      string          `json:"display_name,omitempty"`
	Bio              string          `json:"bio,omitempty"`
	Email            string          `json:"email,omitempty"`
	Location         string          `json:"location,omitempty"`
	Verified         bool            `json:"verified"`
	CreatedAt        *time.Time      `json:"created_at,omitempty"` // account creation on the platform
	Metrics          map[string]float64 `json:"metrics,omitempty"`
	RawPayload       json.RawMessage `json:"raw_payload,omitempty"`
	CollectedAt      time.Time       `json:"collected_at"`
}

// Key returns the canonical platform-scoped identity key for a record.
func (r *RawRecord) Key() string {
	return string(r.SourcePlatform) + ":" + strings.ToLower(r.SourceIdentifier)
}

// HasIdentity reports whether the record carries enough identity material to
// participate in resolution at all.
func (r *RawRecord) HasIdentity() bool {
	return r.SourcePlatform != "" && strings.TrimSpace(r.SourceIdentifier) != ""
}

// Metric returns a named metric, or 0 and false when absent.
func (r *RawRecord) Metric(name string) (float64, bool) {
	if r.Metrics == nil {
		return 0, false
	}
	v, ok := r.Metrics[name]
	return v, ok
}
