package models

import (
	"fmt"
	"time"
)

// ConfidenceMode selects how per-entity resolution confidence is aggregated
// from pairwise match scores.
type ConfidenceMode string

const (
	ConfidenceMin  ConfidenceMode = "min" // conservative default
	ConfidenceMean ConfidenceMode = "mean"
)

// ResolverConfig tunes entity resolution.
type ResolverConfig struct {
	MatchThreshold float64        `json:"match_threshold" mapstructure:"match_threshold"`
	ChannelWeights ChannelWeights `json:"channel_weights" mapstructure:"channel_weights"`
	ConfidenceMode ConfidenceMode `json:"confidence_mode" mapstructure:"confidence_mode"`
}

// ChannelWeights weight the independent resolver signal channels. Email
// dominates, username and domain follow, display name and content trail.
type ChannelWeights struct {
	Email       float64 `json:"email" mapstructure:"email"`
	Username    float64 `json:"username" mapstructure:"username"`
	Domain      float64 `json:"domain" mapstructure:"domain"`
	DisplayName float64 `json:"display_name" mapstructure:"display_name"`
	Content     float64 `json:"content" mapstructure:"content"`
}

// Sum returns the total channel weight mass.
func (w ChannelWeights) Sum() float64 {
	return w.Email + w.Username + w.Domain + w.DisplayName + w.Content
}

// AnomalyConfig tunes statistical and rule-based anomaly detection.
type AnomalyConfig struct {
	ZThreshold    float64       `json:"z_threshold" mapstructure:"z_threshold"`
	MinSampleSize int           `json:"min_sample_size" mapstructure:"min_sample_size"`
	// Severity bands over |z|: below Medium -> low, below High -> medium,
	// below Critical -> high, else critical.
	SeverityBandMedium   float64       `json:"severity_band_medium" mapstructure:"severity_band_medium"`
	SeverityBandHigh     float64       `json:"severity_band_high" mapstructure:"severity_band_high"`
	SeverityBandCritical float64       `json:"severity_band_critical" mapstructure:"severity_band_critical"`
	NewAccountAge        time.Duration `json:"new_account_age" mapstructure:"new_account_age"`
	BotCadenceStdDevMax  float64       `json:"bot_cadence_stddev_max" mapstructure:"bot_cadence_stddev_max"`
	BotPostingRateMin    float64       `json:"bot_posting_rate_min" mapstructure:"bot_posting_rate_min"`
	SuspiciousKeywords   []string      `json:"suspicious_keywords" mapstructure:"suspicious_keywords"`
}

// ThreatWeights is the per-risk-factor weight table of the correlator.
type ThreatWeights struct {
	IndicatorMatch   float64 `json:"indicator_match" mapstructure:"indicator_match"`
	Anomaly          float64 `json:"anomaly" mapstructure:"anomaly"`
	Pattern          float64 `json:"pattern" mapstructure:"pattern"`
	StructuralRisk   float64 `json:"structural_risk" mapstructure:"structural_risk"`
}

// ThreatCutpoints map a threat score to a level. Values must be strictly
// increasing. Score < Low -> none, < Medium -> low, < High -> medium,
// < Critical -> high, else critical.
type ThreatCutpoints struct {
	Low      float64 `json:"low" mapstructure:"low"`
	Medium   float64 `json:"medium" mapstructure:"medium"`
	High     float64 `json:"high" mapstructure:"high"`
	Critical float64 `json:"critical" mapstructure:"critical"`
}

// ThreatConfig tunes the threat correlator.
type ThreatConfig struct {
	Weights          ThreatWeights   `json:"weights" mapstructure:"weights"`
	Cutpoints        ThreatCutpoints `json:"cutpoints" mapstructure:"cutpoints"`
	IndicatorLexicon []string        `json:"indicator_lexicon" mapstructure:"indicator_lexicon"`
}

// PatternConfig tunes the pattern analyzer.
type PatternConfig struct {
	MinGroupSize   int           `json:"min_group_size" mapstructure:"min_group_size"`
	BurstWindow    time.Duration `json:"burst_window" mapstructure:"burst_window"`
	StrongEdgeMin  float64       `json:"strong_edge_min" mapstructure:"strong_edge_min"`
	DenseClusterMin int          `json:"dense_cluster_min" mapstructure:"dense_cluster_min"`
}

// EngineConfig is the single configuration object handed to the orchestrator
// at run start. No global mutable configuration state exists.
type EngineConfig struct {
	Resolver ResolverConfig `json:"resolver" mapstructure:"resolver"`
	Pattern  PatternConfig  `json:"pattern" mapstructure:"pattern"`
	Anomaly  AnomalyConfig  `json:"anomaly" mapstructure:"anomaly"`
	Threat   ThreatConfig   `json:"threat" mapstructure:"threat"`
	SummaryTopN int         `json:"summary_top_n" mapstructure:"summary_top_n"`
}

// DefaultEngineConfig returns illustrative defaults. None of the constants are
// load-bearing; operators override them through configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Resolver: ResolverConfig{
			MatchThreshold: 0.6,
			ChannelWeights: ChannelWeights{
				Email:       0.40,
				Username:    0.20,
				Domain:      0.15,
				DisplayName: 0.15,
				Content:     0.10,
			},
			ConfidenceMode: ConfidenceMin,
		},
		Pattern: PatternConfig{
			MinGroupSize:    3,
			BurstWindow:     24 * time.Hour,
			StrongEdgeMin:   0.5,
			DenseClusterMin: 3,
		},
		Anomaly: AnomalyConfig{
			ZThreshold:           2.5,
			MinSampleSize:        3,
			SeverityBandMedium:   2.5,
			SeverityBandHigh:     3.5,
			SeverityBandCritical: 5.0,
			NewAccountAge:        30 * 24 * time.Hour,
			BotCadenceStdDevMax:  0.25,
			BotPostingRateMin:    24,
			SuspiciousKeywords: []string{
				"ddos", "botnet", "carding", "stealer", "ransomware",
				"exploit", "0day", "zero-day", "phishing", "crypter",
			},
		},
		Threat: ThreatConfig{
			Weights: ThreatWeights{
				IndicatorMatch: 0.30,
				Anomaly:        0.30,
				Pattern:        0.20,
				StructuralRisk: 0.20,
			},
			Cutpoints: ThreatCutpoints{
				Low:      0.15,
				Medium:   0.30,
				High:     0.60,
				Critical: 0.85,
			},
			IndicatorLexicon: []string{
				"ddos", "botnet", "malware", "exploit", "ransomware",
				"carding", "stealer", "phishing", "spam", "darkweb",
			},
		},
		SummaryTopN: 5,
	}
}

// ConfigurationError marks an invalid engine configuration. It is fatal and
// raised before any analysis work starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid engine configuration: %s: %s", e.Field, e.Reason)
}

// Validate checks the configuration for fatal problems: negative weights,
// thresholds out of range, cut-points not strictly increasing.
func (c EngineConfig) Validate() error {
	if c.Resolver.MatchThreshold <= 0 || c.Resolver.MatchThreshold > 1 {
		return &ConfigurationError{Field: "resolver.match_threshold", Reason: "must be in (0, 1]"}
	}
	channelWeights := []struct {
		field string
		value float64
	}{
		{"resolver.channel_weights.email", c.Resolver.ChannelWeights.Email},
		{"resolver.channel_weights.username", c.Resolver.ChannelWeights.Username},
		{"resolver.channel_weights.domain", c.Resolver.ChannelWeights.Domain},
		{"resolver.channel_weights.display_name", c.Resolver.ChannelWeights.DisplayName},
		{"resolver.channel_weights.content", c.Resolver.ChannelWeights.Content},
	}
	for _, w := range channelWeights {
		if w.value < 0 {
			return &ConfigurationError{Field: w.field, Reason: "weight must not be negative"}
		}
	}
	if c.Resolver.ChannelWeights.Sum() <= 0 {
		return &ConfigurationError{Field: "resolver.channel_weights", Reason: "at least one channel weight must be positive"}
	}
	switch c.Resolver.ConfidenceMode {
	case ConfidenceMin, ConfidenceMean:
	default:
		return &ConfigurationError{Field: "resolver.confidence_mode", Reason: "must be min or mean"}
	}

	if c.Anomaly.ZThreshold <= 0 {
		return &ConfigurationError{Field: "anomaly.z_threshold", Reason: "must be positive"}
	}
	if c.Anomaly.MinSampleSize < 2 {
		return &ConfigurationError{Field: "anomaly.min_sample_size", Reason: "must be at least 2"}
	}
	if !(c.Anomaly.SeverityBandMedium < c.Anomaly.SeverityBandHigh &&
		c.Anomaly.SeverityBandHigh < c.Anomaly.SeverityBandCritical) {
		return &ConfigurationError{Field: "anomaly.severity_bands", Reason: "bands must be strictly increasing"}
	}

	threatWeights := []struct {
		field string
		value float64
	}{
		{"threat.weights.indicator_match", c.Threat.Weights.IndicatorMatch},
		{"threat.weights.anomaly", c.Threat.Weights.Anomaly},
		{"threat.weights.pattern", c.Threat.Weights.Pattern},
		{"threat.weights.structural_risk", c.Threat.Weights.StructuralRisk},
	}
	for _, w := range threatWeights {
		if w.value < 0 {
			return &ConfigurationError{Field: w.field, Reason: "weight must not be negative"}
		}
	}
	cp := c.Threat.Cutpoints
	if !(cp.Low < cp.Medium && cp.Medium < cp.High && cp.High < cp.Critical) {
		return &ConfigurationError{Field: "threat.cutpoints", Reason: "cut-points must be strictly increasing"}
	}
	if cp.Low < 0 || cp.Critical > 1 {
		return &ConfigurationError{Field: "threat.cutpoints", Reason: "cut-points must lie in [0, 1]"}
	}

	if c.Pattern.MinGroupSize < 2 {
		return &ConfigurationError{Field: "pattern.min_group_size", Reason: "must be at least 2"}
	}
	if c.Pattern.BurstWindow <= 0 {
		return &ConfigurationError{Field: "pattern.burst_window", Reason: "must be positive"}
	}
	if c.SummaryTopN <= 0 {
		return &ConfigurationError{Field: "summary_top_n", Reason: "must be positive"}
	}
	return nil
}
