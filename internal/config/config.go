// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package config loads and validates the worker configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. Every scoring weight, threshold, lookback
// window, and task interval is configurable so deployments can tune
// sensitivity without code changes. The loaded Config value is treated as
// immutable; it is passed by value into scorers and detectors and never
// mutated after startup.
package config

import (
	"time"
)

// Config is the root configuration for the risk worker.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Ops       OpsConfig       `koanf:"ops"`
	Liveness  LivenessConfig  `koanf:"liveness"`
	Logging   LoggingConfig   `koanf:"logging"`
	Shutdown  ShutdownConfig  `koanf:"shutdown"`
}

// DatabaseConfig configures the DuckDB analytics store connection.
type DatabaseConfig struct {
	// Path is the DuckDB database file. The ingestion service lands
	// validation events, reports, and channels here; the worker owns the
	// anomaly, pattern, and prediction tables.
	Path string `koanf:"path"`

	// MaxMemory is DuckDB's memory limit (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`

	// QueryTimeout bounds every individual query.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// AnalysisConfig groups the per-task analysis settings.
type AnalysisConfig struct {
	ValidationPattern ValidationPatternConfig `koanf:"validation_pattern"`
	ReportRisk        ReportRiskConfig        `koanf:"report_risk"`
	ChannelRisk       ChannelRiskConfig       `koanf:"channel_risk"`
	Patterns          PatternConfig           `koanf:"patterns"`
	Trend             TrendConfig             `koanf:"trend"`
}

// ValidationPatternConfig tunes the per-user validation-pattern scan.
type ValidationPatternConfig struct {
	// Interval is the scan cadence.
	Interval time.Duration `koanf:"interval"`

	// Lookback is the event window for feature extraction.
	Lookback time.Duration `koanf:"lookback"`

	// MinEvents is the minimum events per user before scoring; users below
	// it are skipped as insufficient data.
	MinEvents int `koanf:"min_events"`

	// AnomalyThreshold gates persistence: an AnomalyRecord is written only
	// when the score strictly exceeds it.
	AnomalyThreshold float64 `koanf:"anomaly_threshold"`

	// Scoring rule weights and their trigger limits.
	HourlyRateWeight  float64 `koanf:"hourly_rate_weight"`
	HourlyRateLimit   float64 `koanf:"hourly_rate_limit"`
	SpeedWeight       float64 `koanf:"speed_weight"`
	SpeedLimitKmH     float64 `koanf:"speed_limit_kmh"`
	NightWeight       float64 `koanf:"night_weight"`
	NightFraction     float64 `koanf:"night_fraction"`
	ProductsWeight    float64 `koanf:"products_weight"`
	ProductsLimit     float64 `koanf:"products_limit"`
}

// ReportRiskConfig tunes counterfeit-report risk assessment.
type ReportRiskConfig struct {
	Interval time.Duration `koanf:"interval"`

	// InvestigateThreshold: score above it moves the report to
	// "investigating", at or below returns it to "pending".
	InvestigateThreshold float64 `koanf:"investigate_threshold"`

	// HighRiskProducts and HighRiskLocations are the configured watchlists.
	HighRiskProducts  []string `koanf:"high_risk_products"`
	HighRiskLocations []string `koanf:"high_risk_locations"`

	HighRiskProductWeight  float64 `koanf:"high_risk_product_weight"`
	HighRiskLocationWeight float64 `koanf:"high_risk_location_weight"`
	LowReliabilityWeight   float64 `koanf:"low_reliability_weight"`
	ReliabilityFloor       float64 `koanf:"reliability_floor"`
	HistoryWeight          float64 `koanf:"history_weight"`
	HistoryRateLimit       float64 `koanf:"history_rate_limit"`

	// DefaultReporterReliability is assumed for reporters with no history.
	DefaultReporterReliability float64 `koanf:"default_reporter_reliability"`
}

// ChannelRiskConfig tunes distribution-channel risk scoring.
type ChannelRiskConfig struct {
	Interval time.Duration `koanf:"interval"`

	// Lookback is the rolling aggregation window (default 90 days).
	Lookback time.Duration `koanf:"lookback"`

	// ValidationNormalizer scales raw validation counts into a [0,n) rate.
	ValidationNormalizer float64 `koanf:"validation_normalizer"`

	LowVolumeWeight      float64 `koanf:"low_volume_weight"`
	LowVolumeLimit       float64 `koanf:"low_volume_limit"`
	CounterfeitWeight    float64 `koanf:"counterfeit_weight"`
	CounterfeitRateLimit float64 `koanf:"counterfeit_rate_limit"`
	ConsistencyWeight    float64 `koanf:"consistency_weight"`
	ConsistencyFloor     float64 `koanf:"consistency_floor"`

	// Risk-level bucket boundaries.
	CriticalThreshold float64 `koanf:"critical_threshold"`
	HighThreshold     float64 `koanf:"high_threshold"`
	MediumThreshold   float64 `koanf:"medium_threshold"`
}

// PatternConfig tunes the pairwise suspicious-pattern detectors.
type PatternConfig struct {
	Interval time.Duration `koanf:"interval"`

	// Geographic-speed detector.
	GeoLookback          time.Duration `koanf:"geo_lookback"`
	MaxPlausibleSpeedKmH float64       `koanf:"max_plausible_speed_kmh"`
	MaxPairGap           time.Duration `koanf:"max_pair_gap"`

	// Frequency detector.
	FrequencyLookback  time.Duration `koanf:"frequency_lookback"`
	FrequencyMinEvents int           `koanf:"frequency_min_events"`
	MaxPerMinute       float64       `koanf:"max_per_minute"`
}

// TrendConfig tunes the trend predictor.
type TrendConfig struct {
	Interval time.Duration `koanf:"interval"`

	// Lookback is the daily-aggregation window (default 30 days).
	Lookback time.Duration `koanf:"lookback"`

	// MinDays is the minimum daily buckets required before predicting.
	MinDays int `koanf:"min_days"`
}

// WebhookConfig configures delivery of critical suspicious patterns to an
// external endpoint.
type WebhookConfig struct {
	Enabled bool              `koanf:"enabled"`
	URL     string            `koanf:"url"`
	Headers map[string]string `koanf:"headers"`

	// MinRiskScore filters delivery to high-signal patterns.
	MinRiskScore float64 `koanf:"min_risk_score"`

	// RatePerMinute caps outbound notifications.
	RatePerMinute float64 `koanf:"rate_per_minute"`

	Timeout time.Duration `koanf:"timeout"`
}

// OpsConfig configures the operational HTTP surface (healthz/readyz/metrics).
type OpsConfig struct {
	Enabled bool          `koanf:"enabled"`
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LivenessConfig configures the liveness marker file polled by the external
// health check.
type LivenessConfig struct {
	// Path is the marker file location. Empty disables the marker.
	Path string `koanf:"path"`

	// RefreshInterval is how often the marker is rewritten. The external
	// health check treats a marker older than ~3 intervals as stale.
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ShutdownConfig bounds graceful shutdown.
type ShutdownConfig struct {
	// GracePeriod is how long in-flight task runs may finish after a
	// shutdown signal before the process exits anyway.
	GracePeriod time.Duration `koanf:"grace_period"`
}
