// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"riskworker.yaml",
	"riskworker.yml",
	"/etc/veridex/riskworker.yaml",
	"/etc/veridex/riskworker.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "RISKWORKER_CONFIG"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and environment.
//
// The scoring weights and thresholds below are the tuned production values;
// they sum the way the scoring models expect (each model's weights total 1.0).
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "/data/veridex-analytics.duckdb",
			MaxMemory:    "2GB",
			Threads:      0, // 0 = use runtime.NumCPU()
			QueryTimeout: 30 * time.Second,
		},
		Analysis: AnalysisConfig{
			ValidationPattern: ValidationPatternConfig{
				Interval:         15 * time.Minute,
				Lookback:         24 * time.Hour,
				MinEvents:        3,
				AnomalyThreshold: 0.7,
				HourlyRateWeight: 0.3,
				HourlyRateLimit:  10,
				SpeedWeight:      0.4,
				SpeedLimitKmH:    800,
				NightWeight:      0.2,
				NightFraction:    0.5,
				ProductsWeight:   0.1,
				ProductsLimit:    10,
			},
			ReportRisk: ReportRiskConfig{
				Interval:                   30 * time.Minute,
				InvestigateThreshold:       0.6,
				HighRiskProducts:           []string{},
				HighRiskLocations:          []string{},
				HighRiskProductWeight:      0.3,
				HighRiskLocationWeight:     0.2,
				LowReliabilityWeight:       0.2,
				ReliabilityFloor:           0.5,
				HistoryWeight:              0.3,
				HistoryRateLimit:           0.1,
				DefaultReporterReliability: 0.5,
			},
			ChannelRisk: ChannelRiskConfig{
				Interval:             time.Hour,
				Lookback:             90 * 24 * time.Hour,
				ValidationNormalizer: 1000,
				LowVolumeWeight:      0.3,
				LowVolumeLimit:       0.1,
				CounterfeitWeight:    0.4,
				CounterfeitRateLimit: 0.05,
				ConsistencyWeight:    0.3,
				ConsistencyFloor:     0.3,
				CriticalThreshold:    0.8,
				HighThreshold:        0.6,
				MediumThreshold:      0.4,
			},
			Patterns: PatternConfig{
				Interval:             20 * time.Minute,
				GeoLookback:          24 * time.Hour,
				MaxPlausibleSpeedKmH: 800,
				MaxPairGap:           time.Hour,
				FrequencyLookback:    time.Hour,
				FrequencyMinEvents:   10,
				MaxPerMinute:         2,
			},
			Trend: TrendConfig{
				Interval: 6 * time.Hour,
				Lookback: 30 * 24 * time.Hour,
				MinDays:  7,
			},
		},
		Webhook: WebhookConfig{
			Enabled:       false, // Opt-in: most deployments consume alerts from the store
			URL:           "",
			Headers:       map[string]string{},
			MinRiskScore:  0.8,
			RatePerMinute: 30,
			Timeout:       10 * time.Second,
		},
		Ops: OpsConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    9460,
			Timeout: 15 * time.Second,
		},
		Liveness: LivenessConfig{
			Path:            "/data/riskworker.alive",
			RefreshInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Shutdown: ShutdownConfig{
			GracePeriod: 30 * time.Second,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
//
// Precedence: ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variable names map to koanf paths via the explicit table
	// in envTransformFunc; unmapped variables are ignored.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices when supplied via environment variables.
var sliceConfigPaths = []string{
	"analysis.report_risk.high_risk_products",
	"analysis.report_risk.high_risk_locations",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings but the config wants slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - DATABASE_PATH            -> database.path
//   - ANOMALY_SCAN_INTERVAL    -> analysis.validation_pattern.interval
//   - HIGH_RISK_PRODUCTS       -> analysis.report_risk.high_risk_products
//   - ALERT_WEBHOOK_URL        -> webhook.url
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Database mappings
		"database_path":       "database.path",
		"database_max_memory": "database.max_memory",
		"database_threads":    "database.threads",
		"duckdb_path":         "database.path",

		// Validation-pattern scan mappings
		"anomaly_scan_interval":    "analysis.validation_pattern.interval",
		"anomaly_scan_lookback":    "analysis.validation_pattern.lookback",
		"anomaly_min_events":       "analysis.validation_pattern.min_events",
		"anomaly_threshold":        "analysis.validation_pattern.anomaly_threshold",
		"anomaly_speed_limit_kmh":  "analysis.validation_pattern.speed_limit_kmh",
		"anomaly_hourly_rate":      "analysis.validation_pattern.hourly_rate_limit",
		"anomaly_night_fraction":   "analysis.validation_pattern.night_fraction",
		"anomaly_products_limit":   "analysis.validation_pattern.products_limit",

		// Report risk mappings
		"report_risk_interval":      "analysis.report_risk.interval",
		"report_risk_threshold":     "analysis.report_risk.investigate_threshold",
		"high_risk_products":        "analysis.report_risk.high_risk_products",
		"high_risk_locations":       "analysis.report_risk.high_risk_locations",
		"reporter_reliability_floor": "analysis.report_risk.reliability_floor",

		// Channel risk mappings
		"channel_risk_interval":   "analysis.channel_risk.interval",
		"channel_risk_lookback":   "analysis.channel_risk.lookback",
		"channel_risk_normalizer": "analysis.channel_risk.validation_normalizer",

		// Pattern detector mappings
		"pattern_scan_interval":    "analysis.patterns.interval",
		"pattern_geo_lookback":     "analysis.patterns.geo_lookback",
		"pattern_max_speed_kmh":    "analysis.patterns.max_plausible_speed_kmh",
		"pattern_freq_lookback":    "analysis.patterns.frequency_lookback",
		"pattern_freq_min_events":  "analysis.patterns.frequency_min_events",
		"pattern_max_per_minute":   "analysis.patterns.max_per_minute",

		// Trend mappings
		"trend_interval": "analysis.trend.interval",
		"trend_lookback": "analysis.trend.lookback",
		"trend_min_days": "analysis.trend.min_days",

		// Webhook mappings
		"alert_webhook_enabled":  "webhook.enabled",
		"alert_webhook_url":      "webhook.url",
		"alert_webhook_min_risk": "webhook.min_risk_score",
		"alert_webhook_rate":     "webhook.rate_per_minute",

		// Ops server mappings
		"ops_enabled": "ops.enabled",
		"ops_host":    "ops.host",
		"ops_port":    "ops.port",

		// Liveness mappings
		"liveness_path":     "liveness.path",
		"liveness_interval": "liveness.refresh_interval",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Shutdown mappings
		"shutdown_grace_period": "shutdown.grace_period",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables don't
	// pollute the config.
	return ""
}
