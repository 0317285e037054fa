// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}

	if cfg.Analysis.ValidationPattern.Interval != 15*time.Minute {
		t.Errorf("validation pattern interval = %v, want 15m", cfg.Analysis.ValidationPattern.Interval)
	}
	if cfg.Analysis.Trend.Interval != 6*time.Hour {
		t.Errorf("trend interval = %v, want 6h", cfg.Analysis.Trend.Interval)
	}
	if cfg.Analysis.ChannelRisk.Lookback != 90*24*time.Hour {
		t.Errorf("channel risk lookback = %v, want 90 days", cfg.Analysis.ChannelRisk.Lookback)
	}
	if cfg.Webhook.Enabled {
		t.Error("webhook delivery should be opt-in")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "DATABASE_PATH",
		},
		{
			name:    "negative threads",
			mutate:  func(c *Config) { c.Database.Threads = -1 },
			wantErr: "threads",
		},
		{
			name:    "zero query timeout",
			mutate:  func(c *Config) { c.Database.QueryTimeout = 0 },
			wantErr: "query_timeout",
		},
		{
			name:    "min events below pair threshold",
			mutate:  func(c *Config) { c.Analysis.ValidationPattern.MinEvents = 1 },
			wantErr: "min_events",
		},
		{
			name:    "anomaly threshold above one",
			mutate:  func(c *Config) { c.Analysis.ValidationPattern.AnomalyThreshold = 1.5 },
			wantErr: "anomaly_threshold",
		},
		{
			name:    "non-decreasing channel buckets",
			mutate:  func(c *Config) { c.Analysis.ChannelRisk.HighThreshold = 0.9 },
			wantErr: "strictly decreasing",
		},
		{
			name:    "trend min days below a week",
			mutate:  func(c *Config) { c.Analysis.Trend.MinDays = 3 },
			wantErr: "min_days",
		},
		{
			name:    "webhook enabled without url",
			mutate:  func(c *Config) { c.Webhook.Enabled = true },
			wantErr: "ALERT_WEBHOOK_URL",
		},
		{
			name: "webhook url without scheme",
			mutate: func(c *Config) {
				c.Webhook.Enabled = true
				c.Webhook.URL = "alerts.example.com/hook"
			},
			wantErr: "http(s)",
		},
		{
			name:    "ops port out of range",
			mutate:  func(c *Config) { c.Ops.Port = 70000 },
			wantErr: "ops.port",
		},
		{
			name:    "disabled ops skips port check",
			mutate:  func(c *Config) { c.Ops.Enabled = false; c.Ops.Port = 0 },
			wantErr: "",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "log level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "logfmt" },
			wantErr: "log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"DATABASE_PATH", "database.path"},
		{"DUCKDB_PATH", "database.path"},
		{"ANOMALY_SCAN_INTERVAL", "analysis.validation_pattern.interval"},
		{"ANOMALY_THRESHOLD", "analysis.validation_pattern.anomaly_threshold"},
		{"HIGH_RISK_PRODUCTS", "analysis.report_risk.high_risk_products"},
		{"CHANNEL_RISK_LOOKBACK", "analysis.channel_risk.lookback"},
		{"PATTERN_MAX_SPEED_KMH", "analysis.patterns.max_plausible_speed_kmh"},
		{"TREND_MIN_DAYS", "analysis.trend.min_days"},
		{"ALERT_WEBHOOK_URL", "webhook.url"},
		{"OPS_PORT", "ops.port"},
		{"LIVENESS_PATH", "liveness.path"},
		{"LOG_LEVEL", "logging.level"},
		{"SHUTDOWN_GRACE_PERIOD", "shutdown.grace_period"},
		// Unmapped variables must be ignored entirely.
		{"PATH", ""},
		{"HOME", ""},
		{"DATABASE_PASSWORD", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestProcessSliceFields(t *testing.T) {
	t.Run("comma separated string becomes slice", func(t *testing.T) {
		k := koanf.New(".")
		if err := k.Set("analysis.report_risk.high_risk_products", "AURORA X1, Widget ,,Gadget "); err != nil {
			t.Fatal(err)
		}
		if err := processSliceFields(k); err != nil {
			t.Fatalf("processSliceFields() error: %v", err)
		}
		got := k.Strings("analysis.report_risk.high_risk_products")
		want := []string{"AURORA X1", "Widget", "Gadget"}
		if len(got) != len(want) {
			t.Fatalf("slice = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("slice[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("existing slice untouched", func(t *testing.T) {
		k := koanf.New(".")
		if err := k.Set("analysis.report_risk.high_risk_locations", []string{"Lagos", "Shenzhen"}); err != nil {
			t.Fatal(err)
		}
		if err := processSliceFields(k); err != nil {
			t.Fatalf("processSliceFields() error: %v", err)
		}
		if got := k.Strings("analysis.report_risk.high_risk_locations"); len(got) != 2 {
			t.Errorf("slice = %v, want 2 entries", got)
		}
	})

	t.Run("missing path skipped", func(t *testing.T) {
		if err := processSliceFields(koanf.New(".")); err != nil {
			t.Fatalf("processSliceFields() error: %v", err)
		}
	})
}

func TestLoad(t *testing.T) {
	// Point the file search at an empty directory so a developer's local
	// riskworker.yaml cannot leak into the test.
	emptyCfg := filepath.Join(t.TempDir(), "missing.yaml")

	t.Run("defaults", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, emptyCfg)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.Database.Path != "/data/veridex-analytics.duckdb" {
			t.Errorf("database path = %q", cfg.Database.Path)
		}
		if cfg.Ops.Port != 9460 {
			t.Errorf("ops port = %d, want 9460", cfg.Ops.Port)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, emptyCfg)
		t.Setenv("DATABASE_PATH", "/tmp/test.duckdb")
		t.Setenv("ANOMALY_THRESHOLD", "0.9")
		t.Setenv("ANOMALY_SCAN_INTERVAL", "5m")
		t.Setenv("HIGH_RISK_PRODUCTS", "AURORA X1,NOVA 9")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.Database.Path != "/tmp/test.duckdb" {
			t.Errorf("database path = %q", cfg.Database.Path)
		}
		if cfg.Analysis.ValidationPattern.AnomalyThreshold != 0.9 {
			t.Errorf("anomaly threshold = %v, want 0.9", cfg.Analysis.ValidationPattern.AnomalyThreshold)
		}
		if cfg.Analysis.ValidationPattern.Interval != 5*time.Minute {
			t.Errorf("scan interval = %v, want 5m", cfg.Analysis.ValidationPattern.Interval)
		}
		if len(cfg.Analysis.ReportRisk.HighRiskProducts) != 2 {
			t.Errorf("high risk products = %v, want 2 entries", cfg.Analysis.ReportRisk.HighRiskProducts)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("log level = %q, want debug", cfg.Logging.Level)
		}
	})

	t.Run("file layered under environment", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "riskworker.yaml")
		yaml := []byte("database:\n  path: /from/file.duckdb\nops:\n  port: 9999\n")
		if err := os.WriteFile(path, yaml, 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv(ConfigPathEnvVar, path)
		t.Setenv("OPS_PORT", "9555")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.Database.Path != "/from/file.duckdb" {
			t.Errorf("database path = %q, want file value", cfg.Database.Path)
		}
		if cfg.Ops.Port != 9555 {
			t.Errorf("ops port = %d, want env to beat file", cfg.Ops.Port)
		}
	})

	t.Run("invalid value rejected", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, emptyCfg)
		t.Setenv("LOG_LEVEL", "verbose")

		if _, err := Load(); err == nil {
			t.Fatal("Load() = nil error for invalid log level")
		}
	})
}
