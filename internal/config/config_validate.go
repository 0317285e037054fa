// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}
	if err := c.validateOps(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads cannot be negative")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be positive")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	vp := c.Analysis.ValidationPattern
	if vp.Interval <= 0 || vp.Lookback <= 0 {
		return fmt.Errorf("validation_pattern interval and lookback must be positive")
	}
	if vp.MinEvents < 2 {
		return fmt.Errorf("validation_pattern.min_events must be at least 2 (consecutive-pair analysis needs pairs)")
	}
	if err := validateScore("validation_pattern.anomaly_threshold", vp.AnomalyThreshold); err != nil {
		return err
	}
	for name, w := range map[string]float64{
		"validation_pattern.hourly_rate_weight": vp.HourlyRateWeight,
		"validation_pattern.speed_weight":       vp.SpeedWeight,
		"validation_pattern.night_weight":       vp.NightWeight,
		"validation_pattern.products_weight":    vp.ProductsWeight,
	} {
		if err := validateScore(name, w); err != nil {
			return err
		}
	}

	rr := c.Analysis.ReportRisk
	if rr.Interval <= 0 {
		return fmt.Errorf("report_risk.interval must be positive")
	}
	if err := validateScore("report_risk.investigate_threshold", rr.InvestigateThreshold); err != nil {
		return err
	}
	if err := validateScore("report_risk.default_reporter_reliability", rr.DefaultReporterReliability); err != nil {
		return err
	}

	cr := c.Analysis.ChannelRisk
	if cr.Interval <= 0 || cr.Lookback <= 0 {
		return fmt.Errorf("channel_risk interval and lookback must be positive")
	}
	if cr.ValidationNormalizer <= 0 {
		return fmt.Errorf("channel_risk.validation_normalizer must be positive")
	}
	if !(cr.CriticalThreshold > cr.HighThreshold && cr.HighThreshold > cr.MediumThreshold) {
		return fmt.Errorf("channel_risk bucket thresholds must be strictly decreasing (critical > high > medium)")
	}

	p := c.Analysis.Patterns
	if p.Interval <= 0 || p.GeoLookback <= 0 || p.FrequencyLookback <= 0 {
		return fmt.Errorf("pattern detector intervals and lookbacks must be positive")
	}
	if p.MaxPlausibleSpeedKmH <= 0 {
		return fmt.Errorf("patterns.max_plausible_speed_kmh must be positive")
	}
	if p.MaxPerMinute <= 0 {
		return fmt.Errorf("patterns.max_per_minute must be positive")
	}

	t := c.Analysis.Trend
	if t.Interval <= 0 || t.Lookback <= 0 {
		return fmt.Errorf("trend interval and lookback must be positive")
	}
	if t.MinDays < 7 {
		return fmt.Errorf("trend.min_days must be at least 7 (week-over-week comparison needs two full weeks of buckets after warmup)")
	}

	return nil
}

func (c *Config) validateWebhook() error {
	if !c.Webhook.Enabled {
		return nil
	}
	if c.Webhook.URL == "" {
		return fmt.Errorf("ALERT_WEBHOOK_URL is required when webhook delivery is enabled")
	}
	if !strings.HasPrefix(c.Webhook.URL, "http://") && !strings.HasPrefix(c.Webhook.URL, "https://") {
		return fmt.Errorf("webhook.url must be an http(s) URL")
	}
	if c.Webhook.RatePerMinute <= 0 {
		return fmt.Errorf("webhook.rate_per_minute must be positive")
	}
	return validateScore("webhook.min_risk_score", c.Webhook.MinRiskScore)
}

func (c *Config) validateOps() error {
	if !c.Ops.Enabled {
		return nil
	}
	if c.Ops.Port < 1 || c.Ops.Port > 65535 {
		return fmt.Errorf("ops.port must be in 1-65535, got %d", c.Ops.Port)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q (expected json or console)", c.Logging.Format)
	}
	return nil
}

// validateScore checks that a weight or threshold lies in [0,1].
func validateScore(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0,1], got %g", name, v)
	}
	return nil
}
