// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package analyzer

import (
	"context"
	"fmt"

	"github.com/veridex/riskworker/internal/metrics"
	"github.com/veridex/riskworker/internal/models"
)

// ScanSuspiciousPatterns runs both pairwise detectors over their respective
// lookback windows and persists every detected pattern. The two detectors use
// different windows (geographic needs hours of travel context, frequency
// looks at a tight burst window), so each gets its own event fetch.
func (a *Analyzer) ScanSuspiciousPatterns(ctx context.Context) error {
	now := a.now()

	geoEvents, err := a.store.GetEventsByUserSince(ctx, now.Add(-a.cfg.Patterns.GeoLookback))
	if err != nil {
		return fmt.Errorf("fetch events for geographic scan: %w", err)
	}
	for userID, events := range geoEvents {
		patterns := a.geo.Detect(userID, events)
		for i := range patterns {
			a.persistPattern(ctx, &patterns[i])
		}
	}

	freqEvents, err := a.store.GetEventsByUserSince(ctx, now.Add(-a.cfg.Patterns.FrequencyLookback))
	if err != nil {
		return fmt.Errorf("fetch events for frequency scan: %w", err)
	}
	for userID, events := range freqEvents {
		patterns := a.freq.Detect(userID, events)
		for i := range patterns {
			a.persistPattern(ctx, &patterns[i])
		}
	}

	return nil
}

// persistPattern writes one detected pattern and fires the notifier. Write
// failures are logged and counted; the scan continues.
func (a *Analyzer) persistPattern(ctx context.Context, pattern *models.SuspiciousPattern) {
	if err := a.store.InsertPattern(ctx, pattern); err != nil {
		a.logger.Error().Err(err).
			Str("pattern_type", string(pattern.PatternType)).
			Msg("insert suspicious pattern")
		metrics.EntitiesSkipped.WithLabelValues(TaskSuspiciousPatterns, "write_error").Inc()
		return
	}
	a.logger.Info().
		Str("pattern_id", pattern.ID).
		Str("pattern_type", string(pattern.PatternType)).
		Float64("risk_score", pattern.RiskScore).
		Strs("affected_entities", pattern.AffectedEntities).
		Msg("suspicious pattern detected")
	a.notify(ctx, pattern)
}
