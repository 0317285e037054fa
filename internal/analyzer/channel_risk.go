// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package analyzer

import (
	"context"
	"fmt"

	"github.com/veridex/riskworker/internal/features"
	"github.com/veridex/riskworker/internal/metrics"
	"github.com/veridex/riskworker/internal/models"
	"github.com/veridex/riskworker/internal/scoring"
)

// AssessChannels recomputes the risk score for every active distribution
// channel from its rolling-window stats and patches the channel_risk
// metadata. Channels with zero in-window validations carry no signal and are
// skipped without a write, preserving their previous score.
func (a *Analyzer) AssessChannels(ctx context.Context) error {
	cfg := a.cfg.ChannelRisk
	since := a.now().Add(-cfg.Lookback)

	channels, err := a.store.GetActiveChannels(ctx)
	if err != nil {
		return fmt.Errorf("fetch active channels: %w", err)
	}

	var updated int
	for _, channel := range channels {
		stats, err := a.store.GetChannelStats(ctx, channel, since)
		if err != nil {
			a.logger.Error().Err(err).Str("channel_id", channel.ID).Msg("fetch channel stats")
			metrics.EntitiesSkipped.WithLabelValues(TaskChannelRisk, "stats_error").Inc()
			continue
		}

		vector, ok := features.ExtractChannelVector(stats, cfg.ValidationNormalizer)
		if !ok {
			metrics.EntitiesSkipped.WithLabelValues(TaskChannelRisk, "no_validations").Inc()
			continue
		}

		score, _ := scoring.ChannelScore(vector, cfg)
		meta := models.ChannelRiskMetadata{
			RiskLevel:         scoring.ChannelRiskLevel(score, cfg),
			TotalValidations:  stats.TotalValidations,
			NonAuthenticCount: stats.NonAuthenticCount,
			AssessedAt:        a.now(),
		}
		if err := a.store.UpdateChannelRisk(ctx, channel.ID, score, meta); err != nil {
			a.logger.Error().Err(err).Str("channel_id", channel.ID).Msg("update channel risk")
			metrics.EntitiesSkipped.WithLabelValues(TaskChannelRisk, "write_error").Inc()
			continue
		}
		updated++

		if meta.RiskLevel == scoring.RiskLevelCritical || meta.RiskLevel == scoring.RiskLevelHigh {
			a.logger.Warn().
				Str("channel_id", channel.ID).
				Str("risk_level", meta.RiskLevel).
				Float64("score", score).
				Msg("elevated channel risk")
		}
	}

	a.logger.Debug().
		Int("channels", len(channels)).
		Int("updated", updated).
		Msg("channel risk assessment complete")
	return nil
}
