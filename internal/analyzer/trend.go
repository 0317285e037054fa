// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package analyzer

import (
	"context"
	"fmt"

	"github.com/veridex/riskworker/internal/trend"
)

// PredictTrends builds the 7-day validation volume forecast from daily
// aggregates and upserts the single live prediction row. With too little
// history the run is a silent no-op; the previous prediction stays current.
func (a *Analyzer) PredictTrends(ctx context.Context) error {
	cfg := a.cfg.Trend
	now := a.now()

	buckets, err := a.store.GetDailyCounts(ctx, now.Add(-cfg.Lookback))
	if err != nil {
		return fmt.Errorf("fetch daily counts: %w", err)
	}

	prediction, ok := trend.Forecast(buckets, cfg, now)
	if !ok {
		a.logger.Debug().Int("days", len(buckets)).Msg("insufficient history for trend prediction")
		return nil
	}

	if err := a.store.UpsertPrediction(ctx, prediction); err != nil {
		return fmt.Errorf("upsert prediction: %w", err)
	}
	a.logger.Info().
		Float64("predicted_value", prediction.PredictedValue).
		Float64("confidence", prediction.Confidence).
		Msg("validation trend prediction updated")
	return nil
}
