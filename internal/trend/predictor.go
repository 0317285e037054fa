// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package trend computes the short-horizon validation-volume forecast from
// daily aggregates using week-over-week average growth.
package trend

import (
	"math"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/veridex/riskworker/internal/config"
	"github.com/veridex/riskworker/internal/models"
)

// Confidence grows with the amount of daily data available and is capped
// below certainty: 0.7 base + up to 0.3 for a full 30-day window, max 0.95.
const (
	confidenceBase    = 0.7
	confidenceSpan    = 0.3
	confidenceWindow  = 30.0
	confidenceCeiling = 0.95
)

// SupportingData is the evidence attached to a prediction record.
type SupportingData struct {
	DaysOfData  int     `json:"days_of_data"`
	RecentAvg   float64 `json:"recent_avg"`
	PreviousAvg float64 `json:"previous_avg"`
	GrowthRate  float64 `json:"growth_rate"`
}

// Forecast computes the 7-day validation volume prediction from daily
// buckets ordered oldest first.
//
// ok is false when the series cannot support a forecast: fewer than the
// configured minimum daily buckets, or a previous-week average of zero
// (degenerate growth denominator). With at least a week of data but no
// prior-week baseline, growth is taken as flat rather than skipping.
func Forecast(buckets []models.DailyCount, cfg config.TrendConfig, now time.Time) (*models.PredictionRecord, bool) {
	if len(buckets) < cfg.MinDays {
		return nil, false
	}

	n := len(buckets)
	recentAvg := meanValidations(buckets[n-7:])

	prevStart := n - 14
	if prevStart < 0 {
		prevStart = 0
	}
	previous := buckets[prevStart : n-7]

	var growthRate float64
	var previousAvg float64
	if len(previous) > 0 {
		previousAvg = meanValidations(previous)
		if previousAvg == 0 {
			// Degenerate baseline: growth is undefined, skip this run.
			return nil, false
		}
		growthRate = (recentAvg - previousAvg) / previousAvg
	}

	predicted := math.Round(recentAvg * 7 * (1 + growthRate))

	confidence := confidenceBase + (float64(n)/confidenceWindow)*confidenceSpan
	if confidence > confidenceCeiling {
		confidence = confidenceCeiling
	}

	supporting, err := json.Marshal(SupportingData{
		DaysOfData:  n,
		RecentAvg:   recentAvg,
		PreviousAvg: previousAvg,
		GrowthRate:  growthRate,
	})
	if err != nil {
		// Marshal of a plain struct cannot fail; guard anyway.
		supporting = nil
	}

	return &models.PredictionRecord{
		ID:             uuid.New().String(),
		PredictionType: models.PredictionTypeValidationTrend7d,
		PredictedValue: predicted,
		Confidence:     confidence,
		SupportingData: supporting,
		CreatedAt:      now,
	}, true
}

func meanValidations(buckets []models.DailyCount) float64 {
	if len(buckets) == 0 {
		return 0
	}
	var sum int
	for _, b := range buckets {
		sum += b.Validations
	}
	return float64(sum) / float64(len(buckets))
}
