// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package analyzer

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/veridex/riskworker/internal/features"
	"github.com/veridex/riskworker/internal/metrics"
	"github.com/veridex/riskworker/internal/models"
	"github.com/veridex/riskworker/internal/scoring"
)

// anomalyPayload is the evidence attached to a validation-pattern anomaly.
type anomalyPayload struct {
	UserID             string   `json:"user_id"`
	EventCount         int      `json:"event_count"`
	ValidationsPerHour float64  `json:"validations_per_hour"`
	AverageSpeedKmH    float64  `json:"average_speed_kmh"`
	MaxSpeedKmH        float64  `json:"max_speed_kmh"`
	NightFraction      float64  `json:"night_fraction"`
	UniqueProducts     int      `json:"unique_products"`
	Factors            []string `json:"factors"`
}

// ScanValidationPatterns scores every user's recent validation behavior and
// writes an AnomalyRecord for each user whose score exceeds the configured
// threshold. Users with too few events are skipped; a failed write for one
// user does not stop the batch.
func (a *Analyzer) ScanValidationPatterns(ctx context.Context) error {
	cfg := a.cfg.ValidationPattern
	since := a.now().Add(-cfg.Lookback)

	byUser, err := a.store.GetEventsByUserSince(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch validation events: %w", err)
	}

	var scored, flagged int
	for userID, events := range byUser {
		vector, ok := features.ExtractValidationVector(userID, events, cfg.Lookback, cfg.MinEvents)
		if !ok {
			metrics.EntitiesSkipped.WithLabelValues(TaskValidationPatterns, "insufficient_events").Inc()
			continue
		}
		scored++

		score, factors := scoring.AnomalyScore(vector, cfg)
		if score <= cfg.AnomalyThreshold {
			continue
		}
		flagged++

		payload, err := json.Marshal(anomalyPayload{
			UserID:             vector.UserID,
			EventCount:         vector.EventCount,
			ValidationsPerHour: vector.ValidationsPerHour,
			AverageSpeedKmH:    vector.AverageSpeedKmH,
			MaxSpeedKmH:        vector.MaxSpeedKmH,
			NightFraction:      vector.NightFraction,
			UniqueProducts:     vector.UniqueProducts,
			Factors:            factors,
		})
		if err != nil {
			a.logger.Error().Err(err).Str("user_id", userID).Msg("marshal anomaly payload")
			continue
		}

		record := &models.AnomalyRecord{
			ID:              uuid.New().String(),
			Type:            models.AnomalyTypeValidationPattern,
			Description:     fmt.Sprintf("Unusual validation pattern for user %s: %d events in window", userID, vector.EventCount),
			ConfidenceScore: score,
			Payload:         payload,
			Status:          models.AnomalyStatusNew,
			DetectedAt:      a.now(),
		}
		if err := a.store.InsertAnomaly(ctx, record); err != nil {
			a.logger.Error().Err(err).Str("user_id", userID).Msg("insert anomaly record")
			continue
		}
		a.logger.Info().
			Str("user_id", userID).
			Float64("score", score).
			Strs("factors", factors).
			Msg("validation anomaly detected")
	}

	a.logger.Debug().
		Int("users", len(byUser)).
		Int("scored", scored).
		Int("flagged", flagged).
		Msg("validation pattern scan complete")
	return nil
}
