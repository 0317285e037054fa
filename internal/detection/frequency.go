// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package detection

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veridex/riskworker/internal/config"
	"github.com/veridex/riskworker/internal/models"
)

// FrequencyDetector flags users validating faster than any human shopper
// plausibly can. Script-driven token probing shows up as a burst of scans in
// a short window.
type FrequencyDetector struct {
	cfg config.PatternConfig
}

// NewFrequencyDetector creates a validation-frequency detector.
func NewFrequencyDetector(cfg config.PatternConfig) *FrequencyDetector {
	return &FrequencyDetector{cfg: cfg}
}

// Type returns the pattern type this detector produces.
func (d *FrequencyDetector) Type() models.PatternType {
	return models.PatternTypeFrequencyAnomaly
}

// Detect evaluates one user's events inside the frequency window
// (timestamp ascending) and returns at most one pattern per run.
//
// The rate denominator is the elapsed minutes between first and last event,
// floored to one minute so a burst inside a single minute cannot divide by
// zero (and reads as "N per minute" as intended).
func (d *FrequencyDetector) Detect(userID string, events []models.ValidationEvent) []models.SuspiciousPattern {
	if len(events) <= d.cfg.FrequencyMinEvents {
		return nil
	}

	elapsed := events[len(events)-1].Timestamp.Sub(events[0].Timestamp).Minutes()
	if elapsed < 1 {
		elapsed = 1
	}
	perMinute := float64(len(events)) / elapsed
	if perMinute <= d.cfg.MaxPerMinute {
		return nil
	}

	score := patternBaseScore + (perMinute-d.cfg.MaxPerMinute)/rateScoreDivisor
	if score > patternMaxScore {
		score = patternMaxScore
	}

	return []models.SuspiciousPattern{{
		ID:          uuid.New().String(),
		PatternType: models.PatternTypeFrequencyAnomaly,
		Description: fmt.Sprintf(
			"user %s performed %d validations in %.0f minutes (%.1f per minute)",
			userID, len(events), elapsed, perMinute,
		),
		AffectedEntities: []string{userID},
		RiskScore:        score,
		DetectedAt:       time.Now().UTC(),
		Status:           models.PatternStatusOpen,
	}}
}
