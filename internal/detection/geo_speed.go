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
	"github.com/veridex/riskworker/internal/features"
	"github.com/veridex/riskworker/internal/models"
)

// Pattern risk scores start at this base and grow with the severity of the
// excess; they are capped just below 1.0 so a pattern never reads as a
// certainty.
const (
	patternBaseScore = 0.5
	patternMaxScore  = 0.99

	// speedScoreDivisor converts km/h above the plausible limit into score.
	speedScoreDivisor = 1000.0

	// rateScoreDivisor converts validations/minute above the limit into score.
	rateScoreDivisor = 10.0
)

// GeoSpeedDetector flags users whose consecutive validations imply physically
// impossible travel (e.g. Lagos to Istanbul in 30 minutes). Counterfeiters
// cloning a token batch trip this when clones are scanned in distant cities.
type GeoSpeedDetector struct {
	cfg config.PatternConfig
}

// NewGeoSpeedDetector creates a geographic-speed detector.
func NewGeoSpeedDetector(cfg config.PatternConfig) *GeoSpeedDetector {
	return &GeoSpeedDetector{cfg: cfg}
}

// Type returns the pattern type this detector produces.
func (d *GeoSpeedDetector) Type() models.PatternType {
	return models.PatternTypeGeographicAnomaly
}

// Detect walks a user's timestamp-ascending events and returns one pattern
// per flagged consecutive pair. Overlapping pairs for the same user are NOT
// deduplicated: each implausible hop is its own piece of evidence.
func (d *GeoSpeedDetector) Detect(userID string, events []models.ValidationEvent) []models.SuspiciousPattern {
	var patterns []models.SuspiciousPattern

	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if features.IsUnknownLocation(prev.Latitude, prev.Longitude) ||
			features.IsUnknownLocation(cur.Latitude, cur.Longitude) {
			continue
		}

		gap := cur.Timestamp.Sub(prev.Timestamp)
		if gap <= 0 || gap >= d.cfg.MaxPairGap {
			continue
		}

		distKm := features.HaversineKm(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
		speedKmH := distKm / gap.Hours()
		if speedKmH <= d.cfg.MaxPlausibleSpeedKmH {
			continue
		}

		score := patternBaseScore + (speedKmH-d.cfg.MaxPlausibleSpeedKmH)/speedScoreDivisor
		if score > patternMaxScore {
			score = patternMaxScore
		}

		patterns = append(patterns, models.SuspiciousPattern{
			ID:          uuid.New().String(),
			PatternType: models.PatternTypeGeographicAnomaly,
			Description: fmt.Sprintf(
				"user %s validated %.0f km apart within %.0f minutes (implied speed %.0f km/h)",
				userID, distKm, gap.Minutes(), speedKmH,
			),
			AffectedEntities: []string{userID, prev.TokenID, cur.TokenID},
			RiskScore:        score,
			DetectedAt:       time.Now().UTC(),
			Status:           models.PatternStatusOpen,
		})
	}

	return patterns
}
