// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package features turns raw event batches into the numeric feature vectors
// consumed by the scoring models. Everything here is a pure function over
// already-fetched rows; no store access, no clock reads.
package features

import (
	"time"

	"github.com/veridex/riskworker/internal/models"
)

// ValidationVector is the per-user feature vector derived from the user's
// validation events inside the lookback window.
type ValidationVector struct {
	UserID     string
	EventCount int

	ValidationsPerHour float64
	AuthenticRate      float64
	NonAuthenticRate   float64

	UniqueProducts      int
	UniqueManufacturers int

	// Derived from consecutive event pairs. Pairs with a zero time gap or a
	// missing geotag on either end contribute no speed sample.
	AverageSpeedKmH float64
	MaxSpeedKmH     float64

	// NightFraction is the share of events with local hour in [0,6).
	NightFraction float64
}

// ExtractValidationVector builds the validation-pattern vector for one user.
// Events must be ordered by timestamp ascending. Users with fewer than
// minEvents events carry too little signal; ok is false and the caller skips
// scoring for them.
func ExtractValidationVector(userID string, events []models.ValidationEvent, lookback time.Duration, minEvents int) (ValidationVector, bool) {
	if len(events) < minEvents {
		return ValidationVector{}, false
	}

	v := ValidationVector{
		UserID:     userID,
		EventCount: len(events),
	}

	hours := lookback.Hours()
	if hours <= 0 {
		hours = 24
	}
	v.ValidationsPerHour = float64(len(events)) / hours

	products := make(map[string]struct{})
	manufacturers := make(map[string]struct{})
	authentic := 0
	night := 0
	for _, ev := range events {
		products[ev.ProductID] = struct{}{}
		manufacturers[ev.ManufacturerID] = struct{}{}
		if ev.IsAuthentic {
			authentic++
		}
		if hour := ev.Timestamp.Hour(); hour >= 0 && hour < 6 {
			night++
		}
	}
	total := float64(len(events))
	v.AuthenticRate = float64(authentic) / total
	v.NonAuthenticRate = float64(len(events)-authentic) / total
	v.UniqueProducts = len(products)
	v.UniqueManufacturers = len(manufacturers)
	v.NightFraction = float64(night) / total

	speeds := consecutiveSpeeds(events)
	if len(speeds) > 0 {
		var sum, max float64
		for _, s := range speeds {
			sum += s
			if s > max {
				max = s
			}
		}
		v.AverageSpeedKmH = sum / float64(len(speeds))
		v.MaxSpeedKmH = max
	}

	return v, true
}

// consecutiveSpeeds computes the implied travel speed (km/h) for each
// consecutive pair of geotagged events. Zero time gaps are skipped to avoid
// division by zero.
func consecutiveSpeeds(events []models.ValidationEvent) []float64 {
	var speeds []float64
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if IsUnknownLocation(prev.Latitude, prev.Longitude) || IsUnknownLocation(cur.Latitude, cur.Longitude) {
			continue
		}
		gap := cur.Timestamp.Sub(prev.Timestamp)
		if gap <= 0 {
			continue
		}
		distKm := HaversineKm(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
		speeds = append(speeds, distKm/gap.Hours())
	}
	return speeds
}

// CounterfeitVector is the per-report feature vector for risk assessment.
type CounterfeitVector struct {
	ProductName string
	Location    string

	// ReporterReliability is the reporter's historical confirmed/total ratio.
	ReporterReliability float64

	// ProductCounterfeitRate is the product's historical non-authentic
	// validation ratio.
	ProductCounterfeitRate float64
}

// ExtractCounterfeitVector builds the feature vector for one counterfeit
// report. A reporter with no history gets the configured default reliability;
// a product with no validation history has rate 0 (supplied by the caller).
func ExtractCounterfeitVector(report models.CounterfeitReport, reporterTotal, reporterConfirmed int, productRate, defaultReliability float64) CounterfeitVector {
	v := CounterfeitVector{
		ProductName:            report.ProductName,
		Location:               report.StoreName,
		ProductCounterfeitRate: productRate,
	}
	if v.Location == "" {
		v.Location = "Unknown"
	}
	if reporterTotal > 0 {
		v.ReporterReliability = float64(reporterConfirmed) / float64(reporterTotal)
	} else {
		v.ReporterReliability = defaultReliability
	}
	return v
}

// ChannelVector is the per-channel feature vector over the rolling window.
type ChannelVector struct {
	ChannelID string

	// ValidationRate is total validations scaled by the configured
	// normalization constant.
	ValidationRate float64

	// CounterfeitRate is non-authentic / total validations.
	CounterfeitRate float64

	// ReportingConsistency is confirmed / total reports; 1.0 when the
	// channel had no reports at all.
	ReportingConsistency float64
}

// ExtractChannelVector builds the feature vector for one channel. A channel
// with zero validations in-window has no usable signal; ok is false and the
// caller skips it entirely (no risk score write).
func ExtractChannelVector(stats models.ChannelStats, normalizer float64) (ChannelVector, bool) {
	if stats.TotalValidations == 0 {
		return ChannelVector{}, false
	}

	v := ChannelVector{
		ChannelID:       stats.ChannelID,
		ValidationRate:  float64(stats.TotalValidations) / normalizer,
		CounterfeitRate: float64(stats.NonAuthenticCount) / float64(stats.TotalValidations),
	}
	if stats.TotalReports > 0 {
		v.ReportingConsistency = float64(stats.ConfirmedReports) / float64(stats.TotalReports)
	} else {
		v.ReportingConsistency = 1.0
	}
	return v, true
}
