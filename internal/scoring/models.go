// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package scoring

import (
	"strings"

	"github.com/veridex/riskworker/internal/config"
	"github.com/veridex/riskworker/internal/features"
)

// Factor names reported in assessments. Stable strings: dashboards and
// moderation tooling key on them.
const (
	FactorHighValidationRate  = "high_validation_rate"
	FactorImplausibleSpeed    = "implausible_travel_speed"
	FactorNightActivity       = "night_activity"
	FactorManyProducts        = "many_distinct_products"
	FactorHighRiskProduct     = "high_risk_product"
	FactorHighRiskLocation    = "high_risk_location"
	FactorUnreliableReporter  = "unreliable_reporter"
	FactorCounterfeitHistory  = "product_counterfeit_history"
	FactorLowChannelVolume    = "low_validation_volume"
	FactorChannelCounterfeits = "elevated_counterfeit_rate"
	FactorInconsistentReports = "inconsistent_reporting"
)

// Risk-level labels for channel scores.
const (
	RiskLevelCritical = "critical"
	RiskLevelHigh     = "high"
	RiskLevelMedium   = "medium"
	RiskLevelLow      = "low"
)

// AnomalyRules builds the validation-pattern rule table from config.
func AnomalyRules(cfg config.ValidationPatternConfig) []Rule[features.ValidationVector] {
	return []Rule[features.ValidationVector]{
		{
			Name:   FactorHighValidationRate,
			Weight: cfg.HourlyRateWeight,
			Predicate: func(v features.ValidationVector) bool {
				return v.ValidationsPerHour > cfg.HourlyRateLimit
			},
		},
		{
			Name:   FactorImplausibleSpeed,
			Weight: cfg.SpeedWeight,
			Predicate: func(v features.ValidationVector) bool {
				return v.AverageSpeedKmH > cfg.SpeedLimitKmH
			},
		},
		{
			Name:   FactorNightActivity,
			Weight: cfg.NightWeight,
			Predicate: func(v features.ValidationVector) bool {
				return v.NightFraction > cfg.NightFraction
			},
		},
		{
			Name:   FactorManyProducts,
			Weight: cfg.ProductsWeight,
			Predicate: func(v features.ValidationVector) bool {
				return float64(v.UniqueProducts) > cfg.ProductsLimit
			},
		},
	}
}

// AnomalyScore scores a user's validation-pattern vector.
func AnomalyScore(v features.ValidationVector, cfg config.ValidationPatternConfig) (float64, []string) {
	return Evaluate(v, AnomalyRules(cfg))
}

// CounterfeitRules builds the report-risk rule table from config.
func CounterfeitRules(cfg config.ReportRiskConfig) []Rule[features.CounterfeitVector] {
	return []Rule[features.CounterfeitVector]{
		{
			Name:   FactorHighRiskProduct,
			Weight: cfg.HighRiskProductWeight,
			Predicate: func(v features.CounterfeitVector) bool {
				return matchesWatchlist(v.ProductName, cfg.HighRiskProducts)
			},
		},
		{
			Name:   FactorHighRiskLocation,
			Weight: cfg.HighRiskLocationWeight,
			Predicate: func(v features.CounterfeitVector) bool {
				return matchesWatchlist(v.Location, cfg.HighRiskLocations)
			},
		},
		{
			Name:   FactorUnreliableReporter,
			Weight: cfg.LowReliabilityWeight,
			Predicate: func(v features.CounterfeitVector) bool {
				return v.ReporterReliability < cfg.ReliabilityFloor
			},
		},
		{
			Name:   FactorCounterfeitHistory,
			Weight: cfg.HistoryWeight,
			Predicate: func(v features.CounterfeitVector) bool {
				return v.ProductCounterfeitRate > cfg.HistoryRateLimit
			},
		},
	}
}

// CounterfeitScore scores one counterfeit report's feature vector.
func CounterfeitScore(v features.CounterfeitVector, cfg config.ReportRiskConfig) (float64, []string) {
	return Evaluate(v, CounterfeitRules(cfg))
}

// ShouldInvestigate reports whether a counterfeit risk score warrants moving
// the report to "investigating". At or below the threshold the report stays
// (or returns to) "pending".
func ShouldInvestigate(score float64, cfg config.ReportRiskConfig) bool {
	return score > cfg.InvestigateThreshold
}

// ChannelRules builds the channel-risk rule table from config.
func ChannelRules(cfg config.ChannelRiskConfig) []Rule[features.ChannelVector] {
	return []Rule[features.ChannelVector]{
		{
			Name:   FactorLowChannelVolume,
			Weight: cfg.LowVolumeWeight,
			Predicate: func(v features.ChannelVector) bool {
				return v.ValidationRate < cfg.LowVolumeLimit
			},
		},
		{
			Name:   FactorChannelCounterfeits,
			Weight: cfg.CounterfeitWeight,
			Predicate: func(v features.ChannelVector) bool {
				return v.CounterfeitRate > cfg.CounterfeitRateLimit
			},
		},
		{
			Name:   FactorInconsistentReports,
			Weight: cfg.ConsistencyWeight,
			Predicate: func(v features.ChannelVector) bool {
				return v.ReportingConsistency < cfg.ConsistencyFloor
			},
		},
	}
}

// ChannelScore scores one channel's feature vector.
func ChannelScore(v features.ChannelVector, cfg config.ChannelRiskConfig) (float64, []string) {
	return Evaluate(v, ChannelRules(cfg))
}

// ChannelRiskLevel buckets a channel score into its label.
func ChannelRiskLevel(score float64, cfg config.ChannelRiskConfig) string {
	switch {
	case score > cfg.CriticalThreshold:
		return RiskLevelCritical
	case score > cfg.HighThreshold:
		return RiskLevelHigh
	case score > cfg.MediumThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// matchesWatchlist reports whether the name matches any watchlist entry.
// Matching is case-insensitive containment so "Aurora X1 Sneaker (EU)" still
// hits a watchlist entry of "aurora x1".
func matchesWatchlist(name string, watchlist []string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, entry := range watchlist {
		if entry == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(entry)) {
			return true
		}
	}
	return false
}
