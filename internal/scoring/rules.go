// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package scoring implements the fixed-weight heuristic scoring models.
//
// Each model is a pure function: feature vector in, score in [0,1] out. A
// model is an ordered rule table (predicate + weight); a triggered rule adds
// its weight and contributes its name to the factor list. The sum is clamped
// to 1.0. Thresholds and weights come from the immutable config value, so
// tuning never touches control flow.
//
// These are deliberately not trained models; the platform wants explainable,
// deterministic scores that moderators can audit factor by factor.
package scoring

// Rule is one entry in a scoring table: if the predicate holds for the
// vector, the rule's weight is added to the score.
type Rule[V any] struct {
	// Name identifies the rule in assessment factor lists.
	Name string

	// Weight is the score contribution; non-negative by construction.
	Weight float64

	// Predicate reports whether the rule triggers for the vector.
	Predicate func(V) bool
}

// Evaluate runs the vector through the rule table and returns the clamped
// score plus the names of the triggered rules.
func Evaluate[V any](v V, rules []Rule[V]) (float64, []string) {
	var score float64
	var factors []string
	for _, r := range rules {
		if r.Predicate(v) {
			score += r.Weight
			factors = append(factors, r.Name)
		}
	}
	return Clamp(score), factors
}

// Clamp bounds a score to [0,1]. Rule weights are non-negative, so the lower
// bound only matters when config carries a negative weight.
func Clamp(score float64) float64 {
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}
