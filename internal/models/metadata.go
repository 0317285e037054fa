// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// RiskAssessment is the typed metadata patch attached to a counterfeit report
// after each risk evaluation. Every evaluated report receives one, whether or
// not the score crossed the investigation threshold.
type RiskAssessment struct {
	RiskScore  float64   `json:"risk_score"`
	Factors    []string  `json:"factors"`
	AssessedAt time.Time `json:"assessed_at"`
}

// ChannelRiskMetadata is the typed metadata patch written to every active
// channel that had at least one validation in the lookback window.
type ChannelRiskMetadata struct {
	RiskLevel         string    `json:"risk_level"`
	TotalValidations  int       `json:"total_validations"`
	NonAuthenticCount int       `json:"non_authentic_count"`
	AssessedAt        time.Time `json:"assessed_at"`
}

// MergeMetadata applies a typed patch to an existing JSON metadata blob under
// the given key, preserving unrelated keys. Conflict policy is last-write-wins:
// the worker is the only writer of its patch keys, so a newer assessment simply
// replaces the previous one.
//
// A nil or empty existing blob is treated as an empty object. A malformed blob
// is a per-record logic error and is returned to the caller so the record can
// be logged and skipped.
func MergeMetadata(existing json.RawMessage, key string, patch any) (json.RawMessage, error) {
	meta := map[string]json.RawMessage{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &meta); err != nil {
			return nil, fmt.Errorf("malformed metadata: %w", err)
		}
	}

	encoded, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata patch: %w", err)
	}
	meta[key] = encoded

	merged, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged metadata: %w", err)
	}
	return merged, nil
}

// Metadata patch keys owned by the worker.
const (
	MetadataKeyRiskAssessment = "risk_assessment"
	MetadataKeyChannelRisk    = "channel_risk"
)
