// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package models defines the data types shared between the analytics store
// and the analysis pipeline.
//
// ValidationEvent, CounterfeitReport, and Channel rows are produced by the
// platform's verification API and ingestion service; the worker only reads
// them. AnomalyRecord, SuspiciousPattern, and PredictionRecord are owned and
// written by the worker and consumed by downstream dashboards.
package models

import (
	"time"

	"github.com/goccy/go-json"
)

// ValidationEvent is a single product-authenticity scan performed by an end
// user. Events are immutable once written.
type ValidationEvent struct {
	ID             string    `json:"id"`
	TokenID        string    `json:"token_id"`
	UserID         string    `json:"user_id"`
	ProductID      string    `json:"product_id"`
	ManufacturerID string    `json:"manufacturer_id"`
	Timestamp      time.Time `json:"timestamp"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	IsAuthentic    bool      `json:"is_authentic"`
}

// ReportStatus is the moderation state of a counterfeit report.
type ReportStatus string

const (
	ReportStatusPending       ReportStatus = "pending"
	ReportStatusInvestigating ReportStatus = "investigating"
	ReportStatusConfirmed     ReportStatus = "confirmed"
	ReportStatusFalsePositive ReportStatus = "false_positive"
)

// CounterfeitReport is a user-filed claim that a product is counterfeit.
// The worker only performs the pending->investigating transition; the
// confirmed/false_positive transitions belong to external moderation flows.
type CounterfeitReport struct {
	ID             string          `json:"id"`
	TokenID        string          `json:"token_id"`
	ReporterID     string          `json:"reporter_id"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	ManufacturerID string          `json:"manufacturer_id"`
	Timestamp      time.Time       `json:"timestamp"`
	StoreName      string          `json:"store_name"`
	Status         ReportStatus    `json:"status"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// Channel is a manufacturer->distributor->retailer distribution path tracked
// for risk. RiskScore and Metadata are maintained by the worker.
type Channel struct {
	ID             string          `json:"id"`
	ManufacturerID string          `json:"manufacturer_id"`
	Name           string          `json:"name"`
	Region         string          `json:"region,omitempty"`
	IsActive       bool            `json:"is_active"`
	RiskScore      float64         `json:"risk_score"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// ChannelStats holds per-channel aggregate counts over a rolling window.
// Stats are recomputed on demand each run and never persisted.
type ChannelStats struct {
	ChannelID         string `json:"channel_id"`
	TotalValidations  int    `json:"total_validations"`
	NonAuthenticCount int    `json:"non_authentic_count"`
	UniqueUsers       int    `json:"unique_users"`
	UniqueProducts    int    `json:"unique_products"`
	TotalReports      int    `json:"total_reports"`
	ConfirmedReports  int    `json:"confirmed_reports"`
}

// AnomalyType identifies the kind of anomaly a record describes.
type AnomalyType string

// AnomalyTypeValidationPattern marks anomalies derived from a user's
// validation behavior over the lookback window.
const AnomalyTypeValidationPattern AnomalyType = "validation_pattern"

// AnomalyStatusNew is the initial status of a freshly detected anomaly.
const AnomalyStatusNew = "new"

// AnomalyRecord is an append-only record created when a user's anomaly score
// exceeds the configured threshold.
type AnomalyRecord struct {
	ID              string          `json:"id"`
	Type            AnomalyType     `json:"type"`
	Description     string          `json:"description"`
	ConfidenceScore float64         `json:"confidence_score"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Status          string          `json:"status"`
	DetectedAt      time.Time       `json:"detected_at"`
}

// PatternType identifies the kind of suspicious pattern detected.
type PatternType string

const (
	PatternTypeGeographicAnomaly PatternType = "geographic_anomaly"
	PatternTypeFrequencyAnomaly  PatternType = "frequency_anomaly"
)

// PatternStatusOpen is the initial status of a freshly detected pattern.
const PatternStatusOpen = "open"

// SuspiciousPattern is a discrete, evidence-backed alert produced by the
// pairwise pattern detectors. Append-only.
type SuspiciousPattern struct {
	ID               string      `json:"id"`
	PatternType      PatternType `json:"pattern_type"`
	Description      string      `json:"description"`
	AffectedEntities []string    `json:"affected_entities"`
	RiskScore        float64     `json:"risk_score"`
	DetectedAt       time.Time   `json:"detected_at"`
	Status           string      `json:"status"`
}

// PredictionTypeValidationTrend7d is the natural key of the 7-day validation
// volume forecast.
const PredictionTypeValidationTrend7d = "validation_trend_7d"

// PredictionRecord is a short-horizon forecast. One live row exists per
// PredictionType; each run overwrites it.
type PredictionRecord struct {
	ID             string          `json:"id"`
	PredictionType string          `json:"prediction_type"`
	PredictedValue float64         `json:"predicted_value"`
	Confidence     float64         `json:"confidence"`
	SupportingData json.RawMessage `json:"supporting_data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DailyCount is one daily aggregation bucket used by the trend predictor.
type DailyCount struct {
	Day          time.Time `json:"day"`
	Validations  int       `json:"validations"`
	Counterfeits int       `json:"counterfeits"`
}
