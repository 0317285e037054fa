// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/veridex/riskworker/internal/metrics"
	"github.com/veridex/riskworker/internal/models"
)

// InsertAnomaly appends a new anomaly record.
func (db *DB) InsertAnomaly(ctx context.Context, record *models.AnomalyRecord) error {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO anomalies (id, type, description, confidence_score, payload, status, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, string(record.Type), record.Description, record.ConfidenceScore,
		string(record.Payload), record.Status, record.DetectedAt)
	metrics.ObserveQuery("insert", "anomalies", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert anomaly %s: %w", record.ID, err)
	}
	metrics.RecordsWritten.WithLabelValues("anomaly").Inc()
	return nil
}

// InsertPattern appends a new suspicious pattern record.
func (db *DB) InsertPattern(ctx context.Context, pattern *models.SuspiciousPattern) error {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	entities, err := json.Marshal(pattern.AffectedEntities)
	if err != nil {
		return fmt.Errorf("failed to marshal affected entities for %s: %w", pattern.ID, err)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO suspicious_patterns (id, pattern_type, description, affected_entities, risk_score, detected_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pattern.ID, string(pattern.PatternType), pattern.Description, string(entities),
		pattern.RiskScore, pattern.DetectedAt, pattern.Status)
	metrics.ObserveQuery("insert", "suspicious_patterns", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert suspicious pattern %s: %w", pattern.ID, err)
	}
	metrics.RecordsWritten.WithLabelValues("suspicious_pattern").Inc()
	return nil
}

// UpsertPrediction writes the prediction, overwriting the live row for its
// prediction_type. One row per type is the table's natural unique constraint.
func (db *DB) UpsertPrediction(ctx context.Context, p *models.PredictionRecord) error {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO predictions (id, prediction_type, predicted_value, confidence, supporting_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (prediction_type) DO UPDATE SET
			id = excluded.id,
			predicted_value = excluded.predicted_value,
			confidence = excluded.confidence,
			supporting_data = excluded.supporting_data,
			created_at = excluded.created_at`,
		p.ID, p.PredictionType, p.PredictedValue, p.Confidence,
		string(p.SupportingData), p.CreatedAt)
	metrics.ObserveQuery("upsert", "predictions", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert prediction %s: %w", p.PredictionType, err)
	}
	metrics.RecordsWritten.WithLabelValues("prediction").Inc()
	return nil
}

// GetPrediction returns the live prediction row for a prediction type.
func (db *DB) GetPrediction(ctx context.Context, predictionType string) (*models.PredictionRecord, error) {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	var p models.PredictionRecord
	var supporting string
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, prediction_type, predicted_value, confidence, COALESCE(supporting_data, ''), created_at
		FROM predictions WHERE prediction_type = ?`, predictionType).
		Scan(&p.ID, &p.PredictionType, &p.PredictedValue, &p.Confidence, &supporting, &p.CreatedAt)
	metrics.ObserveQuery("select", "predictions", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction %s: %w", predictionType, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction %s: %w", predictionType, err)
	}
	if supporting != "" {
		p.SupportingData = json.RawMessage(supporting)
	}
	return &p, nil
}
