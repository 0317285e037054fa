// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/veridex/riskworker/internal/metrics"
	"github.com/veridex/riskworker/internal/models"
)

const validationEventColumns = `
	id,
	token_id,
	user_id,
	product_id,
	manufacturer_id,
	timestamp,
	COALESCE(latitude, 0) AS latitude,
	COALESCE(longitude, 0) AS longitude,
	is_authentic`

// GetEventsByUserSince returns all validation events newer than the window
// start, grouped by user, each user's slice ordered by timestamp ascending.
// This is the shared read for the validation-pattern scan and both pattern
// detectors.
func (db *DB) GetEventsByUserSince(ctx context.Context, since time.Time) (map[string][]models.ValidationEvent, error) {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	query := fmt.Sprintf(`SELECT %s FROM validation_events WHERE timestamp > ? ORDER BY user_id, timestamp ASC`,
		validationEventColumns)

	rows, err := db.conn.QueryContext(ctx, query, since)
	metrics.ObserveQuery("select", "validation_events", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query validation events: %w", err)
	}
	defer closeRows(rows, "validation_events")

	byUser := make(map[string][]models.ValidationEvent)
	for rows.Next() {
		var ev models.ValidationEvent
		if err := rows.Scan(
			&ev.ID, &ev.TokenID, &ev.UserID, &ev.ProductID, &ev.ManufacturerID,
			&ev.Timestamp, &ev.Latitude, &ev.Longitude, &ev.IsAuthentic,
		); err != nil {
			return nil, fmt.Errorf("failed to scan validation event: %w", err)
		}
		byUser[ev.UserID] = append(byUser[ev.UserID], ev)
	}
	return byUser, rows.Err()
}

// GetProductCounterfeitRate returns the product's historical non-authentic
// validation ratio. A product with no validation history scores 0.
func (db *DB) GetProductCounterfeitRate(ctx context.Context, productID string) (float64, error) {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	var total, nonAuthentic int
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE NOT is_authentic)
		FROM validation_events
		WHERE product_id = ?`, productID).Scan(&total, &nonAuthentic)
	metrics.ObserveQuery("select", "validation_events", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to query product counterfeit rate for %s: %w", productID, err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(nonAuthentic) / float64(total), nil
}

// GetDailyCounts aggregates validations and counterfeit detections per day
// over the trailing window, oldest day first. Days with no events produce no
// bucket.
func (db *DB) GetDailyCounts(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT
			date_trunc('day', timestamp) AS day,
			COUNT(*) AS validations,
			COUNT(*) FILTER (WHERE NOT is_authentic) AS counterfeits
		FROM validation_events
		WHERE timestamp > ?
		GROUP BY day
		ORDER BY day ASC`, since)
	metrics.ObserveQuery("select", "validation_events", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counts: %w", err)
	}
	defer closeRows(rows, "validation_events")

	var counts []models.DailyCount
	for rows.Next() {
		var dc models.DailyCount
		if err := rows.Scan(&dc.Day, &dc.Validations, &dc.Counterfeits); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		counts = append(counts, dc)
	}
	return counts, rows.Err()
}
