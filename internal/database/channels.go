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

// GetActiveChannels returns all channels currently marked active.
func (db *DB) GetActiveChannels(ctx context.Context) ([]models.Channel, error) {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT
			id,
			manufacturer_id,
			name,
			COALESCE(region, '') AS region,
			is_active,
			COALESCE(risk_score, 0) AS risk_score,
			metadata
		FROM channels
		WHERE is_active = true
		ORDER BY id`)
	metrics.ObserveQuery("select", "channels", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query active channels: %w", err)
	}
	defer closeRows(rows, "channels")

	var channels []models.Channel
	for rows.Next() {
		var c models.Channel
		var meta sql.NullString
		if err := rows.Scan(&c.ID, &c.ManufacturerID, &c.Name, &c.Region, &c.IsActive, &c.RiskScore, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		if meta.Valid && meta.String != "" {
			c.Metadata = json.RawMessage(meta.String)
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// GetChannelStats computes the channel's aggregate counts over the rolling
// window. Stats are derived, never persisted; each run recomputes them.
// Validation events and reports are attributed to a channel through its
// manufacturer.
func (db *DB) GetChannelStats(ctx context.Context, channel models.Channel, since time.Time) (models.ChannelStats, error) {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	stats := models.ChannelStats{ChannelID: channel.ID}

	start := time.Now()
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE NOT is_authentic),
			COUNT(DISTINCT user_id),
			COUNT(DISTINCT product_id)
		FROM validation_events
		WHERE manufacturer_id = ? AND timestamp > ?`,
		channel.ManufacturerID, since,
	).Scan(&stats.TotalValidations, &stats.NonAuthenticCount, &stats.UniqueUsers, &stats.UniqueProducts)
	metrics.ObserveQuery("select", "validation_events", start, err)
	if err != nil {
		return stats, fmt.Errorf("failed to query channel %s validation stats: %w", channel.ID, err)
	}

	start = time.Now()
	err = db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'confirmed')
		FROM counterfeit_reports
		WHERE manufacturer_id = ? AND timestamp > ?`,
		channel.ManufacturerID, since,
	).Scan(&stats.TotalReports, &stats.ConfirmedReports)
	metrics.ObserveQuery("select", "counterfeit_reports", start, err)
	if err != nil {
		return stats, fmt.Errorf("failed to query channel %s report stats: %w", channel.ID, err)
	}

	return stats, nil
}

// UpdateChannelRisk writes the channel's risk score and merges the risk
// metadata patch. Last-write-wins on the worker's own metadata key.
func (db *DB) UpdateChannelRisk(ctx context.Context, channelID string, riskScore float64, meta models.ChannelRiskMetadata) error {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	var raw sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT metadata FROM channels WHERE id = ?`, channelID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read channel %s metadata: %w", channelID, err)
	}

	var existing json.RawMessage
	if raw.Valid && raw.String != "" {
		existing = json.RawMessage(raw.String)
	}
	merged, err := models.MergeMetadata(existing, models.MetadataKeyChannelRisk, meta)
	if err != nil {
		return fmt.Errorf("channel %s: %w: %w", channelID, ErrMalformedMetadata, err)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx,
		`UPDATE channels SET risk_score = ?, metadata = ? WHERE id = ?`,
		riskScore, string(merged), channelID)
	metrics.ObserveQuery("update", "channels", start, err)
	if err != nil {
		return fmt.Errorf("failed to update channel %s risk: %w", channelID, err)
	}
	return nil
}
