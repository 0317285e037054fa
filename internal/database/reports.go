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

// GetOpenReports returns counterfeit reports still in the worker's purview
// (pending or investigating). Confirmed and false_positive reports belong to
// the external moderation flow and are never re-assessed.
func (db *DB) GetOpenReports(ctx context.Context) ([]models.CounterfeitReport, error) {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT
			id,
			token_id,
			reporter_id,
			product_id,
			COALESCE(product_name, '') AS product_name,
			manufacturer_id,
			timestamp,
			COALESCE(store_name, '') AS store_name,
			status,
			metadata
		FROM counterfeit_reports
		WHERE status IN ('pending', 'investigating')
		ORDER BY timestamp ASC`)
	metrics.ObserveQuery("select", "counterfeit_reports", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query open reports: %w", err)
	}
	defer closeRows(rows, "counterfeit_reports")

	var reports []models.CounterfeitReport
	for rows.Next() {
		var r models.CounterfeitReport
		var meta sql.NullString
		if err := rows.Scan(
			&r.ID, &r.TokenID, &r.ReporterID, &r.ProductID, &r.ProductName,
			&r.ManufacturerID, &r.Timestamp, &r.StoreName, &r.Status, &meta,
		); err != nil {
			return nil, fmt.Errorf("failed to scan counterfeit report: %w", err)
		}
		if meta.Valid && meta.String != "" {
			r.Metadata = json.RawMessage(meta.String)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// GetReporterStats returns the reporter's total and confirmed report counts,
// used to derive reporter reliability.
func (db *DB) GetReporterStats(ctx context.Context, reporterID string) (total, confirmed int, err error) {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	err = db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'confirmed')
		FROM counterfeit_reports
		WHERE reporter_id = ?`, reporterID).Scan(&total, &confirmed)
	metrics.ObserveQuery("select", "counterfeit_reports", start, err)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query reporter stats for %s: %w", reporterID, err)
	}
	return total, confirmed, nil
}

// UpdateReportAssessment writes a report's new status and merges the risk
// assessment into its metadata. The merge preserves keys written by other
// collaborators; conflict policy for the worker's own key is last-write-wins.
func (db *DB) UpdateReportAssessment(ctx context.Context, reportID string, status models.ReportStatus, assessment models.RiskAssessment) error {
	ctx, cancel := db.queryCtx(ctx)
	defer cancel()

	var meta sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT metadata FROM counterfeit_reports WHERE id = ?`, reportID).Scan(&meta)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read report %s metadata: %w", reportID, err)
	}

	var existing json.RawMessage
	if meta.Valid && meta.String != "" {
		existing = json.RawMessage(meta.String)
	}
	merged, err := models.MergeMetadata(existing, models.MetadataKeyRiskAssessment, assessment)
	if err != nil {
		return fmt.Errorf("report %s: %w: %w", reportID, ErrMalformedMetadata, err)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx,
		`UPDATE counterfeit_reports SET status = ?, metadata = ? WHERE id = ?`,
		string(status), string(merged), reportID)
	metrics.ObserveQuery("update", "counterfeit_reports", start, err)
	if err != nil {
		return fmt.Errorf("failed to update report %s: %w", reportID, err)
	}
	return nil
}
