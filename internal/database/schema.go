// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package database

// Schema statements for the analytics store.
//
// The ingestion tables (validation_events, counterfeit_reports, channels) are
// created here with IF NOT EXISTS so the worker can run against a fresh store
// in development; in production the ingestion service has already created and
// populated them. The worker exclusively owns anomalies, suspicious_patterns,
// and predictions.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS validation_events (
		id TEXT PRIMARY KEY,
		token_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		manufacturer_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		latitude DOUBLE NOT NULL DEFAULT 0,
		longitude DOUBLE NOT NULL DEFAULT 0,
		is_authentic BOOLEAN NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_validation_events_user_ts
		ON validation_events (user_id, timestamp)`,

	`CREATE INDEX IF NOT EXISTS idx_validation_events_ts
		ON validation_events (timestamp)`,

	`CREATE TABLE IF NOT EXISTS counterfeit_reports (
		id TEXT PRIMARY KEY,
		token_id TEXT NOT NULL,
		reporter_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL DEFAULT '',
		manufacturer_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		store_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		metadata TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_counterfeit_reports_status
		ON counterfeit_reports (status)`,

	`CREATE TABLE IF NOT EXISTS channels (
		id TEXT PRIMARY KEY,
		manufacturer_id TEXT NOT NULL,
		name TEXT NOT NULL,
		region TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT true,
		risk_score DOUBLE NOT NULL DEFAULT 0,
		metadata TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS anomalies (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		description TEXT NOT NULL,
		confidence_score DOUBLE NOT NULL,
		payload TEXT,
		status TEXT NOT NULL DEFAULT 'new',
		detected_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS suspicious_patterns (
		id TEXT PRIMARY KEY,
		pattern_type TEXT NOT NULL,
		description TEXT NOT NULL,
		affected_entities TEXT NOT NULL,
		risk_score DOUBLE NOT NULL,
		detected_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'open'
	)`,

	// One live row per prediction_type; each run upserts.
	`CREATE TABLE IF NOT EXISTS predictions (
		id TEXT NOT NULL,
		prediction_type TEXT PRIMARY KEY,
		predicted_value DOUBLE NOT NULL,
		confidence DOUBLE NOT NULL,
		supporting_data TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
}
