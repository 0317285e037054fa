// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package database provides access to the Veridex analytics store (DuckDB).
//
// The platform's ingestion service lands validation events, counterfeit
// reports, and distribution channels in this store. The worker reads those
// tables and owns the anomalies, suspicious_patterns, and predictions tables
// consumed by downstream dashboards.
//
// All reads are consistent-snapshot-per-query; no transaction spans a whole
// analysis run. Writes are individual statements, so a crash mid-scan leaves
// already-written records intact (at-least-once partial application).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/veridex/riskworker/internal/config"
	"github.com/veridex/riskworker/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the analytics store and ensures the worker-owned schema exists.
// Failure here is the only fatal error class in the worker: without a storage
// handle nothing else can run.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists so a fresh deployment does not fail
	// with "No such file or directory". 0750 per gosec G301.
	if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// Disable auto-install/auto-load of extensions to prevent hangs in
	// restricted network environments.
	connStr := fmt.Sprintf(
		"%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory,
	)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}

	// DuckDB is in-process; a small pool is enough for the worker's
	// sequential per-task queries while letting distinct tasks overlap.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("analytics store opened")
	return db, nil
}

// Conn exposes the underlying sql.DB for tests and migrations.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the store is reachable. Used by the ops readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// queryCtx derives a per-query context bounded by the configured timeout.
func (db *DB) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.cfg.QueryTimeout)
}
