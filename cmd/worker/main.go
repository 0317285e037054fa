// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package main is the entry point for the Veridex risk worker.
//
// The risk worker is the background analysis half of the Veridex
// anti-counterfeiting platform. The verification API lands validation scans,
// counterfeit reports, and distribution channels in the shared analytics
// store; this process periodically re-reads that data and writes back risk
// scores, anomaly records, suspicious patterns, and trend predictions for
// the moderation dashboards.
//
// # Application Architecture
//
// Startup order:
//
//  1. Configuration: layered defaults, YAML file, environment (Koanf v2)
//  2. Logging: zerolog, console or JSON output
//  3. Database: DuckDB analytics store, migrations applied on open
//  4. Analyzer: the five analysis tasks over the store
//  5. Supervisor tree: scheduler + liveness marker (analysis layer),
//     probe/metrics HTTP server (ops layer)
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, riskworker.yaml, built-in defaults.
// Every scoring weight, threshold, and task interval is tunable; see
// internal/config for the full surface.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: tickers stop, in-flight
// task runs get the configured grace period to finish, the liveness marker
// is removed, and the store is closed.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veridex/riskworker/internal/analyzer"
	"github.com/veridex/riskworker/internal/config"
	"github.com/veridex/riskworker/internal/database"
	"github.com/veridex/riskworker/internal/detection"
	"github.com/veridex/riskworker/internal/liveness"
	"github.com/veridex/riskworker/internal/logging"
	"github.com/veridex/riskworker/internal/ops"
	"github.com/veridex/riskworker/internal/scheduler"
	"github.com/veridex/riskworker/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("webhook_enabled", cfg.Webhook.Enabled).
		Bool("ops_enabled", cfg.Ops.Enabled).
		Msg("Starting Veridex risk worker")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize analytics store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing analytics store")
		}
	}()
	logging.Info().Msg("Analytics store initialized")

	// Analyzer with optional webhook alerting for critical patterns
	var opts []analyzer.Option
	if cfg.Webhook.Enabled {
		opts = append(opts, analyzer.WithNotifier(detection.NewWebhookNotifier(cfg.Webhook)))
		logging.Info().Str("url", cfg.Webhook.URL).Msg("Webhook alerting enabled")
	}
	an := analyzer.New(db, cfg.Analysis, opts...)

	tasks := []*scheduler.Task{
		{Name: analyzer.TaskValidationPatterns, Interval: cfg.Analysis.ValidationPattern.Interval, Run: an.ScanValidationPatterns},
		{Name: analyzer.TaskReportRisk, Interval: cfg.Analysis.ReportRisk.Interval, Run: an.AssessReports},
		{Name: analyzer.TaskChannelRisk, Interval: cfg.Analysis.ChannelRisk.Interval, Run: an.AssessChannels},
		{Name: analyzer.TaskSuspiciousPatterns, Interval: cfg.Analysis.Patterns.Interval, Run: an.ScanSuspiciousPatterns},
		{Name: analyzer.TaskTrendPrediction, Interval: cfg.Analysis.Trend.Interval, Run: an.PredictTrends},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for supervisor lifecycle events
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Shutdown.GracePeriod,
	})

	tree.AddAnalysisService(scheduler.New(tasks))
	tree.AddAnalysisService(liveness.NewMarker(cfg.Liveness))
	if cfg.Ops.Enabled {
		tree.AddOpsService(ops.NewServer(cfg.Ops, db))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Dur("grace_period", cfg.Shutdown.GracePeriod).Msg("Shutting down, waiting for in-flight task runs")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor finishes, bounded by the grace period
	deadline := time.After(cfg.Shutdown.GracePeriod)
	for {
		select {
		case err, ok := <-errCh:
			if !ok {
				reportUnstopped(tree)
				logging.Info().Msg("Risk worker stopped gracefully")
				return
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("Supervisor shutdown error")
			}
		case <-deadline:
			reportUnstopped(tree)
			logging.Warn().Msg("Grace period elapsed, exiting")
			return
		}
	}
}

// reportUnstopped logs services that missed the shutdown timeout.
func reportUnstopped(tree *supervisor.Tree) {
	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
}
