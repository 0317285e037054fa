// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package analyzer wires the pipeline tasks together: read from the
// analytics store, extract features, score or detect, write results back.
//
// Each task is one method, run independently by the scheduler. Error
// handling follows a three-way taxonomy: infrastructure errors (the initial
// read fails) abort the run and surface to the scheduler for retry on the
// next tick; data conditions (insufficient events, zero-volume channels) skip
// the entity silently; per-record errors (malformed metadata, failed write)
// are logged with the record id and the batch continues.
package analyzer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/veridex/riskworker/internal/config"
	"github.com/veridex/riskworker/internal/detection"
	"github.com/veridex/riskworker/internal/logging"
	"github.com/veridex/riskworker/internal/models"
)

// Task names, used for scheduling, logging, and metrics labels.
const (
	TaskValidationPatterns = "validation_patterns"
	TaskReportRisk         = "report_risk"
	TaskChannelRisk        = "channel_risk"
	TaskSuspiciousPatterns = "suspicious_patterns"
	TaskTrendPrediction    = "trend_prediction"
)

// Store is the analytics-store surface the analyzer consumes. Implemented by
// *database.DB; narrowed here so task tests can run against a mock.
type Store interface {
	GetEventsByUserSince(ctx context.Context, since time.Time) (map[string][]models.ValidationEvent, error)
	GetDailyCounts(ctx context.Context, since time.Time) ([]models.DailyCount, error)
	GetProductCounterfeitRate(ctx context.Context, productID string) (float64, error)

	GetOpenReports(ctx context.Context) ([]models.CounterfeitReport, error)
	GetReporterStats(ctx context.Context, reporterID string) (total, confirmed int, err error)
	UpdateReportAssessment(ctx context.Context, reportID string, status models.ReportStatus, assessment models.RiskAssessment) error

	GetActiveChannels(ctx context.Context) ([]models.Channel, error)
	GetChannelStats(ctx context.Context, channel models.Channel, since time.Time) (models.ChannelStats, error)
	UpdateChannelRisk(ctx context.Context, channelID string, riskScore float64, meta models.ChannelRiskMetadata) error

	InsertAnomaly(ctx context.Context, record *models.AnomalyRecord) error
	InsertPattern(ctx context.Context, pattern *models.SuspiciousPattern) error
	UpsertPrediction(ctx context.Context, p *models.PredictionRecord) error
}

// Analyzer owns the five analysis tasks. The config value is immutable after
// construction; scorers and detectors receive it by value.
type Analyzer struct {
	store    Store
	cfg      config.AnalysisConfig
	geo      *detection.GeoSpeedDetector
	freq     *detection.FrequencyDetector
	notifier detection.Notifier
	logger   zerolog.Logger

	// now is the clock; injectable for tests.
	now func() time.Time
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the analyzer's clock. Test hook.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithNotifier attaches a pattern notifier. Without one, detection results
// are only persisted.
func WithNotifier(n detection.Notifier) Option {
	return func(a *Analyzer) { a.notifier = n }
}

// New creates an Analyzer over the given store and analysis config.
func New(store Store, cfg config.AnalysisConfig, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:  store,
		cfg:    cfg,
		geo:    detection.NewGeoSpeedDetector(cfg.Patterns),
		freq:   detection.NewFrequencyDetector(cfg.Patterns),
		logger: logging.With().Str("component", "analyzer").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// notify delivers a pattern if a notifier is attached. Best-effort: the
// pattern is already persisted, so delivery failures only get logged.
func (a *Analyzer) notify(ctx context.Context, pattern *models.SuspiciousPattern) {
	if a.notifier == nil || !a.notifier.Enabled() {
		return
	}
	if err := a.notifier.Notify(ctx, pattern); err != nil {
		a.logger.Warn().Err(err).Str("pattern_id", pattern.ID).Msg("pattern notification failed")
	}
}
