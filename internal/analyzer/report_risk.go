// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package analyzer

import (
	"context"
	"fmt"

	"github.com/veridex/riskworker/internal/features"
	"github.com/veridex/riskworker/internal/metrics"
	"github.com/veridex/riskworker/internal/models"
	"github.com/veridex/riskworker/internal/scoring"
)

// AssessReports re-scores every open counterfeit report and patches its
// risk_assessment metadata. Reports scoring above the investigate threshold
// move to "investigating"; the rest stay (or return to) "pending". Terminal
// reports are never touched. The assessment is recomputed from current inputs
// on every run, so repeated runs over unchanged data converge.
func (a *Analyzer) AssessReports(ctx context.Context) error {
	cfg := a.cfg.ReportRisk

	reports, err := a.store.GetOpenReports(ctx)
	if err != nil {
		return fmt.Errorf("fetch open reports: %w", err)
	}

	var assessed int
	for _, report := range reports {
		total, confirmed, err := a.store.GetReporterStats(ctx, report.ReporterID)
		if err != nil {
			a.logger.Error().Err(err).Str("report_id", report.ID).Msg("fetch reporter stats")
			metrics.EntitiesSkipped.WithLabelValues(TaskReportRisk, "reporter_stats_error").Inc()
			continue
		}
		productRate, err := a.store.GetProductCounterfeitRate(ctx, report.ProductID)
		if err != nil {
			a.logger.Error().Err(err).Str("report_id", report.ID).Msg("fetch product counterfeit rate")
			metrics.EntitiesSkipped.WithLabelValues(TaskReportRisk, "product_rate_error").Inc()
			continue
		}

		vector := features.ExtractCounterfeitVector(report, total, confirmed, productRate, cfg.DefaultReporterReliability)
		score, factors := scoring.CounterfeitScore(vector, cfg)

		status := models.ReportStatusPending
		if scoring.ShouldInvestigate(score, cfg) {
			status = models.ReportStatusInvestigating
		}

		assessment := models.RiskAssessment{
			RiskScore:  score,
			Factors:    factors,
			AssessedAt: a.now(),
		}
		if err := a.store.UpdateReportAssessment(ctx, report.ID, status, assessment); err != nil {
			a.logger.Error().Err(err).Str("report_id", report.ID).Msg("update report assessment")
			metrics.EntitiesSkipped.WithLabelValues(TaskReportRisk, "write_error").Inc()
			continue
		}
		assessed++

		if status == models.ReportStatusInvestigating && report.Status != models.ReportStatusInvestigating {
			a.logger.Info().
				Str("report_id", report.ID).
				Float64("score", score).
				Strs("factors", factors).
				Msg("report escalated to investigating")
		}
	}

	a.logger.Debug().
		Int("open", len(reports)).
		Int("assessed", assessed).
		Msg("report risk assessment complete")
	return nil
}
