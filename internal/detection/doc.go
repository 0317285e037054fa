// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package detection implements the pairwise suspicious-pattern detectors.
//
// Unlike the scoring models, which produce a continuous score for every
// evaluated entity, detectors emit discrete alert records and only when the
// evidence crosses a hard threshold. A user can be flagged by both detectors
// and by the anomaly scorer in the same run; the three signals are
// intentionally independent.
//
// Detectors are pure: they walk already-fetched, timestamp-ascending event
// slices and return SuspiciousPattern records. The analyzer owns persistence
// and notification.
package detection
