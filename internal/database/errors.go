// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package database

import (
	"errors"
	"io"

	"github.com/veridex/riskworker/internal/logging"
)

// Sentinel errors returned by store operations. Callers use errors.Is to
// distinguish data conditions from infrastructure failures.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrMalformedMetadata indicates a row's metadata column could not be
	// parsed. Per-record logic error: log the id and continue the batch.
	ErrMalformedMetadata = errors.New("malformed metadata")
)

// closeQuietly closes a resource and explicitly ignores any error.
// Used in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// closeRows closes a rows handle and logs any error, for defer in query paths.
func closeRows(closer io.Closer, table string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("table", table).Err(err).Msg("failed to close rows")
	}
}
