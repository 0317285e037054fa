// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package liveness maintains the worker's on-disk liveness marker.
//
// Deployments without an HTTP probe path (cron-adjacent hosts, plain systemd
// units) watch this file instead: the marker holds the worker's PID and is
// rewritten on an interval, so a marker older than a few intervals means the
// worker is wedged or dead. The marker is removed on clean shutdown.
package liveness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/veridex/riskworker/internal/config"
	"github.com/veridex/riskworker/internal/logging"
)

// Marker is the liveness-file service, run under the supervisor.
type Marker struct {
	cfg    config.LivenessConfig
	logger zerolog.Logger
}

// NewMarker creates the liveness marker service.
func NewMarker(cfg config.LivenessConfig) *Marker {
	return &Marker{
		cfg:    cfg,
		logger: logging.With().Str("component", "liveness").Logger(),
	}
}

// Serve implements suture.Service: write the marker immediately, refresh it
// on the configured interval, remove it when the context is canceled.
func (m *Marker) Serve(ctx context.Context) error {
	if m.cfg.Path == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	if err := m.write(); err != nil {
		return fmt.Errorf("write liveness marker: %w", err)
	}
	m.logger.Info().Str("path", m.cfg.Path).Dur("refresh_interval", m.cfg.RefreshInterval).Msg("Liveness marker active")

	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.write(); err != nil {
				// Surface to the supervisor; a host that cannot write the
				// marker will be flagged dead by the external check anyway.
				return fmt.Errorf("refresh liveness marker: %w", err)
			}
		case <-ctx.Done():
			m.remove()
			return ctx.Err()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (m *Marker) String() string {
	return "liveness-marker"
}

// write atomically replaces the marker with the current PID and timestamp.
// Write-then-rename so a watcher never reads a half-written file.
func (m *Marker) write() error {
	dir := filepath.Dir(m.cfg.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp := m.cfg.Path + ".tmp"
	content := strconv.Itoa(os.Getpid()) + " " + time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.cfg.Path)
}

// remove deletes the marker on clean shutdown. Best-effort.
func (m *Marker) remove() {
	if err := os.Remove(m.cfg.Path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn().Err(err).Str("path", m.cfg.Path).Msg("failed to remove liveness marker")
	}
}
