// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package supervisor builds the worker's supervision tree.
//
// The tree has two layers under the root:
//   - analysis: the task scheduler and the liveness marker
//   - ops: the operational HTTP server
//
// A crash in the analysis layer (a wedged store driver, a panicking task
// loop) restarts only that layer; the ops server keeps answering probes and
// serving metrics so operators can see the failure instead of losing
// visibility at the exact moment it matters.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds the supervision parameters shared by every node.
type TreeConfig struct {
	// FailureThreshold is the failure count that triggers backoff.
	FailureThreshold float64

	// FailureDecay is the failure-count decay rate in seconds.
	FailureDecay float64

	// FailureBackoff is how long a node waits once the threshold is hit.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds graceful service shutdown.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig matches suture's documented defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the worker's supervision tree.
type Tree struct {
	root     *suture.Supervisor
	analysis *suture.Supervisor
	ops      *suture.Supervisor
	config   TreeConfig
}

// NewTree creates the supervision tree. Supervisor lifecycle events are
// logged through the given slog logger (bridged to zerolog by the logging
// package).
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	// sutureslog's hook has a pointer receiver; take the handler's address.
	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("riskworker", rootSpec)
	analysis := suture.New("analysis-layer", childSpec)
	ops := suture.New("ops-layer", childSpec)

	root.Add(analysis)
	root.Add(ops)

	return &Tree{
		root:     root,
		analysis: analysis,
		ops:      ops,
		config:   config,
	}
}

// AddAnalysisService adds a service to the analysis layer. Use this for the
// task scheduler and the liveness marker.
func (t *Tree) AddAnalysisService(svc suture.Service) suture.ServiceToken {
	return t.analysis.Add(svc)
}

// AddOpsService adds a service to the ops layer. Use this for the
// operational HTTP server.
func (t *Tree) AddOpsService(svc suture.Service) suture.ServiceToken {
	return t.ops.Add(svc)
}

// Serve runs the tree until the context is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine; the returned channel yields
// the terminal error when the tree stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
