// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package liveness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/veridex/riskworker/internal/config"
)

func TestMarker_WritesAndRemoves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.alive")
	m := NewMarker(config.LivenessConfig{
		Path:            path,
		RefreshInterval: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	// Marker appears promptly and carries our PID.
	deadline := time.After(2 * time.Second)
	var content []byte
	for {
		b, err := os.ReadFile(path)
		if err == nil {
			content = b
			break
		}
		select {
		case <-deadline:
			t.Fatal("marker file never appeared")
		case <-time.After(5 * time.Millisecond):
		}
	}
	fields := strings.Fields(string(content))
	if len(fields) != 2 {
		t.Fatalf("marker content = %q, want pid and timestamp", content)
	}
	if fields[0] != strconv.Itoa(os.Getpid()) {
		t.Errorf("marker pid = %s, want %d", fields[0], os.Getpid())
	}
	if _, err := time.Parse(time.RFC3339, fields[1]); err != nil {
		t.Errorf("marker timestamp %q: %v", fields[1], err)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("marker file not removed on shutdown")
	}
}

func TestMarker_DisabledWithoutPath(t *testing.T) {
	m := NewMarker(config.LivenessConfig{RefreshInterval: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestMarker_Refreshes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.alive")
	m := NewMarker(config.LivenessConfig{
		Path:            path,
		RefreshInterval: 15 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	var first os.FileInfo
	deadline := time.After(2 * time.Second)
	for first == nil {
		if fi, err := os.Stat(path); err == nil {
			first = fi
		}
		select {
		case <-deadline:
			t.Fatal("marker never written")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Wait for at least one refresh to land.
	refreshed := false
	for !refreshed {
		if fi, err := os.Stat(path); err == nil && fi.ModTime().After(first.ModTime()) {
			refreshed = true
		}
		select {
		case <-deadline:
			t.Fatal("marker never refreshed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
