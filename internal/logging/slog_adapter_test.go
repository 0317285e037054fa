// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// newBufferHandler pins the zerolog global level to trace so the handler's
// own level logic is what the test observes.
func newBufferHandler(t *testing.T) (*SlogHandler, *bytes.Buffer) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	return NewSlogHandlerWithLogger(zerolog.New(&buf)), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	return entry
}

func TestSlogHandler_LevelMapping(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "debug"},
		{slog.LevelInfo, "info"},
		{slog.LevelWarn, "warn"},
		{slog.LevelError, "error"},
	}

	for _, tt := range tests {
		handler, buf := newBufferHandler(t)
		logger := slog.New(handler)
		logger.Log(context.Background(), tt.level, "msg")

		entry := decodeLine(t, buf)
		if entry["level"] != tt.want {
			t.Errorf("slog %v mapped to level %v, want %v", tt.level, entry["level"], tt.want)
		}
	}
}

func TestSlogHandler_Attrs(t *testing.T) {
	handler, buf := newBufferHandler(t)
	logger := slog.New(handler)

	logger.Info("service event",
		slog.String("supervisor", "analysis-layer"),
		slog.Int("restarts", 3),
		slog.Bool("backoff", true),
		slog.Duration("uptime", 2*time.Second),
	)

	entry := decodeLine(t, buf)
	if entry["message"] != "service event" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["supervisor"] != "analysis-layer" {
		t.Errorf("supervisor = %v", entry["supervisor"])
	}
	if entry["restarts"] != float64(3) {
		t.Errorf("restarts = %v, want 3", entry["restarts"])
	}
	if entry["backoff"] != true {
		t.Errorf("backoff = %v, want true", entry["backoff"])
	}
}

func TestSlogHandler_WithAttrsAndGroups(t *testing.T) {
	handler, buf := newBufferHandler(t)
	logger := slog.New(handler).With(slog.String("service", "scheduler")).WithGroup("tree")

	logger.Info("restarting", slog.String("node", "analysis"))

	out := buf.String()
	if !strings.Contains(out, `"service":"scheduler"`) {
		t.Errorf("pre-bound attr missing: %s", out)
	}
	if !strings.Contains(out, `"tree.node":"analysis"`) {
		t.Errorf("group-prefixed key missing: %s", out)
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf).Level(zerolog.WarnLevel))

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled on a warn-level logger")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled on a warn-level logger")
	}
}

func TestNewSlogLogger(t *testing.T) {
	t.Cleanup(func() { Init(DefaultConfig()) })

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})

	NewSlogLogger().Info("bridged")
	if !strings.Contains(buf.String(), "bridged") {
		t.Errorf("slog record did not reach zerolog output: %q", buf.String())
	}
}
