// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

package detection

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/veridex/riskworker/internal/config"
	"github.com/veridex/riskworker/internal/logging"
	"github.com/veridex/riskworker/internal/metrics"
	"github.com/veridex/riskworker/internal/models"
)

// Notifier delivers suspicious patterns to an external sink.
type Notifier interface {
	Name() string
	Enabled() bool
	Notify(ctx context.Context, pattern *models.SuspiciousPattern) error
}

// WebhookPayload is the JSON body posted to the webhook endpoint.
type WebhookPayload struct {
	Pattern   *models.SuspiciousPattern `json:"pattern"`
	EventType string                    `json:"event_type"` // suspicious_pattern
	Timestamp time.Time                 `json:"timestamp"`
	Source    string                    `json:"source"` // veridex-riskworker
}

// WebhookNotifier posts high-risk suspicious patterns to a configured
// endpoint. Delivery is best-effort: failures are logged and counted, never
// propagated into the detection task (the pattern is already persisted).
//
// The breaker keeps a flapping downstream from slowing every pattern scan;
// the limiter caps outbound volume during a detection storm.
type WebhookNotifier struct {
	cfg     config.WebhookConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	limiter *rate.Limiter
}

// NewWebhookNotifier creates a webhook notifier from config.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	const cbName = "alert-webhook"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,               // Allow 3 probes in half-open state
		Interval:    time.Minute,     // Reset counts after 1 minute closed
		Timeout:     2 * time.Minute, // Wait 2 minutes before half-open

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := breakerStateString(from), breakerStateString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).
				Msg("webhook circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	return &WebhookNotifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(perMinute/60.0), 1),
	}
}

// Name returns the notifier name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Enabled reports whether delivery is configured.
func (n *WebhookNotifier) Enabled() bool {
	return n.cfg.Enabled && n.cfg.URL != ""
}

// Notify delivers one pattern. Patterns below the configured minimum risk
// score are silently skipped.
func (n *WebhookNotifier) Notify(ctx context.Context, pattern *models.SuspiciousPattern) error {
	if !n.Enabled() || pattern.RiskScore < n.cfg.MinRiskScore {
		return nil
	}

	if !n.limiter.Allow() {
		metrics.WebhookDeliveries.WithLabelValues("rate_limited").Inc()
		logging.Debug().Str("pattern_id", pattern.ID).Msg("webhook delivery rate limited")
		return nil
	}

	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, pattern)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.WebhookDeliveries.WithLabelValues("breaker_open").Inc()
		} else {
			metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		}
		return fmt.Errorf("webhook delivery failed for pattern %s: %w", pattern.ID, err)
	}

	metrics.WebhookDeliveries.WithLabelValues("sent").Inc()
	return nil
}

// post performs the HTTP delivery.
func (n *WebhookNotifier) post(ctx context.Context, pattern *models.SuspiciousPattern) error {
	payload := WebhookPayload{
		Pattern:   pattern,
		EventType: "suspicious_pattern",
		Timestamp: time.Now().UTC(),
		Source:    "veridex-riskworker",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
