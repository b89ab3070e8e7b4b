// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "keygate/cli/internal/errors"
)

// Health is the backend health report. Services and UptimeSeconds are only
// filled by the detailed check.
type Health struct {
	Status        string                    `json:"status"`
	Timestamp     string                    `json:"timestamp"`
	Version       string                    `json:"version"`
	Environment   string                    `json:"environment"`
	Services      map[string]map[string]any `json:"services,omitempty"`
	UptimeSeconds float64                   `json:"uptime_seconds,omitempty"`
}

// Metrics is the backend's runtime counters report.
type Metrics struct {
	UptimeSeconds     float64 `json:"uptime_seconds"`
	Version           string  `json:"version"`
	Environment       string  `json:"environment"`
	RequestsProcessed int64   `json:"requests_processed"`
	ActiveTasks       int64   `json:"active_tasks"`
	MemoryUsageMB     float64 `json:"memory_usage_mb"`
	CPUUsagePercent   float64 `json:"cpu_usage_percent"`
}

// GetHealth calls GET /health (or /health/detailed). No authentication is
// required; this can be used to check connectivity to the backend.
func (h *HTTP) GetHealth(ctx context.Context, detailed bool) (Health, error) {
	path := h.endpoints.Health
	if detailed {
		path = h.endpoints.HealthDetailed
	}
	var out Health
	if err := h.getTyped(ctx, path, &out); err != nil {
		return Health{}, err
	}
	if out.Status == "" {
		out.Status = "unknown"
	}
	return out, nil
}

// GetReadiness calls GET /health/ready and returns the reported status
// ("ready" on a healthy backend).
func (h *HTTP) GetReadiness(ctx context.Context) (string, error) {
	return h.checkStatus(ctx, h.endpoints.Ready)
}

// GetLiveness calls GET /health/live and returns the reported status
// ("alive" on a healthy backend).
func (h *HTTP) GetLiveness(ctx context.Context) (string, error) {
	return h.checkStatus(ctx, h.endpoints.Live)
}

// GetMetrics calls GET /health/metrics.
func (h *HTTP) GetMetrics(ctx context.Context) (Metrics, error) {
	var out Metrics
	if err := h.getTyped(ctx, h.endpoints.Metrics, &out); err != nil {
		return Metrics{}, err
	}
	return out, nil
}

func (h *HTTP) checkStatus(ctx context.Context, path string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := h.getTyped(ctx, path, &out); err != nil {
		return "", err
	}
	if out.Status == "" {
		return "unknown", nil
	}
	return out.Status, nil
}

// getTyped sends a GET and decodes the payload into out.
func (h *HTTP) getTyped(ctx context.Context, path string, out any) error {
	p, err := h.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	// Round-trip through JSON to type the payload.
	b, err := json.Marshal(p)
	if err == nil {
		err = json.Unmarshal(b, out)
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ParseError, InvalidResponseMessage, err)
	}
	return nil
}
