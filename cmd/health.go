// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"sort"

	"keygate/cli/internal/backend"
	"keygate/cli/internal/config"
	apperrors "keygate/cli/internal/errors"
	"keygate/cli/internal/httperrors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	healthDetailed bool
	healthReady    bool
	healthLive     bool
	healthMetrics  bool
)

// healthCmd checks the backend health endpoints.
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable and healthy",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cfg config.Config, api *backend.HTTP, cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		switch {
		case healthReady, healthLive:
			check, name := api.GetReadiness, "readiness"
			if healthLive {
				check, name = api.GetLiveness, "liveness"
			}
			status, err := check(ctx)
			if err != nil {
				return healthFailure(err, cfg)
			}
			fmt.Fprintf(out, "Backend %s %s: %s\n", cfg.BaseURL, name, status)
			return nil
		case healthMetrics:
			m, err := api.GetMetrics(ctx)
			if err != nil {
				return healthFailure(err, cfg)
			}
			fmt.Fprintf(out, "Backend %s metrics\n", cfg.BaseURL)
			fmt.Fprintf(out, "  version:            %s\n", m.Version)
			fmt.Fprintf(out, "  environment:        %s\n", m.Environment)
			fmt.Fprintf(out, "  uptime:             %.0fs\n", m.UptimeSeconds)
			fmt.Fprintf(out, "  requests processed: %d\n", m.RequestsProcessed)
			fmt.Fprintf(out, "  active tasks:       %d\n", m.ActiveTasks)
			fmt.Fprintf(out, "  memory:             %.1f MB\n", m.MemoryUsageMB)
			fmt.Fprintf(out, "  cpu:                %.1f%%\n", m.CPUUsagePercent)
			return nil
		}

		h, err := api.GetHealth(ctx, healthDetailed)
		if err != nil {
			return healthFailure(err, cfg)
		}

		status := pterm.NewStyle(pterm.FgGreen, pterm.Bold)
		if h.Status != "healthy" {
			status = pterm.NewStyle(pterm.FgYellow, pterm.Bold)
		}
		fmt.Fprintf(out, "Backend %s is %s\n", cfg.BaseURL, status.Sprint(h.Status))
		if h.Version != "" {
			fmt.Fprintf(out, "  version:     %s\n", h.Version)
		}
		if h.Environment != "" {
			fmt.Fprintf(out, "  environment: %s\n", h.Environment)
		}
		if h.UptimeSeconds > 0 {
			fmt.Fprintf(out, "  uptime:      %.0fs\n", h.UptimeSeconds)
		}
		if len(h.Services) == 0 {
			return nil
		}

		rendered, err := pterm.DefaultTable.WithHasHeader().WithData(serviceRows(h.Services)).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, rendered)
		return nil
	}),
}

func healthFailure(err error, cfg config.Config) error {
	if apperrors.KindOf(err) == apperrors.NetworkError {
		return reportedError{httperrors.FormatNetworkError(err, "checking backend health", cfg.BaseURL)}
	}
	return fmt.Errorf("health check: %w", err)
}

// serviceRows turns the detailed service map into table rows sorted by name.
func serviceRows(services map[string]map[string]any) [][]string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := [][]string{{"Service", "Status", "Details"}}
	for _, name := range names {
		svc := services[name]
		status, _ := svc["status"].(string)
		detail := ""
		if msg, ok := svc["message"].(string); ok {
			detail = msg
		} else if errMsg, ok := svc["error"].(string); ok {
			detail = errMsg
		}
		rows = append(rows, []string{name, status, detail})
	}
	return rows
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().BoolVar(&healthDetailed, "detailed", false, "Include per-service status")
	healthCmd.Flags().BoolVar(&healthReady, "ready", false, "Run the readiness check only")
	healthCmd.Flags().BoolVar(&healthLive, "live", false, "Run the liveness check only")
	healthCmd.Flags().BoolVar(&healthMetrics, "metrics", false, "Show backend runtime metrics")
	healthCmd.MarkFlagsMutuallyExclusive("detailed", "ready", "live", "metrics")
}
