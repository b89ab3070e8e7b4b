// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"time"

	"keygate/cli/internal/backend"
	"keygate/cli/internal/config"

	"github.com/spf13/cobra"
)

var (
	// Version holds the CLI version information.
	// This value is typically set at build time using -ldflags.
	Version = "0.0.0-dev"
)

// versionCmd prints the CLI version and, when reachable, the backend version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI and backend version information",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cfg config.Config, api *backend.HTTP, cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		backendVersion := "unknown"
		if h, err := api.GetHealth(ctx, false); err == nil && h.Version != "" {
			backendVersion = h.Version
		}
		fmt.Fprintf(cmd.OutOrStdout(), "keygate %s\nbackend %s\n", Version, backendVersion)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
