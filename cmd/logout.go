// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// logoutCmd ends the session locally and, best-effort, on the backend.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored session",
	Long: `The logout command asks the backend to end the session and removes the
stored user, token and session cookies from this machine. Local state is
cleared even when the backend cannot be reached.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		a.store.Logout(ctx)
		if a.jar != nil {
			a.jar.Clear()
		}
		if err := a.api.LastError(); err != nil {
			a.log.Debug(ctx, "backend logout failed", "error", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ Signed out; the stored session has been removed")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
