// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"

	apperrors "keygate/cli/internal/errors"
	"keygate/cli/internal/httperrors"

	"github.com/spf13/cobra"
)

// whoamiCmd revalidates the session with the backend and shows the account.
var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Aliases: []string{"me"},
	Short:   "Show current authenticated account",
	Long: `The whoami command validates the current session with the backend and shows
the account it belongs to. A session the backend no longer accepts is removed
from this machine.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		if !a.hasSession() {
			notLoggedIn(cmd)
			return nil
		}

		stop := followLoading(a.store, "checking session")
		a.store.FetchCurrentUser(ctx)
		stop()

		st := a.store.Snapshot()
		if st.IsAuthenticated {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "👤 Current user: %s\n", st.User.Email)
			a.log.Debug(ctx, "session details", "id", string(st.User.ID), "created_at", st.User.CreatedAt, "active", st.User.IsActive)
			return nil
		}

		if cause := a.api.LastError(); apperrors.KindOf(cause) == apperrors.NetworkError {
			return reportedError{httperrors.FormatNetworkError(cause, "checking your session", a.cfg.BaseURL)}
		}
		notLoggedIn(cmd)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
