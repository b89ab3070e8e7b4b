// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"keygate/cli/internal/auth"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var statusJSON bool

// statusReport is the machine-readable form of the local session.
type statusReport struct {
	Authenticated bool       `json:"authenticated"`
	User          *auth.User `json:"user,omitempty"`
	CookieSession bool       `json:"cookie_session"`
	Storage       string     `json:"storage"`
	BaseURL       string     `json:"base_url"`
}

// statusCmd shows the locally stored session without contacting the backend.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the locally stored session",
	Long: `The status command reports what this machine remembers about the session.
It does not contact the backend; use 'keygate whoami' to validate the session.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		st := a.store.Snapshot()
		report := statusReport{
			Authenticated: st.IsAuthenticated,
			User:          st.User,
			CookieSession: st.Token == auth.SessionToken || (a.jar != nil && a.jar.Len() > 0),
			Storage:       a.cfg.Storage,
			BaseURL:       a.cfg.BaseURL,
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		label := pterm.NewStyle(pterm.FgLightCyan)
		if report.Authenticated {
			fmt.Fprintln(out, label.Sprint("→ Signed in as: ")+pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(report.User.Email))
		} else {
			fmt.Fprintln(out, label.Sprint("→ Signed in as: ")+"nobody")
		}
		fmt.Fprintln(out, label.Sprint("→ Backend:      ")+report.BaseURL)
		fmt.Fprintln(out, label.Sprint("→ Storage:      ")+report.Storage)
		if report.CookieSession {
			fmt.Fprintln(out, label.Sprint("→ Session:      ")+"cookie")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status as JSON")
}
