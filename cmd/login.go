// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"math/rand"

	apperrors "keygate/cli/internal/errors"
	"keygate/cli/internal/httperrors"
	"keygate/cli/internal/logging"

	"github.com/spf13/cobra"
)

var (
	loginEmail         string
	loginPasswordStdin bool
)

// loginCmd signs in with email and password.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"signin"},
	Short:   "Sign in with email and password",
	Long: `The login command signs in to the Keygate backend. The email can be passed
with --email or typed at the prompt; the password is read without echo, or from
stdin with --password-stdin.

On success the user and token are kept in the configured session storage so
later commands reuse the session.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		creds, err := credentialReader{
			in:            stdin,
			out:           cmd.OutOrStdout(),
			email:         loginEmail,
			passwordStdin: loginPasswordStdin,
		}.read()
		if err != nil {
			return err
		}
		if err := creds.validateLogin(); err != nil {
			return fmt.Errorf("invalid credentials: %w", err)
		}
		return runAuthFlow(ctx, a, cmd, "Login failed", "signing in", func(ctx context.Context) bool {
			return a.store.Login(ctx, creds.Email, creds.Password)
		})
	}),
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
}

// runAuthFlow runs a register or login operation with a spinner and reports
// its outcome.
func runAuthFlow(ctx context.Context, a *app, cmd *cobra.Command, title, action string, op func(context.Context) bool) error {
	stop := followLoading(a.store, action)
	ok := op(ctx)
	stop()

	st := a.store.Snapshot()
	if ok && st.User != nil {
		fmt.Fprintln(cmd.OutOrStdout(), getRandomLoginGreeting(st.User.Email))
		return nil
	}

	cause := a.api.LastError()
	if apperrors.KindOf(cause) == apperrors.NetworkError {
		return reportedError{httperrors.FormatNetworkError(cause, action, a.cfg.BaseURL)}
	}
	msg := st.Error
	if msg == "" {
		msg = "The request was superseded by another operation."
	}
	fmt.Fprint(cmd.ErrOrStderr(), logging.FormatAuthError(title, msg, cause))
	return reportedError{fmt.Errorf("%s: %s", title, msg)}
}

// getRandomLoginGreeting returns a random greeting phrase with the user's identifier.
func getRandomLoginGreeting(identifier string) string {
	greetings := []string{
		"🎉 Welcome back, %s!",
		"✨ Great to see you, %s!",
		"🚀 You're all set, %s!",
		"💫 Successfully authenticated as %s",
		"✅ Signed in as %s",
		"🔓 Access granted! Welcome %s!",
	}
	return fmt.Sprintf(greetings[rand.Intn(len(greetings))], identifier)
}
