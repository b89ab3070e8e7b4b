// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	registerEmail         string
	registerPasswordStdin bool
)

// registerCmd creates an account and signs in.
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Long: `The register command creates a Keygate account and signs in with it.

Passwords must be 8 to 128 characters long and contain an uppercase letter,
a lowercase letter, a digit and a special character.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		creds, err := credentialReader{
			in:            stdin,
			out:           cmd.OutOrStdout(),
			email:         registerEmail,
			passwordStdin: registerPasswordStdin,
		}.read()
		if err != nil {
			return err
		}
		if err := creds.validateRegister(); err != nil {
			return fmt.Errorf("invalid registration: %w", err)
		}
		return runAuthFlow(ctx, a, cmd, "Registration failed", "creating your account", func(ctx context.Context) bool {
			return a.store.Register(ctx, creds.Email, creds.Password)
		})
	}),
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Account email")
	registerCmd.Flags().BoolVar(&registerPasswordStdin, "password-stdin", false, "Read the password from stdin")
}
