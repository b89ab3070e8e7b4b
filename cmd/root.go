// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the Keygate CLI.
// It implements account registration, sign-in and session inspection
// against the Keygate backend using the Cobra CLI framework.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"keygate/cli/internal/backend"
	"keygate/cli/internal/config"
	"keygate/cli/internal/logging"
	"keygate/cli/internal/sessionjar"

	"github.com/spf13/cobra"
)

var (
	showVersion bool

	flagBaseURL string
	flagStorage string
	flagVerbose bool
	flagOpen    bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "keygate",
	Short:         "Keygate CLI for account sign-in and session management",
	Long:          `Keygate is a command-line client for the Keygate authentication service. It registers accounts, signs in and keeps the session in the OS keychain.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			return versionCmd.RunE(cmd, args)
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, logging.PresentError("", err))
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI and backend version information")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagBaseURL, "base-url", "", "Backend API root (overrides KEYGATE_BASE_URL and the config file)")
	pf.StringVar(&flagStorage, "storage", "", "Session storage: keychain, file or none")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&flagOpen, "open", false, "Open the web app in the browser after signing in or out")
}

// reportedError marks a failure that was already shown to the user.
type reportedError struct{ err error }

func (r reportedError) Error() string { return r.err.Error() }
func (r reportedError) Unwrap() error { return r.err }

// loadConfig merges command-line flags over the file and environment config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagStorage != "" {
		cfg.Storage = flagStorage
	}
	if flagVerbose {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) logging.Logger {
	return logging.New(logging.Options{
		Level: cfg.LogLevel,
		JSON:  cfg.LogFormat == "json",
	})
}

type appRunFunc func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error

// withApp builds the full client stack (storage, cookie jar, backend, store)
// around a command body and persists cookies afterwards.
func withApp(run appRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)

		storage, err := openStorage(cfg)
		if err != nil {
			return fmt.Errorf("open %s storage: %w (try --storage file or --storage none)", cfg.Storage, err)
		}
		jarPath := ""
		if cfg.Storage != config.StorageNone {
			if jarPath, err = sessionjar.DefaultPath(); err != nil {
				log.Warn(ctx, "cookie jar unavailable, keeping cookies in memory", "error", err)
				jarPath = ""
			}
		}

		a, err := newApp(cfg, storage, jarPath, cmd.OutOrStdout(), log)
		if err != nil {
			return err
		}
		defer a.close(ctx)
		return run(ctx, a, cmd, args)
	}
}

type clientRunFunc func(ctx context.Context, cfg config.Config, api *backend.HTTP, cmd *cobra.Command, args []string) error

// withClient gives a command an unauthenticated backend client only.
func withClient(run clientRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		api := backend.New(cfg.BaseURL,
			backend.WithLogger(newLogger(cfg)),
			backend.WithTimeout(cfg.RequestTimeout.Duration),
		)
		return run(ctx, cfg, api, cmd, args)
	}
}

// notLoggedIn prints the hint shown when no session exists.
func notLoggedIn(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🔒 You're not logged in yet!")
	fmt.Fprintln(out, "   Run 'keygate login' to get started.")
}
