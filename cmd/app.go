// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"keygate/cli/internal/auth"
	"keygate/cli/internal/backend"
	"keygate/cli/internal/config"
	"keygate/cli/internal/keychain"
	"keygate/cli/internal/logging"
	"keygate/cli/internal/sessionjar"
)

// app is the per-invocation wiring shared by all commands.
type app struct {
	cfg   config.Config
	log   logging.Logger
	http  *backend.HTTP
	api   *recordingAPI
	store *auth.Store
	jar   *sessionjar.Jar
	out   io.Writer
}

// newApp builds the client stack from cfg. jarPath may be empty to keep
// cookies in memory only.
func newApp(cfg config.Config, storage auth.Storage, jarPath string, out io.Writer, log logging.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, out: out}

	opts := []backend.Option{
		backend.WithLogger(log),
		backend.WithTimeout(cfg.RequestTimeout.Duration),
	}
	if jarPath != "" {
		jar, err := sessionjar.Open(jarPath, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("open cookie jar: %w", err)
		}
		a.jar = jar
		opts = append(opts, backend.WithCookieJar(jar))
	}
	a.http = backend.New(cfg.BaseURL, opts...)
	a.api = &recordingAPI{API: a.http}

	nav := &terminalNavigator{appURL: cfg.AppURL, open: flagOpen, out: out}
	a.store = auth.NewStore(a.api,
		auth.WithStorage(storage),
		auth.WithNavigator(nav),
		auth.WithLogger(log.With("component", "auth")),
		auth.WithRoutes(cfg.LandingRoute, cfg.EntryRoute),
	)
	a.http.UseTokenSource(a.store)
	return a, nil
}

// close persists session cookies.
func (a *app) close(ctx context.Context) {
	if a.jar == nil {
		return
	}
	if err := a.jar.Save(); err != nil {
		a.log.Warn(ctx, "save cookies", "error", err)
	}
}

// hasSession reports whether anything local suggests a session exists.
func (a *app) hasSession() bool {
	if a.store.Snapshot().IsAuthenticated {
		return true
	}
	return a.jar != nil && a.jar.Len() > 0
}

// openStorage selects the durable store for the session.
func openStorage(cfg config.Config) (auth.Storage, error) {
	switch cfg.Storage {
	case config.StorageNone:
		return auth.NopStorage{}, nil
	case config.StorageFile:
		return keychain.Open(keychain.Options{Backend: keychain.BackendFile, Passphrase: cfg.StoragePassphrase})
	default:
		return keychain.Open(keychain.Options{Backend: keychain.BackendOS})
	}
}

// recordingAPI remembers the last backend failure so commands can pick
// troubleshooting hints; the store itself only keeps the message.
type recordingAPI struct {
	backend.API

	mu      sync.Mutex
	lastErr error
}

func (r *recordingAPI) record(p backend.Payload, err error) (backend.Payload, error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	return p, err
}

func (r *recordingAPI) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *recordingAPI) Register(ctx context.Context, email, password string) (backend.Payload, error) {
	return r.record(r.API.Register(ctx, email, password))
}

func (r *recordingAPI) Login(ctx context.Context, email, password string) (backend.Payload, error) {
	return r.record(r.API.Login(ctx, email, password))
}

func (r *recordingAPI) Logout(ctx context.Context) (backend.Payload, error) {
	return r.record(r.API.Logout(ctx))
}

func (r *recordingAPI) GetCurrentUser(ctx context.Context) (backend.Payload, error) {
	return r.record(r.API.GetCurrentUser(ctx))
}

// terminalNavigator shows where the web app continues after a flow and
// optionally opens it in the browser.
type terminalNavigator struct {
	appURL string
	open   bool
	out    io.Writer
}

func (n *terminalNavigator) Navigate(_ context.Context, route string) error {
	if n.appURL == "" {
		return nil
	}
	target := strings.TrimRight(n.appURL, "/") + route
	fmt.Fprintf(n.out, "→ Continue at %s\n", target)
	if n.open {
		return openBrowser(target)
	}
	return nil
}

// openBrowser attempts to open the provided URL in the user's default browser.
// It starts the browser process but does not wait for it to complete.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

// stdin is the source for prompts and --password-stdin.
var stdin = os.Stdin
