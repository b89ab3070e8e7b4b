// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept in the file; the file-keyring passphrase is
// accepted from the environment only.
//
// Precedence, lowest first: defaults, config.json, KEYGATE_* environment
// variables, command-line flags (applied by cmd).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"keygate/cli/internal/xdg"
)

// Storage backends understood by the CLI.
const (
	StorageKeychain = "keychain"
	StorageFile     = "file"
	StorageNone     = "none"
)

// Config holds CLI settings.
type Config struct {
	// BaseURL is the backend API root, e.g. http://localhost:8000/api/v1.
	BaseURL string `json:"base_url" env:"KEYGATE_BASE_URL"`
	// AppURL is the frontend origin navigation targets are resolved against.
	AppURL       string `json:"app_url" env:"KEYGATE_APP_URL"`
	LandingRoute string `json:"landing_route" env:"KEYGATE_LANDING_ROUTE"`
	EntryRoute   string `json:"entry_route" env:"KEYGATE_ENTRY_ROUTE"`

	Storage string `json:"storage" env:"KEYGATE_STORAGE"`
	// StoragePassphrase unlocks the encrypted file keyring. Never written to disk.
	StoragePassphrase string `json:"-" env:"KEYGATE_STORAGE_PASSPHRASE"`

	LogLevel  string `json:"log_level" env:"KEYGATE_LOG_LEVEL"`
	LogFormat string `json:"log_format" env:"KEYGATE_LOG_FORMAT"`

	// RequestTimeout bounds each backend call; zero means no timeout.
	RequestTimeout Duration `json:"request_timeout" env:"KEYGATE_REQUEST_TIMEOUT"`
}

// Duration is a time.Duration that reads and writes "10s"-style text.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BaseURL:      "http://localhost:8000/api/v1",
		AppURL:       "http://localhost:5173",
		LandingRoute: "/dashboard",
		EntryRoute:   "/auth",
		Storage:      StorageKeychain,
		LogLevel:     "warn",
		LogFormat:    "text",
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration from the XDG config file and the environment.
// A missing file yields defaults.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Defaults(), err
	}
	return LoadFile(p)
}

// LoadFile is Load with an explicit file path.
func LoadFile(p string) (Config, error) {
	c := Defaults()
	data, err := os.ReadFile(p)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", p, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return c, err
	}
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	return c, c.Validate()
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base_url must not be empty")
	}
	switch c.Storage {
	case StorageKeychain, StorageFile, StorageNone:
	default:
		return fmt.Errorf("unknown storage %q (want keychain, file or none)", c.Storage)
	}
	return nil
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(p, c)
}

// SaveFile is Save with an explicit file path.
func SaveFile(p string, c Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
