// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides durable, thread-safe key-value storage for the
// session (serialized user and token) on top of the OS credential store.
//
// macOS uses the native security command when available, then the Keychain
// through 99designs/keyring. Windows uses the Credential Manager; Linux uses
// Secret Service, KWallet or pass. An encrypted file keyring in the XDG state
// dir is available everywhere for headless machines.
package keychain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/99designs/keyring"

	"keygate/cli/internal/xdg"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "keygate"

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("keychain: key not found")

// Backend selects where Manager keeps its items.
type Backend string

const (
	// BackendOS uses the native OS credential store.
	BackendOS Backend = "os"
	// BackendFile uses an encrypted file keyring in the XDG state dir.
	BackendFile Backend = "file"
)

// Options configure Open.
type Options struct {
	Backend Backend
	// FileDir overrides the file keyring directory (defaults to the XDG state dir).
	FileDir string
	// Passphrase encrypts the file keyring. Required for BackendFile.
	Passphrase string
}

// Manager provides thread-safe Get/Set/Remove over the chosen keyring.
type Manager struct {
	mu      sync.RWMutex
	ring    keyring.Keyring
	backend keychainBackend
}

// keychainBackend defines the interface for native keychain operations.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// Open creates a Manager for the requested backend.
func Open(opts Options) (*Manager, error) {
	if opts.Backend == BackendFile {
		ring, err := openFileRing(opts)
		if err != nil {
			return nil, err
		}
		return &Manager{ring: ring}, nil
	}

	// Try native security backend first on macOS
	if runtime.GOOS == "darwin" {
		backend, err := newSecurityBackend()
		if err == nil {
			return &Manager{backend: backend}, nil
		}
		// Fall through to keyring library if security command fails
	}

	ring, err := openOSRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewWithKeyring wraps an already opened keyring.
func NewWithKeyring(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// openOSRing opens the OS keyring using native platform backends only.
func openOSRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		// Pass requires 'pass' utility installed: brew install pass
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	default:
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowed,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable; install 'pass' or use --storage file")
		}
		return nil, fmt.Errorf("OS keychain unavailable (use --storage file): %w", err)
	}
	return ring, nil
}

func openFileRing(opts Options) (keyring.Keyring, error) {
	if opts.Passphrase == "" {
		return nil, errors.New("file storage requires KEYGATE_STORAGE_PASSPHRASE")
	}
	dir := opts.FileDir
	if dir == "" {
		state, err := xdg.StateDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(state, "keyring")
	}
	return keyring.Open(keyring.Config{
		ServiceName:      ServiceName,
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          dir,
		FilePasswordFunc: keyring.FixedStringPrompt(opts.Passphrase),
	})
}

// Get retrieves the value stored under key. Missing or empty values yield ErrNotFound.
func (m *Manager) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backend != nil {
		v, err := m.backend.Get(key)
		if err != nil {
			if errors.Is(err, errSecurityNotFound) {
				return "", ErrNotFound
			}
			return "", err
		}
		if v == "" {
			return "", ErrNotFound
		}
		return v, nil
	}

	it, err := m.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNotFound
	}
	return string(it.Data), nil
}

// Set stores value under key, replacing any previous value.
func (m *Manager) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Set(key, value)
	}
	return m.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: ServiceName + " " + key,
	})
}

// Remove deletes key. Removing a missing key is not an error.
func (m *Manager) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Delete(key)
	}
	err := m.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
