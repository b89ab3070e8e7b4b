// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"errors"
	"sync"
)

// Keys under which the session is persisted. Both are written and cleared together.
const (
	KeyUser  = "user"
	KeyToken = "token"
)

// ErrNotFound is returned by Storage.Get for missing keys.
var ErrNotFound = errors.New("auth: key not found")

// Storage is a durable key-value store. Implementations return an error
// wrapping or equal to ErrNotFound (or any error) when a key is missing; the
// store treats every Get failure as "absent".
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// NopStorage persists nothing. It serves non-interactive contexts.
type NopStorage struct{}

func (NopStorage) Get(string) (string, error) { return "", ErrNotFound }
func (NopStorage) Set(string, string) error   { return nil }
func (NopStorage) Remove(string) error        { return nil }

// MemoryStorage keeps values in process memory.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStorage returns a MemoryStorage seeded with initial.
func NewMemoryStorage(initial map[string]string) *MemoryStorage {
	data := make(map[string]string, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &MemoryStorage{data: data}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.data[key] = value
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Snapshot returns a copy of the stored values.
func (m *MemoryStorage) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}
