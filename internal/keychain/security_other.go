// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build !darwin

package keychain

import "errors"

var (
	errSecurityNotFound   = errors.New("keychain item not found")
	errSecurityNotOnMacOS = errors.New("security command backend is only available on macOS")
)

// securityBackend is unavailable off macOS; Open falls back to keyring.
type securityBackend struct{}

func newSecurityBackend() (*securityBackend, error) { return nil, errSecurityNotOnMacOS }

func (s *securityBackend) Set(string, string) error   { return errSecurityNotOnMacOS }
func (s *securityBackend) Get(string) (string, error) { return "", errSecurityNotOnMacOS }
func (s *securityBackend) Delete(string) error        { return errSecurityNotOnMacOS }
