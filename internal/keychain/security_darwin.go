// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build darwin

package keychain

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var errSecurityNotFound = errors.New("keychain item not found")

// securityBackend stores session entries as generic passwords through the
// macOS security command. Items use ServiceName as the account and the
// entry key as the service.
type securityBackend struct{}

func newSecurityBackend() (*securityBackend, error) {
	if _, err := exec.LookPath("security"); err != nil {
		return nil, fmt.Errorf("security command not found: %w", err)
	}
	return &securityBackend{}, nil
}

func (s *securityBackend) Set(key, value string) error {
	_ = s.Delete(key)

	_, err := runSecurity("add-generic-password",
		"-a", ServiceName, // account
		"-s", key, // service
		"-w", value, // password
		"-U", // update if exists
	)
	if err != nil {
		return fmt.Errorf("store %q in keychain: %w", key, err)
	}
	return nil
}

func (s *securityBackend) Get(key string) (string, error) {
	out, err := runSecurity("find-generic-password", "-a", ServiceName, "-s", key, "-w")
	if err != nil {
		if errors.Is(err, errSecurityNotFound) {
			return "", err
		}
		return "", fmt.Errorf("read %q from keychain: %w", key, err)
	}
	return strings.TrimSpace(out), nil
}

func (s *securityBackend) Delete(key string) error {
	_, err := runSecurity("delete-generic-password", "-a", ServiceName, "-s", key)
	if err != nil && !errors.Is(err, errSecurityNotFound) {
		return fmt.Errorf("delete %q from keychain: %w", key, err)
	}
	return nil
}

// runSecurity runs the security command and maps its "could not be found"
// failure to errSecurityNotFound. Stderr never contains the stored value.
func runSecurity(args ...string) (string, error) {
	cmd := exec.Command("security", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if strings.Contains(stderr.String(), "could not be found") {
			return "", errSecurityNotFound
		}
		return "", fmt.Errorf("%s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}
