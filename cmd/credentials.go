// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"keygate/cli/internal/terminal"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[^A-Za-z0-9]`)
)

type credentials struct {
	Email    string
	Password string
}

// validateLogin only checks that both fields are usable.
func (c credentials) validateLogin() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required),
	)
}

// validateRegister mirrors the backend's account creation rules.
func (c credentials) validateRegister() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&c.Password,
			validation.Required,
			validation.Length(8, 128),
			validation.Match(upperRe).Error("must contain an uppercase letter"),
			validation.Match(lowerRe).Error("must contain a lowercase letter"),
			validation.Match(digitRe).Error("must contain a digit"),
			validation.Match(specialRe).Error("must contain a special character"),
		),
	)
}

// credentialReader collects an email and password from flags, stdin or an
// interactive prompt.
type credentialReader struct {
	in            *os.File
	out           io.Writer
	email         string
	passwordStdin bool
}

func (r credentialReader) read() (credentials, error) {
	reader := bufio.NewReader(r.in)
	creds := credentials{Email: strings.TrimSpace(r.email)}

	if creds.Email == "" {
		fmt.Fprint(r.out, "Email: ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return creds, fmt.Errorf("read email: %w", err)
		}
		creds.Email = strings.TrimSpace(line)
	}

	switch {
	case r.passwordStdin:
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return creds, fmt.Errorf("read password: %w", err)
		}
		creds.Password = strings.TrimRight(line, "\r\n")
	case terminal.IsInteractive(r.in):
		pw, err := terminal.ReadPassword(r.in, "Password: ")
		if err != nil {
			return creds, err
		}
		creds.Password = pw
	default:
		return creds, errors.New("stdin is not a terminal; pass the password with --password-stdin")
	}
	return creds, nil
}
