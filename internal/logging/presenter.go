// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pterm/pterm"

	apperrors "keygate/cli/internal/errors"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Mask(err.Error())
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// FormatAuthError renders a failed auth operation in a user-friendly way.
// message is the text the store surfaced; err, when non-nil, supplies the
// status used to pick a hint.
func FormatAuthError(title, message string, err error) string {
	var b strings.Builder

	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(title))
	b.WriteString("\n\n")
	if message != "" {
		b.WriteString(Mask(message))
		b.WriteString("\n")
	}

	if hint := hintFor(err); hint != "" {
		b.WriteString("\n")
		b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ " + hint))
		b.WriteString("\n")
	}
	return b.String()
}

func hintFor(err error) string {
	if err == nil {
		return ""
	}
	e, ok := apperrors.As(err)
	if !ok {
		return ""
	}
	switch {
	case e.Kind == apperrors.NetworkError:
		return "Check that the backend is reachable (keygate health)"
	case e.Status == http.StatusUnauthorized:
		return "Check your email and password, or run 'keygate login' again"
	case e.Status == http.StatusBadRequest, e.Status == http.StatusUnprocessableEntity:
		return "Fix the submitted data and try again"
	case e.Status >= 500:
		return "The server failed to handle the request; please try again later"
	}
	return ""
}
