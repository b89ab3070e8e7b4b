// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package logging provides structured logging, secret masking and error
// presentation for the CLI.
//
// Passwords, bearer tokens and session cookies must never reach a log line or a
// terminal error message; everything written through this package is masked.
package logging

import (
	"regexp"
	"strings"
)

var (
	rePassword = regexp.MustCompile(`(?i)("?password"?\s*[=:]\s*"?)([^\s;",}]+)`)
	reToken    = regexp.MustCompile(`(?i)(token=|bearer\s+)([A-Za-z0-9._~+/=-]+)`)
	reJSONTok  = regexp.MustCompile(`(?i)("token"\s*:\s*")([^"]+)`)
	reCookie   = regexp.MustCompile(`(?i)(session_id=)([^\s;]+)`)
	reURLCreds = regexp.MustCompile(`(?i)(://)([^:/@]+):([^@/]+)(@)`)
)

// Mask replaces sensitive values in the input string with "***".
// Credentials embedded in URLs are masked as "*:*".
func Mask(s string) string {
	out := s
	out = rePassword.ReplaceAllString(out, "$1***")
	out = reToken.ReplaceAllString(out, "$1***")
	out = reJSONTok.ReplaceAllString(out, "$1***")
	out = reCookie.ReplaceAllString(out, "$1***")
	out = reURLCreds.ReplaceAllString(out, "$1*:*$4")
	for _, k := range []string{"KEYGATE_STORAGE_PASSPHRASE"} {
		if i := strings.Index(out, k+"="); i >= 0 {
			out = out[:i+len(k)+1] + "***"
		}
	}
	return out
}
