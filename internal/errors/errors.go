// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// Every failure produced by the backend client is normalized into *E so callers
// can branch on Kind and Status instead of parsing messages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// NetworkError indicates the request never completed (DNS, connection, TLS).
	NetworkError Kind = "network_error"
	// APIError indicates the backend answered with a non-success status.
	APIError Kind = "api_error"
	// ParseError indicates a payload (response or persisted state) could not be decoded.
	ParseError Kind = "parse_error"
)

// StatusNetworkError is the status reported when no HTTP response was received.
const StatusNetworkError = 0

// E wraps an error with kind, human-friendly message and HTTP status.
type E struct {
	Kind    Kind
	Message string
	// Detail is the backend-provided detail field, when present.
	Detail string
	Status int
	Err    error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Status != StatusNetworkError {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// As extracts the first *E in err's chain.
func As(err error) (*E, bool) {
	var e *E
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or "" when err is not an *E.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or StatusNetworkError.
func StatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return StatusNetworkError
}
