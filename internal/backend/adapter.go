// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package backend provides the HTTP client for the authentication backend.
// It defines the API contract the auth store depends on and a JSON-over-HTTP
// implementation that normalizes every failure into *errors.E.
package backend

import "context"

// Payload is an untyped JSON object as sent by the backend. Typing it is the
// caller's responsibility.
type Payload map[string]any

// API defines backend operations the auth store depends on.
// Implementations may call the real backend or provide fakes for tests.
type API interface {
	// Register creates an account and opens a session. Success body: {user, token?}.
	Register(ctx context.Context, email, password string) (Payload, error)
	// Login opens a session. Success body: {user, token?}.
	Login(ctx context.Context, email, password string) (Payload, error)
	// Logout closes the server-side session. The body is ignored by callers.
	Logout(ctx context.Context) (Payload, error)
	// GetCurrentUser returns the user record bound to the current session.
	GetCurrentUser(ctx context.Context) (Payload, error)
}

// TokenSource supplies the bearer token at send time. An empty string means
// no Authorization header is sent.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }
