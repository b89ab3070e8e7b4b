// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"net/http"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register calls POST /register with {email, password}.
func (h *HTTP) Register(ctx context.Context, email, password string) (Payload, error) {
	return h.do(ctx, http.MethodPost, h.endpoints.Register, credentials{Email: email, Password: password}, nil)
}

// Login calls POST /login with {email, password}.
func (h *HTTP) Login(ctx context.Context, email, password string) (Payload, error) {
	return h.do(ctx, http.MethodPost, h.endpoints.Login, credentials{Email: email, Password: password}, nil)
}

// Logout calls POST /logout with no body.
func (h *HTTP) Logout(ctx context.Context) (Payload, error) {
	return h.do(ctx, http.MethodPost, h.endpoints.Logout, nil, nil)
}

// GetCurrentUser calls GET /me and returns the user record as sent.
func (h *HTTP) GetCurrentUser(ctx context.Context) (Payload, error) {
	return h.do(ctx, http.MethodGet, h.endpoints.Me, nil, nil)
}
