// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package auth owns the client-side authentication state.
//
// A Store holds one State cell, drives login/register/logout/refresh flows
// against the backend, mirrors the session into durable Storage and notifies
// subscribers on every change. Stores are explicitly constructed; there is no
// package-level instance.
package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// SessionToken is the placeholder token used when the backend keeps the
// session in a cookie and issues no bearer token.
const SessionToken = "session"

// UserID is a user identifier. The backend may send it as a JSON string or number.
type UserID string

func (id *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// Int returns the numeric form of the id, when it has one.
func (id UserID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// User is the backend's user record. The record is kept exactly as received
// and persisted byte for byte; ID, Email, CreatedAt and IsActive are a
// read-only view decoded from it where the values have the expected types.
type User struct {
	ID        UserID
	Email     string
	CreatedAt string
	IsActive  bool

	raw json.RawMessage
}

// userView is the wire shape of the typed fields.
type userView struct {
	ID        UserID `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	IsActive  bool   `json:"is_active"`
}

// ParseUser wraps a serialized user record. Any valid JSON value other than
// null is accepted; fields that are missing or of another type leave the
// corresponding view field empty.
func ParseUser(b []byte) (User, error) {
	if !json.Valid(b) {
		return User{}, errors.New("user record is not valid JSON")
	}
	if isNull(b) {
		return User{}, errors.New("user record is null")
	}
	u := User{raw: append(json.RawMessage(nil), b...)}
	u.decodeView()
	return u, nil
}

func (u *User) decodeView() {
	var fields map[string]json.RawMessage
	if json.Unmarshal(u.raw, &fields) != nil {
		return
	}
	// Each field is decoded on its own so one odd value does not hide the rest.
	if v, ok := fields["id"]; ok {
		_ = json.Unmarshal(v, &u.ID)
	}
	if v, ok := fields["email"]; ok {
		_ = json.Unmarshal(v, &u.Email)
	}
	if v, ok := fields["created_at"]; ok {
		_ = json.Unmarshal(v, &u.CreatedAt)
	}
	if v, ok := fields["is_active"]; ok {
		_ = json.Unmarshal(v, &u.IsActive)
	}
}

// Raw returns a copy of the record as received.
func (u User) Raw() json.RawMessage {
	return append(json.RawMessage(nil), u.raw...)
}

// encode returns the persisted form: the original bytes, or the typed view
// for a User built in code.
func (u User) encode() ([]byte, error) {
	if len(u.raw) > 0 {
		return u.Raw(), nil
	}
	return json.Marshal(userView{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt, IsActive: u.IsActive})
}

func (u User) MarshalJSON() ([]byte, error) { return u.encode() }

func (u *User) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	parsed, err := ParseUser(b)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

// State is a snapshot of the authentication state.
//
// IsAuthenticated is true exactly when both User and Token are present.
type State struct {
	User            *User  `json:"user"`
	IsAuthenticated bool   `json:"is_authenticated"`
	IsLoading       bool   `json:"is_loading"`
	Error           string `json:"error,omitempty"`
	Token           string `json:"-"`
}

// HasError reports whether an error message is set.
func (s State) HasError() bool { return s.Error != "" }

// clone returns a copy that does not share the User pointer.
func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func authenticated(user User, token string) State {
	return State{User: &user, IsAuthenticated: true, Token: token}
}
