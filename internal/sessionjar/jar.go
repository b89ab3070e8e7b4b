// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sessionjar provides a cookie jar that survives process restarts.
//
// The backend keeps cookie-based sessions; a CLI process is short-lived, so the
// cookies it receives for the backend host are mirrored to a private JSON file
// and replayed into the in-memory jar on the next run.
package sessionjar

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"keygate/cli/internal/xdg"
)

// FileName is the jar file name inside the XDG state dir.
const FileName = "cookies.json"

// storedCookie is the on-disk form of a cookie.
type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// Jar is an http.CookieJar that remembers cookies set for one origin.
type Jar struct {
	inner *cookiejar.Jar
	base  *url.URL
	path  string
	now   func() time.Time

	mu    sync.Mutex
	saved map[string]storedCookie
}

// DefaultPath returns the jar path in the XDG state dir.
func DefaultPath() (string, error) {
	dir, err := xdg.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Open creates a Jar for baseURL backed by the file at path. A missing or
// unreadable file starts an empty jar; path may be empty for an in-memory jar.
func Open(path string, baseURL string) (*Jar, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	j := &Jar{
		inner: inner,
		base:  &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"},
		path:  path,
		now:   time.Now,
		saved: map[string]storedCookie{},
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)
	if u.Host != j.base.Host {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			delete(j.saved, c.Name)
			continue
		}
		exp := c.Expires
		path := c.Path
		if path == "" {
			path = defaultPath(u)
		}
		if c.MaxAge > 0 {
			exp = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.saved[c.Name] = storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     path,
			Domain:   c.Domain,
			Expires:  exp,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// Len reports how many persisted cookies the jar holds.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.saved)
}

// Clear expires every remembered cookie.
func (j *Jar) Clear() {
	j.mu.Lock()
	expired := make([]*http.Cookie, 0, len(j.saved))
	for _, c := range j.saved {
		expired = append(expired, &http.Cookie{Name: c.Name, Path: c.Path, Domain: c.Domain, MaxAge: -1})
	}
	j.mu.Unlock()
	j.SetCookies(j.base, expired)
}

// Save writes the remembered cookies to disk with 0600 permissions.
func (j *Jar) Save() error {
	if j.path == "" {
		return nil
	}
	j.mu.Lock()
	now := j.now()
	out := make([]storedCookie, 0, len(j.saved))
	for _, c := range j.saved {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		out = append(out, c)
	}
	j.mu.Unlock()

	if len(out) == 0 {
		if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(j.path, b, 0o600)
}

func (j *Jar) load() error {
	if j.path == "" {
		return nil
	}
	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		// A corrupt jar only costs the cookie session.
		_ = os.Remove(j.path)
		return nil
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	j.SetCookies(j.base, cookies)
	return nil
}

// defaultPath is the RFC 6265 default cookie path for u.
func defaultPath(u *url.URL) string {
	p := u.Path
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
