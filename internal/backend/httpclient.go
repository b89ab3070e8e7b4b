// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "keygate/cli/internal/errors"
	"keygate/cli/internal/logging"
)

// DefaultBaseURL is the API root used when none is configured.
const DefaultBaseURL = "http://localhost:8000/api/v1"

const (
	// NetworkErrorMessage is reported for every transport-level failure.
	NetworkErrorMessage = "Network error. Please check your connection."
	// FallbackErrorMessage is used when neither detail nor reason phrase is available.
	FallbackErrorMessage = "An error has occurred"
	// InvalidResponseMessage is used when a success body is not a JSON object.
	InvalidResponseMessage = "Invalid response from server"
)

// Endpoints contains REST API endpoint paths relative to the base URL.
type Endpoints struct {
	Register       string `json:"register"`
	Login          string `json:"login"`
	Logout         string `json:"logout"`
	Me             string `json:"me"`
	Health         string `json:"health"`
	HealthDetailed string `json:"health_detailed"`
	Ready          string `json:"ready"`
	Live           string `json:"live"`
	Metrics        string `json:"metrics"`
}

// DefaultEndpoints returns the backend's stock routes.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Register:       "/register",
		Login:          "/login",
		Logout:         "/logout",
		Me:             "/me",
		Health:         "/health",
		HealthDetailed: "/health/detailed",
		Ready:          "/health/ready",
		Live:           "/health/live",
		Metrics:        "/health/metrics",
	}
}

// HTTP implements API over REST endpoints.
type HTTP struct {
	// baseURL is the API root for all requests (e.g., "http://localhost:8000/api/v1")
	baseURL   string
	endpoints Endpoints
	client    *http.Client
	jar       http.CookieJar
	timeout   time.Duration
	tokens    TokenSource
	log       logging.Logger
}

// Option configures HTTP.
type Option func(*HTTP)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) { h.client = c }
}

// WithCookieJar attaches a cookie jar so backend-set cookies accompany every call.
func WithCookieJar(jar http.CookieJar) Option {
	return func(h *HTTP) { h.jar = jar }
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTP) { h.timeout = d }
}

// WithTokenSource sets where the bearer token is read from.
func WithTokenSource(ts TokenSource) Option {
	return func(h *HTTP) { h.tokens = ts }
}

// WithEndpoints overrides endpoint paths; empty fields keep their defaults.
func WithEndpoints(e Endpoints) Option {
	return func(h *HTTP) {
		d := &h.endpoints
		override(&d.Register, e.Register)
		override(&d.Login, e.Login)
		override(&d.Logout, e.Logout)
		override(&d.Me, e.Me)
		override(&d.Health, e.Health)
		override(&d.HealthDetailed, e.HealthDetailed)
		override(&d.Ready, e.Ready)
		override(&d.Live, e.Live)
		override(&d.Metrics, e.Metrics)
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// WithLogger sets the request logger.
func WithLogger(l logging.Logger) Option {
	return func(h *HTTP) { h.log = l }
}

// New creates the HTTP backend client. An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) *HTTP {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	h := &HTTP{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: DefaultEndpoints(),
		client:    &http.Client{},
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.jar != nil || h.timeout > 0 {
		// The client may belong to the caller; configure a copy.
		c := *h.client
		if h.jar != nil {
			c.Jar = h.jar
		}
		if h.timeout > 0 {
			c.Timeout = h.timeout
		}
		h.client = &c
	}
	return h
}

// BaseURL returns the API root the client talks to.
func (h *HTTP) BaseURL() string { return h.baseURL }

// UseTokenSource sets the token source after construction. The auth store is
// built on top of the client, so the two are wired in that order.
func (h *HTTP) UseTokenSource(ts TokenSource) { h.tokens = ts }

// do sends one JSON request and decodes the JSON object response.
// body may be nil; headers are merged over the defaults.
func (h *HTTP) do(ctx context.Context, method, path string, body any, headers map[string]string) (Payload, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ParseError, "encode request body", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return nil, h.networkError(err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if h.tokens != nil {
		if token := h.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	log := h.log.With("method", method, "path", path, "request_id", requestID)
	start := time.Now()

	resp, err := h.client.Do(req)
	if err != nil {
		log.Debug(ctx, "request failed", "error", err)
		return nil, h.networkError(err)
	}
	defer resp.Body.Close()

	log.Debug(ctx, "request finished", "status", resp.StatusCode, "elapsed", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp)
	}

	// Some success responses carry no body at all.
	if resp.StatusCode == http.StatusNoContent {
		return Payload{}, nil
	}

	// Numbers stay json.Number so records can be re-encoded without loss.
	var out Payload
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, &apperrors.E{
			Kind:    apperrors.ParseError,
			Message: InvalidResponseMessage,
			Status:  resp.StatusCode,
			Err:     err,
		}
	}
	if out == nil {
		out = Payload{}
	}
	return out, nil
}

func (h *HTTP) networkError(err error) *apperrors.E {
	return &apperrors.E{
		Kind:    apperrors.NetworkError,
		Message: NetworkErrorMessage,
		Status:  apperrors.StatusNetworkError,
		Err:     err,
	}
}

// responseError builds the error for a non-success response. The message is
// taken from the body's detail, then the reason phrase, then a fixed fallback.
func responseError(resp *http.Response) *apperrors.E {
	var body map[string]any
	if b, err := io.ReadAll(resp.Body); err == nil {
		if json.Unmarshal(b, &body) != nil {
			body = nil
		}
	}

	detail := detailText(body["detail"])
	msg := detail
	if msg == "" {
		msg = reasonPhrase(resp)
	}
	if msg == "" {
		msg = FallbackErrorMessage
	}
	return &apperrors.E{
		Kind:    apperrors.APIError,
		Message: msg,
		Detail:  detail,
		Status:  resp.StatusCode,
	}
}

// detailText renders the detail field. Validation failures send a list of
// objects rather than a string; those are kept as compact JSON.
func detailText(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// reasonPhrase extracts the text after the code in resp.Status ("404 Not Found").
func reasonPhrase(resp *http.Response) string {
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
}
