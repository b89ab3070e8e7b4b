// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"context"
	"encoding/json"
	"sync"

	"keygate/cli/internal/backend"
	apperrors "keygate/cli/internal/errors"
	"keygate/cli/internal/logging"
)

// Fallback messages surfaced when a failure carries no message of its own.
const (
	RegisterFailedMessage = "Registration failed"
	LoginFailedMessage    = "Login failed"
)

// anyGeneration lets an update apply regardless of in-flight operations.
const anyGeneration = 0

// Store owns one authentication State cell.
//
// Every operation takes a generation number when it starts. When it finishes,
// its result is applied only if no other operation started in the meantime;
// otherwise the result is dropped. The latest-started operation wins.
type Store struct {
	api     backend.API
	storage Storage
	nav     Navigator
	log     logging.Logger
	landing string
	entry   string

	mu      sync.Mutex
	state   State
	gen     uint64
	subs    []subscriber
	nextSub uint64

	// notifyMu keeps subscriber callbacks in mutation order.
	notifyMu sync.Mutex
}

type subscriber struct {
	id uint64
	fn func(State)
}

// Option configures a Store.
type Option func(*Store)

// WithStorage sets durable storage. The default persists nothing.
func WithStorage(st Storage) Option {
	return func(s *Store) { s.storage = st }
}

// WithNavigator sets the navigator used after login, register and logout.
func WithNavigator(n Navigator) Option {
	return func(s *Store) { s.nav = n }
}

// WithLogger sets the store logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithRoutes sets the authenticated landing route and the unauthenticated
// entry route. Empty values keep the defaults.
func WithRoutes(landing, entry string) Option {
	return func(s *Store) {
		if landing != "" {
			s.landing = landing
		}
		if entry != "" {
			s.entry = entry
		}
	}
}

// NewStore creates a Store and rehydrates it from storage.
func NewStore(api backend.API, opts ...Option) *Store {
	s := &Store{
		api:     api,
		storage: NopStorage{},
		nav:     NopNavigator{},
		log:     logging.Discard(),
		landing: DefaultLandingRoute,
		entry:   DefaultEntryRoute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rehydrate(context.Background())
	return s
}

// rehydrate restores a persisted session. A user value that is not valid JSON,
// or is JSON null, purges both entries; a missing entry leaves the default state.
func (s *Store) rehydrate(ctx context.Context) {
	rawUser, uerr := s.storage.Get(KeyUser)
	token, terr := s.storage.Get(KeyToken)
	if uerr != nil || terr != nil || rawUser == "" || token == "" {
		return
	}

	user, err := ParseUser([]byte(rawUser))
	if err != nil {
		s.log.Warn(ctx, "discarding unreadable stored session", "error", err)
		s.purge(ctx)
		return
	}
	s.state = authenticated(user, token)
	s.log.Debug(ctx, "session restored", "email", user.Email)
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Token returns the bearer token of an authenticated session, or "".
// It satisfies backend.TokenSource.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsAuthenticated {
		return ""
	}
	return s.state.Token
}

// Subscribe registers fn, calls it with the current state, then on every
// change. Callbacks run synchronously in mutation order and must not mutate
// the store. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	snap := s.state.clone()
	s.notifyMu.Lock()
	s.mu.Unlock()
	fn(snap)
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// update applies fn to the state when gen is still current (or anyGeneration)
// and notifies subscribers. It reports whether fn was applied.
func (s *Store) update(gen uint64, fn func(st *State)) bool {
	s.mu.Lock()
	if gen != anyGeneration && gen != s.gen {
		s.mu.Unlock()
		return false
	}
	fn(&s.state)
	snap := s.state.clone()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
	return true
}

// begin starts a new generation. With loading set it also enters the loading
// state and clears any error, keeping the other fields.
func (s *Store) begin(loading bool) uint64 {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if loading {
		s.update(gen, func(st *State) {
			st.IsLoading = true
			st.Error = ""
		})
	}
	return gen
}

// Register creates an account and signs in. It reports success; on failure
// the message is available in State.Error.
func (s *Store) Register(ctx context.Context, email, password string) bool {
	return s.authenticate(ctx, "register", RegisterFailedMessage, func(ctx context.Context) (backend.Payload, error) {
		return s.api.Register(ctx, email, password)
	})
}

// Login signs in. It reports success; on failure the message is available in
// State.Error.
func (s *Store) Login(ctx context.Context, email, password string) bool {
	return s.authenticate(ctx, "login", LoginFailedMessage, func(ctx context.Context) (backend.Payload, error) {
		return s.api.Login(ctx, email, password)
	})
}

func (s *Store) authenticate(ctx context.Context, op, fallback string, call func(context.Context) (backend.Payload, error)) bool {
	log := s.log.With("op", op)
	gen := s.begin(true)

	resp, err := call(ctx)
	var (
		user  User
		token string
	)
	if err == nil {
		user, token, err = sessionFrom(resp)
	}

	if err != nil {
		msg := fallback
		if e, ok := apperrors.As(err); ok && e.Message != "" && e.Kind != apperrors.ParseError {
			msg = e.Message
		}
		applied := s.update(gen, func(st *State) {
			s.purge(ctx)
			*st = State{Error: msg}
		})
		log.Warn(ctx, "authentication failed", "error", err, "status", apperrors.StatusOf(err), "applied", applied)
		return false
	}

	if !s.update(gen, func(st *State) {
		s.persist(ctx, &user, token)
		*st = authenticated(user, token)
	}) {
		log.Debug(ctx, "discarding superseded result")
		return false
	}

	log.Info(ctx, "authenticated", "email", user.Email)
	s.navigate(ctx, s.landing)
	return true
}

// Logout ends the session. The backend call is best-effort: its failure is
// logged and local state is cleared regardless.
func (s *Store) Logout(ctx context.Context) {
	gen := s.begin(false)

	if _, err := s.api.Logout(ctx); err != nil {
		s.log.Error(ctx, "logout request failed", "error", err)
	}

	if !s.update(gen, func(st *State) {
		s.purge(ctx)
		*st = State{}
	}) {
		s.log.Debug(ctx, "discarding superseded logout")
		return
	}
	s.navigate(ctx, s.entry)
}

// FetchCurrentUser revalidates the session against the backend. Success
// refreshes the user and keeps the token; any failure resets to the
// unauthenticated state without recording an error.
func (s *Store) FetchCurrentUser(ctx context.Context) {
	gen := s.begin(true)

	resp, err := s.api.GetCurrentUser(ctx)
	var user User
	if err == nil {
		user, err = decodeUser(map[string]any(resp))
	}

	if err != nil {
		s.update(gen, func(st *State) {
			s.purge(ctx)
			*st = State{}
		})
		s.log.Debug(ctx, "session is not valid", "error", err, "status", apperrors.StatusOf(err))
		return
	}

	s.update(gen, func(st *State) {
		token := st.Token
		if token == "" {
			// Cookie session with nothing stored locally.
			token = SessionToken
			s.persist(ctx, &user, token)
		} else {
			s.persist(ctx, &user, "")
		}
		st.User = &user
		st.Token = token
		st.IsAuthenticated = true
		st.IsLoading = false
		st.Error = ""
	})
}

// ClearError clears the error message only.
func (s *Store) ClearError() {
	s.update(anyGeneration, func(st *State) {
		st.Error = ""
	})
}

// persist writes the user and, when non-empty, the token. Storage failures are
// logged; the in-memory state stays authoritative.
func (s *Store) persist(ctx context.Context, user *User, token string) {
	b, err := user.encode()
	if err != nil {
		s.log.Error(ctx, "encode user", "error", err)
		return
	}
	if err := s.storage.Set(KeyUser, string(b)); err != nil {
		s.log.Warn(ctx, "persist user", "error", err)
	}
	if token == "" {
		return
	}
	if err := s.storage.Set(KeyToken, token); err != nil {
		s.log.Warn(ctx, "persist token", "error", err)
	}
}

func (s *Store) purge(ctx context.Context) {
	for _, k := range []string{KeyUser, KeyToken} {
		if err := s.storage.Remove(k); err != nil {
			s.log.Warn(ctx, "remove stored session", "key", k, "error", err)
		}
	}
}

func (s *Store) navigate(ctx context.Context, route string) {
	if err := s.nav.Navigate(ctx, route); err != nil {
		s.log.Warn(ctx, "navigation failed", "route", route, "error", err)
	}
}

// sessionFrom extracts {user, token?} from a login/register response.
func sessionFrom(resp backend.Payload) (User, string, error) {
	user, err := decodeUser(resp["user"])
	if err != nil {
		return User{}, "", err
	}
	token, _ := resp["token"].(string)
	if token == "" {
		token = SessionToken
	}
	return user, token, nil
}

// decodeUser serializes an untyped user value from a response. The value is
// otherwise kept as is.
func decodeUser(v any) (User, error) {
	switch rec := v.(type) {
	case nil:
		return User{}, apperrors.New(apperrors.ParseError, "response has no user")
	case map[string]any:
		if len(rec) == 0 {
			return User{}, apperrors.New(apperrors.ParseError, "empty user record")
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return User{}, apperrors.Wrap(apperrors.ParseError, "encode user record", err)
	}
	u, err := ParseUser(b)
	if err != nil {
		return User{}, apperrors.Wrap(apperrors.ParseError, "decode user record", err)
	}
	return u, nil
}
