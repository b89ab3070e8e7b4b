// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keygate/cli/internal/backend"
	apperrors "keygate/cli/internal/errors"
)

// ---- fakes ----

type result struct {
	payload backend.Payload
	err     error
}

// fakeAPI returns canned results. When gate is set, calls block until a
// value is received from it.
type fakeAPI struct {
	mu sync.Mutex

	register result
	login    result
	logout   result
	me       result

	gate        map[string]chan result
	logoutCalls int
}

func (f *fakeAPI) call(op string, r result) (backend.Payload, error) {
	f.mu.Lock()
	ch := f.gate[op]
	f.mu.Unlock()
	if ch != nil {
		r = <-ch
	}
	return r.payload, r.err
}

func (f *fakeAPI) Register(ctx context.Context, email, password string) (backend.Payload, error) {
	return f.call("register", f.register)
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (backend.Payload, error) {
	return f.call("login", f.login)
}

func (f *fakeAPI) Logout(ctx context.Context) (backend.Payload, error) {
	f.mu.Lock()
	f.logoutCalls++
	f.mu.Unlock()
	return f.call("logout", f.logout)
}

func (f *fakeAPI) GetCurrentUser(ctx context.Context) (backend.Payload, error) {
	return f.call("me", f.me)
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
	err    error
}

func (n *recordingNavigator) Navigate(ctx context.Context, route string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
	return n.err
}

func (n *recordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

func userPayload(id any, email string) map[string]any {
	return map[string]any{"id": id, "email": email, "created_at": "2025-01-01T00:00:00", "is_active": true}
}

func apiErr(status int, msg string) error {
	return &apperrors.E{Kind: apperrors.APIError, Message: msg, Detail: msg, Status: status}
}

func storedUser(t *testing.T, st *MemoryStorage) User {
	t.Helper()
	raw, err := st.Get(KeyUser)
	require.NoError(t, err)
	var u User
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	return u
}

func assertInvariant(t *testing.T, s State) {
	t.Helper()
	assert.Equal(t, s.User != nil && s.Token != "", s.IsAuthenticated, "IsAuthenticated must mirror user+token presence")
}

// ---- rehydration ----

func TestNewStore_DefaultsWithoutStoredSession(t *testing.T) {
	s := NewStore(&fakeAPI{})
	assert.Equal(t, State{}, s.Snapshot())
	assert.Empty(t, s.Token())
}

func TestNewStore_RehydratesStoredSession(t *testing.T) {
	st := NewMemoryStorage(map[string]string{
		KeyUser:  `{"id":7,"email":"a@b.c","created_at":"2025-01-01T00:00:00","is_active":true}`,
		KeyToken: "tok",
	})

	s := NewStore(&fakeAPI{}, WithStorage(st))

	snap := s.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, UserID("7"), snap.User.ID)
	assert.Equal(t, "a@b.c", snap.User.Email)
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.Error)
	assert.Equal(t, "tok", s.Token())
}

func TestNewStore_InvalidStoredUserIsPurged(t *testing.T) {
	st := NewMemoryStorage(map[string]string{KeyUser: `{not json`, KeyToken: "tok"})

	s := NewStore(&fakeAPI{}, WithStorage(st))

	assert.Equal(t, State{}, s.Snapshot())
	assert.Empty(t, st.Snapshot())
}

func TestNewStore_NullStoredUserIsPurged(t *testing.T) {
	st := NewMemoryStorage(map[string]string{KeyUser: `null`, KeyToken: "tok"})

	s := NewStore(&fakeAPI{}, WithStorage(st))

	assert.False(t, s.Snapshot().IsAuthenticated)
	assert.Empty(t, st.Snapshot())
}

func TestNewStore_PartialSessionLeftUntouched(t *testing.T) {
	st := NewMemoryStorage(map[string]string{KeyUser: `{"id":1}`})

	s := NewStore(&fakeAPI{}, WithStorage(st))

	assert.Equal(t, State{}, s.Snapshot())
	assert.Equal(t, map[string]string{KeyUser: `{"id":1}`}, st.Snapshot())
}

func TestNewStore_KeepsValidJSONUserAsStored(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantEmail string
	}{
		{"field of unexpected type", `{"id":1,"email":"a@b.c","is_active":"yes"}`, "a@b.c"},
		{"bare string", `"alice"`, ""},
		{"id of unexpected type", `{"id":true}`, ""},
		{"extra fields and spacing", `{ "email": "x@b.c", "role": "admin", "id": 9007199254740993 }`, "x@b.c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewMemoryStorage(map[string]string{KeyUser: tt.raw, KeyToken: "tok"})

			s := NewStore(&fakeAPI{}, WithStorage(st))

			snap := s.Snapshot()
			require.True(t, snap.IsAuthenticated)
			require.NotNil(t, snap.User)
			assert.Equal(t, tt.wantEmail, snap.User.Email)
			assert.Equal(t, tt.raw, string(snap.User.Raw()))
			stored, err := st.Get(KeyUser)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, stored)
		})
	}
}

// ---- login / register ----

func TestLogin_SuccessPersistsAndNavigates(t *testing.T) {
	api := &fakeAPI{login: result{payload: backend.Payload{"user": userPayload(1, "a@b.c"), "token": "jwt"}}}
	st := NewMemoryStorage(nil)
	nav := &recordingNavigator{}
	s := NewStore(api, WithStorage(st), WithNavigator(nav))

	ok := s.Login(context.Background(), "a@b.c", "pw")
	require.True(t, ok)

	snap := s.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.Error)
	assert.Equal(t, "jwt", snap.Token)
	assertInvariant(t, snap)

	assert.Len(t, st.Snapshot(), 2)
	assert.Equal(t, "a@b.c", storedUser(t, st).Email)
	tok, _ := st.Get(KeyToken)
	assert.Equal(t, "jwt", tok)
	assert.Equal(t, []string{DefaultLandingRoute}, nav.Routes())
}

func TestLogin_PersistsUserRecordUnchanged(t *testing.T) {
	user := map[string]any{
		"id":         7,
		"email":      "a@b.c",
		"created_at": "2025-01-01T00:00:00",
		"is_active":  true,
		"role":       "admin",
	}
	api := &fakeAPI{login: result{payload: backend.Payload{"user": user, "token": "tok"}}}
	st := NewMemoryStorage(nil)
	s := NewStore(api, WithStorage(st))

	require.True(t, s.Login(context.Background(), "a@b.c", "pw"))

	want, err := json.Marshal(user)
	require.NoError(t, err)
	stored, err := st.Get(KeyUser)
	require.NoError(t, err)
	assert.Equal(t, string(want), stored)
	assert.Contains(t, stored, `"id":7`)
	assert.Contains(t, stored, `"role":"admin"`)
	assert.Equal(t, string(want), string(s.Snapshot().User.Raw()))

	reopened := NewStore(&fakeAPI{}, WithStorage(st))
	assert.Equal(t, stored, string(reopened.Snapshot().User.Raw()))
	assert.Equal(t, UserID("7"), reopened.Snapshot().User.ID)
}

func TestLogin_PreservesLargeIntegerIDs(t *testing.T) {
	user := map[string]any{"id": json.Number("9007199254740993"), "email": "a@b.c"}
	api := &fakeAPI{login: result{payload: backend.Payload{"user": user}}}
	st := NewMemoryStorage(nil)
	s := NewStore(api, WithStorage(st))

	require.True(t, s.Login(context.Background(), "a@b.c", "pw"))

	stored, _ := st.Get(KeyUser)
	assert.JSONEq(t, `{"id":9007199254740993,"email":"a@b.c"}`, stored)
	assert.Contains(t, stored, "9007199254740993")
}

func TestLogin_MissingTokenFallsBackToSession(t *testing.T) {
	api := &fakeAPI{login: result{payload: backend.Payload{"user": userPayload("u-1", "a@b.c")}}}
	st := NewMemoryStorage(nil)
	s := NewStore(api, WithStorage(st))

	require.True(t, s.Login(context.Background(), "a@b.c", "pw"))

	tok, err := st.Get(KeyToken)
	require.NoError(t, err)
	assert.Equal(t, SessionToken, tok)
	assert.True(t, s.Snapshot().IsAuthenticated)
	assert.Equal(t, UserID("u-1"), s.Snapshot().User.ID)
}

func TestRegister_SuccessUsesCustomRoutes(t *testing.T) {
	api := &fakeAPI{register: result{payload: backend.Payload{"user": userPayload(2, "n@b.c")}}}
	nav := &recordingNavigator{}
	s := NewStore(api, WithNavigator(nav), WithRoutes("/home", ""))

	require.True(t, s.Register(context.Background(), "n@b.c", "pw"))
	assert.Equal(t, []string{"/home"}, nav.Routes())
}

func TestLogin_FailureSurfacesMessage(t *testing.T) {
	api := &fakeAPI{login: result{err: apiErr(401, "Invalid email or password")}}
	nav := &recordingNavigator{}
	s := NewStore(api, WithNavigator(nav))

	ok := s.Login(context.Background(), "a@b.c", "bad")
	require.False(t, ok)

	snap := s.Snapshot()
	assert.Equal(t, "Invalid email or password", snap.Error)
	assert.False(t, snap.IsLoading)
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, nav.Routes())
}

func TestLogin_FailureFallbackMessages(t *testing.T) {
	tests := []struct {
		name string
		run  func(s *Store) bool
		api  *fakeAPI
		want string
	}{
		{
			name: "register without message",
			api:  &fakeAPI{register: result{err: &apperrors.E{Kind: apperrors.APIError, Status: 500}}},
			run:  func(s *Store) bool { return s.Register(context.Background(), "a@b.c", "pw") },
			want: RegisterFailedMessage,
		},
		{
			name: "login with foreign error",
			api:  &fakeAPI{login: result{err: errors.New("boom")}},
			run:  func(s *Store) bool { return s.Login(context.Background(), "a@b.c", "pw") },
			want: LoginFailedMessage,
		},
		{
			name: "login response without user",
			api:  &fakeAPI{login: result{payload: backend.Payload{"message": "ok"}}},
			run:  func(s *Store) bool { return s.Login(context.Background(), "a@b.c", "pw") },
			want: LoginFailedMessage,
		},
		{
			name: "network failure keeps its message",
			api:  &fakeAPI{login: result{err: &apperrors.E{Kind: apperrors.NetworkError, Message: backend.NetworkErrorMessage}}},
			run:  func(s *Store) bool { return s.Login(context.Background(), "a@b.c", "pw") },
			want: backend.NetworkErrorMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(tt.api)
			require.False(t, tt.run(s))
			assert.Equal(t, tt.want, s.Snapshot().Error)
		})
	}
}

func TestLogin_FailureAfterSessionLeavesNoStaleAuthentication(t *testing.T) {
	st := NewMemoryStorage(map[string]string{KeyUser: `{"id":1,"email":"old@b.c"}`, KeyToken: "old"})
	api := &fakeAPI{login: result{err: apiErr(401, "Invalid email or password")}}
	s := NewStore(api, WithStorage(st))
	require.True(t, s.Snapshot().IsAuthenticated)

	require.False(t, s.Login(context.Background(), "new@b.c", "bad"))

	snap := s.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
	assert.Equal(t, "Invalid email or password", snap.Error)
	assertInvariant(t, snap)
	assert.Empty(t, st.Snapshot())
}

func TestLogin_LoadingTransitionsAreObserved(t *testing.T) {
	api := &fakeAPI{login: result{payload: backend.Payload{"user": userPayload(1, "a@b.c"), "token": "t"}}}
	s := NewStore(api)

	var seen []State
	unsubscribe := s.Subscribe(func(st State) { seen = append(seen, st) })
	defer unsubscribe()

	require.True(t, s.Login(context.Background(), "a@b.c", "pw"))

	require.Len(t, seen, 3)
	assert.Equal(t, State{}, seen[0])
	assert.True(t, seen[1].IsLoading)
	assert.False(t, seen[2].IsLoading)
	assert.True(t, seen[2].IsAuthenticated)
}

// ---- logout ----

func TestLogout_ClearsEverything(t *testing.T) {
	st := NewMemoryStorage(map[string]string{KeyUser: `{"id":1}`, KeyToken: "tok"})
	nav := &recordingNavigator{}
	api := &fakeAPI{}
	s := NewStore(api, WithStorage(st), WithNavigator(nav))

	s.Logout(context.Background())

	assert.Equal(t, State{}, s.Snapshot())
	assert.Empty(t, st.Snapshot())
	assert.Equal(t, []string{DefaultEntryRoute}, nav.Routes())
	assert.Equal(t, 1, api.logoutCalls)
}

func TestLogout_BackendFailureIsNotSurfaced(t *testing.T) {
	st := NewMemoryStorage(map[string]string{KeyUser: `{"id":1}`, KeyToken: "tok"})
	api := &fakeAPI{logout: result{err: &apperrors.E{Kind: apperrors.NetworkError, Message: backend.NetworkErrorMessage}}}
	s := NewStore(api, WithStorage(st))

	s.Logout(context.Background())

	snap := s.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, snap.Error)
	assert.Empty(t, st.Snapshot())
}

func TestLogout_NavigationFailureIsTolerated(t *testing.T) {
	nav := &recordingNavigator{err: errors.New("no browser")}
	s := NewStore(&fakeAPI{}, WithNavigator(nav))

	s.Logout(context.Background())
	assert.Equal(t, []string{DefaultEntryRoute}, nav.Routes())
}

// ---- fetch current user ----

func TestFetchCurrentUser_SuccessKeepsToken(t *testing.T) {
	st := NewMemoryStorage(map[string]string{KeyUser: `{"id":1,"email":"old@b.c"}`, KeyToken: "tok"})
	api := &fakeAPI{me: result{payload: backend.Payload(userPayload(1, "new@b.c"))}}
	s := NewStore(api, WithStorage(st))

	s.FetchCurrentUser(context.Background())

	snap := s.Snapshot()
	assert.Equal(t, "new@b.c", snap.User.Email)
	assert.Equal(t, "tok", snap.Token)
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, "new@b.c", storedUser(t, st).Email)
	tok, _ := st.Get(KeyToken)
	assert.Equal(t, "tok", tok)
}

func TestFetchCurrentUser_PersistsResponseRecord(t *testing.T) {
	st := NewMemoryStorage(map[string]string{KeyUser: `{"id":1}`, KeyToken: "tok"})
	me := backend.Payload{"id": json.Number("1"), "email": "a@b.c", "plan": "pro"}
	s := NewStore(&fakeAPI{me: result{payload: me}}, WithStorage(st))

	s.FetchCurrentUser(context.Background())

	want, err := json.Marshal(me)
	require.NoError(t, err)
	stored, _ := st.Get(KeyUser)
	assert.Equal(t, string(want), stored)
	assert.Contains(t, stored, `"plan":"pro"`)
}

func TestFetchCurrentUser_CookieSessionAdoptsSessionToken(t *testing.T) {
	st := NewMemoryStorage(nil)
	api := &fakeAPI{me: result{payload: backend.Payload(userPayload(3, "c@b.c"))}}
	s := NewStore(api, WithStorage(st))

	s.FetchCurrentUser(context.Background())

	snap := s.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, SessionToken, snap.Token)
	assertInvariant(t, snap)
	tok, _ := st.Get(KeyToken)
	assert.Equal(t, SessionToken, tok)
}

func TestFetchCurrentUser_FailureResetsSilently(t *testing.T) {
	st := NewMemoryStorage(map[string]string{KeyUser: `{"id":1}`, KeyToken: "tok"})
	api := &fakeAPI{
		login: result{err: apiErr(401, "Invalid email or password")},
		me:    result{err: apiErr(401, "Not authenticated")},
	}
	s := NewStore(api, WithStorage(st))
	s.Login(context.Background(), "a@b.c", "bad")
	require.NotEmpty(t, s.Snapshot().Error)

	s.FetchCurrentUser(context.Background())

	snap := s.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, snap.Error)
	assert.Empty(t, st.Snapshot())
}

// ---- clear error ----

func TestClearError_TouchesOnlyError(t *testing.T) {
	st := NewMemoryStorage(map[string]string{KeyUser: `{"id":1,"email":"a@b.c"}`, KeyToken: "tok"})
	s := NewStore(&fakeAPI{}, WithStorage(st))
	s.update(anyGeneration, func(st *State) { st.Error = "boom" })
	before := s.Snapshot()

	s.ClearError()

	after := s.Snapshot()
	assert.Empty(t, after.Error)
	assert.Equal(t, before.User, after.User)
	assert.Equal(t, before.Token, after.Token)
	assert.Equal(t, before.IsAuthenticated, after.IsAuthenticated)
}

// ---- subscriptions ----

func TestSubscribe_UnsubscribeStopsNotifications(t *testing.T) {
	s := NewStore(&fakeAPI{})
	calls := 0
	unsubscribe := s.Subscribe(func(State) { calls++ })
	require.Equal(t, 1, calls)

	s.ClearError()
	require.Equal(t, 2, calls)

	unsubscribe()
	unsubscribe()
	s.ClearError()
	assert.Equal(t, 2, calls)
}

func TestSubscribe_SnapshotsAreIsolated(t *testing.T) {
	st := NewMemoryStorage(map[string]string{KeyUser: `{"id":1,"email":"a@b.c"}`, KeyToken: "tok"})
	s := NewStore(&fakeAPI{}, WithStorage(st))

	s.Subscribe(func(st State) {
		if st.User != nil {
			st.User.Email = "mutated"
		}
	})
	assert.Equal(t, "a@b.c", s.Snapshot().User.Email)
}

// ---- concurrency ----

func TestConcurrentLogins_LatestStartedWins(t *testing.T) {
	api := &fakeAPI{gate: map[string]chan result{"login": make(chan result)}}
	st := NewMemoryStorage(nil)
	s := NewStore(api, WithStorage(st))

	// Wait until each login has entered the loading state before starting the next.
	started := make(chan struct{}, 2)
	s.Subscribe(func(st State) {
		if st.IsLoading {
			started <- struct{}{}
		}
	})

	first := make(chan bool, 1)
	second := make(chan bool, 1)
	go func() { first <- s.Login(context.Background(), "first@b.c", "pw") }()
	<-started
	go func() { second <- s.Login(context.Background(), "second@b.c", "pw") }()
	<-started

	gate := api.gate["login"]
	gate <- result{payload: backend.Payload{"user": userPayload(1, "x@b.c"), "token": "t1"}}
	gate <- result{payload: backend.Payload{"user": userPayload(2, "y@b.c"), "token": "t2"}}

	assert.False(t, <-first, "superseded login must report failure")
	assert.True(t, <-second)

	snap := s.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assertInvariant(t, snap)
	assert.Equal(t, snap.User.Email, storedUser(t, st).Email)
	tok, _ := st.Get(KeyToken)
	assert.Equal(t, snap.Token, tok)
}

func TestLogout_SupersedesInFlightLogin(t *testing.T) {
	api := &fakeAPI{gate: map[string]chan result{"login": make(chan result)}}
	st := NewMemoryStorage(nil)
	nav := &recordingNavigator{}
	s := NewStore(api, WithStorage(st), WithNavigator(nav))

	loading := make(chan struct{}, 1)
	s.Subscribe(func(st State) {
		if st.IsLoading {
			loading <- struct{}{}
		}
	})

	done := make(chan bool, 1)
	go func() { done <- s.Login(context.Background(), "a@b.c", "pw") }()
	<-loading

	s.Logout(context.Background())
	api.gate["login"] <- result{payload: backend.Payload{"user": userPayload(1, "a@b.c"), "token": "t"}}

	assert.False(t, <-done)
	assert.False(t, s.Snapshot().IsAuthenticated)
	assert.Empty(t, st.Snapshot())
	assert.Equal(t, []string{DefaultEntryRoute}, nav.Routes())
}
