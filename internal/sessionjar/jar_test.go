// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sessionjar

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestJar_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	base := "http://127.0.0.1:8000/api/v1"

	j, err := Open(path, base)
	require.NoError(t, err)
	j.SetCookies(mustURL(t, "http://127.0.0.1:8000/api/v1/login"), []*http.Cookie{
		{Name: "session_id", Value: "abc", Path: "/", MaxAge: 3600, HttpOnly: true},
	})
	require.NoError(t, j.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := Open(path, base)
	require.NoError(t, err)
	got := reopened.Cookies(mustURL(t, "http://127.0.0.1:8000/api/v1/me"))
	require.Len(t, got, 1)
	assert.Equal(t, "session_id", got[0].Name)
	assert.Equal(t, "abc", got[0].Value)
}

func TestJar_DeletedCookieIsForgotten(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	base := "http://127.0.0.1:8000/api/v1"
	u := mustURL(t, "http://127.0.0.1:8000/api/v1/logout")

	j, err := Open(path, base)
	require.NoError(t, err)
	j.SetCookies(u, []*http.Cookie{{Name: "session_id", Value: "abc", Path: "/"}})
	require.NoError(t, j.Save())
	require.Equal(t, 1, j.Len())

	j.SetCookies(u, []*http.Cookie{{Name: "session_id", Value: "", Path: "/", MaxAge: -1}})
	require.NoError(t, j.Save())
	assert.Equal(t, 0, j.Len())

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestJar_ExpiredCookiesAreNotSaved(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	j, err := Open(path, "http://127.0.0.1:8000")
	require.NoError(t, err)

	start := time.Now()
	j.now = func() time.Time { return start }
	j.SetCookies(mustURL(t, "http://127.0.0.1:8000/"), []*http.Cookie{{Name: "s", Value: "v", Path: "/", MaxAge: 1}})

	j.now = func() time.Time { return start.Add(time.Minute) }
	require.NoError(t, j.Save())

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestJar_IgnoresOtherHosts(t *testing.T) {
	j, err := Open("", "http://127.0.0.1:8000")
	require.NoError(t, err)

	j.SetCookies(mustURL(t, "http://other.example.com/"), []*http.Cookie{{Name: "x", Value: "y"}})
	assert.Equal(t, 0, j.Len())
}

func TestJar_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	j, err := Open(path, "http://127.0.0.1:8000")
	require.NoError(t, err)
	assert.Equal(t, 0, j.Len())
}

func TestJar_ClearForgetsEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	base := "http://127.0.0.1:8000/api/v1"

	j, err := Open(path, base)
	require.NoError(t, err)
	j.SetCookies(mustURL(t, "http://127.0.0.1:8000/api/v1/login"), []*http.Cookie{
		{Name: "session_id", Value: "abc", MaxAge: 3600},
		{Name: "pref", Value: "dark", Path: "/"},
	})
	require.Equal(t, 2, j.Len())

	j.Clear()

	assert.Equal(t, 0, j.Len())
	assert.Empty(t, j.Cookies(mustURL(t, "http://127.0.0.1:8000/api/v1/me")))
	require.NoError(t, j.Save())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "/", defaultPath(mustURL(t, "http://h")))
	assert.Equal(t, "/", defaultPath(mustURL(t, "http://h/login")))
	assert.Equal(t, "/api/v1", defaultPath(mustURL(t, "http://h/api/v1/login")))
}
