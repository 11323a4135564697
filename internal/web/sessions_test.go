// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/memory"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/pkg/errutil"
)

func newTestManager(t *testing.T, repo auth.WebSessionRepository) *SessionManager {
	t.Helper()
	m, err := NewSessionManager(repo, SessionOptions{CookieName: testCookie, TTL: time.Hour, Secure: true},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return m
}

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:51234"
	r.Header.Set("User-Agent", "test-agent")
	if token != "" {
		r.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	}
	return r
}

func TestNewSessionManager_Validation(t *testing.T) {
	repo := memory.NewWebSessionRepository()

	_, err := NewSessionManager(nil, SessionOptions{CookieName: "c", TTL: time.Hour}, nil)
	errutil.AssertErrorCode(t, err, "WEB_INVALID_CONFIG")

	_, err = NewSessionManager(repo, SessionOptions{TTL: time.Hour}, nil)
	errutil.AssertErrorCode(t, err, "WEB_INVALID_CONFIG")

	_, err = NewSessionManager(repo, SessionOptions{CookieName: "c"}, nil)
	errutil.AssertErrorCode(t, err, "WEB_INVALID_CONFIG")
}

func TestSessionManager_RotateAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewWebSessionRepository()
	m := newTestManager(t, repo)

	rec := httptest.NewRecorder()
	session, err := m.Rotate(ctx, rec, requestWithToken(""), nil, func(s auth.Session) { s.SetCurrentUserID(42) })
	require.NoError(t, err)

	assert.Equal(t, "test-agent", session.UserAgent)
	assert.Equal(t, "192.0.2.7", session.IPAddress)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.NotEqual(t, session.TokenHash, cookie.Value, "cookie carries the token, not its hash")

	loaded, err := m.Load(ctx, requestWithToken(cookie.Value))
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, session.ID, loaded.ID)
	uid, ok := loaded.CurrentUserID()
	require.True(t, ok)
	assert.Equal(t, int64(42), uid)

	// Rotating drops the previous record.
	rotated, err := m.Rotate(ctx, httptest.NewRecorder(), requestWithToken(cookie.Value), loaded, nil)
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, rotated.ID)
	gone, err := m.Load(ctx, requestWithToken(cookie.Value))
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSessionManager_LoadWithoutCookie(t *testing.T) {
	m := newTestManager(t, memory.NewWebSessionRepository())
	session, err := m.Load(context.Background(), requestWithToken(""))
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSessionManager_ExpiredSessionIsDropped(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewWebSessionRepository()
	m := newTestManager(t, repo)

	rec := httptest.NewRecorder()
	session, err := m.Rotate(ctx, rec, requestWithToken(""), nil, nil)
	require.NoError(t, err)
	token := rec.Result().Cookies()[0].Value

	m.now = func() time.Time { return session.ExpiresAt.Add(time.Second) }

	loaded, err := m.Load(ctx, requestWithToken(token))
	require.NoError(t, err)
	assert.Nil(t, loaded)

	_, err = repo.GetByTokenHash(ctx, auth.HashSessionToken(token))
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSessionManager_LoadTouchesLastSeen(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewWebSessionRepository()
	m := newTestManager(t, repo)

	rec := httptest.NewRecorder()
	session, err := m.Rotate(ctx, rec, requestWithToken(""), nil, nil)
	require.NoError(t, err)
	token := rec.Result().Cookies()[0].Value

	later := session.LastSeenAt.Add(5 * time.Minute)
	m.now = func() time.Time { return later }

	loaded, err := m.Load(ctx, requestWithToken(token))
	require.NoError(t, err)
	assert.True(t, later.Equal(loaded.LastSeenAt))

	stored, err := repo.GetByTokenHash(ctx, auth.HashSessionToken(token))
	require.NoError(t, err)
	assert.True(t, later.Equal(stored.LastSeenAt))
}

func TestSessionManager_Destroy(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, memory.NewWebSessionRepository())

	rec := httptest.NewRecorder()
	require.NoError(t, m.Destroy(ctx, rec, nil))
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Negative(t, rec.Result().Cookies()[0].MaxAge)
}

func TestSessionManager_RunSweeper(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	repo := memory.NewWebSessionRepository()
	m := newTestManager(t, repo)

	expired, err := auth.NewWebSession("expired-hash", "", "", time.Now().Add(time.Hour))
	require.NoError(t, err)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Create(ctx, expired))

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.RunSweeper(ctx, 5*time.Millisecond, metrics)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.SessionsSwept) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
