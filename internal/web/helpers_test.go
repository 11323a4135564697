// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/memory"
	"github.com/holomush/accounts/internal/observability"
)

const testCookie = "accounts_session"

type testEnv struct {
	handler  http.Handler
	users    *memory.UserRepository
	sessions auth.WebSessionRepository
	manager  *SessionManager
	metrics  *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithSessions(t, memory.NewWebSessionRepository())
}

func newTestEnvWithSessions(t *testing.T, sessionRepo auth.WebSessionRepository) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := memory.NewUserRepository()
	hasher, err := auth.NewScryptHasher(auth.ScryptParams{N: 16, R: 1, P: 1, KeyLen: 32, SaltLen: 16}, 4)
	require.NoError(t, err)

	authSvc, err := auth.NewAuthServiceWithLogger(users, hasher, logger)
	require.NoError(t, err)
	userSvc, err := auth.NewUserService(users, hasher, logger)
	require.NoError(t, err)
	identity, err := auth.NewIdentityAdapter(users)
	require.NoError(t, err)
	manager, err := NewSessionManager(sessionRepo, SessionOptions{
		CookieName: testCookie,
		TTL:        time.Hour,
	}, logger)
	require.NoError(t, err)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	handler, err := NewHandler(Deps{
		Auth:     authSvc,
		Users:    userSvc,
		Identity: identity,
		Sessions: manager,
		Metrics:  metrics,
		Logger:   logger,
	})
	require.NoError(t, err)

	return &testEnv{handler: handler, users: users, sessions: sessionRepo, manager: manager, metrics: metrics}
}

// do sends a request, attaching token as the session cookie when non-empty.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// signup creates an account and returns its id and session token.
func (e *testEnv) signup(t *testing.T, email, password string) (int64, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/signup", credentialsRequest{Email: email, Password: password}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	return user.ID, sessionToken(t, rec)
}

func sessionToken(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookie {
			return c.Value
		}
	}
	t.Fatalf("response set no %s cookie", testCookie)
	return ""
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
