// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/observability"
)

// lastSeenGranularity limits how often a session's LastSeenAt is written.
const lastSeenGranularity = time.Minute

// SessionOptions configures the session cookie.
type SessionOptions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// SessionManager issues, loads and destroys cookie-backed web sessions.
// The cookie carries a random token; only its hash is stored.
type SessionManager struct {
	repo   auth.WebSessionRepository
	opts   SessionOptions
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(repo auth.WebSessionRepository, opts SessionOptions, logger *slog.Logger) (*SessionManager, error) {
	if repo == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("session repository is required")
	}
	if opts.CookieName == "" {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("cookie name is required")
	}
	if opts.TTL <= 0 {
		return nil, oops.Code("WEB_INVALID_CONFIG").With("ttl", opts.TTL).Errorf("session ttl must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{repo: repo, opts: opts, logger: logger, now: time.Now}, nil
}

// Load returns the session named by the request cookie. A missing cookie,
// an unknown token or an expired session yields (nil, nil).
func (m *SessionManager) Load(ctx context.Context, r *http.Request) (*auth.WebSession, error) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return nil, nil
	}

	session, err := m.repo.GetByTokenHash(ctx, auth.HashSessionToken(strings.TrimSpace(cookie.Value)))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("WEB_SESSION_LOAD_FAILED").Wrap(err)
	}

	now := m.now()
	if session.IsExpiredAt(now) {
		if err := m.repo.Delete(ctx, session.ID); err != nil && !errors.Is(err, auth.ErrNotFound) {
			m.logger.WarnContext(ctx, "failed to delete expired session",
				"session_id", session.ID.String(),
				"operation", "delete expired session",
				"error", err)
		}
		return nil, nil
	}

	if now.Sub(session.LastSeenAt) >= lastSeenGranularity {
		if err := m.repo.UpdateLastSeen(ctx, session.ID, now); err != nil {
			m.logger.WarnContext(ctx, "failed to update session last seen",
				"session_id", session.ID.String(),
				"operation", "update last seen",
				"error", err)
		} else {
			session.LastSeenAt = now
		}
	}
	return session, nil
}

// Rotate replaces old (which may be nil) with a fresh session, lets bind
// set its identity before it is stored, and writes the new cookie.
func (m *SessionManager) Rotate(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	old *auth.WebSession,
	bind func(auth.Session),
) (*auth.WebSession, error) {
	token, hash, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	session, err := auth.NewWebSession(hash, r.UserAgent(), clientIP(r), now.Add(m.opts.TTL))
	if err != nil {
		return nil, err
	}
	if bind != nil {
		bind(session)
	}

	if err := m.repo.Create(ctx, session); err != nil {
		return nil, oops.Code("WEB_SESSION_CREATE_FAILED").Wrap(err)
	}

	if old != nil {
		if err := m.repo.Delete(ctx, old.ID); err != nil && !errors.Is(err, auth.ErrNotFound) {
			m.logger.WarnContext(ctx, "failed to delete rotated session",
				"session_id", old.ID.String(),
				"operation", "rotate session",
				"error", err)
		}
	}

	m.writeCookie(w, token, session.ExpiresAt)
	return session, nil
}

// Destroy deletes session (if any) and expires the cookie.
func (m *SessionManager) Destroy(ctx context.Context, w http.ResponseWriter, session *auth.WebSession) error {
	m.clearCookie(w)
	if session == nil {
		return nil
	}
	if err := m.repo.Delete(ctx, session.ID); err != nil && !errors.Is(err, auth.ErrNotFound) {
		return oops.Code("WEB_SESSION_DESTROY_FAILED").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// DestroyUser deletes every session signed in as userID.
func (m *SessionManager) DestroyUser(ctx context.Context, userID int64) error {
	if err := m.repo.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("WEB_SESSION_DESTROY_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}

// Sweep removes expired sessions and returns how many were deleted.
func (m *SessionManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("WEB_SESSION_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *SessionManager) RunSweeper(ctx context.Context, interval time.Duration, metrics *observability.Metrics) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.logger.WarnContext(ctx, "session sweep failed", "operation", "sweep sessions", "error", err)
				continue
			}
			metrics.RecordSwept(n)
			if n > 0 {
				m.logger.DebugContext(ctx, "swept expired sessions", "count", n)
			}
		}
	}
}

func (m *SessionManager) writeCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(m.opts.TTL / time.Second),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *SessionManager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clientIP returns the peer address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
