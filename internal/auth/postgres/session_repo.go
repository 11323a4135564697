// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

const sessionColumns = `id, user_id, token_hash, user_agent, ip_address, expires_at, created_at, last_seen_at`

const (
	insertSessionSQL = `INSERT INTO web_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	selectSessionByTokenSQL = `SELECT ` + sessionColumns + `
		FROM web_sessions
		WHERE token_hash = $1`
	touchSessionSQL         = `UPDATE web_sessions SET last_seen_at = $2 WHERE id = $1`
	deleteSessionSQL        = `DELETE FROM web_sessions WHERE id = $1`
	deleteUserSessionsSQL   = `DELETE FROM web_sessions WHERE user_id = $1`
	deleteExpiredSessionSQL = `DELETE FROM web_sessions WHERE expires_at < $1`
)

// WebSessionRepository stores web sessions in the web_sessions table. Rows
// cascade away with their user.
type WebSessionRepository struct {
	pool poolIface
	now  func() time.Time
}

// NewWebSessionRepository creates a WebSessionRepository over pool.
func NewWebSessionRepository(pool poolIface) *WebSessionRepository {
	return &WebSessionRepository{pool: pool, now: time.Now}
}

// Create inserts session. A nil UserID is stored as NULL.
func (r *WebSessionRepository) Create(ctx context.Context, session *auth.WebSession) error {
	_, err := r.pool.Exec(ctx, insertSessionSQL,
		session.ID.String(),
		session.UserID,
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.CreatedAt,
		session.LastSeenAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert web session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash returns the session whose token hashes to tokenHash.
func (r *WebSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.WebSession, error) {
	session, err := scanSession(r.pool.QueryRow(ctx, selectSessionByTokenSQL, tokenHash))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	case err != nil:
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get web session by token hash").
			Wrap(err)
	}
	return session, nil
}

// UpdateLastSeen records activity on session id.
func (r *WebSessionRepository) UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error {
	return r.execOne(ctx, "SESSION_UPDATE_FAILED", "touch web session", id, touchSessionSQL, id.String(), lastSeen)
}

// Delete removes session id.
func (r *WebSessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return r.execOne(ctx, "SESSION_DELETE_FAILED", "delete web session", id, deleteSessionSQL, id.String())
}

// DeleteByUser removes every session signed in as userID. Zero rows is fine.
func (r *WebSessionRepository) DeleteByUser(ctx context.Context, userID int64) error {
	if _, err := r.pool.Exec(ctx, deleteUserSessionsSQL, userID); err != nil {
		return oops.Code("SESSION_DELETE_BY_USER_FAILED").
			With("operation", "delete web sessions by user").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and reports how many.
func (r *WebSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteExpiredSessionSQL, r.now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired web sessions").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// execOne runs a statement that must touch exactly the session id.
func (r *WebSessionRepository) execOne(ctx context.Context, code, op string, id ulid.ULID, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code(code).
			With("operation", op).
			With("session_id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanSession reads one row in sessionColumns order. pgx.ErrNoRows passes
// through unwrapped.
func scanSession(row rowScanner) (*auth.WebSession, error) {
	var (
		rawID string
		s     auth.WebSession
	)
	if err := row.Scan(&rawID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IPAddress,
		&s.ExpiresAt, &s.CreatedAt, &s.LastSeenAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers add context
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").With("operation", "scan web session").Wrap(err)
	}

	id, err := ulid.Parse(rawID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", rawID).Wrap(err)
	}
	s.ID = id
	return &s, nil
}

var _ auth.WebSessionRepository = (*WebSessionRepository)(nil)
