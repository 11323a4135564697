// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

// WebSessionRepository implements auth.WebSessionRepository on SQLite.
type WebSessionRepository struct {
	db *sql.DB
}

// Create stores a new web session.
func (r *WebSessionRepository) Create(ctx context.Context, session *auth.WebSession) error {
	var userID sql.NullInt64
	if id, ok := session.CurrentUserID(); ok {
		userID = sql.NullInt64{Int64: id, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO web_sessions (id, user_id, token_hash, user_agent, ip_address, expires_at, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID.String(),
		userID,
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		toMillis(session.ExpiresAt),
		toMillis(session.CreatedAt),
		toMillis(session.LastSeenAt),
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert web_session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *WebSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.WebSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, user_agent, ip_address, expires_at, created_at, last_seen_at
		FROM web_sessions
		WHERE token_hash = ?
	`, tokenHash)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get web_session by token hash").
			Wrap(err)
	}
	return session, nil
}

// UpdateLastSeen updates the LastSeenAt timestamp.
func (r *WebSessionRepository) UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE web_sessions SET last_seen_at = ? WHERE id = ?`, toMillis(lastSeen), id.String())
	if err != nil {
		return oops.Code("SESSION_UPDATE_FAILED").
			With("operation", "update last_seen_at").
			With("session_id", id.String()).
			Wrap(err)
	}
	return requireAffected(result, "SESSION_NOT_FOUND", "session_id", id.String())
}

// Delete removes a session by ID.
func (r *WebSessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM web_sessions WHERE id = ?`, id.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete web_session").
			With("session_id", id.String()).
			Wrap(err)
	}
	return requireAffected(result, "SESSION_NOT_FOUND", "session_id", id.String())
}

// DeleteByUser removes every session signed in as userID.
func (r *WebSessionRepository) DeleteByUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM web_sessions WHERE user_id = ?`, userID); err != nil {
		return oops.Code("SESSION_DELETE_BY_USER_FAILED").
			With("operation", "delete web_sessions by user").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *WebSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM web_sessions WHERE expires_at < ?`, toMillis(time.Now()))
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired web_sessions").
			Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return n, nil
}

func scanSession(row rowScanner) (*auth.WebSession, error) {
	var (
		s                                auth.WebSession
		idStr                            string
		userID                           sql.NullInt64
		expiresAt, createdAt, lastSeenAt int64
	)
	err := row.Scan(&idStr, &userID, &s.TokenHash, &s.UserAgent, &s.IPAddress, &expiresAt, &createdAt, &lastSeenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers add context
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan web_session").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", idStr).Wrap(err)
	}
	s.ID = id
	if userID.Valid {
		s.SetCurrentUserID(userID.Int64)
	}
	s.ExpiresAt = fromMillis(expiresAt)
	s.CreatedAt = fromMillis(createdAt)
	s.LastSeenAt = fromMillis(lastSeenAt)
	return &s, nil
}

var _ auth.WebSessionRepository = (*WebSessionRepository)(nil)
