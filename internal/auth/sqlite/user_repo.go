// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

const userColumns = `id, email, password_hash, created_at, updated_at`

// UserRepository implements auth.UserRepository on SQLite.
type UserRepository struct {
	db *sql.DB
}

// Create inserts a user; the unique email index reports duplicates.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (*auth.User, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, email, passwordHash, toMillis(now), toMillis(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("USER_DUPLICATE_EMAIL").Wrap(auth.ErrDuplicateEmail)
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "read inserted id").
			Wrap(err)
	}

	return &auth.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// FindByEmail returns users with the exact email in ID order.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) ([]*auth.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY id`, email)
	if err != nil {
		return nil, oops.Code("USER_FIND_BY_EMAIL_FAILED").
			With("operation", "query users by email").
			Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	users := []*auth.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_FIND_BY_EMAIL_FAILED").
			With("operation", "iterate users").
			Wrap(err)
	}
	return users, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// Update persists email and password hash.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	updatedAt := user.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET email = ?, password_hash = ?, updated_at = ?
		WHERE id = ?
	`, user.Email, user.PasswordHash, toMillis(updatedAt), user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_DUPLICATE_EMAIL").With("id", user.ID).Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID).
			Wrap(err)
	}
	return requireAffected(result, "USER_NOT_FOUND", "id", user.ID)
}

// Delete removes a user and, through the foreign key, its sessions.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id).
			Wrap(err)
	}
	return requireAffected(result, "USER_NOT_FOUND", "id", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u                    auth.User
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers add context
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

// requireAffected maps a zero-row result to auth.ErrNotFound.
func requireAffected(result sql.Result, code, key string, id any) error {
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("SQLITE_ROWS_AFFECTED_FAILED").With(key, id).Wrap(err)
	}
	if n == 0 {
		return oops.Code(code).With(key, id).Wrap(auth.ErrNotFound)
	}
	return nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
