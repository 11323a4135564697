// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

const userColumns = `id, email, password_hash, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository. pool is usually a
// *pgxpool.Pool.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a user. The users_email_key constraint turns a concurrent
// duplicate into auth.ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (*auth.User, error) {
	now := time.Now().UTC()
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, email, passwordHash, now, now).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("USER_DUPLICATE_EMAIL").Wrap(auth.ErrDuplicateEmail)
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
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
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
		ORDER BY id
	`, email)
	if err != nil {
		return nil, oops.Code("USER_FIND_BY_EMAIL_FAILED").
			With("operation", "query users by email").
			Wrap(err)
	}
	defer rows.Close()

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
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
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
		updatedAt = time.Now().UTC()
	}
	result, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $2, password_hash = $3, updated_at = $4
		WHERE id = $1
	`, user.ID, user.Email, user.PasswordHash, updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_DUPLICATE_EMAIL").With("id", user.ID).Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a user. Its web sessions go with it (ON DELETE CASCADE).
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans one user. pgx.ErrNoRows is returned unwrapped.
func scanUser(row rowScanner) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers add context
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}
	return &u, nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
