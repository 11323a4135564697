// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"net/mail"
	"time"

	"github.com/samber/oops"
)

// Credential validation constraints.
const (
	MaxEmailLength    = 254
	MaxPasswordLength = 1024
)

// User is a registered account. PasswordHash always holds an encoded
// credential produced by a PasswordHasher, never a raw password.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidateEmail checks that email is a bare RFC 5322 address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeInvalidEmail).Wrapf(ErrInvalidInput, "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeInvalidEmail).
			With("max", MaxEmailLength).
			Wrapf(ErrInvalidInput, "email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code(CodeInvalidEmail).Wrapf(ErrInvalidInput, "email must be a valid address")
	}
	return nil
}

// ValidatePassword checks the raw password before it is hashed.
func ValidatePassword(password string) error {
	if password == "" {
		return oops.Code(CodeInvalidPassword).Wrapf(ErrInvalidInput, "password cannot be empty")
	}
	if len(password) > MaxPasswordLength {
		return oops.Code(CodeInvalidPassword).
			With("max", MaxPasswordLength).
			Wrapf(ErrInvalidInput, "password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user and returns it with its assigned ID.
	// Returns ErrDuplicateEmail if the email is already registered.
	Create(ctx context.Context, email, passwordHash string) (*User, error)

	// FindByEmail returns every user with the exact email, in ID order.
	// No match is an empty slice, not an error.
	FindByEmail(ctx context.Context, email string) ([]*User, error)

	// GetByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id int64) (*User, error)

	// Update persists the email and password hash of an existing user.
	// Returns ErrNotFound or ErrDuplicateEmail.
	Update(ctx context.Context, user *User) error

	// Delete removes a user. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id int64) error
}
