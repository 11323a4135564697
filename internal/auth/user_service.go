// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// UserUpdate holds the fields to change on a user. Nil fields are left as is.
type UserUpdate struct {
	Email    *string
	Password *string // raw password, hashed before storage
}

// UserService exposes user lookups and administrative changes.
type UserService struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users UserRepository, hasher PasswordHasher, logger *slog.Logger) (*UserService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}
	return &UserService{users: users, hasher: hasher, logger: logger}, nil
}

// ListByEmail returns all users registered with email. An empty result is
// not an error.
func (s *UserService) ListByEmail(ctx context.Context, email string) ([]*User, error) {
	users, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, oops.Code(CodeUserLookupFailed).
			With("operation", "find users by email").
			Wrap(err)
	}
	if users == nil {
		users = []*User{}
	}
	return users, nil
}

// GetByID returns the user with id or an error wrapping ErrUserNotFound.
func (s *UserService) GetByID(ctx context.Context, id int64) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, userNotFoundError(id)
		}
		return nil, oops.Code(CodeUserLookupFailed).
			With("operation", "get user by id").
			With("user_id", id).
			Wrap(err)
	}
	return user, nil
}

// Update applies changes to a user. A new password is always re-hashed.
func (s *UserService) Update(ctx context.Context, id int64, changes UserUpdate) (*User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if changes.Email != nil && *changes.Email != user.Email {
		if err := ValidateEmail(*changes.Email); err != nil {
			return nil, err
		}
		others, err := s.users.FindByEmail(ctx, *changes.Email)
		if err != nil {
			return nil, oops.Code(CodeUserUpdateFailed).
				With("operation", "find users by email").
				With("user_id", id).
				Wrap(err)
		}
		for _, other := range others {
			if other.ID != id {
				return nil, duplicateEmailError()
			}
		}
		user.Email = *changes.Email
	}

	if changes.Password != nil {
		if err := ValidatePassword(*changes.Password); err != nil {
			return nil, err
		}
		encoded, err := s.hasher.Hash(ctx, *changes.Password)
		if err != nil {
			return nil, oops.Code(CodeUserUpdateFailed).
				With("operation", "hash password").
				With("user_id", id).
				Wrap(err)
		}
		user.PasswordHash = encoded
	}

	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return nil, duplicateEmailError()
		case errors.Is(err, ErrNotFound):
			return nil, userNotFoundError(id)
		}
		return nil, oops.Code(CodeUserUpdateFailed).
			With("operation", "update user").
			With("user_id", id).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user updated",
		"user_id", id,
		"email_changed", changes.Email != nil,
		"password_changed", changes.Password != nil)
	return user, nil
}

// Remove deletes a user and returns the removed record.
func (s *UserService) Remove(ctx context.Context, id int64) (*User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, userNotFoundError(id)
		}
		return nil, oops.Code(CodeUserRemoveFailed).
			With("operation", "delete user").
			With("user_id", id).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user removed", "user_id", id)
	return user, nil
}

func userNotFoundError(id int64) error {
	return oops.Code(CodeUserNotFound).With("user_id", id).Wrap(ErrUserNotFound)
}
