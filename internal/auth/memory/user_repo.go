// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

// UserRepository keeps users in an ID-ordered slice and scans it linearly.
type UserRepository struct {
	mu     sync.RWMutex
	users  []*auth.User
	nextID int64
}

// NewUserRepository creates an empty UserRepository. IDs start at 1.
func NewUserRepository() *UserRepository {
	return &UserRepository{nextID: 1}
}

// Create implements auth.UserRepository.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOfEmail(email, 0) >= 0 {
		return nil, oops.Code("USER_DUPLICATE_EMAIL").Wrap(auth.ErrDuplicateEmail)
	}

	now := time.Now()
	user := &auth.User{
		ID:           r.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.nextID++
	r.users = append(r.users, user)

	return clone(user), nil
}

// FindByEmail implements auth.UserRepository.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) ([]*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := []*auth.User{}
	for _, u := range r.users {
		if u.Email == email {
			matches = append(matches, clone(u))
		}
	}
	return matches, nil
}

// GetByID implements auth.UserRepository.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOfID(id)
	if i < 0 {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return clone(r.users[i]), nil
}

// Update implements auth.UserRepository.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOfID(user.ID)
	if i < 0 {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID).Wrap(auth.ErrNotFound)
	}
	if r.indexOfEmail(user.Email, user.ID) >= 0 {
		return oops.Code("USER_DUPLICATE_EMAIL").With("id", user.ID).Wrap(auth.ErrDuplicateEmail)
	}

	stored := r.users[i]
	stored.Email = user.Email
	stored.PasswordHash = user.PasswordHash
	stored.UpdatedAt = user.UpdatedAt
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	return nil
}

// Delete implements auth.UserRepository.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOfID(id)
	if i < 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	r.users = append(r.users[:i], r.users[i+1:]...)
	return nil
}

// indexOfEmail returns the index of the first user with email whose ID is
// not exclude, or -1. Callers hold the lock.
func (r *UserRepository) indexOfEmail(email string, exclude int64) int {
	for i, u := range r.users {
		if u.Email == email && u.ID != exclude {
			return i
		}
	}
	return -1
}

func (r *UserRepository) indexOfID(id int64) int {
	for i, u := range r.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func clone(u *auth.User) *auth.User {
	c := *u
	return &c
}

var _ auth.UserRepository = (*UserRepository)(nil)
