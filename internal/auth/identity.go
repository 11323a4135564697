// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/oops"
)

// Session carries the authenticated user id across requests. The request
// boundary owns its storage and expiry.
type Session interface {
	// CurrentUserID returns the stored user id, if any.
	CurrentUserID() (int64, bool)
	// SetCurrentUserID stores the user id.
	SetCurrentUserID(id int64)
	// ClearCurrentUserID removes the user id.
	ClearCurrentUserID()
}

// MemorySession is a Session held in process memory.
type MemorySession struct {
	mu     sync.Mutex
	userID *int64
}

// CurrentUserID implements Session.
func (s *MemorySession) CurrentUserID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == nil {
		return 0, false
	}
	return *s.userID, true
}

// SetCurrentUserID implements Session.
func (s *MemorySession) SetCurrentUserID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = &id
}

// ClearCurrentUserID implements Session.
func (s *MemorySession) ClearCurrentUserID() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = nil
}

// IdentityAdapter maps a session's user id to and from a User record.
type IdentityAdapter struct {
	users UserRepository
}

// NewIdentityAdapter creates an IdentityAdapter.
func NewIdentityAdapter(users UserRepository) (*IdentityAdapter, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	return &IdentityAdapter{users: users}, nil
}

// Attach records user as the session's current user.
func (a *IdentityAdapter) Attach(session Session, user *User) {
	session.SetCurrentUserID(user.ID)
}

// Resolve loads the session's current user. An unauthenticated session or
// one pointing at a deleted user resolves to (nil, nil); only storage
// failures are returned as errors.
func (a *IdentityAdapter) Resolve(ctx context.Context, session Session) (*User, error) {
	if session == nil {
		return nil, nil
	}
	id, ok := session.CurrentUserID()
	if !ok {
		return nil, nil
	}

	user, err := a.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code(CodeResolveFailed).
			With("user_id", id).
			Wrap(err)
	}
	return user, nil
}

// Clear signs the session out.
func (a *IdentityAdapter) Clear(session Session) {
	session.ClearCurrentUserID()
}

type currentUserKey struct{}

// WithCurrentUser returns a context carrying user as the current user.
func WithCurrentUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, currentUserKey{}, user)
}

// CurrentUser returns the current user stored in ctx, if any.
func CurrentUser(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(currentUserKey{}).(*User)
	return user, ok && user != nil
}
