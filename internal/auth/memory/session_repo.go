// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

// WebSessionRepository keeps web sessions in a map keyed by session ID.
type WebSessionRepository struct {
	mu       sync.RWMutex
	sessions map[ulid.ULID]*auth.WebSession
	now      func() time.Time
}

// NewWebSessionRepository creates an empty WebSessionRepository.
func NewWebSessionRepository() *WebSessionRepository {
	return &WebSessionRepository{
		sessions: make(map[ulid.ULID]*auth.WebSession),
		now:      time.Now,
	}
}

// Create implements auth.WebSessionRepository.
func (r *WebSessionRepository) Create(_ context.Context, session *auth.WebSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return oops.Code("SESSION_CREATE_FAILED").
			With("session_id", session.ID.String()).
			Errorf("session already exists")
	}
	for _, s := range r.sessions {
		if s.TokenHash == session.TokenHash {
			return oops.Code("SESSION_CREATE_FAILED").Errorf("token hash already in use")
		}
	}
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

// GetByTokenHash implements auth.WebSessionRepository.
func (r *WebSessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.WebSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.TokenHash == tokenHash {
			return cloneSession(s), nil
		}
	}
	return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// UpdateLastSeen implements auth.WebSessionRepository.
func (r *WebSessionRepository) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
	}
	s.LastSeenAt = lastSeen
	return nil
}

// Delete implements auth.WebSessionRepository.
func (r *WebSessionRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return oops.Code("SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.sessions, id)
	return nil
}

// DeleteByUser implements auth.WebSessionRepository.
func (r *WebSessionRepository) DeleteByUser(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if s.UserID != nil && *s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

// DeleteExpired implements auth.WebSessionRepository.
func (r *WebSessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var removed int64
	for id, s := range r.sessions {
		if s.IsExpiredAt(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func cloneSession(s *auth.WebSession) *auth.WebSession {
	c := *s
	if s.UserID != nil {
		id := *s.UserID
		c.UserID = &id
	}
	return &c
}

var _ auth.WebSessionRepository = (*WebSessionRepository)(nil)
