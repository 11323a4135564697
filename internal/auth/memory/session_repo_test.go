// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/memory"
)

func newSession(t *testing.T, expiresAt time.Time) *auth.WebSession {
	t.Helper()
	_, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	session, err := auth.NewWebSession(hash, "test-agent", "127.0.0.1", expiresAt)
	require.NoError(t, err)
	return session
}

func TestWebSessionRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewWebSessionRepository()

	session := newSession(t, time.Now().Add(time.Hour))
	session.SetCurrentUserID(5)
	require.NoError(t, repo.Create(ctx, session))

	t.Run("rejects duplicate id", func(t *testing.T) {
		assert.Error(t, repo.Create(ctx, session))
	})

	got, err := repo.GetByTokenHash(ctx, session.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	id, ok := got.CurrentUserID()
	require.True(t, ok)
	assert.Equal(t, int64(5), id)

	t.Run("returned copy is detached", func(t *testing.T) {
		got.ClearCurrentUserID()
		again, err := repo.GetByTokenHash(ctx, session.TokenHash)
		require.NoError(t, err)
		_, ok := again.CurrentUserID()
		assert.True(t, ok)
	})

	seen := time.Now().Add(time.Minute)
	require.NoError(t, repo.UpdateLastSeen(ctx, session.ID, seen))
	got, err = repo.GetByTokenHash(ctx, session.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, seen, got.LastSeenAt)

	require.NoError(t, repo.Delete(ctx, session.ID))
	_, err = repo.GetByTokenHash(ctx, session.TokenHash)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, session.ID), auth.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateLastSeen(ctx, ulid.Make(), seen), auth.ErrNotFound)
}

func TestWebSessionRepository_DeleteByUser(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewWebSessionRepository()

	mine := newSession(t, time.Now().Add(time.Hour))
	mine.SetCurrentUserID(1)
	theirs := newSession(t, time.Now().Add(time.Hour))
	theirs.SetCurrentUserID(2)
	anonymous := newSession(t, time.Now().Add(time.Hour))
	for _, s := range []*auth.WebSession{mine, theirs, anonymous} {
		require.NoError(t, repo.Create(ctx, s))
	}

	require.NoError(t, repo.DeleteByUser(ctx, 1))

	_, err := repo.GetByTokenHash(ctx, mine.TokenHash)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = repo.GetByTokenHash(ctx, theirs.TokenHash)
	assert.NoError(t, err)
	_, err = repo.GetByTokenHash(ctx, anonymous.TokenHash)
	assert.NoError(t, err)
}

func TestWebSessionRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewWebSessionRepository()

	expired := newSession(t, time.Now().Add(-time.Minute))
	live := newSession(t, time.Now().Add(time.Hour))
	require.NoError(t, repo.Create(ctx, expired))
	require.NoError(t, repo.Create(ctx, live))

	removed, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.GetByTokenHash(ctx, expired.TokenHash)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = repo.GetByTokenHash(ctx, live.TokenHash)
	assert.NoError(t, err)
}
