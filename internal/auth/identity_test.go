// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/memory"
	"github.com/holomush/accounts/internal/auth/mocks"
	"github.com/holomush/accounts/pkg/errutil"
)

func TestNewIdentityAdapter_NilRepository(t *testing.T) {
	adapter, err := auth.NewIdentityAdapter(nil)
	require.Error(t, err)
	assert.Nil(t, adapter)
}

func TestIdentityAdapter_AttachResolveClear(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	adapter, err := auth.NewIdentityAdapter(users)
	require.NoError(t, err)

	user, err := users.Create(ctx, "a@x.com", "aa.bb")
	require.NoError(t, err)

	sessions := map[string]auth.Session{
		"memory": &auth.MemorySession{},
		"web":    &auth.WebSession{},
	}
	for name, session := range sessions {
		t.Run(name, func(t *testing.T) {
			got, err := adapter.Resolve(ctx, session)
			require.NoError(t, err)
			assert.Nil(t, got, "fresh session has no current user")

			adapter.Attach(session, user)
			id, ok := session.CurrentUserID()
			require.True(t, ok)
			assert.Equal(t, user.ID, id)

			got, err = adapter.Resolve(ctx, session)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, user.ID, got.ID)
			assert.Equal(t, user.Email, got.Email)

			adapter.Clear(session)
			got, err = adapter.Resolve(ctx, session)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestIdentityAdapter_ResolveStaleSession(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	adapter, err := auth.NewIdentityAdapter(users)
	require.NoError(t, err)

	user, err := users.Create(ctx, "a@x.com", "aa.bb")
	require.NoError(t, err)

	session := &auth.MemorySession{}
	adapter.Attach(session, user)
	require.NoError(t, users.Delete(ctx, user.ID))

	got, err := adapter.Resolve(ctx, session)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdentityAdapter_ResolveNilSession(t *testing.T) {
	adapter, err := auth.NewIdentityAdapter(memory.NewUserRepository())
	require.NoError(t, err)

	got, err := adapter.Resolve(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdentityAdapter_ResolveStorageFailure(t *testing.T) {
	ctx := context.Background()
	users := mocks.NewMockUserRepository(t)
	adapter, err := auth.NewIdentityAdapter(users)
	require.NoError(t, err)

	users.On("GetByID", ctx, int64(9)).Return(nil, errors.New("connection refused"))

	session := &auth.MemorySession{}
	session.SetCurrentUserID(9)

	got, err := adapter.Resolve(ctx, session)
	require.Error(t, err)
	assert.Nil(t, got)
	errutil.AssertErrorCode(t, err, auth.CodeResolveFailed)
	errutil.AssertErrorContext(t, err, "user_id", int64(9))
}

func TestCurrentUserContext(t *testing.T) {
	ctx := context.Background()

	_, ok := auth.CurrentUser(ctx)
	assert.False(t, ok)

	_, ok = auth.CurrentUser(auth.WithCurrentUser(ctx, nil))
	assert.False(t, ok)

	user := &auth.User{ID: 4}
	got, ok := auth.CurrentUser(auth.WithCurrentUser(ctx, user))
	require.True(t, ok)
	assert.Same(t, user, got)
}
