// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/memory"
	"github.com/holomush/accounts/internal/auth/mocks"
	"github.com/holomush/accounts/pkg/errutil"
)

func newMemoryAuthService(t *testing.T) (*auth.Service, *memory.UserRepository) {
	t.Helper()
	users := memory.NewUserRepository()
	svc, err := auth.NewAuthService(users, newTestHasher(t))
	require.NoError(t, err)
	return svc, users
}

func TestNewAuthService_NilDependencies(t *testing.T) {
	tests := []struct {
		name        string
		users       auth.UserRepository
		hasher      auth.PasswordHasher
		expectError string
	}{
		{
			name:        "nil users repository",
			users:       nil,
			hasher:      mocks.NewMockPasswordHasher(t),
			expectError: "users repository is required",
		},
		{
			name:        "nil password hasher",
			users:       mocks.NewMockUserRepository(t),
			hasher:      nil,
			expectError: "password hasher is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewAuthService(tt.users, tt.hasher)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestNewAuthServiceWithLogger_NilLogger(t *testing.T) {
	svc, err := auth.NewAuthServiceWithLogger(mocks.NewMockUserRepository(t), mocks.NewMockPasswordHasher(t), nil)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "logger")
}

func TestSignupThenSignin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryAuthService(t)

	created, err := svc.Signup(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "a@x.com", created.Email)

	signedIn, err := svc.Signin(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, signedIn.ID)
	assert.Equal(t, created.Email, signedIn.Email)
}

func TestSignup_StoresEncodedCredential(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryAuthService(t)

	for i, pw := range []string{"pw", "correct horse battery staple", "p.w.with.dots"} {
		user, err := svc.Signup(ctx, fmt.Sprintf("u%d@x.com", i), pw)
		require.NoError(t, err)

		assert.NotEqual(t, pw, user.PasswordHash)
		parts := strings.Split(user.PasswordHash, ".")
		require.Len(t, parts, 2)
		assert.NotEmpty(t, parts[0])
		assert.NotEmpty(t, parts[1])
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, users := newMemoryAuthService(t)

	_, err := svc.Signup(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "a@x.com", "pw2")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	errutil.AssertErrorCode(t, err, auth.CodeDuplicateEmail)
	assert.Contains(t, err.Error(), "email in use")

	stored, err := users.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestSignup_DuplicateEmailSkipsHashing(t *testing.T) {
	ctx := context.Background()
	users := mocks.NewMockUserRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc, err := auth.NewAuthService(users, hasher)
	require.NoError(t, err)

	users.On("FindByEmail", mock.Anything, "a@x.com").Return([]*auth.User{{ID: 1, Email: "a@x.com"}}, nil)

	_, err = svc.Signup(ctx, "a@x.com", "pw")
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	hasher.AssertNotCalled(t, "Hash", mock.Anything, mock.Anything)
}

type requestKey struct{}

func TestSignin_StoreSeesCallerContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), requestKey{}, "req-1")
	users := mocks.NewMockUserRepository(t)
	svc, err := auth.NewAuthService(users, mocks.NewMockPasswordHasher(t))
	require.NoError(t, err)

	// The service hands the store a span context derived from ctx, not ctx itself.
	fromCaller := mock.MatchedBy(func(c context.Context) bool {
		return c != ctx && c.Value(requestKey{}) == "req-1"
	})
	users.On("FindByEmail", fromCaller, "a@x.com").Return([]*auth.User{}, nil)

	_, err = svc.Signin(ctx, "a@x.com", "pw")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestSignup_StoreConstraintReportedAsDuplicate(t *testing.T) {
	ctx := context.Background()
	users := mocks.NewMockUserRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc, err := auth.NewAuthService(users, hasher)
	require.NoError(t, err)

	users.On("FindByEmail", mock.Anything, "a@x.com").Return([]*auth.User{}, nil)
	hasher.On("Hash", mock.Anything, "pw").Return("aa.bb", nil)
	users.On("Create", mock.Anything, "a@x.com", "aa.bb").Return(nil, auth.ErrDuplicateEmail)

	_, err = svc.Signup(ctx, "a@x.com", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	errutil.AssertErrorCode(t, err, auth.CodeDuplicateEmail)
}

func TestSignup_InvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryAuthService(t)

	_, err := svc.Signup(ctx, "not-an-email", "pw")
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidEmail)

	_, err = svc.Signup(ctx, "a@x.com", "")
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidPassword)
}

func TestSignup_StoreFailure(t *testing.T) {
	ctx := context.Background()
	users := mocks.NewMockUserRepository(t)
	svc, err := auth.NewAuthService(users, mocks.NewMockPasswordHasher(t))
	require.NoError(t, err)

	users.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("connection reset"))

	_, err = svc.Signup(ctx, "a@x.com", "pw")
	require.Error(t, err)
	assert.False(t, auth.IsClientError(err))
	errutil.AssertErrorCode(t, err, auth.CodeSignupFailed)
	errutil.AssertErrorContext(t, err, "operation", "find users by email")
}

func TestSignin_UnknownEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryAuthService(t)

	_, err := svc.Signin(ctx, "nobody@x.com", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
	errutil.AssertErrorCode(t, err, auth.CodeUserNotFound)
}

func TestSignin_WrongPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryAuthService(t)

	_, err := svc.Signup(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = svc.Signin(ctx, "a@x.com", "pw2")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	assert.NotContains(t, err.Error(), "pw2")
}

func TestSignin_MalformedStoredCredential(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	_, err := users.Create(ctx, "a@x.com", "corrupt-without-separator")
	require.NoError(t, err)

	svc, err := auth.NewAuthService(users, newTestHasher(t))
	require.NoError(t, err)

	_, err = svc.Signin(ctx, "a@x.com", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.NotErrorIs(t, err, auth.ErrMalformedCredential)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
}

func TestSignin_VerifyFailure(t *testing.T) {
	ctx := context.Background()
	users := mocks.NewMockUserRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc, err := auth.NewAuthService(users, hasher)
	require.NoError(t, err)

	user := &auth.User{ID: 3, Email: "a@x.com", PasswordHash: "aa.bb"}
	users.On("FindByEmail", mock.Anything, "a@x.com").Return([]*auth.User{user}, nil)
	hasher.On("Verify", mock.Anything, "pw", "aa.bb").Return(false, context.DeadlineExceeded)

	_, err = svc.Signin(ctx, "a@x.com", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	errutil.AssertErrorCode(t, err, auth.CodeSigninFailed)
}

func TestSignin_TakesFirstMatch(t *testing.T) {
	ctx := context.Background()
	users := mocks.NewMockUserRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc, err := auth.NewAuthService(users, hasher)
	require.NoError(t, err)

	first := &auth.User{ID: 1, Email: "a@x.com", PasswordHash: "11.11"}
	second := &auth.User{ID: 2, Email: "a@x.com", PasswordHash: "22.22"}
	users.On("FindByEmail", mock.Anything, "a@x.com").Return([]*auth.User{first, second}, nil)
	hasher.On("Verify", mock.Anything, "pw", "11.11").Return(true, nil)

	got, err := svc.Signin(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
}

// Walks the full signup, signin, attach, clear sequence against the
// memory store.
func TestCredentialLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	svc, users := newMemoryAuthService(t)
	adapter, err := auth.NewIdentityAdapter(users)
	require.NoError(t, err)

	created, err := svc.Signup(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	_, err = svc.Signup(ctx, "a@x.com", "pw2")
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)

	signedIn, err := svc.Signin(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), signedIn.ID)

	_, err = svc.Signin(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	session := &auth.MemorySession{}
	adapter.Attach(session, signedIn)
	current, err := adapter.Resolve(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, signedIn.ID, current.ID)

	adapter.Clear(session)
	current, err = adapter.Resolve(ctx, session)
	require.NoError(t, err)
	assert.Nil(t, current)
}
