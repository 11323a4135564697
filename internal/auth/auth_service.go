// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/holomush/accounts/internal/auth"

// Service provides signup and signin.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger
	tracer trace.Tracer
}

// NewAuthService creates a new Service using slog.Default for logging.
func NewAuthService(users UserRepository, hasher PasswordHasher) (*Service, error) {
	return NewAuthServiceWithLogger(users, hasher, slog.Default())
}

// NewAuthServiceWithLogger creates a new Service with an explicit logger.
func NewAuthServiceWithLogger(users UserRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}
	return &Service{
		users:  users,
		hasher: hasher,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Signup registers a new user. The password is hashed only after the email
// has been confirmed free.
func (s *Service) Signup(ctx context.Context, email, password string) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Signup")
	defer span.End()

	user, err := s.signup(ctx, email, password)
	recordSpanError(span, err)
	return user, err
}

func (s *Service) signup(ctx context.Context, email, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, oops.Code(CodeSignupFailed).
			With("operation", "find users by email").
			Wrap(err)
	}
	if len(existing) > 0 {
		return nil, duplicateEmailError()
	}

	encoded, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, oops.Code(CodeSignupFailed).
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := s.users.Create(ctx, email, encoded)
	if err != nil {
		// Lost a race with a concurrent signup; the store constraint caught it.
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, duplicateEmailError()
		}
		return nil, oops.Code(CodeSignupFailed).
			With("operation", "create user").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	return user, nil
}

// Signin authenticates a user by email and password. It never writes to the
// store.
func (s *Service) Signin(ctx context.Context, email, password string) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Signin")
	defer span.End()

	user, err := s.signin(ctx, email, password)
	recordSpanError(span, err)
	return user, err
}

func (s *Service) signin(ctx context.Context, email, password string) (*User, error) {
	matches, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, oops.Code(CodeSigninFailed).
			With("operation", "find users by email").
			Wrap(err)
	}
	if len(matches) == 0 {
		return nil, oops.Code(CodeUserNotFound).Wrap(ErrUserNotFound)
	}

	user := matches[0]
	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		if errors.Is(err, ErrMalformedCredential) {
			s.logger.WarnContext(ctx, "stored credential is malformed",
				"user_id", user.ID,
				"operation", "verify password")
			return nil, invalidCredentialsError()
		}
		return nil, oops.Code(CodeSigninFailed).
			With("operation", "verify password").
			Wrap(err)
	}
	if !ok {
		return nil, invalidCredentialsError()
	}

	return user, nil
}

func duplicateEmailError() error {
	return oops.Code(CodeDuplicateEmail).Wrap(ErrDuplicateEmail)
}

func invalidCredentialsError() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}

// recordSpanError marks the span failed for server faults only; client
// faults are expected outcomes.
func recordSpanError(span trace.Span, err error) {
	if err == nil || IsClientError(err) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
