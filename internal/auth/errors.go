// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// ErrNotFound is returned by repositories when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Sentinels surfaced by the services. Match them with errors.Is; the oops
// wrapping carries the machine-readable code.
var (
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("email in use")

	// ErrUserNotFound is returned when a user lookup by email or id misses.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidInput is returned when an email or password fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedCredential is returned when a stored credential cannot be parsed.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrEmptyPassword is returned when attempting to hash an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")
)

// Error codes attached to oops errors returned from this package.
const (
	CodeDuplicateEmail     = "AUTH_DUPLICATE_EMAIL"
	CodeUserNotFound       = "AUTH_USER_NOT_FOUND"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidEmail       = "AUTH_INVALID_EMAIL"
	CodeInvalidPassword    = "AUTH_INVALID_PASSWORD"
	CodeInvalidHash        = "AUTH_INVALID_HASH"
	CodeEmptyPassword      = "AUTH_EMPTY_PASSWORD"
	CodeSignupFailed       = "AUTH_SIGNUP_FAILED"
	CodeSigninFailed       = "AUTH_SIGNIN_FAILED"
	CodeResolveFailed      = "AUTH_RESOLVE_FAILED"
	CodeUserLookupFailed   = "USER_LOOKUP_FAILED"
	CodeUserUpdateFailed   = "USER_UPDATE_FAILED"
	CodeUserRemoveFailed   = "USER_REMOVE_FAILED"
)

// IsClientError reports whether err is a caller fault that should be
// surfaced as a 4xx-class response rather than a server failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidInput)
}
