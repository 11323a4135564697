// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides email/password accounts and session identity.
//
// # Credentials
//
// Passwords are never stored. A PasswordHasher turns them into an encoded
// credential of the form hex(salt) + "." + hex(key); ScryptHasher is the
// implementation used in production.
//
// # Services
//
//   - Service - Signup and Signin
//   - UserService - lookups, updates and removal of existing users
//   - IdentityAdapter - Attach, Resolve and Clear of the current user on a Session
//
// Services are created with New* constructors that validate dependencies.
//
// # Errors
//
// Client faults wrap ErrDuplicateEmail, ErrUserNotFound,
// ErrInvalidCredentials or ErrInvalidInput and carry an oops code. Use
// errors.Is or IsClientError to classify them. Repositories report missing
// rows with ErrNotFound and email collisions with ErrDuplicateEmail.
package auth
