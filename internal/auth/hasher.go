// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/sync/semaphore"
)

// credentialSeparator splits the salt from the derived key in an encoded credential.
const credentialSeparator = "."

// ScryptParams controls the cost of the scrypt key derivation.
type ScryptParams struct {
	N       int // CPU/memory cost, power of two greater than 1
	R       int // block size
	P       int // parallelism
	KeyLen  int // derived key length in bytes
	SaltLen int // salt length in bytes
}

// DefaultScryptParams returns the parameters used for new credentials.
func DefaultScryptParams() ScryptParams {
	return ScryptParams{
		N:       1 << 15,
		R:       8,
		P:       1,
		KeyLen:  32,
		SaltLen: 16,
	}
}

// Validate checks the parameters before they reach scrypt.
func (p ScryptParams) Validate() error {
	if p.N <= 1 || p.N&(p.N-1) != 0 {
		return oops.Code("AUTH_INVALID_PARAMS").With("n", p.N).Errorf("scrypt N must be a power of two greater than 1")
	}
	if p.R <= 0 || p.P <= 0 {
		return oops.Code("AUTH_INVALID_PARAMS").With("r", p.R).With("p", p.P).Errorf("scrypt r and p must be positive")
	}
	if p.KeyLen < 16 {
		return oops.Code("AUTH_INVALID_PARAMS").With("key_len", p.KeyLen).Errorf("key length must be at least 16 bytes")
	}
	if p.SaltLen < 8 {
		return oops.Code("AUTH_INVALID_PARAMS").With("salt_len", p.SaltLen).Errorf("salt length must be at least 8 bytes")
	}
	return nil
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash derives an encoded credential from the password using a fresh salt.
	Hash(ctx context.Context, password string) (string, error)

	// Verify checks if the password matches the encoded credential.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on a
	// malformed credential.
	Verify(ctx context.Context, password, encoded string) (bool, error)
}

// ScryptHasher implements PasswordHasher using scrypt. Encoded credentials
// have the form hex(salt) + "." + hex(key).
type ScryptHasher struct {
	params ScryptParams
	sem    *semaphore.Weighted
}

// NewScryptHasher creates a ScryptHasher. At most maxConcurrent derivations
// run at once; callers beyond that wait or give up when their context ends.
func NewScryptHasher(params ScryptParams, maxConcurrent int64) (*ScryptHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if maxConcurrent <= 0 {
		return nil, oops.Code("AUTH_INVALID_PARAMS").
			With("max_concurrent", maxConcurrent).
			Errorf("max concurrent hashes must be positive")
	}
	return &ScryptHasher{
		params: params,
		sem:    semaphore.NewWeighted(maxConcurrent),
	}, nil
}

// Hash produces an encoded credential for the password.
func (h *ScryptHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", oops.Code(CodeEmptyPassword).Wrap(ErrEmptyPassword)
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	return h.Encode(ctx, password, salt)
}

// Encode derives the encoded credential for password with a caller-supplied
// salt. Hash calls it with a fresh salt.
func (h *ScryptHasher) Encode(ctx context.Context, password string, salt []byte) (string, error) {
	key, err := h.derive(ctx, password, salt)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(salt) + credentialSeparator + hex.EncodeToString(key), nil
}

// Verify checks if the password matches the encoded credential.
func (h *ScryptHasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	salt, expected, err := splitCredential(encoded)
	if err != nil {
		return false, err
	}

	computed, err := h.derive(ctx, password, salt)
	if err != nil {
		return false, err
	}

	// ConstantTimeCompare returns 0 for slices of different length.
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func (h *ScryptHasher) derive(ctx context.Context, password string, salt []byte) ([]byte, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, oops.Code("AUTH_HASH_CANCELED").Wrap(err)
	}
	defer h.sem.Release(1)

	key, err := scrypt.Key([]byte(password), salt, h.params.N, h.params.R, h.params.P, h.params.KeyLen)
	if err != nil {
		return nil, oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return key, nil
}

// splitCredential parses "salt.key" into its decoded parts.
func splitCredential(encoded string) (salt, key []byte, err error) {
	saltHex, keyHex, ok := strings.Cut(encoded, credentialSeparator)
	if !ok || saltHex == "" || keyHex == "" || strings.Contains(keyHex, credentialSeparator) {
		return nil, nil, oops.Code(CodeInvalidHash).Wrapf(ErrMalformedCredential, "invalid credential format")
	}

	// Decode errors are dropped so credential bytes never reach a message.
	salt, err = hex.DecodeString(saltHex)
	if err != nil {
		return nil, nil, oops.Code(CodeInvalidHash).With("part", "salt").Wrapf(ErrMalformedCredential, "invalid salt encoding")
	}
	key, err = hex.DecodeString(keyHex)
	if err != nil {
		return nil, nil, oops.Code(CodeInvalidHash).With("part", "key").Wrapf(ErrMalformedCredential, "invalid key encoding")
	}
	return salt, key, nil
}

var _ PasswordHasher = (*ScryptHasher)(nil)
