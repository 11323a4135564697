// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/auth"
)

// testParams keeps scrypt cheap so tests stay fast.
var testParams = auth.ScryptParams{N: 16, R: 1, P: 1, KeyLen: 32, SaltLen: 16}

func newTestHasher(t *testing.T) *auth.ScryptHasher {
	t.Helper()
	hasher, err := auth.NewScryptHasher(testParams, 4)
	require.NoError(t, err)
	return hasher
}
