// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides process-local implementations of the auth
// repositories. Data does not survive a restart.
package memory
