// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web exposes the account operations over HTTP/JSON with
// cookie-backed server-side sessions.
package web
