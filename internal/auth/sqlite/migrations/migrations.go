// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package migrations embeds the SQLite schema.
package migrations

import "embed"

// FS holds the golang-migrate NNNNNN_name.{up,down}.sql files.
//
//go:embed *.sql
var FS embed.FS
