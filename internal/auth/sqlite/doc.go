// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sqlite implements the auth repositories on a single SQLite file.
// It is the storage driver for single-node deployments and local tooling;
// the schema is applied on Open.
package sqlite
