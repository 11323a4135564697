// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/holomush/accounts/internal/auth/sqlite/migrations"
)

// Store owns the SQLite handle shared by the user and session repositories.
type Store struct {
	db       *sql.DB
	users    *UserRepository
	sessions *WebSessionRepository
}

// Open opens (creating if needed) the database at path and applies the
// bundled schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, oops.Code("SQLITE_INVALID_PATH").Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}

	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:       db,
		users:    &UserRepository{db: db},
		sessions: &WebSessionRepository{db: db},
	}, nil
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository { return s.users }

// Sessions returns the web session repository.
func (s *Store) Sessions() *WebSessionRepository { return s.sessions }

// Ping checks that the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return oops.Code("SQLITE_PING_FAILED").Wrap(err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyMigrations brings db up to the newest embedded schema version.
func applyMigrations(db *sql.DB, migrationFS fs.FS) error {
	source, err := iofs.New(migrationFS, ".")
	if err != nil {
		return oops.Code("SQLITE_MIGRATE_FAILED").With("operation", "create migration source").Wrap(err)
	}
	defer func() { _ = source.Close() }()

	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return oops.Code("SQLITE_MIGRATE_FAILED").With("operation", "create migration driver").Wrap(err)
	}

	// The migrator is not closed: closing its driver would close db.
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return oops.Code("SQLITE_MIGRATE_FAILED").With("operation", "initialize migrator").Wrap(err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("SQLITE_MIGRATE_FAILED").With("operation", "apply").Wrap(err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// toMillis normalizes timestamps to millisecond precision for storage.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
