// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/memory"
	"github.com/holomush/accounts/internal/auth/postgres"
	"github.com/holomush/accounts/internal/auth/sqlite"
	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/store"
)

// backend is an opened storage driver.
type backend struct {
	users    auth.UserRepository
	sessions auth.WebSessionRepository
	ready    observability.ReadinessChecker
	close    func()
}

// Close releases the backend. Safe on nil.
func (b *backend) Close() {
	if b != nil && b.close != nil {
		b.close()
	}
}

// openBackend opens the repositories selected by cfg.Driver.
func openBackend(ctx context.Context, cfg config.StorageConfig) (*backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return &backend{
			users:    memory.NewUserRepository(),
			sessions: memory.NewWebSessionRepository(),
			ready:    func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	case config.DriverSQLite:
		return openSQLite(cfg)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("key", "storage.driver").
			Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openSQLite(cfg config.StorageConfig) (*backend, error) {
	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, oops.With("operation", "open sqlite backend").Wrap(err)
	}
	return &backend{
		users:    db.Users(),
		sessions: db.Sessions(),
		ready:    db.Ping,
		close: func() {
			if err := db.Close(); err != nil {
				slog.Warn("error closing sqlite database", "error", err)
			}
		},
	}, nil
}

func openPostgres(ctx context.Context, cfg config.StorageConfig) (*backend, error) {
	if cfg.DatabaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").
			With("key", "storage.database_url").
			Errorf("database URL is required for the postgres driver")
	}

	if cfg.AutoMigrate {
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL, store.DefaultConnectOptions())
	if err != nil {
		return nil, oops.With("operation", "open postgres backend").Wrap(err)
	}
	return &backend{
		users:    postgres.NewUserRepository(pool),
		sessions: postgres.NewWebSessionRepository(pool),
		ready:    pool.Ping,
		close:    pool.Close,
	}, nil
}

func migrateUp(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	slog.Info("database migrations applied")
	return nil
}

// services are the account services built over a backend.
type services struct {
	auth     *auth.Service
	users    *auth.UserService
	identity *auth.IdentityAdapter
}

func newServices(b *backend, hasherCfg config.HasherConfig, logger *slog.Logger) (*services, error) {
	hasher, err := auth.NewScryptHasher(hasherCfg.ScryptParams(), hasherCfg.MaxConcurrent)
	if err != nil {
		return nil, oops.With("operation", "create hasher").Wrap(err)
	}
	authSvc, err := auth.NewAuthServiceWithLogger(b.users, hasher, logger)
	if err != nil {
		return nil, oops.With("operation", "create auth service").Wrap(err)
	}
	userSvc, err := auth.NewUserService(b.users, hasher, logger)
	if err != nil {
		return nil, oops.With("operation", "create user service").Wrap(err)
	}
	identity, err := auth.NewIdentityAdapter(b.users)
	if err != nil {
		return nil, oops.With("operation", "create identity adapter").Wrap(err)
	}
	return &services{auth: authSvc, users: userSvc, identity: identity}, nil
}
