// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store connects to PostgreSQL and manages the account schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions controls how long Connect waits for the database.
type ConnectOptions struct {
	MaxRetries   uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConnectOptions returns options suited to a database that starts
// alongside the service.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		MaxRetries:   8,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

func (o ConnectOptions) backoff() retry.Backoff {
	b := retry.NewExponential(o.InitialDelay)
	if o.MaxDelay > 0 {
		b = retry.WithCappedDuration(o.MaxDelay, b)
	}
	return retry.WithMaxRetries(o.MaxRetries, b)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pool for dsn and waits until the database answers a ping.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := waitForDatabase(ctx, pool, opts.backoff()); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForDatabase(ctx context.Context, p pinger, backoff retry.Backoff) error {
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := p.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
