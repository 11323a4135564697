// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"

	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// BackendOpener opens the configured storage backend.
	// Default: openBackend
	BackendOpener func(ctx context.Context, cfg config.StorageConfig) (*backend, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// OnReady is called with the bound HTTP address once serving starts.
	OnReady func(addr string)
}

// UserDeps contains injectable dependencies for the user command.
type UserDeps struct {
	// BackendOpener opens the configured storage backend.
	// Default: openBackend
	BackendOpener func(ctx context.Context, cfg config.StorageConfig) (*backend, error)

	// PasswordReader reads a password interactively.
	// Default: readTerminalPassword
	PasswordReader func(prompt io.Writer) (string, error)
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
