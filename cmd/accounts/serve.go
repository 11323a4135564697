// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/logging"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/web"
)

const serviceName = "accounts"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account HTTP service",
		Long: `Start the HTTP service for signup, signin and account management,
together with the metrics and health server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	defaults := config.Default()
	flags := cmd.Flags()
	flags.String("http-addr", defaults.HTTP.Addr, "HTTP listen address")
	flags.String("metrics-addr", defaults.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", defaults.Log.Format, "log format (json or text)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	addStorageFlags(cmd)
	flags.Bool("auto-migrate", defaults.Storage.AutoMigrate, "apply pending postgres migrations on start")
	flags.Duration("session-ttl", defaults.Session.TTL, "lifetime of a web session")
	flags.Bool("cookie-secure", defaults.Session.CookieSecure, "mark the session cookie Secure")

	return cmd
}

// addStorageFlags registers the flags that select a storage backend.
func addStorageFlags(cmd *cobra.Command) {
	defaults := config.Default()
	cmd.Flags().String("storage-driver", defaults.Storage.Driver, "storage driver (memory, sqlite, postgres)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	cmd.Flags().String("sqlite-path", defaults.Storage.SQLitePath, "SQLite database file")
}

// loadConfig layers the config file, environment and changed flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.BackendOpener == nil {
		deps.BackendOpener = openBackend
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, level)

	logger.Info("starting accounts service",
		"http_addr", cfg.HTTP.Addr,
		"storage_driver", cfg.Storage.Driver,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b, err := deps.BackendOpener(ctx, cfg.Storage)
	if err != nil {
		return oops.With("operation", "open storage").Wrap(err)
	}
	defer b.Close()

	svc, err := newServices(b, cfg.Hasher, logger)
	if err != nil {
		return err
	}

	sessions, err := web.NewSessionManager(b.sessions, web.SessionOptions{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.CookieSecure,
	}, logger)
	if err != nil {
		return err
	}

	// Start observability server if configured
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, b.ready)
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
		metrics.SetBuildInfo(version, commit)
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	handler, err := web.NewHandler(web.Deps{
		Auth:     svc.auth,
		Users:    svc.users,
		Identity: svc.identity,
		Sessions: sessions,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		stopObservability(obsServer, cfg)
		return err
	}

	httpServer := web.NewServer(cfg.HTTP.Addr, handler)
	httpErrChan, err := httpServer.Start()
	if err != nil {
		stopObservability(obsServer, cfg)
		return oops.Code("HTTP_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, httpErrChan, "http")

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sessions.RunSweeper(ctx, cfg.Session.SweepInterval, metrics)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Accounts service started")
	logger.Info("accounts service ready", "http_addr", httpServer.Addr())
	if deps.OnReady != nil {
		deps.OnReady(httpServer.Addr())
	}

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	cancel()
	<-sweepDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func stopObservability(obsServer ObservabilityServer, cfg config.Config) {
	if obsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := obsServer.Stop(ctx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors watches a server's error channel and cancels the
// context when the server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
