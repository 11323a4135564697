// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/observability"
)

// Deps are the services the HTTP layer calls into.
type Deps struct {
	Auth     *auth.Service
	Users    *auth.UserService
	Identity *auth.IdentityAdapter
	Sessions *SessionManager
	Metrics  *observability.Metrics // optional
	Logger   *slog.Logger           // optional
}

func (d Deps) validate() error {
	switch {
	case d.Auth == nil:
		return oops.Code("WEB_INVALID_CONFIG").Errorf("auth service is required")
	case d.Users == nil:
		return oops.Code("WEB_INVALID_CONFIG").Errorf("user service is required")
	case d.Identity == nil:
		return oops.Code("WEB_INVALID_CONFIG").Errorf("identity adapter is required")
	case d.Sessions == nil:
		return oops.Code("WEB_INVALID_CONFIG").Errorf("session manager is required")
	}
	return nil
}

// NewHandler builds the account HTTP handler.
func NewHandler(deps Deps) (http.Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handlers{
		auth:     deps.Auth,
		users:    deps.Users,
		identity: deps.Identity,
		sessions: deps.Sessions,
		metrics:  deps.Metrics,
		logger:   logger,
	}

	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, identify(deps.Sessions, deps.Identity, logger, fn))
	}
	route("POST /auth/signup", h.signup)
	route("POST /auth/signin", h.signin)
	route("POST /auth/signout", h.signout)
	route("GET /auth/whoami", h.whoami)
	route("GET /auth", h.list)
	route("GET /auth/{id}", h.get)
	route("PATCH /auth/{id}", h.update)
	route("DELETE /auth/{id}", h.remove)

	return instrument(deps.Metrics, logger, mux), nil
}

// Server runs the account HTTP API.
type Server struct {
	addr       string
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server for handler on addr ("host:port").
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Start begins serving. The returned channel reports a serve failure and
// is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("http server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("http server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_http_server").Wrap(err)
		}
	}
	slog.Info("http server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
