// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/pkg/errutil"
)

type sessionKey struct{}

func withSession(ctx context.Context, session *auth.WebSession) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// sessionFrom returns the request's web session, or nil.
func sessionFrom(ctx context.Context) *auth.WebSession {
	session, _ := ctx.Value(sessionKey{}).(*auth.WebSession)
	return session
}

// identify loads the session cookie and resolves the signed-in user into
// the request context. Storage failures end the request with a 500.
func identify(sessions *SessionManager, identity *auth.IdentityAdapter, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		session, err := sessions.Load(ctx, r)
		if err != nil {
			errutil.LogErrorContext(ctx, logger, "failed to load session", err)
			writeProblem(w, http.StatusInternalServerError, "internal error", CodeInternal)
			return
		}
		if session == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx = withSession(ctx, session)
		user, err := identity.Resolve(ctx, session)
		if err != nil {
			errutil.LogErrorContext(ctx, logger, "failed to resolve session user", err)
			writeProblem(w, http.StatusInternalServerError, "internal error", CodeInternal)
			return
		}
		if user != nil {
			ctx = auth.WithCurrentUser(ctx, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	//nolint:wrapcheck // ResponseWriter passthrough
	return s.ResponseWriter.Write(b)
}

// instrument wraps next in a span, counts the response and logs it at debug.
func instrument(metrics *observability.Metrics, logger *slog.Logger, next http.Handler) http.Handler {
	tracer := otel.Tracer("github.com/holomush/accounts/internal/web")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), "http.request")
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w}
		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}

		span.SetName(route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		metrics.RecordHTTP(route, status)
		logger.DebugContext(ctx, "http request",
			"route", route,
			"status", status,
			"duration", time.Since(start))
	})
}
