// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/observability"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 10

// Handlers serves the /auth routes.
type Handlers struct {
	auth     *auth.Service
	users    *auth.UserService
	identity *auth.IdentityAdapter
	sessions *SessionManager
	metrics  *observability.Metrics
	logger   *slog.Logger
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// userResponse is the public view of a user. The credential is never
// serialized.
type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(u *auth.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

func (h *Handlers) signup(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, "signup", http.StatusCreated, h.auth.Signup)
}

func (h *Handlers) signin(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, "signin", http.StatusOK, h.auth.Signin)
}

// authenticate runs signup or signin and binds the result to a fresh session.
func (h *Handlers) authenticate(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	status int,
	run func(ctx context.Context, email, password string) (*auth.User, error),
) {
	ctx := r.Context()

	var req credentialsRequest
	if !decode(w, r, &req) {
		h.metrics.RecordAuth(operation, observability.ResultClientError)
		return
	}

	user, err := run(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		h.metrics.RecordAuth(operation, resultOf(err))
		writeError(ctx, w, h.logger, err)
		return
	}

	if _, err := h.sessions.Rotate(ctx, w, r, sessionFrom(ctx), func(s auth.Session) {
		h.identity.Attach(s, user)
	}); err != nil {
		h.metrics.RecordAuth(operation, observability.ResultError)
		writeError(ctx, w, h.logger, err)
		return
	}

	h.metrics.RecordAuth(operation, observability.ResultSuccess)
	writeJSON(w, status, toResponse(user))
}

func (h *Handlers) signout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionFrom(ctx)
	if session != nil {
		h.identity.Clear(session)
	}
	if err := h.sessions.Destroy(ctx, w, session); err != nil {
		h.metrics.RecordAuth("signout", observability.ResultError)
		writeError(ctx, w, h.logger, err)
		return
	}
	h.metrics.RecordAuth("signout", observability.ResultSuccess)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) whoami(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "not signed in", CodeUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(user))
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := h.users.ListByEmail(ctx, strings.TrimSpace(r.URL.Query().Get("email")))
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetByID(ctx, id)
	if err != nil {
		writeError(ctx, w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(user))
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requireSelf(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Email != nil {
		trimmed := strings.TrimSpace(*req.Email)
		req.Email = &trimmed
	}
	user, err := h.users.Update(ctx, id, auth.UserUpdate{Email: req.Email, Password: req.Password})
	if err != nil {
		h.metrics.RecordAuth("update", resultOf(err))
		writeError(ctx, w, h.logger, err)
		return
	}
	h.metrics.RecordAuth("update", observability.ResultSuccess)
	writeJSON(w, http.StatusOK, toResponse(user))
}

func (h *Handlers) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requireSelf(w, r)
	if !ok {
		return
	}

	user, err := h.users.Remove(ctx, id)
	if err != nil {
		h.metrics.RecordAuth("remove", resultOf(err))
		writeError(ctx, w, h.logger, err)
		return
	}
	if err := h.sessions.DestroyUser(ctx, id); err != nil {
		h.logger.WarnContext(ctx, "failed to drop sessions of removed user",
			"user_id", id,
			"operation", "destroy user sessions",
			"error", err)
	}
	if err := h.sessions.Destroy(ctx, w, sessionFrom(ctx)); err != nil {
		h.logger.WarnContext(ctx, "failed to destroy current session",
			"user_id", id,
			"operation", "destroy session",
			"error", err)
	}

	h.metrics.RecordAuth("remove", observability.ResultSuccess)
	writeJSON(w, http.StatusOK, toResponse(user))
}

// requireSelf parses the path id and checks it is the signed-in user.
func (h *Handlers) requireSelf(w http.ResponseWriter, r *http.Request) (int64, bool) {
	current, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "not signed in", CodeUnauthenticated)
		return 0, false
	}
	id, ok := pathID(w, r)
	if !ok {
		return 0, false
	}
	if id != current.ID {
		writeProblem(w, http.StatusForbidden, "cannot modify another user", CodeForbidden)
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "invalid user id", CodeInvalidID)
		return 0, false
	}
	return id, true
}

// decode reads a JSON body into dst, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request body", CodeInvalidBody)
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "invalid request body", CodeInvalidBody)
		return false
	}
	return true
}

func resultOf(err error) string {
	if auth.IsClientError(err) {
		return observability.ResultClientError
	}
	return observability.ResultError
}
