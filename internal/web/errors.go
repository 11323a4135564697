// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/pkg/errutil"
)

// Response codes that are not carried by an auth error.
const (
	CodeInvalidBody     = "REQUEST_INVALID_BODY"
	CodeInvalidID       = "REQUEST_INVALID_ID"
	CodeUnauthenticated = "AUTH_UNAUTHENTICATED"
	CodeForbidden       = "AUTH_FORBIDDEN"
	CodeInternal        = "INTERNAL"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps an error to a status, a client-safe message and a code.
func classify(err error) (status int, msg, code string) {
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusBadRequest, "email in use", auth.CodeDuplicateEmail
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusBadRequest, "invalid credentials", auth.CodeInvalidCredentials
	case errors.Is(err, auth.ErrInvalidInput):
		code := errutil.Code(err)
		if code == "" {
			code = "AUTH_INVALID_INPUT"
		}
		return http.StatusBadRequest, "invalid email or password", code
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "user not found", auth.CodeUserNotFound
	default:
		return http.StatusInternalServerError, "internal error", CodeInternal
	}
}

// writeError writes err as a JSON error response. Server faults are logged;
// their details never reach the client.
func writeError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	status, msg, code := classify(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(ctx, logger, "request failed", err)
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeProblem(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(body)
}
