// Package api provides the HTTP handlers and the standard error envelope.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/patrickariel/semicolon-web-sub000/internal/auth"
	"github.com/patrickariel/semicolon-web-sub000/internal/cursor"
	"github.com/patrickariel/semicolon-web-sub000/internal/feed"
	"github.com/patrickariel/semicolon-web-sub000/internal/middleware"
	"github.com/patrickariel/semicolon-web-sub000/internal/post"
	"github.com/patrickariel/semicolon-web-sub000/internal/query"
)

// Error codes returned in the error envelope.
const (
	ErrCodeValidation         = "validation_error"
	ErrCodeInvalidCursor      = "invalid_cursor"
	ErrCodeAuthFailed         = "auth_failed"
	ErrCodePreconditionFailed = "precondition_failed"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInternal           = "internal_error"
)

// ErrorResponse is the body of every error: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the error envelope and records code for the request log.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.SetErrorCode(ctx, code)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeInvalidCursor:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodePreconditionFailed:
		return http.StatusPreconditionFailed
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// classify maps a service error to an error code. Unknown errors are internal.
func classify(err error) string {
	switch {
	case errors.Is(err, cursor.ErrInvalidCursor):
		return ErrCodeInvalidCursor
	case errors.Is(err, query.ErrInvalidPageSize),
		errors.Is(err, query.ErrInvalidFilter),
		errors.Is(err, query.ErrInvalidMode),
		errors.Is(err, post.ErrEmptyContent),
		errors.Is(err, post.ErrSelfFollow):
		return ErrCodeValidation
	case errors.Is(err, query.ErrViewerRequired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return ErrCodeAuthFailed
	case errors.Is(err, auth.ErrRegistrationIncomplete):
		return ErrCodePreconditionFailed
	case errors.Is(err, post.ErrNotAuthor):
		return ErrCodeForbidden
	case errors.Is(err, feed.ErrNotFound),
		errors.Is(err, post.ErrPostNotFound),
		errors.Is(err, post.ErrUserNotFound),
		errors.Is(err, post.ErrParentNotFound):
		return ErrCodeNotFound
	case errors.Is(err, post.ErrUsernameTaken):
		return ErrCodeConflict
	default:
		return ErrCodeInternal
	}
}

// writeServiceError writes the envelope for err. Internal errors are logged
// and their detail is not exposed.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := classify(err)
	msg := err.Error()
	if code == ErrCodeInternal {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		msg = "internal server error"
	}
	WriteError(w, r.Context(), StatusCodeMapping(code), code, msg)
}
