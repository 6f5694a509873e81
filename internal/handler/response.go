package handler

// Response helpers shared by every handler in this package: one JSON
// writer, one error writer, one error shape.
//
// Every error response has the same two fields:
//
//	{"error": "not_found", "message": "study spot not found: spot_042"}
//
// so the frontend can parse failures uniformly regardless of status code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/studyspot-app/studyspot/internal/apperror"
)

// ErrorResponse is the standard error body returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "not_found"
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response. Headers and status must go out before
// the body — Encode writes immediately, after which header changes are
// silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it. The
// service layer knows nothing about HTTP; this is the single place the
// translation happens.
//
// Unknown errors become an opaque 500 — raw messages can carry SQL text or
// file paths and never belong in a response body.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
