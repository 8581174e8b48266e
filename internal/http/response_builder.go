// Package http provides the JSON API over the ledger, forecast, goal, and
// simulation services.
//
// This file implements consistent response formatting: one JSON envelope
// for errors, typed-error to status-code mapping, and a small writer
// helper used by every handler.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"moneta/internal/core"
	"moneta/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON renders v with the given status. Encoding failures are logged,
// not surfaced: headers are already gone by then.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps the core error taxonomy onto HTTP statuses: not-found to
// 404, validation sentinels to 422, malformed requests to 400, everything
// else to 500 with a generic body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case isValidationError(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrEmptyOwner,
		core.ErrInvalidAmount,
		core.ErrInvalidKind,
		core.ErrInvalidDate,
		core.ErrEmptyCategory,
		core.ErrEmptyTitle,
		core.ErrInvalidTargetAmount,
		core.ErrPastTargetDate,
		core.ErrInvalidStatus,
		core.ErrInvalidMonthKey,
		services.ErrInvalidTrials,
		services.ErrInvalidHorizon,
		services.ErrNegativeStd,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
