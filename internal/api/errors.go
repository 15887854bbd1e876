// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/ManuGH/mvgen/internal/imagegen"
	"github.com/ManuGH/mvgen/internal/log"
	"github.com/ManuGH/mvgen/internal/pipeline"
	"github.com/ManuGH/mvgen/internal/resilience"
	"github.com/ManuGH/mvgen/internal/session"
	"github.com/ManuGH/mvgen/internal/storyboard"
)

// errorBody is the JSON error shape of every request/response endpoint.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {error, details} with the given status.
func writeError(w http.ResponseWriter, code int, msg, details string) {
	writeJSON(w, code, errorBody{Error: msg, Details: details})
}

// statusFor maps domain sentinels to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidRequest),
		errors.Is(err, storyboard.ErrInvalidInput),
		errors.Is(err, storyboard.ErrInvalidStoryboard),
		errors.Is(err, session.ErrInvalid),
		errors.Is(err, session.ErrEmptyID),
		errors.Is(err, imagegen.ErrInvalidAspectRatio):
		return http.StatusBadRequest
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// failure holds the per-route messages for respondError.
type failure struct {
	event    string
	notFound string
	failed   string
}

// respondError logs err and writes the mapped response. Client errors are
// answered with err as details; provider and store failures with the route's
// failure message.
func respondError(w http.ResponseWriter, r *http.Request, f failure, err error) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	code := statusFor(err)

	switch code {
	case http.StatusNotFound:
		logger.Info().Err(err).Str(log.FieldEvent, f.event+".not_found").Msg("session not found")
		writeError(w, code, f.notFound, "")
	case http.StatusBadRequest:
		logger.Info().Err(err).Str(log.FieldEvent, f.event+".rejected").Msg("request rejected")
		writeError(w, code, "Invalid request", err.Error())
	case http.StatusServiceUnavailable:
		var open *resilience.OpenError
		if errors.As(err, &open) && open.RetryIn > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(open.RetryIn.Seconds()))))
		}
		logger.Warn().Err(err).Str(log.FieldEvent, f.event+".unavailable").Msg("provider unavailable")
		writeError(w, code, f.failed, err.Error())
	default:
		logger.Error().Err(err).Str(log.FieldEvent, f.event+".failed").Int(log.FieldStatus, code).Msg("request failed")
		writeError(w, code, f.failed, err.Error())
	}
}
