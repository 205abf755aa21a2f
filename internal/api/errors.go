// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package api

import (
	"context"
	"errors"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/campusfeed/internal/events"
	"github.com/tomtom215/campusfeed/internal/preference"
)

var (
	// ErrFanOutUnavailable is returned when neither an event publisher nor
	// a fan-out runner is configured.
	ErrFanOutUnavailable = errors.New("default source fan-out is not configured")

	// ErrHandlerClosed rejects work arriving after Close.
	ErrHandlerClosed = errors.New("api handler is closed")
)

// writeServiceError maps an engine error onto an HTTP status and error code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, preference.ErrAlreadySubscribed):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "Source is already subscribed", nil)
	case errors.Is(err, preference.ErrNotSubscribed):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Source is not subscribed", nil)
	case errors.Is(err, preference.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Preference not found", nil)
	case errors.Is(err, preference.ErrInvalidUserID):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid user ID", nil)
	case errors.Is(err, preference.ErrInvalidSourceID):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid source ID", nil)
	case errors.Is(err, preference.ErrUnknownAction):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Unknown action kind", nil)
	case errors.Is(err, preference.ErrConcurrentUpdate):
		w.Header().Set("Retry-After", "1")
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Preference is busy, retry shortly", err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		w.Header().Set("Retry-After", "15")
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Storage is temporarily unavailable", err)
	case errors.Is(err, events.ErrPublisherClosed), errors.Is(err, ErrFanOutUnavailable), errors.Is(err, ErrHandlerClosed):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service is unavailable", err)
	case errors.Is(err, context.Canceled):
		// Client went away; nobody will read the body.
		w.WriteHeader(499)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error", err)
	}
}
