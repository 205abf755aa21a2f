// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/events"
	"github.com/tomtom215/campusfeed/internal/preference"
	"github.com/tomtom215/campusfeed/internal/validation"
)

// maxBodyBytes bounds request bodies. A rank request with 1000 candidates
// carrying 100-dim embeddings fits comfortably.
const maxBodyBytes = 8 << 20

// EventPublisher is satisfied by *events.Publisher. When configured,
// default-source changes are published for the event router instead of
// being run in-process.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *events.Event) error
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Handler holds the dependencies of every API endpoint.
type Handler struct {
	updater   *preference.Updater
	ranker    *preference.Ranker
	fanout    *preference.FanOut
	publisher EventPublisher
	checks    map[string]HealthCheck
	logger    zerolog.Logger
	startTime time.Time

	// Background fan-out runs outlive their request but not the handler.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
	closeMu  sync.RWMutex
	closed   bool
}

// HandlerOption configures optional Handler dependencies.
type HandlerOption func(*Handler)

// WithFanOut enables in-process default-source fan-out.
func WithFanOut(f *preference.FanOut) HandlerOption {
	return func(h *Handler) { h.fanout = f }
}

// WithPublisher routes default-source changes through the event bus.
func WithPublisher(p EventPublisher) HandlerOption {
	return func(h *Handler) { h.publisher = p }
}

// WithHealthCheck adds a named check to /healthz.
func WithHealthCheck(name string, check HealthCheck) HandlerOption {
	return func(h *Handler) { h.checks[name] = check }
}

// NewHandler creates the API handler.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(updater *preference.Updater, ranker *preference.Ranker, logger zerolog.Logger, opts ...HandlerOption) (*Handler, error) {
	if updater == nil || ranker == nil {
		return nil, errors.New("api: updater and ranker are required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		updater:   updater,
		ranker:    ranker,
		checks:    make(map[string]HealthCheck),
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
		bgCtx:     ctx,
		bgCancel:  cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Close cancels background fan-out runs and waits for them to return.
// Jobs cut short stay pending and are finished by the resumer.
func (h *Handler) Close() {
	h.closeMu.Lock()
	h.closed = true
	h.closeMu.Unlock()

	h.bgCancel()
	h.bg.Wait()
}

// Wait blocks until background fan-out runs started so far have finished.
func (h *Handler) Wait() {
	h.bg.Wait()
}

// goBackground runs fn on the handler's context unless the handler is
// closed.
func (h *Handler) goBackground(fn func(ctx context.Context)) error {
	h.closeMu.RLock()
	defer h.closeMu.RUnlock()
	if h.closed {
		return ErrHandlerClosed
	}
	h.bg.Add(1)
	go func() {
		defer h.bg.Done()
		fn(h.bgCtx)
	}()
	return nil
}

// pathID reads and checks a user or source ID URL parameter. It writes the
// 400 response itself and reports false when the ID is unusable.
func pathID(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	id := chi.URLParam(r, param)
	if !validation.IsEntityID(id) {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid "+param, nil)
		return "", false
	}
	return id, true
}

// decodeBody decodes a size-limited JSON body into dst and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large", nil)
			return false
		}
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", nil)
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		respondValidationError(w, r, verr)
		return false
	}
	return true
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status        string            `json:"status"`
	Checks        map[string]string `json:"checks,omitempty"`
	UptimeSeconds float64           `json:"uptime_seconds"`
}

// Health runs every registered check with a short deadline. Any failure
// turns the response into a 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{
		Status:        "healthy",
		Checks:        make(map[string]string, len(names)),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondSuccess(w, r, status, resp)
}
