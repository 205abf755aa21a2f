// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route onto a Chi router.
func NewRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS()) // global so OPTIONS preflight reaches it
	r.Use(RequestLogger(h.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(Metrics)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(UserContext)
			r.Post("/rank", h.Rank)
			r.Get("/sources", h.CandidateSources)
			r.Post("/subscriptions/{sourceID}", h.Subscribe)
			r.Delete("/subscriptions/{sourceID}", h.Unsubscribe)
			r.Post("/actions", h.RecordAction)
			r.Get("/preference", h.GetPreference)
			r.Delete("/preference", h.DeletePreference)
		})

		r.Get("/sources/default", h.DefaultSources)
		r.Post("/sources/{sourceID}/default", h.AddDefaultSource)
		r.Delete("/sources/{sourceID}/default", h.RemoveDefaultSource)

		r.Get("/preferences/export", h.ExportPreferences)
	})

	return r
}
