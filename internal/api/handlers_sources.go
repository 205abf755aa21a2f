// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/campusfeed/internal/events"
	"github.com/tomtom215/campusfeed/internal/preference"
)

// DefaultSources lists the catalog's current default sources.
func (h *Handler) DefaultSources(w http.ResponseWriter, r *http.Request) {
	catalog := h.updater.Store().Catalog()
	if catalog == nil {
		respondSuccess(w, r, http.StatusOK, map[string][]string{"sources": {}})
		return
	}
	ids, err := catalog.DefaultSources(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondSuccess(w, r, http.StatusOK, map[string][]string{"sources": ids})
}

// AddDefaultSource marks a source as default and fans it out to every user.
func (h *Handler) AddDefaultSource(w http.ResponseWriter, r *http.Request) {
	h.changeDefault(w, r, preference.FanOutDefaultAdded)
}

// RemoveDefaultSource unmarks a default source and fans the removal out.
func (h *Handler) RemoveDefaultSource(w http.ResponseWriter, r *http.Request) {
	h.changeDefault(w, r, preference.FanOutDefaultRemoved)
}

// changeDefault publishes the change when an event publisher is configured.
// Otherwise it updates the catalog, persists the job and runs it in the
// background. Either way the caller gets 202 before any user is touched.
func (h *Handler) changeDefault(w http.ResponseWriter, r *http.Request, kind preference.FanOutKind) {
	sourceID, ok := pathID(w, r, "sourceID")
	if !ok {
		return
	}
	resp := DefaultSourceResponse{SourceID: sourceID, Kind: string(kind)}

	if h.publisher != nil {
		event := events.DefaultSourceAdded(sourceID)
		if kind == preference.FanOutDefaultRemoved {
			event = events.DefaultSourceRemoved(sourceID)
		}
		if err := h.publisher.PublishEvent(r.Context(), event); err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp.EventID = event.EventID
		respondSuccess(w, r, http.StatusAccepted, resp)
		return
	}

	if h.fanout == nil {
		writeServiceError(w, r, ErrFanOutUnavailable)
		return
	}
	job, err := h.fanout.Start(r.Context(), kind, sourceID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp.JobID = job.ID

	err = h.goBackground(func(ctx context.Context) {
		if err := h.fanout.Run(ctx, job); err != nil {
			h.logger.Warn().Err(err).
				Str("job_id", job.ID).
				Str("source_id", sourceID).
				Msg("fan-out interrupted, left for the resumer")
		}
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusAccepted, resp)
}

// ExportPreferences streams stored records as newline-delimited JSON.
// ?user_id=a,b limits the export to the listed users.
func (h *Handler) ExportPreferences(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	n, err := h.updater.Store().Export(r.Context(), w, ids...)
	if err != nil {
		// Headers are gone; all that is left is to log and cut the stream.
		h.logger.Error().Err(err).Int("written", n).Msg("preference export failed")
		return
	}
	h.logger.Info().Int("written", n).Msg("preference export finished")
}
