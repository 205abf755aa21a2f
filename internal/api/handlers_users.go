// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/campusfeed/internal/preference"
)

// Rank orders the posted candidates for the user. With explain=true the
// per-term score breakdowns are returned alongside.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req RankRequest
	if !decodeBody(w, r, &req) {
		return
	}

	explain, _ := strconv.ParseBool(r.URL.Query().Get("explain"))
	resp := RankResponse{UserID: userID}

	if explain {
		ranked, err := h.ranker.Explain(r.Context(), userID, req.Candidates)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp.Articles = make([]preference.Article, len(ranked))
		resp.Scores = make([]preference.ScoreBreakdown, len(ranked))
		for i := range ranked {
			resp.Articles[i] = ranked[i].Article
			resp.Scores[i] = ranked[i].Score
		}
	} else {
		articles, err := h.ranker.Rank(r.Context(), userID, req.Candidates)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp.Articles = articles
	}

	respondSuccess(w, r, http.StatusOK, resp)
}

// CandidateSources lists default sources plus the user's subscriptions.
func (h *Handler) CandidateSources(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	sources, err := h.ranker.CandidateSources(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, SourcesResponse{UserID: userID, Sources: sources})
}

// Subscribe adds an explicit subscription. 409 when already subscribed.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	sourceID, ok := pathID(w, r, "sourceID")
	if !ok {
		return
	}
	if err := h.updater.Subscribe(r.Context(), userID, sourceID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusCreated, SubscriptionResponse{UserID: userID, SourceID: sourceID, Subscribed: true})
}

// Unsubscribe removes an explicit subscription. 404 when not subscribed.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	sourceID, ok := pathID(w, r, "sourceID")
	if !ok {
		return
	}
	if err := h.updater.Unsubscribe(r.Context(), userID, sourceID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, SubscriptionResponse{UserID: userID, SourceID: sourceID})
}

// RecordAction applies a browse or favorite decay step.
func (h *Handler) RecordAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req ActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind, err := preference.ParseActionKind(req.Kind)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.updater.RecordAction(r.Context(), userID, &req.Article, kind); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, ActionResponse{UserID: userID, ArticleID: req.Article.ID, Kind: kind.String()})
}

// GetPreference returns the stored record without creating one.
func (h *Handler) GetPreference(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	p, err := h.updater.Store().Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, p)
}

// DeletePreference removes the user's record. Deleting a missing record
// succeeds.
func (h *Handler) DeletePreference(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.updater.DeleteUser(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
