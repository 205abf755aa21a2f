// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package api

import "github.com/tomtom215/campusfeed/internal/preference"

// RankRequest is the body of POST /users/{userID}/rank.
type RankRequest struct {
	Candidates []preference.Article `json:"candidates" validate:"required,max=1000,dive"`
}

// RankResponse lists the candidates in ranked order. Scores is set only
// when explain=true and is parallel to Articles.
type RankResponse struct {
	UserID   string                      `json:"user_id"`
	Articles []preference.Article        `json:"articles"`
	Scores   []preference.ScoreBreakdown `json:"scores,omitempty"`
}

// ActionRequest is the body of POST /users/{userID}/actions.
type ActionRequest struct {
	Kind    string             `json:"kind" validate:"required,oneof=browse favorite"`
	Article preference.Article `json:"article" validate:"required"`
}

// SourcesResponse lists the sources a user's candidate articles come from.
type SourcesResponse struct {
	UserID  string   `json:"user_id"`
	Sources []string `json:"sources"`
}

// SubscriptionResponse confirms a subscribe or unsubscribe.
type SubscriptionResponse struct {
	UserID     string `json:"user_id"`
	SourceID   string `json:"source_id"`
	Subscribed bool   `json:"subscribed"`
}

// ActionResponse confirms a recorded action.
type ActionResponse struct {
	UserID    string `json:"user_id"`
	ArticleID string `json:"article_id"`
	Kind      string `json:"kind"`
}

// DefaultSourceResponse acknowledges a default-source change. JobID is set
// when the fan-out runs in-process, EventID when it was published.
type DefaultSourceResponse struct {
	SourceID string `json:"source_id"`
	Kind     string `json:"kind"`
	JobID    string `json:"job_id,omitempty"`
	EventID  string `json:"event_id,omitempty"`
}
