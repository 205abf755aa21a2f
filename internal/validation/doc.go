// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

// Package validation wraps go-playground/validator v10 with a shared
// instance, campusfeed-specific tags and readable messages.
//
// It validates HTTP request bodies in internal/api and event envelopes in
// internal/events:
//
//	type rankRequest struct {
//	    Candidates []preference.Article `json:"candidates" validate:"required,max=1000,dive"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    // render apiErr.Code, apiErr.Message, apiErr.Details
//	}
//
// Error field names are taken from json tags. Vectors are checked with
// "dive,finite" so NaN or Inf never reach the scorer.
package validation
