// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

/*
Package api exposes the preference engine over HTTP using the Chi router.

The API is a thin operator and web-tier surface: it ranks candidate lists,
reports candidate sources, applies subscribe, unsubscribe and action
updates synchronously, exports and deletes preference records, and starts
default-source fan-out.

# Routes

	GET    /healthz
	GET    /metrics
	POST   /api/v1/users/{userID}/rank              ?explain=true adds score breakdowns
	GET    /api/v1/users/{userID}/sources
	POST   /api/v1/users/{userID}/subscriptions/{sourceID}   409 when already subscribed
	DELETE /api/v1/users/{userID}/subscriptions/{sourceID}   404 when not subscribed
	POST   /api/v1/users/{userID}/actions
	GET    /api/v1/users/{userID}/preference
	DELETE /api/v1/users/{userID}/preference
	GET    /api/v1/sources/default
	POST   /api/v1/sources/{sourceID}/default                202, fan-out runs asynchronously
	DELETE /api/v1/sources/{sourceID}/default                202
	GET    /api/v1/preferences/export               NDJSON stream

# Response Envelope

Every JSON response except the export stream uses the same envelope:

	{
	  "status": "success" | "error",
	  "data": {...},
	  "metadata": {"timestamp": "...", "request_id": "..."},
	  "error": {"code": "...", "message": "...", "details": {...}}
	}

# Middleware

Global: request ID with logging context, real IP, panic recovery, CORS
(go-chi/cors). Under /api/v1: per-IP rate limiting (go-chi/httprate) and
Prometheus request metrics keyed by route pattern.
*/
package api
