// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

// Package logging provides centralized zerolog-based structured logging for Campusfeed.
//
// The global logger is configured once from main and every line carries
// service=campusfeed. Components do not log through the globals; they receive
// a zerolog.Logger in their constructor and derive a child:
//
//	logger := base.With().Str("component", "updater").Logger()
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    Timestamp: true,
//	})
//
//	logging.Info().Str("backend", "badger").Msg("preference storage opened")
//
// # Context-Aware Logging
//
// The HTTP layer stores a request ID and correlation ID in the request
// context, and the event handlers store the event ID as correlation ID.
// Both tag the user being modified. Ctx picks all of them up:
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("rank failed")
//	// {"level":"warn","correlation_id":"2f1c0d7e","user_id":"u42","error":"...","message":"rank failed"}
//
// # slog Adapter
//
// Suture (via sutureslog) and Watermill (via watermill.NewSlogLogger) log
// through log/slog. SlogHandler forwards their records to zerolog:
//
//	wmLogger := watermill.NewSlogLogger(logging.NewComponentSlogLogger("watermill"))
//
// # Output Formats
//
// JSON (production):
//
//	{"level":"info","service":"campusfeed","time":"2026-01-03T10:30:00Z","message":"server listening","addr":"0.0.0.0:8080"}
//
// Console (development):
//
//	10:30:00.000 INF server listening addr=0.0.0.0:8080 service=campusfeed
//
// # Testing
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
package logging
