// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

/*
Package main is the entry point for the Campusfeed server.

Campusfeed keeps a preference profile per user (source weights, a tag
vector, and a semantic keyword vector), updates it from reading and
subscription feedback, and ranks candidate articles against it.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("campusfeed")
	├── DataSupervisor ("data-layer")
	│   ├── Maintenance (cron: renormalization sweep, value log GC)
	│   └── Fan-out resumer (finishes interrupted default-source jobs)
	├── MessagingSupervisor ("messaging-layer")
	│   └── Event router (Watermill, gochannel or NATS JetStream)
	└── APISupervisor ("api-layer")
	    └── HTTP server (Chi router)

Initialization order:

 1. Configuration: Koanf v2 (defaults, YAML file, .env, environment)
 2. Logging: zerolog, JSON or console
 3. Storage: Badger, SQLite, or MySQL, wrapped in a circuit breaker
 4. Preference engine: store, updater, scorer, ranker, fan-out
 5. Event bus: transport, publisher, lifecycle handler
 6. HTTP handler and router
 7. Supervisor tree

# Configuration

Priority, highest first:

	Environment variables > .env file > config.yaml > defaults

Common variables:

	HTTP_PORT=8080
	STORAGE_BACKEND=badger        # badger, sqlite, mysql
	BADGER_PATH=/data/campusfeed
	TAG_DIM=16
	KEYWORD_DIM=100
	SOURCE_DECAY_MODE=reinforce   # reinforce or scale
	EVENTS_ENABLED=true
	EVENTS_TRANSPORT=gochannel    # gochannel or nats (-tags nats)
	LOG_LEVEL=info
	LOG_FORMAT=json

See package config for the full list.

# Shutdown

SIGINT and SIGTERM cancel the root context. The HTTP server drains within
HTTP_SHUTDOWN_TIMEOUT and background fan-outs are awaited before the event
bus and storage close. Services that ignore the timeout are logged.
*/
package main
