// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

/*
Package config provides layered configuration loading for Campusfeed.

Configuration is assembled with Koanf v2 from four sources, later sources
overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, else the first of DefaultConfigPaths
 3. An optional dotenv file: $ENV_FILE, else ./.env (never overrides
    variables already present in the environment)
 4. Environment variables, mapped through a fixed table

Only variables listed in the mapping table are read, so unrelated
environment entries never leak into the configuration.

# Environment Variables

	HTTP_HOST, HTTP_PORT            server listen address
	LOG_LEVEL, LOG_FORMAT           zerolog level and json|console output
	TAG_DIM, KEYWORD_DIM            profile vector widths
	BROWSE_ALPHA, FAVORITE_ALPHA    decay rates per action kind
	PRUNE_FLOOR, BOOTSTRAP_WEIGHT   source weight constants
	MAJOR_TAG_BONUS, MAJOR_TAG      scoring bonus and its comma-separated labels
	STORAGE_BACKEND                 memory | badger | sqlite | mysql
	BADGER_PATH, SQL_DSN            backend locations
	DEFAULT_SOURCES                 comma-separated catalog seed
	EVENTS_TRANSPORT                gochannel | nats
	NATS_URL, NATS_EMBEDDED         JetStream connection
	FANOUT_RATE                     per-user fan-out writes per second
	MAINTENANCE_SCHEDULE            cron spec of the renormalization sweep

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	logging.Init(cfg.Logging.Logging())
*/
package config
