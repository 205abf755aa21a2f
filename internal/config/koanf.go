// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/campusfeed/internal/events"
	"github.com/tomtom215/campusfeed/internal/preference"
	"github.com/tomtom215/campusfeed/internal/preference/storage"
	"github.com/tomtom215/campusfeed/internal/supervisor"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/campusfeed/config.yaml",
	"/etc/campusfeed/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvFileEnvVar overrides the location of the optional dotenv file.
const EnvFileEnvVar = "ENV_FILE"

const defaultEnvFile = ".env"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Preference: *preference.DefaultConfig(),
		Storage: storage.Config{
			Backend: storage.BackendBadger,
			Badger: storage.BadgerConfig{
				Path:       "/data/campusfeed",
				SyncWrites: true,
			},
			SQL: storage.SQLConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
			},
			Breaker:        storage.DefaultBreakerConfig(),
			DefaultSources: []string{},
		},
		Events: EventsConfig{
			Enabled:   true,
			Bus:       events.DefaultTransportConfig(),
			Router:    events.DefaultRouterConfig(),
			Publisher: events.DefaultPublisherConfig(),
		},
		FanOut: FanOutConfig{
			PageSize:       500,
			RatePerSecond:  200,
			Workers:        4,
			ResumeInterval: time.Minute,
		},
		Maintenance: MaintenanceConfig{
			Enabled:        true,
			Schedule:       "17 * * * *",
			GCSchedule:     "*/10 * * * *",
			GCDiscardRatio: 0.5,
		},
		Supervisor: supervisor.DefaultTreeConfig(),
	}
}

// Load reads configuration using Koanf with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Dotenv: Optional .env file, never overriding the real environment
//  4. Environment Variables: Override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Populate the process environment from a dotenv file
	if err := loadDotenv(); err != nil {
		return nil, err
	}

	// Layer 4: Environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadDotenv loads ENV_FILE, or .env in the working directory. A missing
// default file is not an error; a missing ENV_FILE is.
func loadDotenv() error {
	path := os.Getenv(EnvFileEnvVar)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
	"preference.scoring.major_tags",
	"storage.default_sources",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps flat environment variable names (lower-cased) to koanf
// paths. Variables not listed here are ignored.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",
	"cors_origins":          "server.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Preference engine
	"tag_dim":            "preference.dimensions.tag_dim",
	"keyword_dim":        "preference.dimensions.keyword_dim",
	"keyword_init":       "preference.dimensions.keyword_init",
	"browse_alpha":       "preference.decay.browse_alpha",
	"favorite_alpha":     "preference.decay.favorite_alpha",
	"prune_floor":        "preference.decay.prune_floor",
	"bootstrap_weight":   "preference.decay.bootstrap_weight",
	"source_decay_mode":  "preference.decay.source_mode",
	"weight_tolerance":   "preference.decay.weight_tolerance",
	"major_tag_bonus":    "preference.scoring.major_tag_bonus",
	"major_tag":          "preference.scoring.major_tags",
	"max_update_retries": "preference.concurrency.max_retries",
	"retry_backoff":      "preference.concurrency.retry_backoff",

	// Storage
	"storage_backend":           "storage.backend",
	"badger_path":               "storage.badger.path",
	"badger_in_memory":          "storage.badger.in_memory",
	"badger_sync_writes":        "storage.badger.sync_writes",
	"sql_dsn":                   "storage.sql.dsn",
	"sql_max_open_conns":        "storage.sql.max_open_conns",
	"sql_max_idle_conns":        "storage.sql.max_idle_conns",
	"sql_conn_max_lifetime":     "storage.sql.conn_max_lifetime",
	"storage_breaker_enabled":   "storage.breaker.enabled",
	"storage_breaker_timeout":   "storage.breaker.timeout",
	"storage_breaker_threshold": "storage.breaker.failure_threshold",
	"default_sources":           "storage.default_sources",

	// Events
	"events_enabled":         "events.enabled",
	"events_transport":       "events.bus.transport",
	"nats_url":               "events.bus.nats.url",
	"nats_embedded":          "events.bus.nats.embedded",
	"nats_store_dir":         "events.bus.nats.store_dir",
	"nats_stream_name":       "events.bus.nats.stream_name",
	"nats_durable_name":      "events.bus.nats.durable_name",
	"nats_queue_group":       "events.bus.nats.queue_group",
	"router_retry_count":     "events.router.retry_max_retries",
	"router_retry_interval":  "events.router.retry_initial_interval",
	"router_throttle":        "events.router.throttle_per_second",
	"router_close_timeout":   "events.router.close_timeout",
	"router_poison_topic":    "events.router.poison_topic",
	"router_dedup_enabled":   "events.router.dedup_enabled",
	"router_dedup_ttl":       "events.router.dedup_ttl",
	"publisher_breaker":      "events.publisher.breaker_enabled",
	"publisher_breaker_wait": "events.publisher.breaker_timeout",

	// Fan-out
	"fanout_page_size":       "fanout.page_size",
	"fanout_rate":            "fanout.rate_per_second",
	"fanout_workers":         "fanout.workers",
	"fanout_resume_interval": "fanout.resume_interval",

	// Maintenance
	"maintenance_enabled":  "maintenance.enabled",
	"maintenance_schedule": "maintenance.schedule",
	"maintenance_gc":       "maintenance.gc_schedule",
	"maintenance_gc_ratio": "maintenance.gc_discard_ratio",
	"maintenance_timezone": "maintenance.timezone",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - TAG_DIM -> preference.dimensions.tag_dim
//   - STORAGE_BACKEND -> storage.backend
//   - NATS_URL -> events.bus.nats.url
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
