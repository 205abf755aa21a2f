// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/campusfeed/internal/preference/storage"
	"github.com/tomtom215/campusfeed/internal/validation"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.Preference.Validate(); err != nil {
		return fmt.Errorf("preference: %w", err)
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateFanOut(); err != nil {
		return err
	}
	if err := c.validateMaintenance(); err != nil {
		return err
	}
	return c.Supervisor.Validate()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server read and write timeouts must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitRequests < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Server.RateLimitRequests)
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := &c.Storage
	switch s.Backend {
	case storage.BackendMemory:
	case storage.BackendBadger:
		if s.Badger.Path == "" && !s.Badger.InMemory {
			return fmt.Errorf("BADGER_PATH is required when STORAGE_BACKEND=badger")
		}
	case storage.BackendSQLite, storage.BackendMySQL:
		if s.SQL.DSN == "" {
			return fmt.Errorf("SQL_DSN is required when STORAGE_BACKEND=%s", s.Backend)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of memory, badger, sqlite, mysql; got %q", s.Backend)
	}

	seen := make(map[string]struct{}, len(s.DefaultSources))
	for _, id := range s.DefaultSources {
		if !validation.IsEntityID(id) {
			return fmt.Errorf("DEFAULT_SOURCES contains an invalid source id %q", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("DEFAULT_SOURCES lists %q twice", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if err := c.Events.Bus.Validate(); err != nil {
		return err
	}
	return c.Events.Router.Validate()
}

func (c *Config) validateFanOut() error {
	if c.FanOut.PageSize < 1 {
		return fmt.Errorf("fanout.page_size must be positive, got %d", c.FanOut.PageSize)
	}
	if c.FanOut.Workers < 1 {
		return fmt.Errorf("FANOUT_WORKERS must be positive, got %d", c.FanOut.Workers)
	}
	if c.FanOut.RatePerSecond < 0 {
		return fmt.Errorf("FANOUT_RATE must be non-negative, got %v", c.FanOut.RatePerSecond)
	}
	if c.FanOut.ResumeInterval <= 0 {
		return fmt.Errorf("FANOUT_RESUME_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateMaintenance() error {
	m := &c.Maintenance
	if !m.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(m.Schedule); err != nil {
		return fmt.Errorf("MAINTENANCE_SCHEDULE %q is invalid: %w", m.Schedule, err)
	}
	if m.GCSchedule != "" {
		if _, err := cron.ParseStandard(m.GCSchedule); err != nil {
			return fmt.Errorf("MAINTENANCE_GC %q is invalid: %w", m.GCSchedule, err)
		}
		if m.GCDiscardRatio <= 0 || m.GCDiscardRatio >= 1 {
			return fmt.Errorf("MAINTENANCE_GC_RATIO must be in (0, 1), got %v", m.GCDiscardRatio)
		}
	}
	if _, err := m.Location(); err != nil {
		return fmt.Errorf("MAINTENANCE_TIMEZONE %q is invalid: %w", m.Timezone, err)
	}
	return nil
}
