// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package config

import (
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/campusfeed/internal/api"
	"github.com/tomtom215/campusfeed/internal/events"
	"github.com/tomtom215/campusfeed/internal/logging"
	"github.com/tomtom215/campusfeed/internal/preference"
	"github.com/tomtom215/campusfeed/internal/preference/storage"
	"github.com/tomtom215/campusfeed/internal/supervisor"
)

// Config holds the complete application configuration.
type Config struct {
	Server      ServerConfig          `koanf:"server"`
	Logging     LoggingConfig         `koanf:"logging"`
	Preference  preference.Config     `koanf:"preference"`
	Storage     storage.Config        `koanf:"storage"`
	Events      EventsConfig          `koanf:"events"`
	FanOut      FanOutConfig          `koanf:"fanout"`
	Maintenance MaintenanceConfig     `koanf:"maintenance"`
	Supervisor  supervisor.TreeConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// CORSOrigins is empty by default, which disables cross-origin access.
	CORSOrigins []string `koanf:"cors_origins"`
}

// Addr returns host:port for http.Server.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Middleware builds the chi middleware configuration.
func (s *ServerConfig) Middleware() *api.ChiMiddlewareConfig {
	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = append([]string(nil), s.CORSOrigins...)
	mw.RateLimitRequests = s.RateLimitRequests
	mw.RateLimitWindow = s.RateLimitWindow
	mw.RateLimitDisabled = s.RateLimitDisabled
	return mw
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Logging converts the section into a logging.Config.
func (l *LoggingConfig) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = l.Format
	cfg.Caller = l.Caller
	return cfg
}

// EventsConfig configures the lifecycle event bus. When Enabled is false the
// API applies default-source changes in process and no router runs.
type EventsConfig struct {
	Enabled   bool                   `koanf:"enabled"`
	Bus       events.TransportConfig `koanf:"bus"`
	Router    events.RouterConfig    `koanf:"router"`
	Publisher events.PublisherConfig `koanf:"publisher"`
}

// FanOutConfig configures default-source propagation.
type FanOutConfig struct {
	PageSize       int           `koanf:"page_size"`
	RatePerSecond  float64       `koanf:"rate_per_second"`
	Workers        int           `koanf:"workers"`
	ResumeInterval time.Duration `koanf:"resume_interval"`
}

// Engine returns the settings the preference.FanOut consumes.
func (f *FanOutConfig) Engine() preference.FanOutConfig {
	return preference.FanOutConfig{
		PageSize:      f.PageSize,
		RatePerSecond: f.RatePerSecond,
		Workers:       f.Workers,
	}
}

// MaintenanceConfig configures the scheduled tasks.
type MaintenanceConfig struct {
	Enabled bool `koanf:"enabled"`

	// Schedule is the cron spec of the weight renormalization sweep.
	Schedule string `koanf:"schedule"`

	// GCSchedule is the cron spec of the storage value-log GC. Only used by
	// backends that support it.
	GCSchedule     string  `koanf:"gc_schedule"`
	GCDiscardRatio float64 `koanf:"gc_discard_ratio"`

	// Timezone is an IANA zone name for the schedules. Empty means UTC.
	Timezone string `koanf:"timezone"`
}

// Location resolves Timezone.
func (m *MaintenanceConfig) Location() (*time.Location, error) {
	if m.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(m.Timezone)
}
