// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every line written by the global logger.
const ServiceName = "campusfeed"

// Config selects level, encoding and destination of the global logger.
// Zero values fall back to DefaultConfig, except Timestamp and Caller.
type Config struct {
	Level     string    // trace..panic or disabled; unknown means info
	Format    string    // json or console
	Caller    bool      // add file:line
	Timestamp bool      // add the time field
	Output    io.Writer // os.Stderr when nil
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Caller:    false,
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

//nolint:gochecknoinits // init ensures logging works before explicit Init() call
func init() {
	initLogger(DefaultConfig())
}

// Init replaces the global logger. main calls it once after config.Load;
// tests may call it again.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

// initLogger requires mu held.
func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	output := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: "15:04:05.000",
		}
	}

	logCtx := zerolog.New(output).With().Str("service", ServiceName)
	if cfg.Timestamp {
		logCtx = logCtx.Timestamp()
	}
	if cfg.Caller {
		logCtx = logCtx.Caller()
	}

	log = logCtx.Logger()
}

// parseLevel converts a string level to zerolog.Level. Unknown strings map
// to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// global returns a copy of the global logger under the read lock.
func global() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Logger returns the global logger instance. Components take a copy and
// derive their own child with a component field.
func Logger() zerolog.Logger { return global() }

// SetLogger replaces the global logger instance.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With creates a child logger context from the global logger.
//
//	storeLogger := logging.With().Str("component", "store").Logger()
func With() zerolog.Context {
	l := global()
	return l.With()
}

// Debug, Info, Warn and Error start an event on the global logger. Chains
// must end in Msg or Send.
func Debug() *zerolog.Event {
	l := global()
	return l.Debug()
}

func Info() *zerolog.Event {
	l := global()
	return l.Info()
}

func Warn() *zerolog.Event {
	l := global()
	return l.Warn()
}

func Error() *zerolog.Event {
	l := global()
	return l.Error()
}

// Fatal exits the process with status 1 once the message is written.
func Fatal() *zerolog.Event {
	l := global()
	return l.Fatal()
}

// Err is Error with the error attached, or Info when err is nil.
//
//	logging.Err(err).Msg("fan-out resume finished")
func Err(err error) *zerolog.Event {
	l := global()
	return l.Err(err)
}

// NewTestLogger creates a logger that writes JSON lines to w.
//
//	var buf bytes.Buffer
//	updater, _ := preference.NewUpdater(store, cfg, logging.NewTestLogger(&buf))
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
