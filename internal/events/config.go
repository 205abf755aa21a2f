// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package events

import (
	"fmt"
	"time"
)

// Transport names.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// RouterConfig holds configuration for the Watermill router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// Retry configuration
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`

	// Throttle configuration (messages per second, 0 = disabled)
	ThrottlePerSecond int64 `koanf:"throttle_per_second"`

	// PoisonQueueTopic receives messages that failed every retry.
	PoisonQueueTopic string `koanf:"poison_topic"`

	// Deduplication on the event ID.
	DeduplicationEnabled  bool          `koanf:"dedup_enabled"`
	DeduplicationTTL      time.Duration `koanf:"dedup_ttl"`
	DeduplicationCapacity int           `koanf:"dedup_capacity"`
}

// DefaultRouterConfig returns production defaults for the router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:          30 * time.Second,
		RetryMaxRetries:       5,
		RetryInitialInterval:  100 * time.Millisecond,
		RetryMaxInterval:      10 * time.Second,
		RetryMultiplier:       2.0,
		ThrottlePerSecond:     0,
		PoisonQueueTopic:      TopicPoison,
		DeduplicationEnabled:  true,
		DeduplicationTTL:      10 * time.Minute,
		DeduplicationCapacity: 100000,
	}
}

// Validate checks the router configuration.
func (c *RouterConfig) Validate() error {
	if c.CloseTimeout <= 0 {
		return fmt.Errorf("events: close_timeout must be positive")
	}
	if c.RetryMaxRetries < 0 {
		return fmt.Errorf("events: retry_max_retries must be >= 0, got %d", c.RetryMaxRetries)
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("events: retry_multiplier must be >= 1, got %v", c.RetryMultiplier)
	}
	if c.ThrottlePerSecond < 0 {
		return fmt.Errorf("events: throttle_per_second must be >= 0")
	}
	if c.DeduplicationEnabled && c.DeduplicationTTL <= 0 {
		return fmt.Errorf("events: dedup_ttl must be positive when deduplication is enabled")
	}
	return nil
}

// TransportConfig selects and configures the message transport.
type TransportConfig struct {
	// Kind is gochannel or nats.
	Kind string `koanf:"transport"`

	// OutputBuffer is the gochannel per-subscriber buffer.
	OutputBuffer int64 `koanf:"output_buffer"`

	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig configures the JetStream transport. Only used in builds with
// the nats tag.
type NATSConfig struct {
	URL           string        `koanf:"url"`
	Embedded      bool          `koanf:"embedded"`
	StoreDir      string        `koanf:"store_dir"`
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port"`
	StreamName    string        `koanf:"stream_name"`
	QueueGroup    string        `koanf:"queue_group"`
	DurableName   string        `koanf:"durable_name"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	AckWait       time.Duration `koanf:"ack_wait"`
	MaxDeliver    int           `koanf:"max_deliver"`
	MaxMemory     int64         `koanf:"max_memory"`
	MaxStore      int64         `koanf:"max_store"`
}

// DefaultTransportConfig returns the in-process transport.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Kind:         TransportGoChannel,
		OutputBuffer: 1024,
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			Embedded:      true,
			StoreDir:      "/data/nats",
			Host:          "127.0.0.1",
			Port:          4222,
			StreamName:    "FEED_EVENTS",
			QueueGroup:    "campusfeed",
			DurableName:   "campusfeed-engine",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			AckWait:       30 * time.Second,
			MaxDeliver:    10,
			MaxMemory:     64 << 20,
			MaxStore:      1 << 30,
		},
	}
}

// Validate checks the transport configuration.
func (c *TransportConfig) Validate() error {
	switch c.Kind {
	case TransportGoChannel:
		return nil
	case TransportNATS:
		if c.NATS.URL == "" && !c.NATS.Embedded {
			return fmt.Errorf("events: nats url is required unless the embedded server is enabled")
		}
		if c.NATS.StreamName == "" {
			return fmt.Errorf("events: nats stream_name is required")
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.Kind)
	}
}
