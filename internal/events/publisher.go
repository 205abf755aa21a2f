// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/campusfeed/internal/metrics"
)

// PublisherConfig configures the circuit breaker around publishing.
type PublisherConfig struct {
	BreakerEnabled          bool          `koanf:"breaker_enabled"`
	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
}

// DefaultPublisherConfig returns production defaults.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		BreakerEnabled:          true,
		BreakerMaxRequests:      1,
		BreakerTimeout:          15 * time.Second,
		BreakerFailureThreshold: 5,
	}
}

// Publisher wraps a Watermill publisher with a circuit breaker and the
// event serializer.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[any]
	serializer     *Serializer
	mu             sync.RWMutex
	closed         bool
	logger         zerolog.Logger
}

// NewPublisher wraps pub.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPublisher(pub message.Publisher, cfg PublisherConfig, logger zerolog.Logger) *Publisher {
	p := &Publisher{
		publisher:  pub,
		serializer: NewSerializer(),
		logger:     logger.With().Str("component", "event_publisher").Logger(),
	}

	if cfg.BreakerEnabled {
		const name = "event-publisher"
		metrics.SetCircuitBreakerState(name, gobreaker.StateClosed.String())
		p.circuitBreaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        name,
			MaxRequests: cfg.BreakerMaxRequests,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				p.logger.Warn().
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("publisher circuit breaker state change")
				metrics.SetCircuitBreakerState(name, to.String())
			},
		})
	}

	return p
}

// Publish sends a message to topic, through the circuit breaker when one
// is configured.
func (p *Publisher) Publish(_ context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPublisherClosed
	}
	p.mu.RUnlock()

	if p.circuitBreaker != nil {
		_, err := p.circuitBreaker.Execute(func() (any, error) {
			return nil, p.publisher.Publish(topic, msg)
		})
		return err
	}
	return p.publisher.Publish(topic, msg)
}

// PublishEvent serializes and publishes an event on its topic. The event ID
// becomes both the message UUID and the event_id metadata the router
// deduplicates on.
func (p *Publisher) PublishEvent(ctx context.Context, event *Event) error {
	data, err := p.serializer.Marshal(event)
	if err != nil {
		metrics.RecordEventPublished(string(event.Type), err)
		return fmt.Errorf("serialize event: %w", err)
	}

	msg := message.NewMessageWithContext(ctx, event.EventID, data)
	msg.Metadata.Set(MetadataEventID, event.EventID)
	msg.Metadata.Set(MetadataEventType, string(event.Type))
	if event.UserID != "" {
		msg.Metadata.Set("user_id", event.UserID)
	}

	err = p.Publish(ctx, event.Topic(), msg)
	metrics.RecordEventPublished(string(event.Type), err)
	if err != nil {
		p.logger.Warn().Err(err).Str("event_id", event.EventID).Str("event_type", string(event.Type)).Msg("Publish failed")
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// State returns the breaker state, or "disabled".
func (p *Publisher) State() string {
	if p.circuitBreaker == nil {
		return "disabled"
	}
	return p.circuitBreaker.State().String()
}

// Close marks the publisher closed. The underlying publisher belongs to the
// Transport and is closed there.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
