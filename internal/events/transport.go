// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package events

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
)

// Transport bundles the publisher and subscriber of one message bus and
// owns their lifecycle.
type Transport struct {
	Kind       string
	Publisher  message.Publisher
	Subscriber message.Subscriber

	closers []func() error
}

// NewTransport opens the transport selected by cfg.Kind.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewTransport(ctx context.Context, cfg *TransportConfig, wmLogger watermill.LoggerAdapter, logger zerolog.Logger) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if wmLogger == nil {
		wmLogger = watermill.NopLogger{}
	}

	switch cfg.Kind {
	case TransportNATS:
		return newNATSTransport(ctx, &cfg.NATS, wmLogger, logger)
	default:
		return NewGoChannelTransport(cfg.OutputBuffer, wmLogger), nil
	}
}

// NewGoChannelTransport returns the in-process transport. Messages
// published while no subscriber is attached are dropped.
func NewGoChannelTransport(outputBuffer int64, logger watermill.LoggerAdapter) *Transport {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: outputBuffer,
	}, logger)

	return &Transport{
		Kind:       TransportGoChannel,
		Publisher:  pubSub,
		Subscriber: pubSub,
		closers:    []func() error{pubSub.Close},
	}
}

// Close releases the transport in reverse order of acquisition.
func (t *Transport) Close() error {
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	t.closers = nil
	return errors.Join(errs...)
}
