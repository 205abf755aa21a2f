// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

//go:build !nats

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newNATSTransport(_ context.Context, _ *NATSConfig, _ watermill.LoggerAdapter, _ zerolog.Logger) (*Transport, error) {
	return nil, ErrNATSNotCompiled
}
