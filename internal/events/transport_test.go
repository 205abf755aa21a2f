// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

//go:build !nats

package events

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewTransport(t *testing.T) {
	ctx := context.Background()

	cfg := DefaultTransportConfig()
	tr, err := NewTransport(ctx, &cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTransport(gochannel) error = %v", err)
	}
	if tr.Kind != TransportGoChannel || tr.Publisher == nil || tr.Subscriber == nil {
		t.Errorf("transport = %+v", tr)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	cfg.Kind = TransportNATS
	if _, err := NewTransport(ctx, &cfg, nil, zerolog.Nop()); !errors.Is(err, ErrNATSNotCompiled) {
		t.Errorf("NewTransport(nats) error = %v, want ErrNATSNotCompiled", err)
	}

	cfg.Kind = "kafka"
	if _, err := NewTransport(ctx, &cfg, nil, zerolog.Nop()); !errors.Is(err, ErrUnknownTransport) {
		t.Errorf("NewTransport(kafka) error = %v, want ErrUnknownTransport", err)
	}
}
