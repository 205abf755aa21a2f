// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package services

import (
	"context"
	"errors"
	"fmt"
)

// ErrRouterStopped is returned when the event router exits while the
// supervisor still wants it running.
var ErrRouterStopped = errors.New("event router stopped unexpectedly")

// EventRouter is satisfied by *events.Router.
type EventRouter interface {
	Run(ctx context.Context) error
}

// RouterFactory builds a router with its handlers registered. A watermill
// router cannot be restarted once closed, so every Serve call asks for a
// new one.
type RouterFactory func() (EventRouter, error)

// EventRouterService consumes preference events under supervision.
type EventRouterService struct {
	factory RouterFactory
	name    string
}

// NewEventRouterService creates the service.
func NewEventRouterService(factory RouterFactory) *EventRouterService {
	return &EventRouterService{factory: factory, name: "event-router"}
}

// Serve implements suture.Service.
func (s *EventRouterService) Serve(ctx context.Context) error {
	router, err := s.factory()
	if err != nil {
		return fmt.Errorf("build event router: %w", err)
	}

	err = router.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("event router failed: %w", err)
	}
	return ErrRouterStopped
}

func (s *EventRouterService) String() string {
	return s.name
}
