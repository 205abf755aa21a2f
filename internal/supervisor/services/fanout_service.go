// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultResumeInterval is how often interrupted fan-out jobs are retried.
const DefaultResumeInterval = time.Minute

// Resumer is satisfied by *preference.FanOut.
type Resumer interface {
	Resume(ctx context.Context) (int, error)
}

// FanOutResumerService finishes default-source fan-out jobs that were
// interrupted by a crash or a failed page. It resumes once at start and
// then on every interval tick.
type FanOutResumerService struct {
	resumer  Resumer
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewFanOutResumerService creates the service.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewFanOutResumerService(resumer Resumer, interval time.Duration, logger zerolog.Logger) *FanOutResumerService {
	if interval <= 0 {
		interval = DefaultResumeInterval
	}
	return &FanOutResumerService{
		resumer:  resumer,
		interval: interval,
		logger:   logger.With().Str("component", "fanout_resumer").Logger(),
		name:     "fanout-resumer",
	}
}

// Serve implements suture.Service. Resume failures are logged and retried
// on the next tick rather than restarting the service.
func (s *FanOutResumerService) Serve(ctx context.Context) error {
	s.resume(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.resume(ctx)
		}
	}
}

func (s *FanOutResumerService) resume(ctx context.Context) {
	n, err := s.resumer.Resume(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Int("completed", n).Msg("fan-out resume failed")
		}
		return
	}
	if n > 0 {
		s.logger.Info().Int("completed", n).Msg("resumed fan-out jobs")
	}
}

func (s *FanOutResumerService) String() string {
	return s.name
}
