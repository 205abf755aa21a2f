// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingResumer struct {
	calls atomic.Int32
	err   error
	ticks chan struct{}
}

func (r *countingResumer) Resume(context.Context) (int, error) {
	r.calls.Add(1)
	select {
	case r.ticks <- struct{}{}:
	default:
	}
	return 1, r.err
}

func TestFanOutResumerService(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "resumes on every tick"},
		{name: "keeps running after failures", err: errors.New("storage unavailable")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingResumer{err: tt.err, ticks: make(chan struct{}, 8)}
			svc := NewFanOutResumerService(r, 5*time.Millisecond, zerolog.Nop())

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- svc.Serve(ctx) }()

			for i := 0; i < 3; i++ {
				waitStarted(t, r.ticks)
			}
			cancel()

			if err := <-errCh; !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
			if r.calls.Load() < 3 {
				t.Errorf("Resume called %d times, want >= 3", r.calls.Load())
			}
		})
	}
}

func TestNewFanOutResumerService_DefaultInterval(t *testing.T) {
	svc := NewFanOutResumerService(&countingResumer{}, 0, zerolog.Nop())
	if svc.interval != DefaultResumeInterval {
		t.Errorf("interval = %v, want %v", svc.interval, DefaultResumeInterval)
	}
	if svc.String() != "fanout-resumer" {
		t.Errorf("String() = %q", svc.String())
	}
}
