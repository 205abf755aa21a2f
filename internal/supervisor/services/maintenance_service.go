// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/metrics"
)

// ErrUnknownTask is returned by RunNow for a name that was never registered.
var ErrUnknownTask = errors.New("unknown maintenance task")

// Task is one scheduled maintenance job. Schedule accepts standard five
// field cron expressions and descriptors such as "@hourly" or "@every 5m".
type Task struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// TaskStats counts runs of a single task.
type TaskStats struct {
	Runs     int64
	Failures int64
	LastRun  time.Time
	LastErr  string
}

// MaintenanceService runs weight drift sweeps and storage garbage
// collection on cron schedules. A run still in progress when its next
// tick fires is skipped.
type MaintenanceService struct {
	tasks    []Task
	location *time.Location
	logger   zerolog.Logger
	name     string

	mu    sync.Mutex
	stats map[string]*TaskStats
}

// NewMaintenanceService validates every schedule up front so a typo fails
// at startup instead of inside the supervisor.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewMaintenanceService(tasks []Task, loc *time.Location, logger zerolog.Logger) (*MaintenanceService, error) {
	if loc == nil {
		loc = time.UTC
	}
	seen := make(map[string]bool, len(tasks))
	stats := make(map[string]*TaskStats, len(tasks))
	for _, task := range tasks {
		if task.Name == "" || task.Run == nil {
			return nil, fmt.Errorf("maintenance task %q: name and run func are required", task.Name)
		}
		if seen[task.Name] {
			return nil, fmt.Errorf("maintenance task %q registered twice", task.Name)
		}
		seen[task.Name] = true
		if _, err := cron.ParseStandard(task.Schedule); err != nil {
			return nil, fmt.Errorf("maintenance task %q: invalid schedule %q: %w", task.Name, task.Schedule, err)
		}
		stats[task.Name] = &TaskStats{}
	}

	return &MaintenanceService{
		tasks:    tasks,
		location: loc,
		logger:   logger.With().Str("component", "maintenance").Logger(),
		name:     "maintenance",
		stats:    stats,
	}, nil
}

// Serve implements suture.Service. On cancellation it waits for running
// tasks to observe ctx and return.
func (s *MaintenanceService) Serve(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	for _, task := range s.tasks {
		if _, err := c.AddFunc(task.Schedule, func() { s.execute(ctx, task) }); err != nil {
			return fmt.Errorf("schedule %s: %w", task.Name, err)
		}
	}

	c.Start()
	s.logger.Info().Int("tasks", len(s.tasks)).Msg("maintenance scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// RunNow executes the named task synchronously, outside the schedule.
func (s *MaintenanceService) RunNow(ctx context.Context, name string) error {
	for _, task := range s.tasks {
		if task.Name == name {
			return s.execute(ctx, task)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownTask, name)
}

// Stats returns a copy of the per-task counters.
func (s *MaintenanceService) Stats() map[string]TaskStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]TaskStats, len(s.stats))
	for name, st := range s.stats {
		out[name] = *st
	}
	return out
}

func (s *MaintenanceService) execute(ctx context.Context, task Task) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	start := time.Now()
	err := task.Run(ctx)
	elapsed := time.Since(start)
	metrics.RecordMaintenanceRun(task.Name, elapsed, err)

	s.mu.Lock()
	st := s.stats[task.Name]
	st.Runs++
	st.LastRun = start
	st.LastErr = ""
	if err != nil {
		st.Failures++
		st.LastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("task", task.Name).Dur("duration", elapsed).Msg("maintenance task failed")
		return err
	}
	s.logger.Debug().Str("task", task.Name).Dur("duration", elapsed).Msg("maintenance task finished")
	return nil
}

func (s *MaintenanceService) String() string {
	return s.name
}
