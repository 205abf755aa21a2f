// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/config"
	"github.com/tomtom215/campusfeed/internal/preference"
	"github.com/tomtom215/campusfeed/internal/preference/storage"
	"github.com/tomtom215/campusfeed/internal/supervisor/services"
)

const (
	taskRenormalize = "renormalize"
	taskStorageGC   = "storage-gc"
)

// buildMaintenanceTasks returns the scheduled jobs for the data layer: the
// weight renormalization sweep, and value log GC when the backend has one.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func buildMaintenanceTasks(cfg *config.MaintenanceConfig, updater *preference.Updater, backend storage.Backend, logger zerolog.Logger) []services.Task {
	tasks := []services.Task{{
		Name:     taskRenormalize,
		Schedule: cfg.Schedule,
		Run: func(ctx context.Context) error {
			_, err := updater.Sweep(ctx)
			return err
		},
	}}

	if cfg.GCSchedule == "" {
		return tasks
	}
	gc, ok := storage.AsGarbageCollector(backend)
	if !ok {
		logger.Debug().Msg("Storage backend has no value log; GC task not scheduled")
		return tasks
	}

	ratio := cfg.GCDiscardRatio
	tasks = append(tasks, services.Task{
		Name:     taskStorageGC,
		Schedule: cfg.GCSchedule,
		Run: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rewritten, err := gc.RunGC(ratio)
			if rewritten > 0 {
				logger.Info().Int("rewritten", rewritten).Msg("Value log GC reclaimed files")
			}
			return err
		},
	})
	return tasks
}
