// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/campusfeed/internal/metrics"
)

// FanOutKind identifies what a fan-out job propagates.
type FanOutKind string

const (
	FanOutDefaultAdded   FanOutKind = "default_added"
	FanOutDefaultRemoved FanOutKind = "default_removed"
)

// FanOutJob is the persisted progress of one catalog-wide change being
// applied to every user. Cursor is the last user ID of the last fully
// processed page; a resumed job continues strictly after it.
type FanOutJob struct {
	ID        string     `json:"id"`
	Kind      FanOutKind `json:"kind"`
	SourceID  string     `json:"source_id"`
	Cursor    string     `json:"cursor"`
	Processed int        `json:"processed"`
	Applied   int        `json:"applied"`
	Failed    int        `json:"failed"`
	Done      bool       `json:"done"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// JobStore persists fan-out checkpoints.
type JobStore interface {
	SaveJob(ctx context.Context, job *FanOutJob) error
	// LoadJob returns ErrNotFound for an unknown ID.
	LoadJob(ctx context.Context, id string) (*FanOutJob, error)
	// PendingJobs returns jobs with Done == false, oldest first.
	PendingJobs(ctx context.Context) ([]*FanOutJob, error)
}

// FanOutConfig bounds the work a fan-out does per unit of time.
type FanOutConfig struct {
	// PageSize is the number of user IDs read and checkpointed at a time.
	PageSize int `json:"page_size" koanf:"page_size"`

	// RatePerSecond caps per-user updates per second. Zero disables the cap.
	RatePerSecond float64 `json:"rate_per_second" koanf:"rate_per_second"`

	// Workers is the number of users updated concurrently within a page.
	Workers int `json:"workers" koanf:"workers"`
}

// DefaultFanOutConfig returns conservative defaults.
func DefaultFanOutConfig() FanOutConfig {
	return FanOutConfig{
		PageSize:      500,
		RatePerSecond: 200,
		Workers:       4,
	}
}

// FanOut propagates default-source changes to every user's record. Each
// user is updated under that user's own lock through the Updater, so no
// lock is ever held across users, and the per-user step is idempotent so a
// job can be resumed or replayed without double-applying.
type FanOut struct {
	updater *Updater
	jobs    JobStore
	cfg     FanOutConfig
	limiter *rate.Limiter
	logger  zerolog.Logger

	running sync.Map // job ID -> struct{}
	active  atomic.Int32
}

// NewFanOut creates a FanOut.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewFanOut(updater *Updater, jobs JobStore, cfg FanOutConfig, logger zerolog.Logger) *FanOut {
	def := DefaultFanOutConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &FanOut{
		updater: updater,
		jobs:    jobs,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.With().Str("component", "preference_fanout").Logger(),
	}
}

// Active returns the number of jobs currently running in this process.
func (f *FanOut) Active() int {
	return int(f.active.Load())
}

// DefaultSourceAdded marks sourceID as a default source and inserts it into
// every existing user's weights.
func (f *FanOut) DefaultSourceAdded(ctx context.Context, sourceID string) (*FanOutJob, error) {
	return f.startAndRun(ctx, FanOutDefaultAdded, sourceID)
}

// DefaultSourceRemoved unmarks sourceID as a default source and removes it
// from the weights of every user not explicitly subscribed to it.
func (f *FanOut) DefaultSourceRemoved(ctx context.Context, sourceID string) (*FanOutJob, error) {
	return f.startAndRun(ctx, FanOutDefaultRemoved, sourceID)
}

// Start updates the catalog and persists a new job without running it.
func (f *FanOut) Start(ctx context.Context, kind FanOutKind, sourceID string) (*FanOutJob, error) {
	if sourceID == "" {
		return nil, ErrInvalidSourceID
	}
	if kind != FanOutDefaultAdded && kind != FanOutDefaultRemoved {
		return nil, fmt.Errorf("unknown fan-out kind %q", kind)
	}

	// Catalog first: users created from now on already see the change.
	if catalog := f.updater.store.Catalog(); catalog != nil {
		if err := catalog.SetDefault(ctx, sourceID, kind == FanOutDefaultAdded); err != nil {
			return nil, fmt.Errorf("update catalog: %w", err)
		}
	}

	now := time.Now().UTC()
	job := &FanOutJob{
		ID:        uuid.New().String(),
		Kind:      kind,
		SourceID:  sourceID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.jobs.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save fan-out job: %w", err)
	}

	f.logger.Info().
		Str("job_id", job.ID).
		Str("kind", string(kind)).
		Str("source_id", sourceID).
		Msg("fan-out job created")
	return job, nil
}

// Run processes job page by page until every user has been visited,
// checkpointing after each page. Per-user failures are logged and counted;
// they do not stop the job.
func (f *FanOut) Run(ctx context.Context, job *FanOutJob) error {
	if job.Done {
		return nil
	}
	if _, loaded := f.running.LoadOrStore(job.ID, struct{}{}); loaded {
		return fmt.Errorf("fan-out job %s is already running", job.ID)
	}
	defer f.running.Delete(job.ID)

	f.active.Add(1)
	metrics.TrackFanOutJob(true)
	defer func() {
		f.active.Add(-1)
		metrics.TrackFanOutJob(false)
	}()

	start := time.Now()
	repo := f.updater.store.Repository()

	for {
		ids, err := repo.UserIDs(ctx, job.Cursor, f.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("list users after %q: %w", job.Cursor, err)
		}
		if len(ids) == 0 {
			break
		}

		applied, failed, err := f.processPage(ctx, job, ids)
		if err != nil {
			return err
		}

		job.Cursor = ids[len(ids)-1]
		job.Processed += len(ids)
		job.Applied += applied
		job.Failed += failed
		job.UpdatedAt = time.Now().UTC()
		if err := f.jobs.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("checkpoint fan-out job: %w", err)
		}

		if len(ids) < f.cfg.PageSize {
			break
		}
	}

	job.Done = true
	job.UpdatedAt = time.Now().UTC()
	if err := f.jobs.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("complete fan-out job: %w", err)
	}

	f.logger.Info().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Str("source_id", job.SourceID).
		Int("processed", job.Processed).
		Int("applied", job.Applied).
		Int("failed", job.Failed).
		Dur("duration", time.Since(start)).
		Msg("fan-out job completed")
	return nil
}

// Resume runs every unfinished job, oldest first. It returns the number of
// jobs completed.
func (f *FanOut) Resume(ctx context.Context) (int, error) {
	pending, err := f.jobs.PendingJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending fan-out jobs: %w", err)
	}

	completed := 0
	for _, job := range pending {
		if _, running := f.running.Load(job.ID); running {
			continue
		}
		f.logger.Info().
			Str("job_id", job.ID).
			Str("cursor", job.Cursor).
			Msg("resuming fan-out job")
		if err := f.Run(ctx, job); err != nil {
			return completed, err
		}
		completed++
	}
	return completed, nil
}

func (f *FanOut) startAndRun(ctx context.Context, kind FanOutKind, sourceID string) (*FanOutJob, error) {
	job, err := f.Start(ctx, kind, sourceID)
	if err != nil {
		return nil, err
	}
	if err := f.Run(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

func (f *FanOut) processPage(ctx context.Context, job *FanOutJob, ids []string) (applied, failed int, err error) {
	var appliedN, failedN atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)

	for _, userID := range ids {
		g.Go(func() error {
			if err := f.limiter.Wait(gctx); err != nil {
				return err
			}

			changed, err := f.applyOne(gctx, job, userID)
			switch {
			case err == nil && changed:
				appliedN.Add(1)
				metrics.RecordFanOutUser(string(job.Kind), "applied")
			case err == nil:
				metrics.RecordFanOutUser(string(job.Kind), "noop")
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				failedN.Add(1)
				metrics.RecordFanOutUser(string(job.Kind), "error")
				f.logger.Error().Err(err).
					Str("job_id", job.ID).
					Str("user_id", userID).
					Str("source_id", job.SourceID).
					Msg("fan-out update failed for user")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return int(appliedN.Load()), int(failedN.Load()), nil
}

func (f *FanOut) applyOne(ctx context.Context, job *FanOutJob, userID string) (bool, error) {
	switch job.Kind {
	case FanOutDefaultAdded:
		return f.updater.ApplyDefaultAdded(ctx, userID, job.SourceID)
	case FanOutDefaultRemoved:
		return f.updater.ApplyDefaultRemoved(ctx, userID, job.SourceID)
	default:
		return false, fmt.Errorf("unknown fan-out kind %q", job.Kind)
	}
}
