// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/campusfeed/internal/preference"
)

// runBackendContract exercises the behavior every backend must share.
func runBackendContract(t *testing.T, open func(t *testing.T) Backend) {
	t.Run("LoadMissing", func(t *testing.T) {
		b := open(t)
		if _, err := b.Load(context.Background(), "nobody"); !errors.Is(err, preference.ErrNotFound) {
			t.Errorf("Load() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("CreateAndUpdate", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		p := samplePreference("u1")
		if err := b.Save(ctx, p); err != nil {
			t.Fatalf("create Save() error = %v", err)
		}
		if p.Version != 1 {
			t.Errorf("Version after create = %d, want 1", p.Version)
		}

		got, err := b.Load(ctx, "u1")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != 1 || got.SourceWeights["s1"] != 0.5 || len(got.TagVector) != 2 {
			t.Errorf("Load() = %+v", got)
		}
		if len(got.Subscriptions) != 1 || got.Subscriptions[0] != "s2" {
			t.Errorf("Subscriptions = %v, want [s2]", got.Subscriptions)
		}

		got.SourceWeights = preference.SourceWeights{"s1": 1}
		if err := b.Save(ctx, got); err != nil {
			t.Fatalf("update Save() error = %v", err)
		}
		if got.Version != 2 {
			t.Errorf("Version after update = %d, want 2", got.Version)
		}

		reloaded, _ := b.Load(ctx, "u1")
		if reloaded.SourceWeights["s1"] != 1 || reloaded.Version != 2 {
			t.Errorf("reloaded = %+v", reloaded)
		}
	})

	t.Run("DuplicateCreateConflicts", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		if err := b.Save(ctx, samplePreference("u1")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := b.Save(ctx, samplePreference("u1")); !errors.Is(err, preference.ErrConcurrentUpdate) {
			t.Errorf("second create error = %v, want ErrConcurrentUpdate", err)
		}
	})

	t.Run("StaleVersionConflicts", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		if err := b.Save(ctx, samplePreference("u1")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		first, _ := b.Load(ctx, "u1")
		second, _ := b.Load(ctx, "u1")

		if err := b.Save(ctx, first); err != nil {
			t.Fatalf("first writer Save() error = %v", err)
		}
		if err := b.Save(ctx, second); !errors.Is(err, preference.ErrConcurrentUpdate) {
			t.Errorf("stale writer error = %v, want ErrConcurrentUpdate", err)
		}
		if second.Version != 1 {
			t.Errorf("failed Save() changed Version to %d", second.Version)
		}
	})

	t.Run("ConcurrentWritersOneWins", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		if err := b.Save(ctx, samplePreference("u1")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			p, err := b.Load(ctx, "u1")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := b.Save(ctx, p); err == nil {
					wins.Add(1)
				} else if !errors.Is(err, preference.ErrConcurrentUpdate) {
					t.Errorf("Save() error = %v", err)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 {
			t.Errorf("winners = %d, want exactly 1", wins.Load())
		}
	})

	t.Run("DeleteAndUserIDs", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			if err := b.Save(ctx, samplePreference(fmt.Sprintf("u%d", i))); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		}
		if err := b.Delete(ctx, "u2"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := b.Delete(ctx, "missing"); err != nil {
			t.Errorf("Delete(missing) error = %v", err)
		}

		page, err := b.UserIDs(ctx, "", 2)
		if err != nil {
			t.Fatalf("UserIDs() error = %v", err)
		}
		assertStrings(t, page, []string{"u0", "u1"})

		page, _ = b.UserIDs(ctx, "u1", 10)
		assertStrings(t, page, []string{"u3", "u4"})

		page, _ = b.UserIDs(ctx, "u4", 10)
		if len(page) != 0 {
			t.Errorf("UserIDs(after last) = %v, want empty", page)
		}
	})

	t.Run("Catalog", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		for _, id := range []string{"s2", "s1", "s3"} {
			if err := b.SetDefault(ctx, id, true); err != nil {
				t.Fatalf("SetDefault() error = %v", err)
			}
		}
		if err := b.SetDefault(ctx, "s1", true); err != nil {
			t.Fatalf("repeated SetDefault() error = %v", err)
		}
		if err := b.SetDefault(ctx, "s3", false); err != nil {
			t.Fatalf("SetDefault(false) error = %v", err)
		}

		ids, err := b.DefaultSources(ctx)
		if err != nil {
			t.Fatalf("DefaultSources() error = %v", err)
		}
		assertStrings(t, ids, []string{"s1", "s2"})
	})

	t.Run("Jobs", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		older := &preference.FanOutJob{ID: "j1", Kind: preference.FanOutDefaultAdded, SourceID: "s1", CreatedAt: now.Add(-time.Minute)}
		newer := &preference.FanOutJob{ID: "j2", Kind: preference.FanOutDefaultRemoved, SourceID: "s2", CreatedAt: now}
		done := &preference.FanOutJob{ID: "j3", Kind: preference.FanOutDefaultAdded, SourceID: "s3", CreatedAt: now, Done: true}
		for _, j := range []*preference.FanOutJob{newer, older, done} {
			if err := b.SaveJob(ctx, j); err != nil {
				t.Fatalf("SaveJob() error = %v", err)
			}
		}

		older.Cursor = "u9"
		older.Processed = 10
		if err := b.SaveJob(ctx, older); err != nil {
			t.Fatalf("checkpoint SaveJob() error = %v", err)
		}

		loaded, err := b.LoadJob(ctx, "j1")
		if err != nil {
			t.Fatalf("LoadJob() error = %v", err)
		}
		if loaded.Cursor != "u9" || loaded.Processed != 10 || loaded.Kind != preference.FanOutDefaultAdded {
			t.Errorf("LoadJob() = %+v", loaded)
		}
		if _, err := b.LoadJob(ctx, "nope"); !errors.Is(err, preference.ErrNotFound) {
			t.Errorf("LoadJob(nope) error = %v, want ErrNotFound", err)
		}

		pending, err := b.PendingJobs(ctx)
		if err != nil {
			t.Fatalf("PendingJobs() error = %v", err)
		}
		if len(pending) != 2 || pending[0].ID != "j1" || pending[1].ID != "j2" {
			t.Errorf("PendingJobs() = %v, want [j1 j2]", jobIDs(pending))
		}
	})
}

func samplePreference(userID string) *preference.Preference {
	now := time.Now().UTC()
	return &preference.Preference{
		UserID:        userID,
		SourceWeights: preference.SourceWeights{"s1": 0.5, "s2": 0.5},
		TagVector:     []float64{0.5, 0.5},
		KeywordVector: []float64{0.01, 0.01, 0.01},
		Subscriptions: []string{"s2"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func assertStrings(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func jobIDs(jobs []*preference.FanOutJob) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}
