// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"context"
	"errors"
	"fmt"
	"bytes"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/metrics"
)

func TestNewUpdater(t *testing.T) {
	if _, err := NewUpdater(nil, nil, zerolog.Nop()); err == nil {
		t.Error("NewUpdater(nil store) expected error")
	}

	repo := newMockRepository()
	cfg := DefaultConfig()
	cfg.Decay.BrowseAlpha = 2
	if _, err := NewUpdater(NewStore(repo, repo, cfg, zerolog.Nop()), cfg, zerolog.Nop()); err == nil {
		t.Error("NewUpdater(invalid config) expected error")
	}
}

func TestUpdater_SubscribeThenFavorite(t *testing.T) {
	u, repo := newTestUpdater(t, "s1", "s2", "s3", "s4")
	ctx := context.Background()

	p, err := u.Init(ctx, "u1")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	assertWeights(t, p.SourceWeights, SourceWeights{"s1": 0.25, "s2": 0.25, "s3": 0.25, "s4": 0.25})

	if err := u.Subscribe(ctx, "u1", "s5"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	assertWeights(t, repo.get("u1").SourceWeights,
		SourceWeights{"s1": 0.2, "s2": 0.2, "s3": 0.2, "s4": 0.2, "s5": 0.2})

	article := &Article{ID: "a1", SourceID: "s5"}
	if err := u.RecordAction(ctx, "u1", article, ActionFavorite); err != nil {
		t.Fatalf("RecordAction() error = %v", err)
	}

	got := repo.get("u1")
	if !approxEqual(got.SourceWeights["s5"], 0.36) {
		t.Errorf("w(s5) = %v, want 0.36", got.SourceWeights["s5"])
	}
	others := got.SourceWeights.Sum() - got.SourceWeights["s5"]
	if !approxEqual(others, 0.64) {
		t.Errorf("sum of others = %v, want 0.64", others)
	}
	if !got.IsSubscribed("s5") {
		t.Error("s5 not recorded as a subscription")
	}
}

func TestUpdater_Init(t *testing.T) {
	u, repo := newTestUpdater(t, "s1", "s2")
	ctx := context.Background()

	if _, err := u.Init(ctx, "u1"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	saves := repo.saves.Load()

	// Already initialized: nothing to write.
	if _, err := u.Init(ctx, "u1"); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	if repo.saves.Load() != saves {
		t.Error("Init() on an initialized record saved again")
	}

	// Empty map is re-seeded from the current defaults.
	repo.put(&Preference{UserID: "u2", SourceWeights: SourceWeights{}, TagVector: Uniform(4, 0.25), KeywordVector: Uniform(3, 0.01)})
	p, err := u.Init(ctx, "u2")
	if err != nil {
		t.Fatalf("Init(u2) error = %v", err)
	}
	assertWeights(t, p.SourceWeights, SourceWeights{"s1": 0.5, "s2": 0.5})

	if _, err := u.Init(ctx, ""); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("Init(\"\") error = %v, want ErrInvalidUserID", err)
	}
}

func TestUpdater_Subscribe_AlreadySubscribed(t *testing.T) {
	u, repo := newTestUpdater(t, "s1")
	ctx := context.Background()

	if err := u.Subscribe(ctx, "u1", "s2"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	before := repo.get("u1")

	err := u.Subscribe(ctx, "u1", "s2")
	if !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("second Subscribe() error = %v, want ErrAlreadySubscribed", err)
	}

	after := repo.get("u1")
	if after.Version != before.Version {
		t.Errorf("rejected Subscribe() changed version %d -> %d", before.Version, after.Version)
	}
	assertWeights(t, after.SourceWeights, before.SourceWeights)
}

func TestUpdater_Subscribe_DefaultSourceWeightUntouched(t *testing.T) {
	u, repo := newTestUpdater(t, "s1", "s2")
	ctx := context.Background()

	// Subscribing to a default the user already follows records the
	// subscription without inserting a second share.
	if err := u.Subscribe(ctx, "u1", "s1"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	got := repo.get("u1")
	assertWeights(t, got.SourceWeights, SourceWeights{"s1": 0.5, "s2": 0.5})
	if !got.IsSubscribed("s1") {
		t.Error("s1 not recorded as a subscription")
	}
}

func TestUpdater_Unsubscribe(t *testing.T) {
	u, repo := newTestUpdater(t, "s1", "s2")
	ctx := context.Background()

	if err := u.Subscribe(ctx, "u1", "s3"); err != nil {
		t.Fatalf("Subscribe(s3) error = %v", err)
	}
	if err := u.Subscribe(ctx, "u1", "s1"); err != nil {
		t.Fatalf("Subscribe(s1) error = %v", err)
	}

	if err := u.Unsubscribe(ctx, "u1", "s3"); err != nil {
		t.Fatalf("Unsubscribe(s3) error = %v", err)
	}
	assertWeights(t, repo.get("u1").SourceWeights, SourceWeights{"s1": 0.5, "s2": 0.5})

	// s1 is a default: the subscription goes, the weight stays.
	if err := u.Unsubscribe(ctx, "u1", "s1"); err != nil {
		t.Fatalf("Unsubscribe(s1) error = %v", err)
	}
	got := repo.get("u1")
	if got.IsSubscribed("s1") {
		t.Error("s1 still subscribed")
	}
	assertWeights(t, got.SourceWeights, SourceWeights{"s1": 0.5, "s2": 0.5})
}

func TestUpdater_Unsubscribe_NotSubscribed(t *testing.T) {
	u, repo := newTestUpdater(t, "s1", "s2")
	ctx := context.Background()

	if _, err := u.Init(ctx, "u1"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	before := repo.get("u1")

	err := u.Unsubscribe(ctx, "u1", "s9")
	if !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("Unsubscribe() error = %v, want ErrNotSubscribed", err)
	}
	if repo.get("u1").Version != before.Version {
		t.Error("rejected Unsubscribe() saved the record")
	}
}

func TestUpdater_Unsubscribe_LastSource(t *testing.T) {
	u, repo := newTestUpdater(t)
	ctx := context.Background()

	if err := u.Subscribe(ctx, "u1", "only"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := u.Unsubscribe(ctx, "u1", "only"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if got := repo.get("u1").SourceWeights; len(got) != 0 {
		t.Errorf("SourceWeights = %v, want empty", got)
	}
}

func TestUpdater_RecordAction_Bootstraps(t *testing.T) {
	u, repo := newTestUpdater(t, "s1", "s2")
	ctx := context.Background()

	err := u.RecordAction(ctx, "u1", &Article{ID: "a1", SourceID: "stranger"}, ActionBrowse)
	if err != nil {
		t.Fatalf("RecordAction() error = %v", err)
	}
	assertWeights(t, repo.get("u1").SourceWeights, SourceWeights{"s1": 0.45, "s2": 0.45, "stranger": 0.1})
}

func TestUpdater_RecordAction_BlendsVectors(t *testing.T) {
	u, repo := newTestUpdater(t, "s1")
	ctx := context.Background()

	article := &Article{
		ID:             "a1",
		SourceID:       "s1",
		TagVector:      []float64{1, 0, 0, 0},
		SemanticVector: []float64{0.5, 0.5, 0},
	}
	if err := u.RecordAction(ctx, "u1", article, ActionBrowse); err != nil {
		t.Fatalf("RecordAction() error = %v", err)
	}

	got := repo.get("u1")
	wantTag := []float64{0.25 + 0.1*(1-0.25), 0.25 * 0.9, 0.25 * 0.9, 0.25 * 0.9}
	for i, w := range wantTag {
		if !approxEqual(got.TagVector[i], w) {
			t.Errorf("TagVector[%d] = %v, want %v", i, got.TagVector[i], w)
		}
	}
	wantKw := []float64{0.01 + 0.1*(0.5-0.01), 0.01 + 0.1*(0.5-0.01), 0.01 * 0.9}
	for i, w := range wantKw {
		if !approxEqual(got.KeywordVector[i], w) {
			t.Errorf("KeywordVector[%d] = %v, want %v", i, got.KeywordVector[i], w)
		}
	}
}

func TestUpdater_RecordAction_DimensionMismatchSkipsOnlyThatVector(t *testing.T) {
	u, repo := newTestUpdater(t, "s1", "s2")
	ctx := context.Background()

	article := &Article{
		ID:             "a1",
		SourceID:       "s1",
		TagVector:      []float64{1, 0},
		SemanticVector: []float64{1, 0, 0},
	}
	if err := u.RecordAction(ctx, "u1", article, ActionFavorite); err != nil {
		t.Fatalf("RecordAction() error = %v", err)
	}

	got := repo.get("u1")
	if got == nil || len(got.TagVector) != 4 {
		t.Fatalf("stored record = %+v, want a 4-dim tag vector", got)
	}
	for i, v := range got.TagVector {
		if !approxEqual(v, 0.25) {
			t.Errorf("TagVector[%d] = %v, want untouched 0.25", i, v)
		}
	}
	if approxEqual(got.KeywordVector[0], 0.01) {
		t.Error("KeywordVector was not blended")
	}
	if !approxEqual(got.SourceWeights["s1"], 0.6) {
		t.Errorf("w(s1) = %v, want 0.6", got.SourceWeights["s1"])
	}
}

func TestUpdater_RecordAction_SingleSave(t *testing.T) {
	u, repo := newTestUpdater(t, "s1")
	ctx := context.Background()

	if _, err := u.Init(ctx, "u1"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	saves := repo.saves.Load()

	article := &Article{ID: "a1", SourceID: "s1", TagVector: []float64{1, 0, 0, 0}, SemanticVector: []float64{0, 1, 0}}
	if err := u.RecordAction(ctx, "u1", article, ActionBrowse); err != nil {
		t.Fatalf("RecordAction() error = %v", err)
	}
	if n := repo.saves.Load() - saves; n != 1 {
		t.Errorf("RecordAction() saved %d times, want 1", n)
	}
}

func TestUpdater_RecordAction_Invalid(t *testing.T) {
	u, _ := newTestUpdater(t, "s1")
	ctx := context.Background()

	if err := u.RecordAction(ctx, "u1", &Article{ID: "a1"}, ActionBrowse); !errors.Is(err, ErrInvalidSourceID) {
		t.Errorf("missing source error = %v, want ErrInvalidSourceID", err)
	}
	if err := u.RecordAction(ctx, "u1", &Article{ID: "a1", SourceID: "s1"}, ActionKind(7)); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("bad action error = %v, want ErrUnknownAction", err)
	}
}

func TestUpdater_RetriesOnConflict(t *testing.T) {
	u, repo := newTestUpdater(t, "s1")
	ctx := context.Background()

	if _, err := u.Init(ctx, "u1"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	repo.conflictsLeft.Store(2)

	if err := u.Subscribe(ctx, "u1", "s2"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, conflicts := u.Stats(); conflicts != 2 {
		t.Errorf("conflicts = %d, want 2", conflicts)
	}
	assertWeights(t, repo.get("u1").SourceWeights, SourceWeights{"s1": 0.5, "s2": 0.5})
}

func TestUpdater_ConflictRetriesExhausted(t *testing.T) {
	u, repo := newTestUpdater(t, "s1")
	ctx := context.Background()

	if _, err := u.Init(ctx, "u1"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	before := repo.get("u1")
	repo.conflictsLeft.Store(100)

	err := u.Subscribe(ctx, "u1", "s2")
	if !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("Subscribe() error = %v, want ErrConcurrentUpdate", err)
	}
	if !IsTransient(err) {
		t.Error("IsTransient() = false for exhausted retries")
	}

	after := repo.get("u1")
	if after.Version != before.Version || after.IsSubscribed("s2") {
		t.Error("failed Subscribe() changed the stored record")
	}
}

func TestUpdater_SaveErrorLeavesRecordUnchanged(t *testing.T) {
	u, repo := newTestUpdater(t, "s1", "s2")
	ctx := context.Background()

	if _, err := u.Init(ctx, "u1"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	before := repo.get("u1")
	repo.saveErr = errors.New("write failed")

	err := u.RecordAction(ctx, "u1", &Article{ID: "a", SourceID: "s1"}, ActionFavorite)
	if err == nil {
		t.Fatal("RecordAction() expected error")
	}
	if IsTransient(err) {
		t.Error("IsTransient() = true for a storage failure")
	}

	after := repo.get("u1")
	assertWeights(t, after.SourceWeights, before.SourceWeights)
	if after.Version != before.Version {
		t.Error("failed RecordAction() changed the version")
	}
}

func TestUpdater_ContextCanceled(t *testing.T) {
	u, _ := newTestUpdater(t, "s1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := u.Subscribe(ctx, "u1", "s2"); !errors.Is(err, context.Canceled) {
		t.Errorf("Subscribe() error = %v, want context.Canceled", err)
	}
}

func TestUpdater_ConcurrentActionsSameUser(t *testing.T) {
	u, repo := newTestUpdater(t, "s1", "s2", "s3")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := fmt.Sprintf("s%d", i%3+1)
			if err := u.RecordAction(ctx, "u1", &Article{ID: "a", SourceID: src}, ActionBrowse); err != nil {
				t.Errorf("RecordAction() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	got := repo.get("u1")
	if math.Abs(got.SourceWeights.Sum()-1) > 1e-9 {
		t.Errorf("sum = %v after concurrent actions", got.SourceWeights.Sum())
	}
	// One create plus one save per action.
	if got.Version != 41 {
		t.Errorf("Version = %d, want 41", got.Version)
	}
}

func TestUpdater_ApplyDefaultAddedAndRemoved(t *testing.T) {
	u, repo := newTestUpdater(t, "s1", "s2")
	ctx := context.Background()

	if err := u.Subscribe(ctx, "u1", "s3"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	applied, err := u.ApplyDefaultAdded(ctx, "u1", "s4")
	if err != nil || !applied {
		t.Fatalf("ApplyDefaultAdded() = %v, %v; want applied", applied, err)
	}
	assertWeights(t, repo.get("u1").SourceWeights,
		SourceWeights{"s1": 0.25, "s2": 0.25, "s3": 0.25, "s4": 0.25})

	applied, err = u.ApplyDefaultAdded(ctx, "u1", "s4")
	if err != nil || applied {
		t.Errorf("repeated ApplyDefaultAdded() = %v, %v; want no-op", applied, err)
	}

	// s3 is explicitly subscribed and survives losing default status.
	applied, err = u.ApplyDefaultRemoved(ctx, "u1", "s3")
	if err != nil || applied {
		t.Errorf("ApplyDefaultRemoved(subscribed) = %v, %v; want no-op", applied, err)
	}

	applied, err = u.ApplyDefaultRemoved(ctx, "u1", "s4")
	if err != nil || !applied {
		t.Fatalf("ApplyDefaultRemoved() = %v, %v; want applied", applied, err)
	}
	got := repo.get("u1").SourceWeights
	if got.Has("s4") || !approxEqual(got.Sum(), 1) {
		t.Errorf("SourceWeights = %v after removal", got)
	}
}

func TestUpdater_ApplyDefaultAdded_EmptyMap(t *testing.T) {
	u, repo := newTestUpdater(t, "s1")
	ctx := context.Background()

	repo.put(&Preference{UserID: "u1", SourceWeights: SourceWeights{}, TagVector: Uniform(4, 0.25), KeywordVector: Uniform(3, 0.01)})
	if err := repo.SetDefault(ctx, "s2", true); err != nil {
		t.Fatalf("SetDefault() error = %v", err)
	}

	applied, err := u.ApplyDefaultAdded(ctx, "u1", "s2")
	if err != nil || !applied {
		t.Fatalf("ApplyDefaultAdded() = %v, %v", applied, err)
	}
	assertWeights(t, repo.get("u1").SourceWeights, SourceWeights{"s1": 0.5, "s2": 0.5})
}

func TestUpdater_Renormalize(t *testing.T) {
	u, repo := newTestUpdater(t, "s1")
	ctx := context.Background()

	repo.put(&Preference{
		UserID:        "u1",
		SourceWeights: SourceWeights{"a": 0.6, "b": 0.6},
		TagVector:     []float64{1, 2},
		KeywordVector: []float64{0.1, math.NaN(), 0.1},
	})

	repaired, err := u.Renormalize(ctx, "u1")
	if err != nil || !repaired {
		t.Fatalf("Renormalize() = %v, %v; want repaired", repaired, err)
	}
	got := repo.get("u1")
	assertWeights(t, got.SourceWeights, SourceWeights{"a": 0.5, "b": 0.5})
	if len(got.TagVector) != 4 {
		t.Errorf("TagVector len = %d, want 4", len(got.TagVector))
	}
	if !finite(got.KeywordVector) {
		t.Error("KeywordVector still holds NaN")
	}

	repaired, err = u.Renormalize(ctx, "u1")
	if err != nil || repaired {
		t.Errorf("second Renormalize() = %v, %v; want no-op", repaired, err)
	}
}

func TestUpdater_DeleteUser(t *testing.T) {
	u, repo := newTestUpdater(t, "s1")
	ctx := context.Background()

	if _, err := u.Init(ctx, "u1"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := u.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if repo.get("u1") != nil {
		t.Error("record still present after DeleteUser()")
	}
	if err := u.DeleteUser(ctx, ""); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("DeleteUser(\"\") error = %v, want ErrInvalidUserID", err)
	}
}

func TestUpdater_RecordAction_MissingVectorIsReported(t *testing.T) {
	repo := newMockRepository("s1", "s2")
	cfg := testConfig()
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	u, err := NewUpdater(NewStore(repo, repo, cfg, logger), cfg, logger)
	if err != nil {
		t.Fatalf("NewUpdater() error = %v", err)
	}
	counter := metrics.DimensionMismatches.WithLabelValues("update", "tag_vector")
	before := testutil.ToFloat64(counter)

	article := &Article{ID: "a1", SourceID: "s1", SemanticVector: []float64{1, 0, 0}}
	if err := u.RecordAction(context.Background(), "u1", article, ActionBrowse); err != nil {
		t.Fatalf("RecordAction() error = %v", err)
	}

	got := repo.get("u1")
	if got == nil || len(got.TagVector) != 4 {
		t.Fatalf("stored record = %+v, want a 4-dim tag vector", got)
	}
	for i, v := range got.TagVector {
		if !approxEqual(v, 0.25) {
			t.Errorf("TagVector[%d] = %v, want untouched 0.25", i, v)
		}
	}
	if d := testutil.ToFloat64(counter) - before; d != 1 {
		t.Errorf("dimension mismatch counter moved by %v, want 1", d)
	}
	if out := buf.String(); !strings.Contains(out, "article has no vector, skipping blend") {
		t.Errorf("expected a debug line for the missing tag vector, got: %s", out)
	}
}
