// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

// mockRepository implements Repository, Catalog and JobStore in memory.
type mockRepository struct {
	mu       sync.Mutex
	records  map[string]*Preference
	defaults map[string]bool
	jobs     map[string]*FanOutJob
	jobOrder []string

	// conflictsLeft makes the next N saves of an existing record fail with
	// ErrConcurrentUpdate.
	conflictsLeft atomic.Int32
	saveErr       error
	loadErr       error
	saves         atomic.Int32
}

func newMockRepository(defaults ...string) *mockRepository {
	m := &mockRepository{
		records:  make(map[string]*Preference),
		defaults: make(map[string]bool),
		jobs:     make(map[string]*FanOutJob),
	}
	for _, id := range defaults {
		m.defaults[id] = true
	}
	return m
}

func (m *mockRepository) Load(_ context.Context, userID string) (*Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	p, ok := m.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *mockRepository) Save(_ context.Context, p *Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}

	stored, exists := m.records[p.UserID]
	switch {
	case p.Version == 0 && exists:
		return ErrConcurrentUpdate
	case p.Version > 0 && (!exists || stored.Version != p.Version):
		return ErrConcurrentUpdate
	}
	if exists && m.conflictsLeft.Load() > 0 {
		m.conflictsLeft.Add(-1)
		return ErrConcurrentUpdate
	}

	p.Version++
	m.records[p.UserID] = p.Clone()
	m.saves.Add(1)
	return nil
}

func (m *mockRepository) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

func (m *mockRepository) UserIDs(_ context.Context, after string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *mockRepository) Close() error { return nil }

func (m *mockRepository) DefaultSources(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.defaults))
	for id, ok := range m.defaults {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockRepository) SetDefault(_ context.Context, sourceID string, isDefault bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults[sourceID] = isDefault
	return nil
}

func (m *mockRepository) SaveJob(_ context.Context, job *FanOutJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		m.jobOrder = append(m.jobOrder, job.ID)
	}
	c := *job
	m.jobs[job.ID] = &c
	return nil
}

func (m *mockRepository) LoadJob(_ context.Context, id string) (*FanOutJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *job
	return &c, nil
}

func (m *mockRepository) PendingJobs(_ context.Context) ([]*FanOutJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*FanOutJob
	for _, id := range m.jobOrder {
		if job := m.jobs[id]; !job.Done {
			c := *job
			out = append(out, &c)
		}
	}
	return out, nil
}

// put stores p directly, bypassing version checks.
func (m *mockRepository) put(p *Preference) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := p.Clone()
	if c.Version == 0 {
		c.Version = 1
	}
	m.records[p.UserID] = c
}

func (m *mockRepository) get(userID string) *Preference {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.records[userID]; ok {
		return p.Clone()
	}
	return nil
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Dimensions.TagDim = 4
	cfg.Dimensions.KeywordDim = 3
	cfg.Concurrency.RetryBackoff = 0
	return cfg
}

// newTestUpdater wires an Updater over a fresh mock repository holding the
// given default sources.
func newTestUpdater(t testing.TB, defaults ...string) (*Updater, *mockRepository) {
	t.Helper()
	repo := newMockRepository(defaults...)
	cfg := testConfig()
	store := NewStore(repo, repo, cfg, zerolog.Nop())
	u, err := NewUpdater(store, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewUpdater() error = %v", err)
	}
	return u, repo
}

func approxEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	return d < eps && d > -eps
}
