// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/campusfeed/internal/preference"
)

// MemoryRepository keeps everything in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	records  map[string]*preference.Preference
	defaults map[string]struct{}
	jobs     map[string]*preference.FanOutJob
}

// NewMemoryRepository creates an empty in-memory backend.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:  make(map[string]*preference.Preference),
		defaults: make(map[string]struct{}),
		jobs:     make(map[string]*preference.FanOutJob),
	}
}

// Load implements preference.Repository.
func (m *MemoryRepository) Load(_ context.Context, userID string) (*preference.Preference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.records[userID]
	if !ok {
		return nil, preference.ErrNotFound
	}
	return p.Clone(), nil
}

// Save implements preference.Repository.
func (m *MemoryRepository) Save(_ context.Context, p *preference.Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.records[p.UserID]
	if err := checkVersion(p.Version, exists, storedVersion(stored)); err != nil {
		return err
	}

	p.Version++
	m.records[p.UserID] = p.Clone()
	return nil
}

// Delete implements preference.Repository.
func (m *MemoryRepository) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

// UserIDs implements preference.Repository.
func (m *MemoryRepository) UserIDs(_ context.Context, after string, limit int) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		if id > after {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Close implements preference.Repository.
func (m *MemoryRepository) Close() error {
	return nil
}

// DefaultSources implements preference.Catalog.
func (m *MemoryRepository) DefaultSources(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.defaults))
	for id := range m.defaults {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// SetDefault implements preference.Catalog.
func (m *MemoryRepository) SetDefault(_ context.Context, sourceID string, isDefault bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isDefault {
		m.defaults[sourceID] = struct{}{}
	} else {
		delete(m.defaults, sourceID)
	}
	return nil
}

// SaveJob implements preference.JobStore.
func (m *MemoryRepository) SaveJob(_ context.Context, job *preference.FanOutJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *job
	m.jobs[job.ID] = &c
	return nil
}

// LoadJob implements preference.JobStore.
func (m *MemoryRepository) LoadJob(_ context.Context, id string) (*preference.FanOutJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, preference.ErrNotFound
	}
	c := *job
	return &c, nil
}

// PendingJobs implements preference.JobStore.
func (m *MemoryRepository) PendingJobs(_ context.Context) ([]*preference.FanOutJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*preference.FanOutJob
	for _, job := range m.jobs {
		if !job.Done {
			c := *job
			out = append(out, &c)
		}
	}
	sortJobs(out)
	return out, nil
}

// Len returns the number of stored preference records.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func storedVersion(p *preference.Preference) uint64 {
	if p == nil {
		return 0
	}
	return p.Version
}

// checkVersion applies the optimistic contract shared by every backend.
func checkVersion(incoming uint64, exists bool, stored uint64) error {
	switch {
	case incoming == 0 && exists:
		return preference.ErrConcurrentUpdate
	case incoming > 0 && !exists:
		return preference.ErrConcurrentUpdate
	case incoming > 0 && stored != incoming:
		return preference.ErrConcurrentUpdate
	}
	return nil
}

func sortJobs(jobs []*preference.FanOutJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}
