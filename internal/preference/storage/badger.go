// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/campusfeed/internal/metrics"
	"github.com/tomtom215/campusfeed/internal/preference"
)

// Key prefixes for BadgerDB storage
const (
	prefKeyPrefix    = "pref:"
	defaultKeyPrefix = "default:"
	jobKeyPrefix     = "job:"
)

const backendBadger = "badger"

// BadgerRepository stores records as JSON values in BadgerDB.
type BadgerRepository struct {
	db     *badger.DB
	ownsDB bool
}

// BadgerConfig configures OpenBadger.
type BadgerConfig struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory keeps all data in RAM.
	InMemory bool `koanf:"in_memory"`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `koanf:"sync_writes"`
}

// OpenBadger opens (or creates) a BadgerDB and wraps it.
func OpenBadger(cfg BadgerConfig) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	return &BadgerRepository{db: db, ownsDB: true}, nil
}

// NewBadgerRepository wraps an already open database. Close leaves db open.
func NewBadgerRepository(db *badger.DB) *BadgerRepository {
	return &BadgerRepository{db: db}
}

// Load implements preference.Repository.
func (r *BadgerRepository) Load(_ context.Context, userID string) (*preference.Preference, error) {
	start := time.Now()
	var p preference.Preference

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return preference.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get preference: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})

	metrics.RecordStorageOperation(backendBadger, "load", time.Since(start), ignoreNotFound(err))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save implements preference.Repository. The version check and the write
// share one transaction; a commit conflict with another writer is also
// reported as ErrConcurrentUpdate.
func (r *BadgerRepository) Save(_ context.Context, p *preference.Preference) error {
	start := time.Now()
	next := p.Clone()
	next.Version = p.Version + 1

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal preference: %w", err)
	}

	key := []byte(prefKeyPrefix + p.UserID)
	err = r.db.Update(func(txn *badger.Txn) error {
		var stored uint64
		exists := false

		item, err := txn.Get(key)
		switch {
		case err == nil:
			exists = true
			var current preference.Preference
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return fmt.Errorf("decode stored preference: %w", err)
			}
			stored = current.Version
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("get preference: %w", err)
		}

		if err := checkVersion(p.Version, exists, stored); err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrConflict) {
		err = preference.ErrConcurrentUpdate
	}

	metrics.RecordStorageOperation(backendBadger, "save", time.Since(start), ignoreConflict(err))
	if err != nil {
		return err
	}
	p.Version = next.Version
	return nil
}

// Delete implements preference.Repository.
func (r *BadgerRepository) Delete(_ context.Context, userID string) error {
	start := time.Now()
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(prefKeyPrefix + userID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete preference: %w", err)
		}
		return nil
	})
	metrics.RecordStorageOperation(backendBadger, "delete", time.Since(start), err)
	return err
}

// UserIDs implements preference.Repository.
func (r *BadgerRepository) UserIDs(_ context.Context, after string, limit int) ([]string, error) {
	var ids []string

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefKeyPrefix)
		for it.Seek([]byte(prefKeyPrefix + after)); it.ValidForPrefix(prefix); it.Next() {
			id := strings.TrimPrefix(string(it.Item().Key()), prefKeyPrefix)
			if id <= after {
				continue
			}
			ids = append(ids, id)
			if limit > 0 && len(ids) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

// Close implements preference.Repository.
func (r *BadgerRepository) Close() error {
	if !r.ownsDB {
		return nil
	}
	return r.db.Close()
}

// DefaultSources implements preference.Catalog.
func (r *BadgerRepository) DefaultSources(_ context.Context) ([]string, error) {
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(defaultKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), defaultKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list default sources: %w", err)
	}
	return ids, nil
}

// SetDefault implements preference.Catalog.
func (r *BadgerRepository) SetDefault(_ context.Context, sourceID string, isDefault bool) error {
	key := []byte(defaultKeyPrefix + sourceID)
	return r.db.Update(func(txn *badger.Txn) error {
		if isDefault {
			return txn.Set(key, []byte{1})
		}
		if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
}

// SaveJob implements preference.JobStore.
func (r *BadgerRepository) SaveJob(_ context.Context, job *preference.FanOutJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(jobKeyPrefix+job.ID), data)
	})
}

// LoadJob implements preference.JobStore.
func (r *BadgerRepository) LoadJob(_ context.Context, id string) (*preference.FanOutJob, error) {
	var job preference.FanOutJob
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(jobKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return preference.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &job)
		})
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// PendingJobs implements preference.JobStore.
func (r *BadgerRepository) PendingJobs(_ context.Context) ([]*preference.FanOutJob, error) {
	var jobs []*preference.FanOutJob
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(jobKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var job preference.FanOutJob
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				return err
			}
			if !job.Done {
				jobs = append(jobs, &job)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	sortJobs(jobs)
	return jobs, nil
}

// RunGC runs value log garbage collection until nothing is left to reclaim.
// Returns the number of value log files rewritten.
func (r *BadgerRepository) RunGC(discardRatio float64) (int, error) {
	rewritten := 0
	for {
		err := r.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return rewritten, nil
		}
		if err != nil {
			return rewritten, fmt.Errorf("value log gc: %w", err)
		}
		rewritten++
	}
}

// Stats reports the LSM and value log sizes in bytes.
func (r *BadgerRepository) Stats() (lsm, vlog int64) {
	return r.db.Size()
}

func ignoreNotFound(err error) error {
	if errors.Is(err, preference.ErrNotFound) {
		return nil
	}
	return err
}

func ignoreConflict(err error) error {
	if errors.Is(err, preference.ErrConcurrentUpdate) {
		return nil
	}
	return err
}
