// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Register the mysql driver.
	_ "github.com/go-sql-driver/mysql"
	"github.com/goccy/go-json"

	// Register the pure Go sqlite driver.
	_ "modernc.org/sqlite"

	"github.com/tomtom215/campusfeed/internal/metrics"
	"github.com/tomtom215/campusfeed/internal/preference"
)

// Dialect selects SQL syntax that differs between engines.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// SQLConfig configures OpenSQL.
type SQLConfig struct {
	Dialect Dialect `koanf:"dialect"`
	DSN     string  `koanf:"dsn"`

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// SQLRepository stores each record as a JSON document next to its version
// column, so the optimistic check is a single conditional UPDATE.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	q       queries
}

type queries struct {
	insertPref    string
	updatePref    string
	setDefault    string
	upsertJob     string
	schema        []string
	driverName    string
	backendMetric string
}

func queriesFor(d Dialect) (queries, error) {
	switch d {
	case DialectSQLite:
		return queries{
			driverName:    "sqlite",
			backendMetric: "sqlite",
			insertPref:    `INSERT OR IGNORE INTO preferences (user_id, version, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			updatePref:    `UPDATE preferences SET version = ?, data = ?, updated_at = ? WHERE user_id = ? AND version = ?`,
			setDefault:    `INSERT OR IGNORE INTO default_sources (source_id, created_at) VALUES (?, ?)`,
			upsertJob: `INSERT INTO fanout_jobs (id, done, created_at, data) VALUES (?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET done = excluded.done, data = excluded.data`,
			schema: []string{
				`CREATE TABLE IF NOT EXISTS preferences (
					user_id TEXT PRIMARY KEY,
					version INTEGER NOT NULL,
					data TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS default_sources (
					source_id TEXT PRIMARY KEY,
					created_at DATETIME NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS fanout_jobs (
					id TEXT PRIMARY KEY,
					done INTEGER NOT NULL,
					created_at DATETIME NOT NULL,
					data TEXT NOT NULL
				)`,
			},
		}, nil
	case DialectMySQL:
		return queries{
			driverName:    "mysql",
			backendMetric: "mysql",
			insertPref:    `INSERT IGNORE INTO preferences (user_id, version, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			updatePref:    `UPDATE preferences SET version = ?, data = ?, updated_at = ? WHERE user_id = ? AND version = ?`,
			setDefault:    `INSERT IGNORE INTO default_sources (source_id, created_at) VALUES (?, ?)`,
			upsertJob: `INSERT INTO fanout_jobs (id, done, created_at, data) VALUES (?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE done = VALUES(done), data = VALUES(data)`,
			schema: []string{
				`CREATE TABLE IF NOT EXISTS preferences (
					user_id VARCHAR(128) NOT NULL PRIMARY KEY,
					version BIGINT UNSIGNED NOT NULL,
					data MEDIUMTEXT NOT NULL,
					created_at DATETIME(6) NOT NULL,
					updated_at DATETIME(6) NOT NULL
				) CHARACTER SET utf8mb4`,
				`CREATE TABLE IF NOT EXISTS default_sources (
					source_id VARCHAR(128) NOT NULL PRIMARY KEY,
					created_at DATETIME(6) NOT NULL
				) CHARACTER SET utf8mb4`,
				`CREATE TABLE IF NOT EXISTS fanout_jobs (
					id VARCHAR(64) NOT NULL PRIMARY KEY,
					done TINYINT(1) NOT NULL,
					created_at DATETIME(6) NOT NULL,
					data TEXT NOT NULL
				) CHARACTER SET utf8mb4`,
			},
		}, nil
	default:
		return queries{}, fmt.Errorf("unsupported sql dialect %q", d)
	}
}

// OpenSQL opens a connection pool, verifies it and creates the schema.
func OpenSQL(ctx context.Context, cfg SQLConfig) (*SQLRepository, error) {
	q, err := queriesFor(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(q.driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Dialect, err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 50
	}
	if cfg.Dialect == DialectSQLite {
		// database/sql pools per connection; one writer avoids SQLITE_BUSY.
		maxOpen = 1
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 10
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.Dialect, err)
	}

	r := &SQLRepository{db: db, dialect: cfg.Dialect, q: q}
	if err := r.initTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}
	return r, nil
}

// NewSQLRepository wraps an open database. The schema is created if
// missing.
func NewSQLRepository(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLRepository, error) {
	q, err := queriesFor(dialect)
	if err != nil {
		return nil, err
	}
	r := &SQLRepository{db: db, dialect: dialect, q: q}
	if err := r.initTables(ctx); err != nil {
		return nil, fmt.Errorf("init tables: %w", err)
	}
	return r, nil
}

func (r *SQLRepository) initTables(ctx context.Context) error {
	for _, stmt := range r.q.schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load implements preference.Repository.
func (r *SQLRepository) Load(ctx context.Context, userID string) (*preference.Preference, error) {
	start := time.Now()

	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM preferences WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordStorageOperation(r.q.backendMetric, "load", time.Since(start), nil)
		return nil, preference.ErrNotFound
	}
	metrics.RecordStorageOperation(r.q.backendMetric, "load", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query preference: %w", err)
	}

	var p preference.Preference
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode preference: %w", err)
	}
	return &p, nil
}

// Save implements preference.Repository.
func (r *SQLRepository) Save(ctx context.Context, p *preference.Preference) error {
	start := time.Now()
	next := p.Clone()
	next.Version = p.Version + 1

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal preference: %w", err)
	}

	var res sql.Result
	if p.Version == 0 {
		res, err = r.db.ExecContext(ctx, r.q.insertPref,
			p.UserID, next.Version, string(data), next.CreatedAt, next.UpdatedAt)
	} else {
		res, err = r.db.ExecContext(ctx, r.q.updatePref,
			next.Version, string(data), next.UpdatedAt, p.UserID, p.Version)
	}
	if err != nil {
		metrics.RecordStorageOperation(r.q.backendMetric, "save", time.Since(start), err)
		return fmt.Errorf("write preference: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	metrics.RecordStorageOperation(r.q.backendMetric, "save", time.Since(start), nil)
	if n == 0 {
		return preference.ErrConcurrentUpdate
	}

	p.Version = next.Version
	return nil
}

// Delete implements preference.Repository.
func (r *SQLRepository) Delete(ctx context.Context, userID string) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = ?`, userID)
	metrics.RecordStorageOperation(r.q.backendMetric, "delete", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	return nil
}

// UserIDs implements preference.Repository.
func (r *SQLRepository) UserIDs(ctx context.Context, after string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM preferences WHERE user_id > ? ORDER BY user_id LIMIT ?`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query user ids: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// Close implements preference.Repository.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// DefaultSources implements preference.Catalog.
func (r *SQLRepository) DefaultSources(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT source_id FROM default_sources ORDER BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("query default sources: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// SetDefault implements preference.Catalog.
func (r *SQLRepository) SetDefault(ctx context.Context, sourceID string, isDefault bool) error {
	var err error
	if isDefault {
		_, err = r.db.ExecContext(ctx, r.q.setDefault, sourceID, time.Now().UTC())
	} else {
		_, err = r.db.ExecContext(ctx, `DELETE FROM default_sources WHERE source_id = ?`, sourceID)
	}
	if err != nil {
		return fmt.Errorf("set default source: %w", err)
	}
	return nil
}

// SaveJob implements preference.JobStore.
func (r *SQLRepository) SaveJob(ctx context.Context, job *preference.FanOutJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.q.upsertJob, job.ID, job.Done, job.CreatedAt, string(data)); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// LoadJob implements preference.JobStore.
func (r *SQLRepository) LoadJob(ctx context.Context, id string) (*preference.FanOutJob, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM fanout_jobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, preference.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}

	var job preference.FanOutJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// PendingJobs implements preference.JobStore.
func (r *SQLRepository) PendingJobs(ctx context.Context) ([]*preference.FanOutJob, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM fanout_jobs WHERE done = ? ORDER BY created_at, id`, false)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*preference.FanOutJob
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var job preference.FanOutJob
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return nil, fmt.Errorf("decode job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// Ping checks that the database is reachable.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
