// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

//go:build integration

package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/tomtom215/campusfeed/internal/testinfra"
)

func TestMySQLRepository_Integration(t *testing.T) {
	testinfra.RequireDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	mysql, err := testinfra.NewMySQLContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to create MySQL container: %v", err)
	}
	testinfra.TerminateOnCleanup(t, mysql.Container)

	runBackendContract(t, func(t *testing.T) Backend {
		repo, err := OpenSQL(ctx, SQLConfig{Dialect: DialectMySQL, DSN: mysql.DSN})
		if err != nil {
			t.Fatalf("OpenSQL() error = %v", err)
		}
		t.Cleanup(func() {
			truncate(t, mysql.DSN)
			_ = repo.Close()
		})
		return repo
	})
}

func truncate(t *testing.T, dsn string) {
	t.Helper()
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Logf("open for truncate: %v", err)
		return
	}
	defer db.Close()
	for _, table := range []string{"preferences", "default_sources", "fanout_jobs"} {
		if _, err := db.Exec("TRUNCATE TABLE " + table); err != nil {
			t.Logf("truncate %s: %v", table, err)
		}
	}
}
