// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

// Package testinfra provides test infrastructure for integration testing with containers.
//
// This package uses testcontainers-go to manage Docker containers for integration tests.
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/preference/storage/...
//
// # MySQL Container
//
// MySQLContainer starts a real MySQL server so the SQL repository can be
// exercised with its production dialect:
//
//	func TestMySQLRepository(t *testing.T) {
//	    testinfra.RequireDocker(t)
//	    ctx := context.Background()
//	    mysql, err := testinfra.NewMySQLContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    testinfra.TerminateOnCleanup(t, mysql.Container)
//	    // open storage.OpenSQL with mysql.DSN
//	}
//
// RequireDocker skips in -short mode and when Docker is unavailable.
package testinfra
