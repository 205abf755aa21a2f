// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

/*
Package storage provides the persistence backends for preference records,
the default-source catalog and fan-out checkpoints.

Every backend implements preference.Repository, preference.Catalog and
preference.JobStore under the same optimistic contract: a Save with
Version 0 creates, any other Save is a compare-and-swap on the stored
version, and a lost race is reported as preference.ErrConcurrentUpdate.

# Backends

  - Memory: maps behind a mutex. Tests and single-process development.
  - Badger: embedded key-value store; records are JSON values under
    prefixed keys and the version check runs inside a read-write
    transaction.
  - SQL: database/sql with a sqlite (modernc.org/sqlite) or mysql
    (go-sql-driver/mysql) dialect. The version check is a conditional
    UPDATE.

Open selects a backend from Config. Wrap the result with NewBreaker to shed
load while the backend is failing.
*/
package storage
