// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

/*
Package cache provides a bounded, thread-safe LRU key set with per-entry TTL.

The event router uses it to remember recently processed event IDs so a
redelivered action event is dropped instead of decaying a profile twice.

	seen := cache.NewLRU[string](100000, 10*time.Minute)
	if seen.IsDuplicate(eventID) {
	    return nil // already applied
	}

Expiration is lazy: an expired entry is dropped when it is next touched or
by CleanupExpired. Capacity is enforced on every insert by evicting the
least recently used entry, so memory stays bounded under sustained traffic.
*/
package cache
