// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"errors"
	"fmt"
)

// Sentinel errors for the preference engine.
var (
	// ErrNotFound is returned by a Repository when no record exists for a user.
	ErrNotFound = errors.New("preference not found")

	// ErrNotSubscribed indicates an unsubscribe for a source the user never
	// subscribed to. The record is left unchanged.
	ErrNotSubscribed = errors.New("source not subscribed")

	// ErrAlreadySubscribed rejects a second subscribe for the same source.
	ErrAlreadySubscribed = errors.New("source already subscribed")

	// ErrDimensionMismatch marks a vector whose length disagrees with the
	// profile. It is logged and counted, never returned from Updater or
	// Scorer operations.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrConcurrentUpdate is returned by Repository.Save when the stored
	// version no longer matches, and by the Updater once retries are spent.
	ErrConcurrentUpdate = errors.New("concurrent preference update")

	// ErrInvalidUserID rejects an empty user ID.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidSourceID rejects an empty source ID.
	ErrInvalidSourceID = errors.New("invalid source id")

	// ErrUnknownAction rejects an action kind outside browse and favorite.
	ErrUnknownAction = errors.New("unknown action kind")
)

// DimensionError describes a vector length disagreement.
type DimensionError struct {
	Field string
	Want  int
	Got   int
}

// Error implements error.
func (e *DimensionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: want %d, got %d", ErrDimensionMismatch, e.Want, e.Got)
	}
	return fmt.Sprintf("%s: %s want %d, got %d", ErrDimensionMismatch, e.Field, e.Want, e.Got)
}

// Is lets errors.Is match ErrDimensionMismatch.
func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// IsTransient reports whether err is worth retrying at a higher layer.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate)
}

// IsRejection reports whether err is a caller error that retrying cannot fix.
func IsRejection(err error) bool {
	return errors.Is(err, ErrAlreadySubscribed) ||
		errors.Is(err, ErrNotSubscribed) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidSourceID) ||
		errors.Is(err, ErrUnknownAction)
}
