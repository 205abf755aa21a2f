// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package events

import "errors"

// Sentinel errors for event processing.
var (
	// ErrInvalidEvent is returned when an event fails validation.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrUnknownEventType is returned for an event type with no handler.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrPublisherClosed is returned when publishing after Close.
	ErrPublisherClosed = errors.New("publisher is closed")

	// ErrRouterNotRunning is returned by HealthCheck before Run starts.
	ErrRouterNotRunning = errors.New("router is not running")

	// ErrNATSNotCompiled is returned when the nats transport is configured
	// in a binary built without the nats tag.
	ErrNATSNotCompiled = errors.New("nats transport not compiled in (build with -tags nats)")

	// ErrUnknownTransport is returned for a transport name other than
	// gochannel or nats.
	ErrUnknownTransport = errors.New("unknown event transport")
)

// PermanentError marks a message that must not be retried. The retry
// middleware skips it and the poison queue receives it immediately.
type PermanentError struct {
	Message string
	Cause   error
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, cause error) *PermanentError {
	return &PermanentError{Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// RetryableError marks a transient failure such as an exhausted optimistic
// update or an unavailable store.
type RetryableError struct {
	Message string
	Cause   error
}

// NewRetryableError creates a new retryable error.
func NewRetryableError(message string, cause error) *RetryableError {
	return &RetryableError{Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *RetryableError) Unwrap() error {
	return e.Cause
}

// IsPermanent reports whether err, or anything it wraps, is a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsRetryable reports whether err, or anything it wraps, is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
