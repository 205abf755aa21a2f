// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/campusfeed/internal/preference"
	"github.com/tomtom215/campusfeed/internal/validation"
)

// SchemaVersion is the current event envelope version.
const SchemaVersion = 1

// EventType identifies a lifecycle event.
type EventType string

// Lifecycle event types.
const (
	TypeUserCreated          EventType = "user.created"
	TypeUserDeleted          EventType = "user.deleted"
	TypeSubscriptionAdded    EventType = "subscription.added"
	TypeSubscriptionRemoved  EventType = "subscription.removed"
	TypeActionRecorded       EventType = "action.recorded"
	TypeDefaultSourceAdded   EventType = "source.default_added"
	TypeDefaultSourceRemoved EventType = "source.default_removed"
)

// TopicPrefix is prepended to the event type to form the topic name.
const TopicPrefix = "feed."

// Topics.
const (
	TopicUserCreated          = TopicPrefix + string(TypeUserCreated)
	TopicUserDeleted          = TopicPrefix + string(TypeUserDeleted)
	TopicSubscriptionAdded    = TopicPrefix + string(TypeSubscriptionAdded)
	TopicSubscriptionRemoved  = TopicPrefix + string(TypeSubscriptionRemoved)
	TopicActionRecorded       = TopicPrefix + string(TypeActionRecorded)
	TopicDefaultSourceAdded   = TopicPrefix + string(TypeDefaultSourceAdded)
	TopicDefaultSourceRemoved = TopicPrefix + string(TypeDefaultSourceRemoved)

	// TopicPoison receives messages that failed every retry.
	TopicPoison = TopicPrefix + "poison"
)

// AllTypes lists every event type the router subscribes to.
var AllTypes = []EventType{
	TypeUserCreated,
	TypeUserDeleted,
	TypeSubscriptionAdded,
	TypeSubscriptionRemoved,
	TypeActionRecorded,
	TypeDefaultSourceAdded,
	TypeDefaultSourceRemoved,
}

// Topic returns the topic name for the event type.
func (t EventType) Topic() string {
	return TopicPrefix + string(t)
}

// Known reports whether t is one of AllTypes.
func (t EventType) Known() bool {
	for _, k := range AllTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Event is the envelope of every lifecycle event.
type Event struct {
	SchemaVersion int       `json:"schema_version" validate:"gte=1"`
	EventID       string    `json:"event_id" validate:"required,uuid"`
	Type          EventType `json:"type" validate:"required"`
	Timestamp     time.Time `json:"timestamp" validate:"required"`

	UserID   string `json:"user_id,omitempty" validate:"omitempty,entityid"`
	SourceID string `json:"source_id,omitempty" validate:"omitempty,entityid"`

	// Action and Article are set on action.recorded only.
	Action  *preference.ActionKind `json:"action,omitempty"`
	Article *preference.Article    `json:"article,omitempty"`
}

// NewEvent returns an envelope with a fresh event ID and the current time.
func NewEvent(t EventType) *Event {
	return &Event{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Type:          t,
		Timestamp:     time.Now().UTC(),
	}
}

// UserCreated builds a user.created event.
func UserCreated(userID string) *Event {
	e := NewEvent(TypeUserCreated)
	e.UserID = userID
	return e
}

// UserDeleted builds a user.deleted event.
func UserDeleted(userID string) *Event {
	e := NewEvent(TypeUserDeleted)
	e.UserID = userID
	return e
}

// SubscriptionAdded builds a subscription.added event.
func SubscriptionAdded(userID, sourceID string) *Event {
	e := NewEvent(TypeSubscriptionAdded)
	e.UserID = userID
	e.SourceID = sourceID
	return e
}

// SubscriptionRemoved builds a subscription.removed event.
func SubscriptionRemoved(userID, sourceID string) *Event {
	e := NewEvent(TypeSubscriptionRemoved)
	e.UserID = userID
	e.SourceID = sourceID
	return e
}

// ActionRecorded builds an action.recorded event.
func ActionRecorded(userID string, kind preference.ActionKind, article *preference.Article) *Event {
	e := NewEvent(TypeActionRecorded)
	e.UserID = userID
	e.Action = &kind
	e.Article = article
	if article != nil {
		e.SourceID = article.SourceID
	}
	return e
}

// DefaultSourceAdded builds a source.default_added event.
func DefaultSourceAdded(sourceID string) *Event {
	e := NewEvent(TypeDefaultSourceAdded)
	e.SourceID = sourceID
	return e
}

// DefaultSourceRemoved builds a source.default_removed event.
func DefaultSourceRemoved(sourceID string) *Event {
	e := NewEvent(TypeDefaultSourceRemoved)
	e.SourceID = sourceID
	return e
}

// Topic returns the topic the event is published on.
func (e *Event) Topic() string {
	return e.Type.Topic()
}

// Validate checks the envelope and the fields each type requires.
func (e *Event) Validate() error {
	if err := validation.ValidateStruct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if !e.Type.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}

	switch e.Type {
	case TypeUserCreated, TypeUserDeleted:
		if e.UserID == "" {
			return fmt.Errorf("%w: user_id is required for %s", ErrInvalidEvent, e.Type)
		}
	case TypeSubscriptionAdded, TypeSubscriptionRemoved:
		if e.UserID == "" || e.SourceID == "" {
			return fmt.Errorf("%w: user_id and source_id are required for %s", ErrInvalidEvent, e.Type)
		}
	case TypeActionRecorded:
		if e.UserID == "" {
			return fmt.Errorf("%w: user_id is required for %s", ErrInvalidEvent, e.Type)
		}
		if e.Action == nil {
			return fmt.Errorf("%w: action is required for %s", ErrInvalidEvent, e.Type)
		}
		if e.Article == nil {
			return fmt.Errorf("%w: article is required for %s", ErrInvalidEvent, e.Type)
		}
		if err := validation.ValidateStruct(e.Article); err != nil {
			return fmt.Errorf("%w: article: %v", ErrInvalidEvent, err)
		}
	case TypeDefaultSourceAdded, TypeDefaultSourceRemoved:
		if e.SourceID == "" {
			return fmt.Errorf("%w: source_id is required for %s", ErrInvalidEvent, e.Type)
		}
	}
	return nil
}
