// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/logging"
	"github.com/tomtom215/campusfeed/internal/metrics"
	"github.com/tomtom215/campusfeed/internal/preference"
)

// Processing results used for metrics labels.
const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultInvalid  = "invalid"
	resultFailed   = "failed"
)

// HandlerStats is a snapshot of handler counters.
type HandlerStats struct {
	Processed int64
	Rejected  int64
	Invalid   int64
	Failed    int64
}

// Handler turns lifecycle events into Updater and FanOut commands.
type Handler struct {
	updater    *preference.Updater
	fanout     *preference.FanOut
	serializer *Serializer
	logger     zerolog.Logger

	processed atomic.Int64
	rejected  atomic.Int64
	invalid   atomic.Int64
	failed    atomic.Int64
}

// NewHandler creates a handler. fanout may be nil, in which case default
// source events are rejected as permanent failures.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(updater *preference.Updater, fanout *preference.FanOut, logger zerolog.Logger) (*Handler, error) {
	if updater == nil {
		return nil, errors.New("events: updater is required")
	}
	return &Handler{
		updater:    updater,
		fanout:     fanout,
		serializer: NewSerializer(),
		logger:     logger.With().Str("component", "event_handler").Logger(),
	}, nil
}

// Register adds one consumer handler per lifecycle topic to the router.
func (h *Handler) Register(r *Router, subscriber message.Subscriber) {
	for _, t := range AllTypes {
		r.AddConsumerHandler("campusfeed."+string(t), t.Topic(), subscriber, h.Handle)
	}
}

// Stats returns the handler counters.
func (h *Handler) Stats() HandlerStats {
	return HandlerStats{
		Processed: h.processed.Load(),
		Rejected:  h.rejected.Load(),
		Invalid:   h.invalid.Load(),
		Failed:    h.failed.Load(),
	}
}

// Handle processes one message. A nil return acks it. Caller errors are
// acked after logging; malformed payloads return a PermanentError; anything
// else returns a RetryableError for the retry middleware.
func (h *Handler) Handle(msg *message.Message) error {
	event, err := h.serializer.Unmarshal(msg.Payload)
	if err != nil {
		h.invalid.Add(1)
		metrics.RecordEventProcessed(msg.Metadata.Get(MetadataEventType), resultInvalid)
		h.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed event")
		return NewPermanentError("parse event", err)
	}

	ctx := logging.ContextWithCorrelationID(msg.Context(), event.EventID)
	if event.UserID != "" {
		ctx = logging.ContextWithUserID(ctx, event.UserID)
	}
	logger := h.logger.With().
		Str("event_id", event.EventID).
		Str("event_type", string(event.Type)).
		Str("user_id", event.UserID).
		Logger()

	err = h.dispatch(ctx, event)
	switch {
	case err == nil:
		h.processed.Add(1)
		metrics.RecordEventProcessed(string(event.Type), resultOK)
		logger.Debug().Msg("Event processed")
		return nil

	case preference.IsRejection(err):
		h.rejected.Add(1)
		metrics.RecordEventProcessed(string(event.Type), resultRejected)
		logger.Warn().Err(err).Str("source_id", event.SourceID).Msg("Event rejected")
		return nil

	case IsPermanent(err):
		h.invalid.Add(1)
		metrics.RecordEventProcessed(string(event.Type), resultInvalid)
		logger.Error().Err(err).Msg("Event cannot be processed")
		return err

	default:
		h.failed.Add(1)
		metrics.RecordEventProcessed(string(event.Type), resultFailed)
		logger.Warn().Err(err).Bool("transient", preference.IsTransient(err)).Msg("Event processing failed")
		return NewRetryableError(fmt.Sprintf("process %s", event.Type), err)
	}
}

func (h *Handler) dispatch(ctx context.Context, event *Event) error {
	switch event.Type {
	case TypeUserCreated:
		_, err := h.updater.Init(ctx, event.UserID)
		return err

	case TypeUserDeleted:
		return h.updater.DeleteUser(ctx, event.UserID)

	case TypeSubscriptionAdded:
		return h.updater.Subscribe(ctx, event.UserID, event.SourceID)

	case TypeSubscriptionRemoved:
		return h.updater.Unsubscribe(ctx, event.UserID, event.SourceID)

	case TypeActionRecorded:
		return h.updater.RecordAction(ctx, event.UserID, event.Article, *event.Action)

	case TypeDefaultSourceAdded:
		if h.fanout == nil {
			return NewPermanentError("default source fan-out not configured", nil)
		}
		_, err := h.fanout.DefaultSourceAdded(ctx, event.SourceID)
		return err

	case TypeDefaultSourceRemoved:
		if h.fanout == nil {
			return NewPermanentError("default source fan-out not configured", nil)
		}
		_, err := h.fanout.DefaultSourceRemoved(ctx, event.SourceID)
		return err

	default:
		return NewPermanentError("dispatch", fmt.Errorf("%w: %s", ErrUnknownEventType, event.Type))
	}
}
