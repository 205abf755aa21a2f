// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

/*
Package events carries the user and source lifecycle events that drive the
preference engine.

Every state change of a profile starts life as an Event on one of the
feed.* topics. A Watermill router consumes those topics and dispatches each
event to the preference.Updater (user, subscription and action events) or
to the preference.FanOut (default source events). One event is one command
and one atomic read-modify-write of a single profile.

# Topics

	feed.user.created            Init a profile from the current defaults
	feed.user.deleted            Cascade delete of the profile
	feed.subscription.added      Subscribe (bootstrap weight)
	feed.subscription.removed    Unsubscribe (prune and renormalize)
	feed.action.recorded         Browse or favorite (decay update)
	feed.source.default_added    Fan-out insert for every user
	feed.source.default_removed  Fan-out remove for every user
	feed.poison                  Messages that failed all retries

# Delivery

Transports deliver at least once. The router deduplicates on the event ID
with a TTL LRU so a redelivered action event does not decay a profile twice.
Caller errors such as preference.ErrAlreadySubscribed are logged and acked.
Malformed payloads skip the retry middleware and go straight to the poison
queue. Everything else is retried with exponential backoff.

# Transports

The default transport is the in-process Watermill gochannel pubsub. Builds
with the nats tag add a NATS JetStream transport, optionally backed by an
embedded nats-server:

	go build -tags nats ./cmd/server
*/
package events
