// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ActionKind classifies a user action that feeds the decay model.
type ActionKind int

const (
	// ActionBrowse is a user opening an article.
	ActionBrowse ActionKind = iota + 1
	// ActionFavorite is a user saving an article to a collection.
	ActionFavorite
)

// String returns a human-readable name for the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionBrowse:
		return "browse"
	case ActionFavorite:
		return "favorite"
	default:
		return "unknown"
	}
}

// ParseActionKind converts a name produced by String back into an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "browse":
		return ActionBrowse, nil
	case "favorite", "favourite":
		return ActionFavorite, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ActionKind) MarshalText() ([]byte, error) {
	if k != ActionBrowse && k != ActionFavorite {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ActionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseActionKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Preference is the per-user profile the ranking engine scores against.
type Preference struct {
	// UserID identifies the owning user. Immutable.
	UserID string `json:"user_id"`

	// SourceWeights maps source ID to weight. Sums to 1.0 when non-empty.
	// Only the Ledger mutates it.
	SourceWeights SourceWeights `json:"source_weights"`

	// TagVector has one axis per content tag, initialized to 1/T.
	TagVector []float64 `json:"tag_vector"`

	// KeywordVector is the running semantic profile, initialized to a small
	// uniform constant.
	KeywordVector []float64 `json:"keyword_vector"`

	// Subscriptions holds the explicitly subscribed source IDs, sorted.
	// Default sources a user follows implicitly are not listed here.
	Subscriptions []string `json:"subscriptions,omitempty"`

	// Version is the optimistic concurrency token. Zero means the record
	// has never been persisted.
	Version uint64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so a mutation can be abandoned without touching
// the original.
func (p *Preference) Clone() *Preference {
	if p == nil {
		return nil
	}
	c := *p
	c.SourceWeights = p.SourceWeights.Clone()
	c.TagVector = cloneVector(p.TagVector)
	c.KeywordVector = cloneVector(p.KeywordVector)
	if p.Subscriptions != nil {
		c.Subscriptions = make([]string, len(p.Subscriptions))
		copy(c.Subscriptions, p.Subscriptions)
	}
	return &c
}

// IsSubscribed reports whether sourceID is an explicit subscription.
func (p *Preference) IsSubscribed(sourceID string) bool {
	i := sort.SearchStrings(p.Subscriptions, sourceID)
	return i < len(p.Subscriptions) && p.Subscriptions[i] == sourceID
}

func (p *Preference) addSubscription(sourceID string) {
	i := sort.SearchStrings(p.Subscriptions, sourceID)
	if i < len(p.Subscriptions) && p.Subscriptions[i] == sourceID {
		return
	}
	p.Subscriptions = append(p.Subscriptions, "")
	copy(p.Subscriptions[i+1:], p.Subscriptions[i:])
	p.Subscriptions[i] = sourceID
}

func (p *Preference) removeSubscription(sourceID string) bool {
	i := sort.SearchStrings(p.Subscriptions, sourceID)
	if i >= len(p.Subscriptions) || p.Subscriptions[i] != sourceID {
		return false
	}
	p.Subscriptions = append(p.Subscriptions[:i], p.Subscriptions[i+1:]...)
	return true
}

// Article carries the read-only signals of one candidate article.
type Article struct {
	// ID is the catalog identifier of the article.
	ID string `json:"id" validate:"required,max=128"`

	// SourceID is the publishing source (account) of the article.
	SourceID string `json:"source_id" validate:"required,entityid"`

	// Title is informational only; it never affects the score.
	Title string `json:"title,omitempty"`

	// Tags holds textual labels. A label listed in Config.Scoring.MajorTags
	// earns the major-tag bonus.
	Tags []string `json:"tags,omitempty" validate:"max=64"`

	// TagVector is a multi-hot or normalized vector of dimension T.
	TagVector []float64 `json:"tag_vector,omitempty" validate:"omitempty,dive,finite"`

	// SemanticVector is a normalized embedding of dimension K.
	SemanticVector []float64 `json:"semantic_vector,omitempty" validate:"omitempty,dive,finite"`
}

// HasAnyTag reports whether the article carries any of the given labels.
func (a *Article) HasAnyTag(labels []string) bool {
	for _, t := range a.Tags {
		for _, l := range labels {
			if t == l {
				return true
			}
		}
	}
	return false
}

// Source is a content-publishing account.
type Source struct {
	ID        string `json:"id"`
	IsDefault bool   `json:"is_default"`
}
