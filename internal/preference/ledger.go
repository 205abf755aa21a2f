// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"math"
	"sort"
)

// SourceWeights is the sparse source-weight map of a Preference.
// Its values sum to 1.0 when non-empty. Only Ledger methods produce new maps.
type SourceWeights map[string]float64

// Get returns the weight of id, or 0 when absent.
func (w SourceWeights) Get(id string) float64 {
	return w[id]
}

// Has reports whether id has an entry.
func (w SourceWeights) Has(id string) bool {
	_, ok := w[id]
	return ok
}

// IDs returns the source IDs in ascending order.
func (w SourceWeights) IDs() []string {
	ids := make([]string, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sum returns the total weight. Keys are visited in sorted order so the
// result is reproducible bit for bit.
func (w SourceWeights) Sum() float64 {
	var s float64
	for _, id := range w.IDs() {
		s += w[id]
	}
	return s
}

// Clone returns an independent copy. A nil map clones to an empty map.
func (w SourceWeights) Clone() SourceWeights {
	out := make(SourceWeights, len(w))
	for id, v := range w {
		out[id] = v
	}
	return out
}

// Ledger applies the weight-conserving operations to SourceWeights.
// Every method works on a copy and returns it; the input map is never
// modified, so an abandoned mutation leaves the caller's record intact.
type Ledger struct {
	pruneFloor      float64
	bootstrapWeight float64
	tolerance       float64
	mode            SourceDecayMode
}

// NewLedger creates a ledger from the decay configuration.
func NewLedger(cfg *DecayConfig) *Ledger {
	return &Ledger{
		pruneFloor:      cfg.PruneFloor,
		bootstrapWeight: cfg.BootstrapWeight,
		tolerance:       cfg.WeightTolerance,
		mode:            cfg.SourceMode,
	}
}

// Uniform returns a map that splits weight 1/N across ids.
// Duplicate and empty IDs are ignored.
func (l *Ledger) Uniform(ids []string) SourceWeights {
	out := make(SourceWeights, len(ids))
	for _, id := range ids {
		if id != "" {
			out[id] = 0
		}
	}
	if len(out) == 0 {
		return out
	}
	share := 1 / float64(len(out))
	for id := range out {
		out[id] = share
	}
	return out
}

// Insert adds id with weight 1/(n+1) and scales the n existing weights by
// n/(n+1). Returns false when id was already present, in which case the
// returned map is an unchanged copy.
func (l *Ledger) Insert(w SourceWeights, id string) (SourceWeights, bool) {
	out := w.Clone()
	if out.Has(id) {
		return out, false
	}

	n := float64(len(out))
	scale := 1 - 1/(n+1)
	for k := range out {
		out[k] *= scale
	}
	out[id] = 1 / (n + 1)

	return l.Normalize(out), true
}

// Remove deletes id and rescales the survivors so they sum to 1.
// Returns false when id was absent. Removing the only entry yields an empty
// map.
func (l *Ledger) Remove(w SourceWeights, id string) (SourceWeights, bool) {
	out := w.Clone()
	if !out.Has(id) {
		return out, false
	}

	delete(out, id)
	if len(out) == 0 {
		return out, true
	}

	// Divide by the surviving sum rather than 1-w so accumulated drift is
	// absorbed here too.
	return l.Normalize(out), true
}

// DecayUpdate moves the weight of id according to the configured source
// mode, seeding it at the bootstrap weight when absent. Every other entry
// below the prune floor is dropped and the survivors are rescaled to fill
// 1 - weight(id). When no other entry survives, id is forced to 1.0.
//
// Returns seeded=true when id was not present beforehand.
func (l *Ledger) DecayUpdate(w SourceWeights, id string, alpha float64) (out SourceWeights, seeded bool) {
	out = w.Clone()

	if cur, ok := out[id]; ok {
		switch l.mode {
		case SourceDecayScale:
			out[id] = cur * (1 - alpha)
		default:
			out[id] = cur*(1-alpha) + alpha
		}
	} else {
		out[id] = l.bootstrapWeight
		seeded = true
	}

	target := 1 - out[id]

	var rest float64
	for _, k := range out.IDs() {
		if k == id {
			continue
		}
		if out[k] < l.pruneFloor {
			delete(out, k)
			continue
		}
		rest += out[k]
	}

	if rest <= 0 || target <= 0 {
		return SourceWeights{id: 1.0}, seeded
	}

	ratio := target / rest
	for k := range out {
		if k != id {
			out[k] *= ratio
		}
	}

	return l.Normalize(out), seeded
}

// Normalize divides every weight by the actual sum. Non-finite and negative
// entries are dropped first. If nothing positive remains the surviving IDs
// share the weight uniformly.
func (l *Ledger) Normalize(w SourceWeights) SourceWeights {
	out := make(SourceWeights, len(w))
	for id, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		out[id] = v
	}
	if len(out) == 0 {
		return out
	}

	s := out.Sum()
	if s <= 0 {
		return l.Uniform(out.IDs())
	}
	for id := range out {
		out[id] /= s
	}
	return out
}

// Drift returns |sum-1| for a non-empty map and 0 for an empty one.
func (l *Ledger) Drift(w SourceWeights) float64 {
	if len(w) == 0 {
		return 0
	}
	return math.Abs(w.Sum() - 1)
}

// NeedsRepair reports whether the map violates the conservation invariant
// beyond the configured tolerance or holds an invalid entry.
func (l *Ledger) NeedsRepair(w SourceWeights) bool {
	for _, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return true
		}
	}
	return l.Drift(w) > l.tolerance
}
