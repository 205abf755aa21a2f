// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
)

func testLedger() *Ledger {
	cfg := DefaultConfig()
	return NewLedger(&cfg.Decay)
}

func assertWeights(t *testing.T, got, want SourceWeights) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("weights = %v, want %v", got, want)
	}
	for id, w := range want {
		g, ok := got[id]
		if !ok {
			t.Fatalf("weights missing %q: got %v", id, got)
		}
		if !approxEqual(g, w) {
			t.Errorf("weight[%q] = %v, want %v", id, g, w)
		}
	}
}

func TestLedger_Insert(t *testing.T) {
	l := testLedger()

	tests := []struct {
		name      string
		in        SourceWeights
		id        string
		want      SourceWeights
		wantAdded bool
	}{
		{
			name:      "into empty",
			in:        SourceWeights{},
			id:        "a",
			want:      SourceWeights{"a": 1},
			wantAdded: true,
		},
		{
			name:      "second entry splits evenly",
			in:        SourceWeights{"a": 1},
			id:        "b",
			want:      SourceWeights{"a": 0.5, "b": 0.5},
			wantAdded: true,
		},
		{
			name:      "fifth entry",
			in:        SourceWeights{"s1": 0.25, "s2": 0.25, "s3": 0.25, "s4": 0.25},
			id:        "s5",
			want:      SourceWeights{"s1": 0.2, "s2": 0.2, "s3": 0.2, "s4": 0.2, "s5": 0.2},
			wantAdded: true,
		},
		{
			name: "existing id is a no-op",
			in:   SourceWeights{"a": 0.7, "b": 0.3},
			id:   "a",
			want: SourceWeights{"a": 0.7, "b": 0.3},
		},
		{
			name:      "nil map",
			in:        nil,
			id:        "a",
			want:      SourceWeights{"a": 1},
			wantAdded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, added := l.Insert(tt.in, tt.id)
			if added != tt.wantAdded {
				t.Errorf("Insert() added = %v, want %v", added, tt.wantAdded)
			}
			assertWeights(t, got, tt.want)
		})
	}
}

func TestLedger_Remove(t *testing.T) {
	l := testLedger()

	tests := []struct {
		name        string
		in          SourceWeights
		id          string
		want        SourceWeights
		wantRemoved bool
	}{
		{
			name:        "rescales survivors",
			in:          SourceWeights{"a": 0.5, "b": 0.3, "c": 0.2},
			id:          "b",
			want:        SourceWeights{"a": 0.5 / 0.7, "c": 0.2 / 0.7},
			wantRemoved: true,
		},
		{
			name:        "last entry leaves empty map",
			in:          SourceWeights{"a": 1},
			id:          "a",
			want:        SourceWeights{},
			wantRemoved: true,
		},
		{
			name: "absent id is a no-op",
			in:   SourceWeights{"a": 0.6, "b": 0.4},
			id:   "z",
			want: SourceWeights{"a": 0.6, "b": 0.4},
		},
		{
			name:        "drifted map is repaired",
			in:          SourceWeights{"a": 0.5, "b": 0.3, "c": 0.3},
			id:          "c",
			want:        SourceWeights{"a": 0.625, "b": 0.375},
			wantRemoved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, removed := l.Remove(tt.in, tt.id)
			if removed != tt.wantRemoved {
				t.Errorf("Remove() removed = %v, want %v", removed, tt.wantRemoved)
			}
			assertWeights(t, got, tt.want)
		})
	}
}

func TestLedger_InputNotModified(t *testing.T) {
	l := testLedger()
	in := SourceWeights{"a": 0.5, "b": 0.5}

	l.Insert(in, "c")
	l.Remove(in, "a")
	l.DecayUpdate(in, "a", 0.2)

	assertWeights(t, in, SourceWeights{"a": 0.5, "b": 0.5})
}

func TestLedger_DecayUpdate(t *testing.T) {
	tests := []struct {
		name       string
		mode       SourceDecayMode
		in         SourceWeights
		id         string
		alpha      float64
		want       SourceWeights
		wantSeeded bool
	}{
		{
			name:  "favorite reinforces subscribed source",
			mode:  SourceDecayReinforce,
			in:    SourceWeights{"s1": 0.2, "s2": 0.2, "s3": 0.2, "s4": 0.2, "s5": 0.2},
			id:    "s5",
			alpha: 0.2,
			want:  SourceWeights{"s1": 0.16, "s2": 0.16, "s3": 0.16, "s4": 0.16, "s5": 0.36},
		},
		{
			name:  "scale mode lowers the acted-on source",
			mode:  SourceDecayScale,
			in:    SourceWeights{"a": 0.5, "b": 0.5},
			id:    "a",
			alpha: 0.2,
			want:  SourceWeights{"a": 0.4, "b": 0.6},
		},
		{
			name:       "absent source bootstraps",
			mode:       SourceDecayReinforce,
			in:         SourceWeights{"a": 0.5, "b": 0.5},
			id:         "c",
			alpha:      0.1,
			want:       SourceWeights{"a": 0.45, "b": 0.45, "c": 0.1},
			wantSeeded: true,
		},
		{
			name:  "entries below floor are pruned",
			mode:  SourceDecayReinforce,
			in:    SourceWeights{"a": 0.5, "b": 0.47, "c": 0.03},
			id:    "a",
			alpha: 0.1,
			want:  SourceWeights{"a": 0.55, "b": 0.45},
		},
		{
			name:  "lone survivor forced to one",
			mode:  SourceDecayReinforce,
			in:    SourceWeights{"a": 0.98, "b": 0.02},
			id:    "a",
			alpha: 0.1,
			want:  SourceWeights{"a": 1},
		},
		{
			name:       "bootstrap into empty map",
			mode:       SourceDecayReinforce,
			in:         SourceWeights{},
			id:         "a",
			alpha:      0.1,
			want:       SourceWeights{"a": 1},
			wantSeeded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Decay.SourceMode = tt.mode
			l := NewLedger(&cfg.Decay)

			got, seeded := l.DecayUpdate(tt.in, tt.id, tt.alpha)
			if seeded != tt.wantSeeded {
				t.Errorf("DecayUpdate() seeded = %v, want %v", seeded, tt.wantSeeded)
			}
			assertWeights(t, got, tt.want)
		})
	}
}

func TestLedger_Normalize(t *testing.T) {
	l := testLedger()

	got := l.Normalize(SourceWeights{"a": 2, "b": 2, "bad": math.NaN(), "neg": -1})
	assertWeights(t, got, SourceWeights{"a": 0.5, "b": 0.5})

	got = l.Normalize(SourceWeights{"a": 0, "b": 0})
	assertWeights(t, got, SourceWeights{"a": 0.5, "b": 0.5})

	if got := l.Normalize(nil); len(got) != 0 {
		t.Errorf("Normalize(nil) = %v, want empty", got)
	}
}

func TestLedger_NeedsRepair(t *testing.T) {
	l := testLedger()

	tests := []struct {
		name string
		in   SourceWeights
		want bool
	}{
		{name: "empty", in: SourceWeights{}, want: false},
		{name: "balanced", in: SourceWeights{"a": 0.4, "b": 0.6}, want: false},
		{name: "drifted", in: SourceWeights{"a": 0.4, "b": 0.7}, want: true},
		{name: "negative", in: SourceWeights{"a": 1.5, "b": -0.5}, want: true},
		{name: "nan", in: SourceWeights{"a": math.NaN()}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.NeedsRepair(tt.in); got != tt.want {
				t.Errorf("NeedsRepair() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLedger_RandomSequencesConserveWeight(t *testing.T) {
	for _, mode := range []SourceDecayMode{SourceDecayReinforce, SourceDecayScale} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Decay.SourceMode = mode
			l := NewLedger(&cfg.Decay)
			rng := rand.New(rand.NewSource(42))

			w := l.Uniform([]string{"s0", "s1", "s2", "s3"})
			for step := 0; step < 5000; step++ {
				id := fmt.Sprintf("s%d", rng.Intn(12))
				switch rng.Intn(3) {
				case 0:
					w, _ = l.Insert(w, id)
				case 1:
					w, _ = l.Remove(w, id)
				default:
					alpha := cfg.Decay.BrowseAlpha
					if rng.Intn(2) == 0 {
						alpha = cfg.Decay.FavoriteAlpha
					}
					w, _ = l.DecayUpdate(w, id, alpha)
				}

				if len(w) == 0 {
					continue
				}
				if d := math.Abs(w.Sum() - 1); d > 1e-9 {
					t.Fatalf("step %d: sum drifted by %g: %v", step, d, w)
				}
				for k, v := range w {
					if v < 0 || v > 1 || math.IsNaN(v) {
						t.Fatalf("step %d: weight[%s] = %v out of range", step, k, v)
					}
				}
			}
		})
	}
}

func TestSourceWeights_IDsSorted(t *testing.T) {
	w := SourceWeights{"c": 0.2, "a": 0.5, "b": 0.3}
	ids := w.IDs()
	want := []string{"a", "b", "c"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", ids, want)
		}
	}
}
