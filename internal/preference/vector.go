// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import "math"

// Dot returns the dot product of a and b.
// Returns a *DimensionError when the lengths differ.
func Dot(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Want: len(b), Got: len(a)}
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// Blend returns the convex combination (1-alpha)*current + alpha*signal as a
// new slice. current is never modified.
func Blend(current, signal []float64, alpha float64) ([]float64, error) {
	if len(current) != len(signal) {
		return nil, &DimensionError{Want: len(current), Got: len(signal)}
	}
	out := make([]float64, len(current))
	keep := 1 - alpha
	for i := range current {
		out[i] = keep*current[i] + alpha*signal[i]
	}
	return out, nil
}

// Renormalize returns a copy of v scaled so its components sum to 1.
// A vector whose sum is zero or not finite is returned as an unscaled copy.
func Renormalize(v []float64) []float64 {
	out := cloneVector(v)
	s := Sum(v)
	if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return out
	}
	for i := range out {
		out[i] /= s
	}
	return out
}

// Uniform returns a vector of n copies of value.
func Uniform(n int, value float64) []float64 {
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

// Sum returns the sum of the components of v.
func Sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

func cloneVector(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// finite reports whether every component of v is a finite number.
func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
