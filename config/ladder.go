package config

import (
	"cmp"
	"slices"
)

// Step is one (threshold, value) pair of a Ladder.
type Step[V any] struct {
	Threshold int64
	Value     V
}

// Ladder is a sparse, sorted lookup table keyed by integer thresholds
// (level titles, daily reward tiers, milestone rewards).
// Lookups are binary searches; a Ladder is never mutated after construction.
type Ladder[V any] struct {
	steps []Step[V]
}

// NewLadder sorts a copy of steps by threshold. On duplicate thresholds
// the last one wins.
func NewLadder[V any](steps ...Step[V]) Ladder[V] {
	sorted := slices.Clone(steps)
	slices.SortStableFunc(sorted, func(a, b Step[V]) int {
		return cmp.Compare(a.Threshold, b.Threshold)
	})

	out := sorted[:0]
	for _, s := range sorted {
		if n := len(out); n > 0 && out[n-1].Threshold == s.Threshold {
			out[n-1] = s
			continue
		}
		out = append(out, s)
	}
	return Ladder[V]{steps: out}
}

func (l Ladder[V]) search(key int64) (int, bool) {
	return slices.BinarySearchFunc(l.steps, key, func(s Step[V], k int64) int {
		return cmp.Compare(s.Threshold, k)
	})
}

// Floor returns the step with the greatest threshold not exceeding key.
func (l Ladder[V]) Floor(key int64) (Step[V], bool) {
	i, found := l.search(key)
	if found {
		return l.steps[i], true
	}
	if i == 0 {
		return Step[V]{}, false
	}
	return l.steps[i-1], true
}

// Ceil returns the step with the smallest threshold greater than or equal to key.
func (l Ladder[V]) Ceil(key int64) (Step[V], bool) {
	i, _ := l.search(key)
	if i >= len(l.steps) {
		return Step[V]{}, false
	}
	return l.steps[i], true
}

// Exact returns the value stored at exactly key.
func (l Ladder[V]) Exact(key int64) (V, bool) {
	i, found := l.search(key)
	if !found {
		var zero V
		return zero, false
	}
	return l.steps[i].Value, true
}

// Steps returns a copy of the ladder in ascending threshold order.
func (l Ladder[V]) Steps() []Step[V] {
	return slices.Clone(l.steps)
}

func (l Ladder[V]) Len() int { return len(l.steps) }
