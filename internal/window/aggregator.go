// Package window implements trailing-window aggregation over partitioned,
// ordered row sequences: one aggregate value per row, computed over the
// window ending at that row (no look-ahead).
//
// NULL semantics: a window with fewer than min_periods in-partition
// observations yields nil, never zero. Sample standard deviation of a
// single-element window is nil (undefined).
package window

import (
	"math"
	"sort"
)

// Spec describes a trailing window: the last Size rows of the partition
// including the current row, producing non-null output only once MinPeriods
// rows have been observed in-partition.
type Spec struct {
	Size       int
	MinPeriods int
}

// RollingStats maintains incremental sum and sum-of-squares over a trailing
// window, giving O(1) amortized Mean/Sum/Count/Stddev per pushed row instead
// of O(W) recomputation.
type RollingStats struct {
	spec Spec
	buf  []float64 // ring buffer of the last Size values
	head int
	n    int // values currently in the window
	seen int // rows observed in-partition

	sum   float64
	sumSq float64
}

// NewRollingStats creates a rolling accumulator for the given spec.
// A MinPeriods of 0 is treated as 1: the window never produces output
// before the first observation.
func NewRollingStats(spec Spec) *RollingStats {
	if spec.MinPeriods < 1 {
		spec.MinPeriods = 1
	}
	return &RollingStats{
		spec: spec,
		buf:  make([]float64, spec.Size),
	}
}

// Push observes the next in-partition value.
func (r *RollingStats) Push(v float64) {
	if r.n == r.spec.Size {
		old := r.buf[r.head]
		r.sum -= old
		r.sumSq -= old * old
		r.n--
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.spec.Size
	r.n++
	r.seen++
	r.sum += v
	r.sumSq += v * v
}

// ready reports whether min_periods has been satisfied.
func (r *RollingStats) ready() bool {
	return r.seen >= r.spec.MinPeriods
}

// Count returns the number of values currently inside the window.
func (r *RollingStats) Count() int {
	return r.n
}

// Sum returns the window sum, nil before min_periods.
func (r *RollingStats) Sum() *float64 {
	if !r.ready() {
		return nil
	}
	s := r.sum
	return &s
}

// Mean returns the window arithmetic mean, nil before min_periods.
func (r *RollingStats) Mean() *float64 {
	if !r.ready() || r.n == 0 {
		return nil
	}
	m := r.sum / float64(r.n)
	return &m
}

// Stddev returns the sample standard deviation (n-1 denominator) of the
// window, nil before min_periods and nil for a single-element window.
func (r *RollingStats) Stddev() *float64 {
	if !r.ready() || r.n < 2 {
		return nil
	}
	// Incremental variance from sum and sum-of-squares. Cancellation can
	// push the estimate marginally below zero; clamp.
	variance := (r.sumSq - r.sum*r.sum/float64(r.n)) / float64(r.n-1)
	if variance < 0 {
		variance = 0
	}
	s := math.Sqrt(variance)
	return &s
}

// RollingPercentile maintains an order-statistics window for arbitrary
// percentiles. Values are kept in a sorted buffer; each push is a binary
// search plus a slice shift. For the window sizes this engine uses (W <= 90)
// the O(W) shift is the documented fallback to a balanced structure and is
// well inside budget for row counts in the low millions.
type RollingPercentile struct {
	spec   Spec
	ring   []float64 // insertion order, for eviction
	head   int
	n      int
	seen   int
	sorted []float64
}

// NewRollingPercentile creates a rolling percentile window.
func NewRollingPercentile(spec Spec) *RollingPercentile {
	if spec.MinPeriods < 1 {
		spec.MinPeriods = 1
	}
	return &RollingPercentile{
		spec:   spec,
		ring:   make([]float64, spec.Size),
		sorted: make([]float64, 0, spec.Size),
	}
}

// Push observes the next in-partition value.
func (r *RollingPercentile) Push(v float64) {
	if r.n == r.spec.Size {
		old := r.ring[r.head]
		idx := sort.SearchFloat64s(r.sorted, old)
		r.sorted = append(r.sorted[:idx], r.sorted[idx+1:]...)
		r.n--
	}
	r.ring[r.head] = v
	r.head = (r.head + 1) % r.spec.Size
	r.n++
	r.seen++

	idx := sort.SearchFloat64s(r.sorted, v)
	r.sorted = append(r.sorted, 0)
	copy(r.sorted[idx+1:], r.sorted[idx:])
	r.sorted[idx] = v
}

// Percentile returns the p-quantile (p in [0,1]) of the window with linear
// interpolation between order statistics, nil before min_periods.
func (r *RollingPercentile) Percentile(p float64) *float64 {
	if r.seen < r.spec.MinPeriods || r.n == 0 {
		return nil
	}
	v := Percentile(r.sorted, p)
	return &v
}

// Percentile computes the p-quantile (p in [0,1]) of a pre-sorted slice
// using linear interpolation between order statistics ("continuous"
// percentile semantics).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
