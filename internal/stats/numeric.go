// Package stats computes per-column summary statistics in a single pass over
// the non-null values of a column.
package stats

import (
	"errors"
	"iter"
	"math"
	"slices"
)

// ErrEmptyColumn is returned when a column has no non-null values to
// summarize.
var ErrEmptyColumn = errors.New("empty column")

// DefaultBuckets is the histogram resolution used by the profiler.
const DefaultBuckets = 10

// Numeric summarizes a numeric column. Variance is the population variance.
type Numeric struct {
	Count    int
	Min      float64
	Max      float64
	Mean     float64
	Variance float64
	Std      float64
	Hist     Histogram
}

// Histogram splits [Min, Max] into equal-width buckets. Bins[i] is the start
// of bucket i and Counts[i] the number of values that fell into it.
type Histogram struct {
	Bins   []float64 `json:"bins"`
	Counts []uint64  `json:"counts"`
}

// Total is the number of values in the histogram.
func (h Histogram) Total() uint64 {
	var n uint64
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// Summarize computes count, min, max, mean and population variance using
// Welford's update, then a second pass fills a DefaultBuckets histogram.
// values must be re-iterable.
func Summarize(values iter.Seq[float64]) (Numeric, error) {
	var (
		n        int
		mean, m2 float64
		lo       = math.Inf(1)
		hi       = math.Inf(-1)
	)
	for v := range values {
		n++
		d := v - mean
		mean += d / float64(n)
		m2 += d * (v - mean)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if n == 0 {
		return Numeric{}, ErrEmptyColumn
	}

	variance := m2 / float64(n)
	// Rounding can push a constant column slightly below zero.
	if variance < 0 {
		variance = 0
	}
	// Keep min <= mean <= max under floating point drift.
	mean = math.Min(math.Max(mean, lo), hi)

	return Numeric{
		Count:    n,
		Min:      lo,
		Max:      hi,
		Mean:     mean,
		Variance: variance,
		Std:      math.Sqrt(variance),
		Hist:     NewHistogram(values, lo, hi, DefaultBuckets),
	}, nil
}

// NewHistogram buckets values into n equal-width buckets spanning [lo, hi].
//
// Bucket i holds the values in (Bins[i], Bins[i+1]]; bucket 0 also holds lo
// and the last bucket is closed by hi. A value equal to an emitted bin edge
// is therefore counted in the bucket below it. When lo == hi every value
// lands in bucket 0. Values outside [lo, hi] are clamped.
func NewHistogram(values iter.Seq[float64], lo, hi float64, n int) Histogram {
	if n <= 0 {
		n = DefaultBuckets
	}
	width := (hi - lo) / float64(n)
	h := Histogram{Bins: make([]float64, n), Counts: make([]uint64, n)}
	for i := range h.Bins {
		h.Bins[i] = lo + float64(i)*width
	}
	for v := range values {
		h.Counts[bucketOf(v, h.Bins, width)]++
	}
	return h
}

// bucketOf picks the smallest i with v <= bins[i+1], falling back to the
// last bucket.
func bucketOf(v float64, bins []float64, width float64) int {
	if width <= 0 || math.IsNaN(v) {
		return 0
	}
	i, _ := slices.BinarySearch(bins[1:], v)
	return i
}
