// Package stats computes the summary statistics used to judge idle SLOs.
package stats

import (
	"math"
	"sort"
)

// Percentile returns the nearest-rank p-th percentile of values.
//
// The fractional index (p/100)*(n-1) is rounded half-to-even and clamped
// into range, so p=0 yields the minimum and p=100 the maximum. An empty
// input yields 0. values is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := (p / 100.0) * float64(len(sorted)-1)
	index := int(math.RoundToEven(rank))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	if index < 0 {
		index = 0
	}

	return sorted[index]
}

// Average returns the arithmetic mean of values, or 0 when values is empty.
func Average(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(max(1, len(values)))
}
