package store

import (
	"math"
	"sort"
)

// countStats holds the per-bucket aggregate of a set of raw samples.
type countStats struct {
	Avg float64
	Min int64
	Max int64
	P95 int64
}

// aggregateCounts reduces a non-empty set of raw counts to avg/min/max/p95.
// p95 is the value at ascending index ceil(0.95*N)-1, the nearest-rank
// percentile. The input slice is not modified.
func aggregateCounts(counts []int64) countStats {
	if len(counts) == 0 {
		return countStats{}
	}

	sorted := make([]int64, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, c := range sorted {
		sum += c
	}
	rank := int(math.Ceil(0.95*float64(len(sorted)))) - 1

	return countStats{
		Avg: float64(sum) / float64(len(sorted)),
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		P95: sorted[rank],
	}
}
