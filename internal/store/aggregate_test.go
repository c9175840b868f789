package store

import "testing"

func seq(from, to int64) []int64 {
	out := make([]int64, 0, to-from+1)
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}

func TestAggregateCounts(t *testing.T) {
	tests := []struct {
		name   string
		counts []int64
		want   countStats
	}{
		{
			name:   "single sample",
			counts: []int64{42},
			want:   countStats{Avg: 42, Min: 42, Max: 42, P95: 42},
		},
		{
			name:   "ten samples p95 equals max",
			counts: seq(1, 10),
			want:   countStats{Avg: 5.5, Min: 1, Max: 10, P95: 10},
		},
		{
			name:   "twenty samples p95 below max",
			counts: seq(1, 20),
			want:   countStats{Avg: 10.5, Min: 1, Max: 20, P95: 19},
		},
		{
			name:   "hundred samples",
			counts: seq(1, 100),
			want:   countStats{Avg: 50.5, Min: 1, Max: 100, P95: 95},
		},
		{
			name:   "unsorted input",
			counts: []int64{30, 10, 50, 20, 40},
			want:   countStats{Avg: 30, Min: 10, Max: 50, P95: 50},
		},
		{
			name:   "empty",
			counts: nil,
			want:   countStats{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aggregateCounts(tt.counts)
			if got != tt.want {
				t.Fatalf("aggregateCounts(%v) = %+v, want %+v", tt.counts, got, tt.want)
			}
		})
	}
}

func TestAggregateCountsDoesNotMutateInput(t *testing.T) {
	counts := []int64{5, 1, 3}
	aggregateCounts(counts)
	want := []int64{5, 1, 3}
	for i := range counts {
		if counts[i] != want[i] {
			t.Fatalf("input mutated: %v", counts)
		}
	}
}
