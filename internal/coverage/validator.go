// Package coverage computes SRT index coverage of a stage's output:
// given intervals over [1..N], it finds gaps and overlaps. It is the
// single source of truth for the partition invariants in spec.md §3,
// invoked by Stage 2 (segmentation) and Stage 5 (director plan).
package coverage

import "sort"

// Interval is an inclusive, 1-based [Start, End] range over SRT indices.
type Interval struct {
	Start int
	End   int
}

// Overlap records two intervals whose ranges intersect.
type Overlap struct {
	A Interval
	B Interval
}

// Gaps returns the sorted, maximal uncovered runs within [1, n] given a
// set of (possibly unsorted, possibly overlapping) intervals.
func Gaps(intervals []Interval, n int) []Interval {
	if n <= 0 {
		return nil
	}
	covered := coveredMask(intervals, n)

	var gaps []Interval
	i := 1
	for i <= n {
		if covered[i] {
			i++
			continue
		}
		start := i
		for i <= n && !covered[i] {
			i++
		}
		gaps = append(gaps, Interval{Start: start, End: i - 1})
	}
	return gaps
}

// Overlaps returns every pair of distinct input intervals whose ranges
// intersect. Intervals are compared by original position, not identity,
// so two equal ranges from different entries are still reported.
func Overlaps(intervals []Interval) []Overlap {
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var overlaps []Overlap
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Start > sorted[i].End {
				break
			}
			overlaps = append(overlaps, Overlap{A: sorted[i], B: sorted[j]})
		}
	}
	return overlaps
}

// IsPartition reports whether intervals exactly partition [1, n]: no
// gaps, no overlaps.
func IsPartition(intervals []Interval, n int) bool {
	return len(Gaps(intervals, n)) == 0 && len(Overlaps(intervals)) == 0
}

func coveredMask(intervals []Interval, n int) []bool {
	covered := make([]bool, n+1) // 1-indexed; index 0 unused
	for _, iv := range intervals {
		start := iv.Start
		end := iv.End
		if start < 1 {
			start = 1
		}
		if end > n {
			end = n
		}
		for i := start; i <= end; i++ {
			if i >= 1 && i <= n {
				covered[i] = true
			}
		}
	}
	return covered
}
