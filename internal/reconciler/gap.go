package reconciler

import (
	"sort"
	"strconv"
)

// timeRange is a contiguous span [Start, End) of gap buckets.
type timeRange struct {
	Start int64
	End   int64
}

// mergeGapTimestamps turns a list of gap bucket start timestamps into
// [start, end) ranges, per spec.md §8 property 8 and scenario S6:
// overlapping or duplicate buckets are joined into one range, while a
// bucket that starts exactly where the previous range ends begins a new
// range. Grounded on
// original_source/victoriametrics/vm_sync.py's merge_consecutive.
func mergeGapTimestamps(timestamps []int64, step int64) []timeRange {
	if len(timestamps) == 0 {
		return nil
	}
	sorted := append([]int64(nil), timestamps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var ranges []timeRange
	start := sorted[0]
	end := sorted[0] + step

	for _, ts := range sorted[1:] {
		if ts < end {
			end = ts + step
		} else {
			ranges = append(ranges, timeRange{Start: start, End: end})
			start = ts
			end = ts + step
		}
	}
	ranges = append(ranges, timeRange{Start: start, End: end})
	return ranges
}

// chunkRange splits [r.Start, r.End) into sub-ranges no wider than
// chunkSize, matching run_sync_check's chunk_start/chunk_end loop.
func chunkRange(r timeRange, chunkSize int64) []timeRange {
	if chunkSize <= 0 {
		return []timeRange{r}
	}
	var chunks []timeRange
	for start := r.Start; start < r.End; start += chunkSize {
		end := start + chunkSize
		if end > r.End {
			end = r.End
		}
		chunks = append(chunks, timeRange{Start: start, End: end})
	}
	return chunks
}

// parseUnitTimestamp parses a CountBucketed unit key (a bucket start
// timestamp rendered as a decimal string) back into a unix-seconds value.
func parseUnitTimestamp(unitKey string) (int64, bool) {
	n, err := strconv.ParseInt(unitKey, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
