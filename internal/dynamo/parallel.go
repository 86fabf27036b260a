package dynamo

// Range is a half-open index interval [Start, End).
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

// Partition splits [0, n) into at most workers contiguous ranges of
// ceil(n/workers) elements. Empty trailing ranges are dropped.
func Partition(n, workers int) []Range {
	if n <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	chunkSize := (n + workers - 1) / workers
	ranges := make([]Range, 0, workers)
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}
