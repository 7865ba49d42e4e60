package history

import (
	"cmp"
	"encoding/json"
	"errors"
	"slices"
)

// Merge tolerances. Routine additions only join ranges that overlap or touch,
// which keeps AddViewedRange predictable. Batch tracking and compaction bridge
// small gaps left by deleted photo IDs so long-lived history stays compact.
const (
	AdjacentMergeTolerance int64 = 1
	CompactMergeTolerance  int64 = 50
)

// Range is a closed interval of photo IDs that have been shown to a visitor.
type Range struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Size is the number of IDs the range spans, deleted IDs included.
func (r Range) Size() int64 { return r.Max - r.Min + 1 }

// Contains reports whether id lies in the range, inclusive on both ends.
func (r Range) Contains(id int64) bool { return id >= r.Min && id <= r.Max }

// Covers reports whether other lies entirely inside r.
func (r Range) Covers(other Range) bool { return other.Min >= r.Min && other.Max <= r.Max }

// IsPhotoViewed reports whether id falls within any of ranges.
func IsPhotoViewed(id int64, ranges []Range) bool {
	for _, r := range ranges {
		if r.Contains(id) {
			return true
		}
	}
	return false
}

// Merge sorts ranges by Min and folds together every range whose Min is
// within tolerance of the running Max. The input is left untouched.
func Merge(ranges []Range, tolerance int64) []Range {
	if len(ranges) == 0 {
		return []Range{}
	}
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b Range) int { return cmp.Compare(a.Min, b.Min) })

	merged := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Min <= last.Max+tolerance {
			last.Max = max(last.Max, r.Max)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Stats summarises a history.
type Stats struct {
	RangeCount int `json:"range_count"`
	// TotalPhotosViewed is an upper bound: ranges include IDs that were
	// deleted or only bracketed by a fetched batch.
	TotalPhotosViewed int64 `json:"total_photos_viewed"`
}

func StatsOf(ranges []Range) Stats {
	st := Stats{RangeCount: len(ranges)}
	for _, r := range ranges {
		st.TotalPhotosViewed += r.Size()
	}
	return st
}

var errCorrupt = errors.New("history: corrupt range data")

type wireRange struct {
	Min *int64 `json:"min"`
	Max *int64 `json:"max"`
}

// decodeRanges parses the persisted JSON array. Anything that is not an
// array of complete {min,max} objects with min <= max is corrupt.
func decodeRanges(data []byte) ([]Range, error) {
	var wire []wireRange
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	out := make([]Range, 0, len(wire))
	for _, w := range wire {
		if w.Min == nil || w.Max == nil || *w.Min > *w.Max {
			return nil, errCorrupt
		}
		out = append(out, Range{Min: *w.Min, Max: *w.Max})
	}
	return out, nil
}

func encodeRanges(ranges []Range) ([]byte, error) {
	if ranges == nil {
		ranges = []Range{}
	}
	return json.Marshal(ranges)
}
