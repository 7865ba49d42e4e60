package history

import (
	"context"
	"fmt"
	"strings"
)

// RangeReport is one line of a Diagnostics report.
type RangeReport struct {
	Range
	Span int64 `json:"size"`
	// GapBefore is the number of IDs between this range and the previous
	// one; zero for the first range.
	GapBefore int64 `json:"gap_before"`
}

// Diagnostics is a snapshot of a visitor's history for operators.
type Diagnostics struct {
	Key    string        `json:"key"`
	Stats  Stats         `json:"stats"`
	Ranges []RangeReport `json:"ranges"`
}

// Diagnostics reports the stored ranges with their sizes and gaps.
func (s *Store) Diagnostics(ctx context.Context) Diagnostics {
	ranges := s.ViewedRanges(ctx)
	d := Diagnostics{Key: s.key, Stats: StatsOf(ranges), Ranges: make([]RangeReport, 0, len(ranges))}
	for i, r := range ranges {
		rr := RangeReport{Range: r, Span: r.Size()}
		if i > 0 {
			rr.GapBefore = max(r.Min-ranges[i-1].Max-1, 0)
		}
		d.Ranges = append(d.Ranges, rr)
	}
	return d
}

// String renders the report as plain text.
func (d Diagnostics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "history %s\n", d.Key)
	fmt.Fprintf(&b, "ranges: %d\n", d.Stats.RangeCount)
	fmt.Fprintf(&b, "photos viewed (upper bound): %d\n", d.Stats.TotalPhotosViewed)
	for i, r := range d.Ranges {
		fmt.Fprintf(&b, "%4d. %d - %d (%d photos)", i+1, r.Min, r.Max, r.Span)
		if r.GapBefore > 0 {
			fmt.Fprintf(&b, " [gap: %d]", r.GapBefore)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
