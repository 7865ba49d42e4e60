// Package paginator serves an unseen-first photo stream over the offset
// paginated photo API. Pages are filtered against the visitor's viewed
// history, and a page that is entirely viewed triggers a skip past the
// viewed region instead of a page-by-page scan.
package paginator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/analytics"
	"github.com/example/trig-gallery/services/gallery/internal/history"
	"github.com/example/trig-gallery/services/gallery/internal/photos"
)

// History is the part of history.Store the paginator reads and writes.
type History interface {
	ViewedRanges(ctx context.Context) []history.Range
	TrackBatch(ctx context.Context, min, max int64)
}

// Result is one fetched page.
type Result struct {
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
	Mode   Mode           `json:"mode"`
	Items  []photos.Photo `json:"items"`
	Total  int            `json:"total"`
	// HasMore is the server's has_more flag for this offset.
	HasMore         bool `json:"has_more"`
	NextOffset      *int `json:"next_offset"`
	SmartSkipOffset *int `json:"smart_skip_offset"`
	// Batch spans the IDs of the unfiltered page; nil for an empty page.
	Batch *history.Range `json:"batch,omitempty"`
}

type Option func(*Paginator)

func WithLogger(log *zap.Logger) Option {
	return func(p *Paginator) {
		if log != nil {
			p.log = log
		}
	}
}

func WithTuning(t Tuning) Option {
	return func(p *Paginator) { p.tuning = t.WithDefaults() }
}

// WithCache enables caching of ModeAll pages. A nil cache disables it.
func WithCache(c *PageCache) Option {
	return func(p *Paginator) { p.cache = c }
}

func WithPublisher(pub *analytics.Publisher) Option {
	return func(p *Paginator) { p.pub = pub }
}

// Paginator fetches and filters pages for one visitor.
type Paginator struct {
	visitor string
	lister  photos.Lister
	history History
	tuning  Tuning
	cache   *PageCache
	pub     *analytics.Publisher
	log     *zap.Logger
}

func New(visitor string, lister photos.Lister, hist History, opts ...Option) *Paginator {
	p := &Paginator{
		visitor: visitor,
		lister:  lister,
		history: hist,
		tuning:  DefaultTuning(),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.With(zap.String("visitor_id", visitor))
	return p
}

func (p *Paginator) Tuning() Tuning { return p.tuning }

// FetchPage fetches one page at offset. In ModeUnseen the items are filtered
// against a fresh read of the viewed history, and when nothing survives a
// smart skip offset is proposed as long as attempts is below the cap.
func (p *Paginator) FetchPage(ctx context.Context, offset, limit int, mode Mode, attempts int) (Result, error) {
	if offset < 0 {
		return Result{}, fmt.Errorf("paginator: offset must be >= 0, got %d", offset)
	}
	if limit <= 0 {
		return Result{}, fmt.Errorf("paginator: limit must be > 0, got %d", limit)
	}
	if !mode.Valid() {
		return Result{}, fmt.Errorf("paginator: unknown mode %q", mode)
	}

	if mode == ModeAll {
		if res, ok := p.cache.Get(p.visitor, mode, offset, limit); ok {
			return res, nil
		}
	}

	page, err := p.lister.ListPhotos(ctx, offset, limit)
	if err != nil {
		return Result{}, fmt.Errorf("paginator: fetch offset %d: %w", offset, err)
	}

	res := Result{
		Offset:  offset,
		Limit:   limit,
		Mode:    mode,
		Total:   page.Total,
		HasMore: page.Pagination.HasMore,
	}
	if res.HasMore {
		next := offset + limit
		res.NextOffset = &next
	}
	bmin, bmax, ok := page.IDBounds()
	if ok {
		res.Batch = &history.Range{Min: bmin, Max: bmax}
	}

	if mode == ModeAll {
		res.Items = page.Items
		if res.Items == nil {
			res.Items = []photos.Photo{}
		}
		p.cache.Add(p.visitor, mode, offset, limit, res)
		return res, nil
	}

	viewed := p.history.ViewedRanges(ctx)
	res.Items = make([]photos.Photo, 0, len(page.Items))
	for _, it := range page.Items {
		if !history.IsPhotoViewed(it.ID, viewed) {
			res.Items = append(res.Items, it)
		}
	}

	if len(res.Items) == 0 && res.HasMore && res.Batch != nil && attempts < p.tuning.SkipAttemptCap {
		if next, ok := SmartSkip(offset, *res.Batch, viewed, p.tuning.SkipBuffer, p.tuning.MinimumSkip); ok {
			res.SmartSkipOffset = &next
			p.log.Info("paginator: smart skip",
				zap.Int("from_offset", offset),
				zap.Int("to_offset", next),
				zap.Int64("batch_min", res.Batch.Min),
				zap.Int64("batch_max", res.Batch.Max),
				zap.Int("attempt", attempts+1),
			)
		}
	}
	return res, nil
}

// SmartSkip computes the offset that jumps past the viewed region holding
// batch. The server lists photos in descending ID order, so advancing by
// roughly the number of IDs between batch.Max and the start of the viewed
// region lands below it. It reports false when batch is not contained in a
// single viewed range, in which case the next naive page may hold unseen
// photos.
func SmartSkip(currentOffset int, batch history.Range, ranges []history.Range, buffer, minimum int64) (int, bool) {
	contained := false
	for _, r := range ranges {
		if r.Covers(batch) {
			contained = true
			break
		}
	}
	if !contained {
		return 0, false
	}

	// the viewed region, seen from this batch, starts at the smallest min
	// among ranges that begin at or below batch.Max
	var relevant *history.Range
	for i := range ranges {
		r := &ranges[i]
		if r.Min <= batch.Max && (relevant == nil || r.Min < relevant.Min) {
			relevant = r
		}
	}
	if relevant == nil {
		return 0, false
	}

	skip := max(batch.Max-relevant.Min+buffer, minimum)
	return currentOffset + int(skip), true
}
