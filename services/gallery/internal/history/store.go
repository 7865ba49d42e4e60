// Package history records which photo IDs a visitor has already seen, as a
// merged set of closed ID ranges persisted under one storage key.
//
// No Store operation returns an error. Read failures degrade to "nothing
// viewed" and write failures are logged and dropped, so a broken backend can
// only make the gallery forget, never fail. A write that follows a failed
// read is skipped so the stored history is never replaced by a partial one.
//
// Two processes writing the same key race with last-writer-wins semantics;
// ranges recorded by the loser are lost. This mirrors two browser tabs
// sharing one localStorage entry and is accepted rather than coordinated.
package history

import (
	"context"
	"errors"
	"sync"

	"github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultKey is the storage key of the single-visitor history.
const DefaultKey = "triguk_photo_viewing_history"

// KeyFor returns the storage key of a visitor's history. An empty visitor
// maps to DefaultKey.
func KeyFor(visitorID string) string {
	if visitorID == "" {
		return DefaultKey
	}
	return DefaultKey + ":" + visitorID
}

// Tolerances are the merge tolerances used by a Store.
type Tolerances struct {
	Adjacent int64 `yaml:"adjacent"`
	Compact  int64 `yaml:"compact"`
}

func DefaultTolerances() Tolerances {
	return Tolerances{Adjacent: AdjacentMergeTolerance, Compact: CompactMergeTolerance}
}

type Option func(*Store)

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTolerances overrides the merge tolerances. Values below 1 are ignored
// since they would leave touching ranges unmerged.
func WithTolerances(t Tolerances) Option {
	return func(s *Store) {
		if t.Adjacent >= 1 {
			s.tol.Adjacent = t.Adjacent
		}
		if t.Compact >= 1 {
			s.tol.Compact = t.Compact
		}
	}
}

// Store is the viewed history of one visitor.
type Store struct {
	backend Backend
	key     string
	tol     Tolerances
	log     *zap.Logger

	// serialises read-modify-write within this process
	mu sync.Mutex
}

func NewStore(backend Backend, key string, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		key:     key,
		tol:     DefaultTolerances(),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(zap.String("history_key", key))
	return s
}

func (s *Store) Key() string { return s.key }

// ViewedRanges returns the persisted ranges, or an empty slice when nothing
// is stored or the stored value cannot be read.
func (s *Store) ViewedRanges(ctx context.Context) []Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	ranges, _ := s.load(ctx)
	return ranges
}

// AddViewedRange records [min, max] and merges touching or overlapping ranges.
func (s *Store) AddViewedRange(ctx context.Context, min, max int64) {
	s.add(ctx, min, max, s.tol.Adjacent)
}

// TrackBatch records the ID span of a displayed batch. It merges with the
// compact tolerance so that gaps from deleted photos between consecutive
// batches do not fragment the history.
func (s *Store) TrackBatch(ctx context.Context, min, max int64) {
	s.add(ctx, min, max, s.tol.Compact)
}

func (s *Store) add(ctx context.Context, min, max, tolerance int64) {
	if min > max {
		min, max = max, min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ranges, err := s.load(ctx)
	if err != nil {
		s.log.Warn("history: range not remembered, stored history unreadable",
			zap.Int64("min", min), zap.Int64("max", max), zap.Error(err))
		return
	}
	s.save(ctx, Merge(append(ranges, Range{Min: min, Max: max}), tolerance))
}

// Clear removes the visitor's history. Clearing an empty history is a no-op.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Delete(ctx, s.key); err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Warn("history: clear failed", zap.Error(err))
	}
}

// CompactResult reports the range count before and after Compact.
type CompactResult struct {
	Before int `json:"before"`
	After  int `json:"after"`
}

// Compact re-merges the stored ranges with the compact tolerance, repairing
// fragmentation left by adjacency-only merges. It adds no new IDs beyond the
// bridged gaps.
func (s *Store) Compact(ctx context.Context) CompactResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	ranges, err := s.load(ctx)
	if err != nil {
		s.log.Warn("history: compact skipped", zap.Error(err))
		return CompactResult{}
	}
	merged := Merge(ranges, s.tol.Compact)
	s.save(ctx, merged)
	s.log.Info("history: compacted", zap.Int("before", len(ranges)), zap.Int("after", len(merged)))
	return CompactResult{Before: len(ranges), After: len(merged)}
}

func (s *Store) Stats(ctx context.Context) Stats {
	return StatsOf(s.ViewedRanges(ctx))
}

// load returns the stored ranges, empty when none are stored or the value is
// corrupt. The error is set only when the backend itself failed, in which
// case the stored value may still be intact and must not be overwritten.
func (s *Store) load(ctx context.Context) ([]Range, error) {
	data, err := s.backend.Load(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return []Range{}, nil
	}
	if err != nil {
		s.log.Warn("history: read failed", zap.Error(err))
		return []Range{}, err
	}
	ranges, err := decodeRanges(data)
	if err != nil {
		s.log.Warn("history: stored ranges unreadable, treating as empty", zap.Error(err))
		return []Range{}, nil
	}
	return ranges, nil
}

func (s *Store) save(ctx context.Context, ranges []Range) {
	data, err := encodeRanges(ranges)
	if err != nil {
		s.log.Warn("history: encode failed", zap.Error(err))
		return
	}
	if err := s.backend.Save(ctx, s.key, data); err != nil {
		s.log.Warn("history: write failed, range not remembered", zap.Error(err))
	}
}

// DefaultMaxStores bounds the Stores a Factory keeps in memory.
const DefaultMaxStores = 8192

// Factory hands out one Store per visitor over a shared backend. Only the
// most recently used Stores are kept; a Store holds no data of its own, so
// dropping one loses nothing but its in-process write lock.
type Factory struct {
	backend Backend
	opts    []Option
	stores  *lru.Cache[string, *Store]
}

func NewFactory(backend Backend, opts ...Option) *Factory {
	return newFactory(backend, DefaultMaxStores, opts...)
}

func newFactory(backend Backend, size int, opts ...Option) *Factory {
	stores, _ := lru.New[string, *Store](max(size, 1))
	return &Factory{backend: backend, opts: opts, stores: stores}
}

// For returns the Store of visitorID. Repeated calls return the same *Store
// while it is cached, so its write lock covers every caller in the process.
func (f *Factory) For(visitorID string) *Store {
	key := KeyFor(visitorID)
	if s, ok := f.stores.Get(key); ok {
		return s
	}
	s := NewStore(f.backend, key, f.opts...)
	if prev, ok, _ := f.stores.PeekOrAdd(key, s); ok {
		return prev
	}
	return s
}

// Len reports the number of cached Stores.
func (f *Factory) Len() int { return f.stores.Len() }

func (f *Factory) Close() error { return f.backend.Close() }
