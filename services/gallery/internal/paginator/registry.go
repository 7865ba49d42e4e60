package paginator

import (
	"github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/analytics"
	"github.com/example/trig-gallery/internal/platform/logging"
	"github.com/example/trig-gallery/services/gallery/internal/history"
	"github.com/example/trig-gallery/services/gallery/internal/photos"
)

// HistorySource hands out the history of a visitor. *history.Factory
// satisfies it.
type HistorySource interface {
	For(visitorID string) *history.Store
}

type sessionKey struct {
	visitor string
	mode    Mode
}

// Registry owns one Session per (visitor, mode). At most Tuning.MaxSessions
// are kept; the least recently used session is closed to make room, which
// cancels its pending commits.
type Registry struct {
	lister photos.Lister
	stores HistorySource
	cache  *PageCache
	tuning Tuning
	pub    *analytics.Publisher
	log    *zap.Logger

	sessions *lru.Cache[sessionKey, *Session]
}

func NewRegistry(lister photos.Lister, stores HistorySource, cache *PageCache, t Tuning, pub *analytics.Publisher, log *zap.Logger) *Registry {
	r := &Registry{
		lister: lister,
		stores: stores,
		cache:  cache,
		tuning: t.WithDefaults(),
		pub:    pub,
		log:    logging.OrNop(log),
	}
	// only fails for a non-positive size, which WithDefaults rules out
	r.sessions, _ = lru.NewWithEvict(r.tuning.MaxSessions, func(_ sessionKey, s *Session) {
		s.Close()
	})
	return r
}

// History returns the viewed history of visitor.
func (r *Registry) History(visitor string) *history.Store {
	return r.stores.For(visitor)
}

// Session returns the session of (visitor, mode), creating it on first use.
func (r *Registry) Session(visitor string, mode Mode) *Session {
	k := sessionKey{visitor, mode}
	if s, ok := r.sessions.Get(k); ok {
		return s
	}
	p := New(visitor, r.lister, r.stores.For(visitor),
		WithTuning(r.tuning),
		WithCache(r.cache),
		WithPublisher(r.pub),
		WithLogger(r.log),
	)
	s := p.NewSession(mode)
	if prev, ok, _ := r.sessions.PeekOrAdd(k, s); ok {
		return prev
	}
	return s
}

// Len reports the number of live sessions.
func (r *Registry) Len() int { return r.sessions.Len() }

// Reset restarts the session of (visitor, mode) if it exists.
func (r *Registry) Reset(visitor string, mode Mode) {
	if s, ok := r.sessions.Peek(sessionKey{visitor, mode}); ok {
		s.Reset()
	}
}

// ResetVisitor restarts every session of visitor, typically after the
// visitor's history was cleared.
func (r *Registry) ResetVisitor(visitor string) int {
	var hit []*Session
	for _, m := range []Mode{ModeUnseen, ModeAll} {
		if s, ok := r.sessions.Peek(sessionKey{visitor, m}); ok {
			hit = append(hit, s)
		}
	}
	for _, s := range hit {
		s.Reset()
	}
	return len(hit)
}

// PatchPhoto overlays updated onto every cached page and every live session.
// It returns the number of sessions touched.
func (r *Registry) PatchPhoto(updated photos.Photo) int {
	r.cache.PatchPhoto(updated)
	n := 0
	for _, s := range r.sessions.Values() {
		if s.PatchPhoto(updated) {
			n++
		}
	}
	return n
}

// Close closes every session and cancels pending commits.
func (r *Registry) Close() {
	r.sessions.Purge()
}
