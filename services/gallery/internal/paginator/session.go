package paginator

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/analytics"
	"github.com/example/trig-gallery/services/gallery/internal/photos"
)

var (
	// ErrStale is returned by FetchNext when the session was reset while the
	// fetch was in flight; the fetched page has been discarded.
	ErrStale = errors.New("paginator: session reset during fetch")
	// ErrBusy is returned when FetchNext is called while another call on the
	// same session is still running.
	ErrBusy   = errors.New("paginator: fetch already in progress")
	ErrClosed = errors.New("paginator: session closed")
)

// Session is the pagination state of one visitor in one mode: the offset,
// the pages accumulated so far and the consecutive skip attempt counter.
type Session struct {
	p         *Paginator
	mode      Mode
	committer *Committer
	log       *zap.Logger

	mu         sync.Mutex
	state      State
	reason     ExhaustReason
	offset     int
	attempts   int
	atEnd      bool
	inFlight   bool
	closed     bool
	generation uint64
	pages      []Result
	lastErr    error
}

// NewSession starts an Idle session at offset zero.
func (p *Paginator) NewSession(mode Mode) *Session {
	return &Session{
		p:         p,
		mode:      mode,
		committer: NewCommitter(p.history, p.tuning, p.visitor, p.pub, p.log),
		log:       p.log.With(zap.String("mode", string(mode))),
	}
}

// FetchNext fetches the next page that has something to show. Empty unseen
// pages are followed automatically, by smart skip when the page lies inside
// one viewed range and by the naive next offset otherwise. Both kinds of
// advance count against the skip attempt cap, which is reset whenever a page
// yields unseen photos.
//
// When the session is exhausted FetchNext returns an empty Result and a nil
// error; State and ExhaustReason tell the caller why. A fetch error leaves
// the offset unchanged so the next call retries the same page.
func (s *Session) FetchNext(ctx context.Context) (Result, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return Result{}, ErrClosed
	case s.inFlight:
		s.mu.Unlock()
		return Result{}, ErrBusy
	case s.state == StateExhausted || s.atEnd:
		res := s.exhaustLocked(ExhaustedEndOfCollection)
		s.mu.Unlock()
		return res, nil
	}
	gen := s.generation
	s.inFlight = true
	s.mu.Unlock()

	limit := s.p.tuning.PageSize
	for {
		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			return Result{}, ErrStale
		}
		s.state = StateFetching
		offset, attempts := s.offset, s.attempts
		s.mu.Unlock()

		res, err := s.p.FetchPage(ctx, offset, limit, s.mode, attempts)

		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			return Result{}, ErrStale
		}
		if err != nil {
			s.state = StateError
			s.lastErr = err
			s.inFlight = false
			s.mu.Unlock()
			return Result{}, err
		}
		s.lastErr = nil
		s.state = StateFiltering

		if len(res.Items) > 0 || s.mode == ModeAll {
			s.settleLocked(res)
			s.mu.Unlock()
			return res, nil
		}

		switch {
		case res.SmartSkipOffset != nil:
			s.attempts++
			s.offset = *res.SmartSkipOffset
			s.state = StateSkipComputed
			s.p.pub.Publish(analytics.SubjectSmartSkip, s.p.visitor, map[string]any{
				"from_offset": offset,
				"to_offset":   s.offset,
				"attempt":     s.attempts,
			})
		case !res.HasMore:
			out := s.exhaustLocked(ExhaustedEndOfCollection)
			s.mu.Unlock()
			return out, nil
		case s.attempts >= s.p.tuning.SkipAttemptCap:
			out := s.exhaustLocked(ExhaustedSkipCap)
			s.mu.Unlock()
			return out, nil
		default:
			s.attempts++
			s.offset = *res.NextOffset
			s.state = StateSkipComputed
		}
		s.mu.Unlock()
	}
}

func (s *Session) settleLocked(res Result) {
	s.state = StateSettled
	s.inFlight = false
	if len(res.Items) > 0 {
		s.attempts = 0
	}
	s.pages = append(s.pages, res)
	if over := len(s.pages) - s.p.tuning.PagesKept; over > 0 {
		s.pages = slices.Delete(s.pages, 0, over)
	}
	if res.NextOffset != nil {
		s.offset = *res.NextOffset
	} else {
		s.atEnd = true
	}
	if res.Batch != nil {
		s.committer.Schedule(*res.Batch)
	}
}

func (s *Session) exhaustLocked(reason ExhaustReason) Result {
	if s.state != StateExhausted {
		s.log.Info("paginator: feed exhausted",
			zap.String("reason", string(reason)),
			zap.Int("offset", s.offset),
			zap.Int("attempts", s.attempts),
		)
		s.p.pub.Publish(analytics.SubjectFeedExhausted, s.p.visitor, map[string]any{
			"mode":     string(s.mode),
			"reason":   string(reason),
			"offset":   s.offset,
			"attempts": s.attempts,
		})
		s.reason = reason
	}
	s.state = StateExhausted
	s.inFlight = false
	return Result{
		Offset: s.offset,
		Limit:  s.p.tuning.PageSize,
		Mode:   s.mode,
		Items:  []photos.Photo{},
	}
}

func (s *Session) Mode() Mode { return s.mode }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExhaustReason is empty unless the session is Exhausted.
func (s *Session) ExhaustReason() ExhaustReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *Session) Offset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Err is the error of the last failed fetch, cleared by the next success.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Pages returns the most recent settled pages (at most Tuning.PagesKept) in
// fetch order.
func (s *Session) Pages() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.pages))
	copy(out, s.pages)
	return out
}

// Photos returns the items of every settled page, flattened.
func (s *Session) Photos() []photos.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []photos.Photo
	for _, p := range s.pages {
		out = append(out, p.Items...)
	}
	return out
}

// PatchPhoto overlays updated onto the accumulated pages. History is not
// touched.
func (s *Session) PatchPhoto(updated photos.Photo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	patched := false
	for i := range s.pages {
		items := make([]photos.Photo, len(s.pages[i].Items))
		copy(items, s.pages[i].Items)
		if patchItems(items, updated) {
			s.pages[i].Items = items
			patched = true
		}
	}
	return patched
}

// Reset returns the session to Idle at offset zero. A fetch in flight is
// discarded when it returns and pending commits are cancelled.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.generation++
	s.state = StateIdle
	s.reason = ExhaustedNone
	s.offset = 0
	s.attempts = 0
	s.atEnd = false
	s.inFlight = false
	s.pages = nil
	s.lastErr = nil
	s.committer.Cancel()
}

// Close resets the session and rejects further fetches.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.closed = true
}
