package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/example/trig-gallery/internal/platform/api"
	"github.com/example/trig-gallery/internal/platform/httpserver"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by X-Forwarded-For, falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// Buckets is a keyed token bucket limiter for HTTP handlers.
type Buckets struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int
	key     KeyFunc
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewBuckets creates a limiter with the given rate (req/s) and burst size.
// A nil key charges requests by client IP.
func NewBuckets(rate float64, burst int, key KeyFunc) *Buckets {
	if key == nil {
		key = ClientIP
	}
	return &Buckets{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		key:     key,
		now:     time.Now,
	}
}

// allow takes a token for key. When refused it reports how long until the
// next token is available.
func (b *Buckets) allow(key string) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	bk, ok := b.buckets[key]
	if !ok {
		bk = &bucket{tokens: float64(b.burst), last: now}
		b.buckets[key] = bk
	}

	bk.tokens = min(bk.tokens+now.Sub(bk.last).Seconds()*b.rate, float64(b.burst))
	bk.last = now

	if bk.tokens < 1 {
		if b.rate <= 0 {
			return false, 0
		}
		return false, time.Duration((1 - bk.tokens) / b.rate * float64(time.Second))
	}
	bk.tokens--
	return true, 0
}

// Middleware rejects requests over the limit with 429.
func (b *Buckets) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, wait := b.allow(b.key(r)); !ok {
			api.RateLimited(w, wait, httpserver.RequestIDFromContext(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
