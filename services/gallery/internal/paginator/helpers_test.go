package paginator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/example/trig-gallery/services/gallery/internal/history"
	"github.com/example/trig-gallery/services/gallery/internal/photos"
)

func photo(id int64) photos.Photo {
	p, err := photos.NewPhoto(id, map[string]any{"caption": fmt.Sprintf("photo %d", id)})
	if err != nil {
		panic(err)
	}
	return p
}

func descending(hi, lo int64) []int64 {
	ids := make([]int64, 0, hi-lo+1)
	for id := hi; id >= lo; id-- {
		ids = append(ids, id)
	}
	return ids
}

func ids(items []photos.Photo) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

// collection serves a fixed ID list in the given order, like the photo API.
type collection struct {
	mu    sync.Mutex
	ids   []int64
	err   error
	calls []int
}

func (c *collection) ListPhotos(_ context.Context, skip, limit int) (*photos.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, skip)
	if c.err != nil {
		return nil, c.err
	}
	start := min(skip, len(c.ids))
	end := min(skip+limit, len(c.ids))
	items := make([]photos.Photo, 0, end-start)
	for _, id := range c.ids[start:end] {
		items = append(items, photo(id))
	}
	return &photos.Page{
		Items:      items,
		Total:      len(c.ids),
		Pagination: photos.Pagination{HasMore: end < len(c.ids)},
	}, nil
}

func (c *collection) Calls() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.calls...)
}

func (c *collection) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// repeatLister returns the same page for every offset and always claims
// more pages exist.
type repeatLister struct {
	mu    sync.Mutex
	ids   []int64
	calls []int
}

func (r *repeatLister) ListPhotos(_ context.Context, skip, _ int) (*photos.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, skip)
	items := make([]photos.Photo, 0, len(r.ids))
	for _, id := range r.ids {
		items = append(items, photo(id))
	}
	return &photos.Page{Items: items, Total: 1 << 20, Pagination: photos.Pagination{HasMore: true}}, nil
}

// blockingLister parks each call until release is closed.
type blockingLister struct {
	inner   photos.Lister
	entered chan struct{}
	release chan struct{}
}

func (b *blockingLister) ListPhotos(ctx context.Context, skip, limit int) (*photos.Page, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.inner.ListPhotos(ctx, skip, limit)
}

func memStore(t *testing.T, viewed ...history.Range) *history.Store {
	t.Helper()
	s := history.NewStore(history.NewMemoryBackend(), history.DefaultKey)
	for _, r := range viewed {
		s.AddViewedRange(context.Background(), r.Min, r.Max)
	}
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fakeJS struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeJS) PublishAsync(subj string, _ []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subj)
	return nil, nil
}

func (f *fakeJS) count(subj string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subjects {
		if s == subj {
			n++
		}
	}
	return n
}

func mustPhoto(t *testing.T, id int64, fields map[string]any) photos.Photo {
	t.Helper()
	p, err := photos.NewPhoto(id, fields)
	if err != nil {
		t.Fatal(err)
	}
	return p
}
