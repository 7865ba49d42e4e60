package paginator

import (
	"slices"
	"sync"

	"github.com/hashicorp/golang-lru/v2"

	"github.com/example/trig-gallery/services/gallery/internal/photos"
)

const DefaultCacheSize = 512

type pageKey struct {
	visitor string
	mode    Mode
	offset  int
	limit   int
}

// PageCache keeps recently fetched ModeAll pages. Unseen pages depend on the
// viewed history and are never cached. A nil *PageCache is a no-op.
type PageCache struct {
	// guards read-modify-write in PatchPhoto against concurrent Add
	mu    sync.Mutex
	pages *lru.Cache[pageKey, Result]
}

func NewPageCache(size int) (*PageCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[pageKey, Result](size)
	if err != nil {
		return nil, err
	}
	return &PageCache{pages: c}, nil
}

func (c *PageCache) Get(visitor string, mode Mode, offset, limit int) (Result, bool) {
	if c == nil {
		return Result{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.pages.Get(pageKey{visitor, mode, offset, limit})
	if !ok {
		return Result{}, false
	}
	res.Items = slices.Clone(res.Items)
	return res, true
}

func (c *PageCache) Add(visitor string, mode Mode, offset, limit int, res Result) {
	if c == nil {
		return
	}
	res.Items = slices.Clone(res.Items)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages.Add(pageKey{visitor, mode, offset, limit}, res)
}

// PatchPhoto overlays updated onto every cached copy of the photo and
// returns the number of pages touched.
func (c *PageCache) PatchPhoto(updated photos.Photo) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, k := range c.pages.Keys() {
		res, ok := c.pages.Peek(k)
		if !ok || !patchItems(res.Items, updated) {
			continue
		}
		c.pages.Add(k, res)
		n++
	}
	return n
}

// PurgeVisitor drops every page cached for visitor.
func (c *PageCache) PurgeVisitor(visitor string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.pages.Keys() {
		if k.visitor == visitor {
			c.pages.Remove(k)
		}
	}
}

func (c *PageCache) Len() int {
	if c == nil {
		return 0
	}
	return c.pages.Len()
}

func patchItems(items []photos.Photo, updated photos.Photo) bool {
	patched := false
	for i := range items {
		if items[i].ID == updated.ID {
			items[i].Patch(updated)
			patched = true
		}
	}
	return patched
}
