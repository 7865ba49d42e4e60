package paginator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/analytics"
	"github.com/example/trig-gallery/internal/platform/logging"
	"github.com/example/trig-gallery/services/gallery/internal/history"
)

const commitTimeout = 5 * time.Second

// Committer records settled batches into the viewed history once the settle
// delay has passed.
type Committer struct {
	history History
	delay   time.Duration
	ceiling int64
	visitor string
	pub     *analytics.Publisher
	log     *zap.Logger

	mu      sync.Mutex
	pending map[*time.Timer]struct{}
	// bumped by Cancel; timers of an older generation do not commit
	generation uint64

	// held for the whole of a commit
	writing sync.Mutex
}

func NewCommitter(hist History, t Tuning, visitor string, pub *analytics.Publisher, log *zap.Logger) *Committer {
	t = t.WithDefaults()
	return &Committer{
		history: hist,
		delay:   t.SettleDelay,
		ceiling: t.CommitCeiling,
		visitor: visitor,
		pub:     pub,
		log:     logging.OrNop(log),
		pending: make(map[*time.Timer]struct{}),
	}
}

// Schedule queues batch for commit. A batch spanning more IDs than the
// ceiling is dropped with a warning and Schedule reports false.
func (c *Committer) Schedule(batch history.Range) bool {
	if size := batch.Size(); size > c.ceiling {
		c.log.Warn("paginator: batch span above commit ceiling, not recorded",
			zap.Int64("batch_min", batch.Min),
			zap.Int64("batch_max", batch.Max),
			zap.Int64("size", size),
			zap.Int64("ceiling", c.ceiling),
		)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generation
	var t *time.Timer
	t = time.AfterFunc(c.delay, func() {
		c.writing.Lock()
		defer c.writing.Unlock()
		c.mu.Lock()
		_, live := c.pending[t]
		delete(c.pending, t)
		live = live && gen == c.generation
		c.mu.Unlock()
		if live {
			c.commit(batch)
		}
	})
	c.pending[t] = struct{}{}
	return true
}

func (c *Committer) commit(batch history.Range) {
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	c.history.TrackBatch(ctx, batch.Min, batch.Max)
	c.pub.Publish(analytics.SubjectHistoryCommitted, c.visitor, map[string]any{
		"min": batch.Min,
		"max": batch.Max,
	})
}

// Pending reports the number of scheduled commits that have not fired.
func (c *Committer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Cancel drops every pending commit and waits for commits already writing,
// so nothing scheduled before Cancel reaches the history after it returns.
func (c *Committer) Cancel() {
	c.mu.Lock()
	c.generation++
	for t := range c.pending {
		t.Stop()
		delete(c.pending, t)
	}
	c.mu.Unlock()
	c.writing.Lock()
	c.writing.Unlock()
}
