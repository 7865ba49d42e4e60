package paginator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/trig-gallery/services/gallery/internal/history"
)

func newTestRegistry(t *testing.T, c *collection) (*Registry, *history.Factory) {
	t.Helper()
	f := history.NewFactory(history.NewMemoryBackend())
	cache, err := NewPageCache(16)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(c, f, cache, Tuning{SettleDelay: time.Hour}, nil, nil)
	t.Cleanup(r.Close)
	return r, f
}

func TestRegistry_SessionPerVisitorAndMode(t *testing.T) {
	r, _ := newTestRegistry(t, &collection{ids: descending(10, 1)})
	a := r.Session("v1", ModeUnseen)
	if r.Session("v1", ModeUnseen) != a {
		t.Fatal("expected the same session for the same key")
	}
	if r.Session("v1", ModeAll) == a || r.Session("v2", ModeUnseen) == a {
		t.Fatal("expected distinct sessions per visitor and mode")
	}
}

func TestRegistry_VisitorsHaveSeparateHistory(t *testing.T) {
	r, f := newTestRegistry(t, &collection{ids: descending(10, 1)})
	f.For("v1").AddViewedRange(context.Background(), 1, 10)

	res, err := r.Session("v1", ModeUnseen).FetchNext(context.Background())
	if err != nil || len(res.Items) != 0 {
		t.Fatalf("v1 has seen everything, got %v %v", ids(res.Items), err)
	}
	res, err = r.Session("v2", ModeUnseen).FetchNext(context.Background())
	if err != nil || len(res.Items) != 10 {
		t.Fatalf("v2 has seen nothing, got %v %v", ids(res.Items), err)
	}
}

func TestRegistry_ResetVisitor(t *testing.T) {
	r, _ := newTestRegistry(t, &collection{ids: descending(100, 1)})
	ctx := context.Background()
	for _, m := range []Mode{ModeUnseen, ModeAll} {
		if _, err := r.Session("v1", m).FetchNext(ctx); err != nil {
			t.Fatal(err)
		}
	}
	other := r.Session("v2", ModeUnseen)
	if _, err := other.FetchNext(ctx); err != nil {
		t.Fatal(err)
	}

	if n := r.ResetVisitor("v1"); n != 2 {
		t.Fatalf("expected 2 sessions reset, got %d", n)
	}
	if s := r.Session("v1", ModeAll); s.Offset() != 0 || s.State() != StateIdle {
		t.Fatalf("unexpected session after reset: offset=%d state=%s", s.Offset(), s.State())
	}
	if other.Offset() != 24 {
		t.Fatal("other visitors must not be reset")
	}
}

func TestRegistry_PatchPhoto(t *testing.T) {
	r, _ := newTestRegistry(t, &collection{ids: descending(10, 1)})
	ctx := context.Background()
	if _, err := r.Session("v1", ModeAll).FetchNext(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Session("v2", ModeUnseen).FetchNext(ctx); err != nil {
		t.Fatal(err)
	}

	if n := r.PatchPhoto(mustPhoto(t, 4, map[string]any{"photo_url": "p4-r.jpg"})); n != 2 {
		t.Fatalf("expected 2 sessions patched, got %d", n)
	}
	cached, ok := r.cache.Get("v1", ModeAll, 0, DefaultPageSize)
	if !ok || cached.Items[6].StringField("photo_url") != "p4-r.jpg" {
		t.Fatal("expected cached page to be patched")
	}
}

func TestRegistry_EvictsLeastRecentlyUsedSessions(t *testing.T) {
	f := history.NewFactory(history.NewMemoryBackend())
	r := NewRegistry(&collection{ids: descending(10, 1)}, f, nil, Tuning{SettleDelay: time.Hour, MaxSessions: 3}, nil, nil)
	t.Cleanup(r.Close)

	first := r.Session("v0", ModeUnseen)
	if _, err := first.FetchNext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if first.committer.Pending() != 1 {
		t.Fatalf("expected a pending commit, got %d", first.committer.Pending())
	}
	for i := 1; i <= 100; i++ {
		r.Session(fmt.Sprintf("v%d", i), ModeUnseen)
	}
	if n := r.Len(); n != 3 {
		t.Fatalf("expected 3 live sessions, got %d", n)
	}
	if _, err := first.FetchNext(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected evicted session to be closed, got %v", err)
	}
	if first.committer.Pending() != 0 {
		t.Fatal("expected eviction to cancel pending commits")
	}
	if r.Session("v0", ModeUnseen) == first {
		t.Fatal("expected a fresh session for an evicted visitor")
	}
}
