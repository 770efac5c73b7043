package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/infrastructure/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache() (*Cache, *storage.Memory, *fakeClock) {
	store := storage.NewMemory()
	clock := &fakeClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	return New(store, WithClock(clock.now)), store, clock
}

func TestCache_ListWindowBoundary(t *testing.T) {
	c, store, clock := newTestCache()
	ctx := context.Background()
	key := UserListKey("u1")

	reqs := []domain.FilingRequest{{ConfirmationNumber: "TAX-00000001"}}
	if err := c.Set(ctx, key, reqs); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clock.advance(ListWindow - time.Millisecond)
	var got []domain.FilingRequest
	if !c.Get(ctx, key, ListWindow, &got) {
		t.Fatalf("expected hit just inside the window")
	}
	if len(got) != 1 || got[0].ConfirmationNumber != "TAX-00000001" {
		t.Fatalf("unexpected cached value %+v", got)
	}

	clock.advance(time.Millisecond)
	if c.Get(ctx, key, ListWindow, &got) {
		t.Fatalf("entry aged exactly one window must be a miss")
	}
	if _, err := store.Get(ctx, key); err == nil {
		t.Fatalf("expired entry should have been deleted")
	}
}

func TestCache_DetailWindow(t *testing.T) {
	c, _, clock := newTestCache()
	ctx := context.Background()
	key := DetailKey("TAX-00000002")

	if err := c.Set(ctx, key, domain.FilingRequest{ConfirmationNumber: "TAX-00000002"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clock.advance(16 * time.Minute)

	var got domain.FilingRequest
	if c.Get(ctx, key, DetailWindow, &got) {
		t.Fatalf("detail entry older than 15 minutes must be a miss")
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	c, store, _ := newTestCache()
	ctx := context.Background()
	_ = store.Set(ctx, "request:x", "{not json")

	var got domain.FilingRequest
	if c.Get(ctx, "request:x", DetailWindow, &got) {
		t.Fatalf("corrupt entry must be a miss")
	}
	if _, err := store.Get(ctx, "request:x"); err == nil {
		t.Fatalf("corrupt entry should have been deleted")
	}
}

func TestCache_StoredShape(t *testing.T) {
	c, store, clock := newTestCache()
	ctx := context.Background()
	if err := c.Set(ctx, "request:y", map[string]string{"status": "Pendiente"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, _ := store.Get(ctx, "request:y")
	want := `{"data":{"status":"Pendiente"},"timestamp":` + strconv.FormatInt(clock.t.UnixMilli(), 10) + `}`
	if raw != want {
		t.Fatalf("stored %s, want %s", raw, want)
	}
}

func TestCache_Invalidate(t *testing.T) {
	c, _, _ := newTestCache()
	ctx := context.Background()
	_ = c.Set(ctx, DetailKey("a"), 1)
	_ = c.Set(ctx, DetailKey("b"), 2)
	_ = c.Set(ctx, UserListKey("u1"), 3)

	if err := c.Invalidate(ctx, DetailKey("a")); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	var v int
	if c.Get(ctx, DetailKey("a"), DetailWindow, &v) {
		t.Fatalf("invalidated entry still present")
	}

	if err := c.InvalidatePrefix(ctx, DetailPrefix); err != nil {
		t.Fatalf("InvalidatePrefix: %v", err)
	}
	if c.Get(ctx, DetailKey("b"), DetailWindow, &v) {
		t.Fatalf("prefix invalidation missed an entry")
	}
	if !c.Get(ctx, UserListKey("u1"), ListWindow, &v) || v != 3 {
		t.Fatalf("list entry should survive detail prefix invalidation")
	}
}
