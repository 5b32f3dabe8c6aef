package arbcache

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"sui-arb-engine/internal/arberr"
)

func TestInsertDeduplicatesSameKey(t *testing.T) {
	c := New(time.Minute)
	c.Insert("cycle-a", 1)
	c.Insert("cycle-a", 2)

	if got := c.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1 after inserting the same key twice", got)
	}
	item, ok := c.Get("cycle-a")
	if !ok {
		t.Fatal("expected cycle-a to be present")
	}
	if item.Value != 2 {
		t.Fatalf("Value = %v, want 2 (the later insert should win)", item.Value)
	}
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	mc := clock.NewMock()
	c := NewWithClock(10*time.Second, mc)
	c.Insert("cycle-a", "v1")

	if _, ok := c.Get("cycle-a"); !ok {
		t.Fatal("expected cycle-a to be present immediately after insert")
	}

	mc.Add(11 * time.Second)
	if _, ok := c.Get("cycle-a"); ok {
		t.Fatal("expected cycle-a to have expired after TTL elapsed")
	}
	if got := c.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0 after expiry sweep", got)
	}
}

func TestPopDrainsOldestFirst(t *testing.T) {
	mc := clock.NewMock()
	c := NewWithClock(time.Minute, mc)
	c.Insert("first", 1)
	mc.Add(time.Second)
	c.Insert("second", 2)

	item, err := c.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if item.Key != "first" {
		t.Fatalf("Pop() key = %s, want first", item.Key)
	}

	item, err = c.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if item.Key != "second" {
		t.Fatalf("Pop() key = %s, want second", item.Key)
	}

	if _, err := c.Pop(); err != arberr.ErrCacheEmpty {
		t.Fatalf("expected ErrCacheEmpty on empty cache, got %v", err)
	}
}

func TestReinsertDuringTTLResetsExpiry(t *testing.T) {
	mc := clock.NewMock()
	c := NewWithClock(10*time.Second, mc)
	c.Insert("cycle-a", "v1")

	mc.Add(7 * time.Second)
	c.Insert("cycle-a", "v2") // refreshes expiry to now+10s

	mc.Add(7 * time.Second) // 14s since first insert, but only 7s since refresh
	item, ok := c.Get("cycle-a")
	if !ok {
		t.Fatal("expected cycle-a to still be live after reinsertion reset its TTL")
	}
	if item.Value != "v2" {
		t.Fatalf("Value = %v, want v2", item.Value)
	}
}

func TestStaleHeapItemFromReplacedEntryIsIgnored(t *testing.T) {
	mc := clock.NewMock()
	c := NewWithClock(5*time.Second, mc)
	c.Insert("cycle-a", "v1")
	mc.Add(time.Second)
	c.Insert("cycle-a", "v2")

	// advance past the first insert's original expiry but not the
	// second's; the stale heap entry for the first insert must not evict
	// the live (replaced) value.
	mc.Add(4 * time.Second)
	item, ok := c.Get("cycle-a")
	if !ok {
		t.Fatal("expected cycle-a (reinserted) to still be live")
	}
	if item.Value != "v2" {
		t.Fatalf("Value = %v, want v2", item.Value)
	}
}
