// Package arbcache deduplicates and expires discovered arbitrage
// opportunities. Each candidate key (the coin an opportunity is
// denominated in) maps to at most one live entry; a newer discovery for the
// same key replaces the old one rather than accumulating duplicates, and
// every entry expires after a fixed TTL tracked via a lazily-deleted
// min-heap rather than per-entry timers.
package arbcache

import (
	"container/heap"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/types"
)

// Key identifies one candidate opportunity by the coin it's denominated
// in, not by a pool-path: every event that touches a coin (a balance
// change or an object change on one of its pools) de-dupes onto the same
// entry, matching the arbitrage cache's coin-keyed contract.
type Key = types.TypeTag

// Item is a cached opportunity's payload. The cache is agnostic to its
// contents; Value is carried opaquely so strategy can store whatever
// candidate representation it likes (a trade.Path plus its last-known
// profit, typically).
type Item struct {
	Key   Key
	Value any
}

// entry is the internal record backing one live Key, including the
// monotonically increasing generation number used to detect staleness
// without scanning the whole cache on every insert.
type entry struct {
	item       Item
	expiresAt  time.Time
	generation uint64
}

// heapItem is the min-heap element ordered by expiry; it carries the
// generation the entry had when this heap item was pushed, so that an
// entry replaced by a newer insert (bumping the generation) can be
// recognised as stale and skipped when its old heap item is eventually
// popped, instead of needing an explicit heap removal.
type heapItem struct {
	key        Key
	expiresAt  time.Time
	generation uint64
	index      int
}

type expiryHeap []*heapItem

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *expiryHeap) Push(x any) {
	item := x.(*heapItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Cache is a generation-stamped expiring map keyed by candidate coin.
// Insert, Get and Len are safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clock.Clock
	entries map[Key]*entry
	expiry  expiryHeap
	gen     uint64
}

// New returns a Cache whose entries expire ttl after insertion, using the
// real wall clock.
func New(ttl time.Duration) *Cache {
	return NewWithClock(ttl, clock.New())
}

// NewWithClock is New with an injectable clock, for deterministic expiry
// tests.
func NewWithClock(ttl time.Duration, c clock.Clock) *Cache {
	return &Cache{
		ttl:     ttl,
		clock:   c,
		entries: make(map[Key]*entry),
	}
}

// Insert adds or replaces the entry for key, resetting its expiry and
// bumping the cache's generation counter. Inserting under an existing key
// counts as de-duplication: the prior value is discarded, not retained
// alongside the new one.
func (c *Cache) Insert(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	now := c.clock.Now()
	e := &entry{
		item:       Item{Key: key, Value: value},
		expiresAt:  now.Add(c.ttl),
		generation: c.gen,
	}
	c.entries[key] = e
	heap.Push(&c.expiry, &heapItem{key: key, expiresAt: e.expiresAt, generation: c.gen})
	c.evictExpiredLocked(now)
}

// Get returns the live value for key, or ok=false if it is absent or has
// expired. A lookup that finds an expired-but-not-yet-reaped entry treats
// it as absent rather than eagerly reaping it, keeping Get allocation-free
// on the hot path; reaping happens lazily in Insert/evictExpired.
func (c *Cache) Get(key Key) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Item{}, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		return Item{}, false
	}
	return e.item, true
}

// Len returns the number of live (non-expired) entries, reaping expired
// ones as a side effect.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked(c.clock.Now())
	return len(c.entries)
}

// evictExpiredLocked pops and discards heap items whose expiry has
// passed, skipping (without side effects) any heap item whose generation
// no longer matches the live entry's generation — the lazy-deletion
// signal that this heap item belongs to a value since replaced by a
// newer Insert under the same key.
func (c *Cache) evictExpiredLocked(now time.Time) {
	for c.expiry.Len() > 0 {
		top := c.expiry[0]
		if top.expiresAt.After(now) {
			return
		}
		heap.Pop(&c.expiry)
		live, ok := c.entries[top.key]
		if !ok || live.generation != top.generation {
			continue // stale heap item for an already-replaced or already-reaped key
		}
		delete(c.entries, top.key)
	}
}

// Pop removes and returns the single nearest-to-expiring live item, or
// ErrCacheEmpty if the cache has no live entries. Used by the worker pool
// to drain the cache oldest-opportunity-first.
func (c *Cache) Pop() (Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	c.evictExpiredLocked(now)
	for c.expiry.Len() > 0 {
		top := heap.Pop(&c.expiry).(*heapItem)
		live, ok := c.entries[top.key]
		if !ok || live.generation != top.generation {
			continue
		}
		delete(c.entries, top.key)
		return live.item, nil
	}
	return Item{}, arberr.ErrCacheEmpty
}
