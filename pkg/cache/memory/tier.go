// Package memory implements the bounded in-memory cache tier.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/pario-ai/chorus/pkg/models"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 1000

// Tier is a bounded TTL cache. At capacity, inserting a new key evicts the
// entry with the oldest CreatedAt. Expired entries are removed when touched.
type Tier[V any] struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = oldest CreatedAt
	capacity int
	hits     int64
	misses   int64
	now      func() time.Time
}

// Option configures a Tier.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a Tier holding at most capacity entries.
func New[V any](capacity int, opts ...Option) *Tier[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tier[V]{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		now:      o.now,
	}
}

// Get returns the value for key and counts a hit or miss.
func (t *Tier[V]) Get(key string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.liveLocked(key)
	if !ok {
		t.misses++
		var zero V
		return zero, false
	}
	e.HitCount++
	t.hits++
	return e.Value, true
}

// Entry returns a copy of the live entry for key without touching stats.
func (t *Tier[V]) Entry(key string) (models.CacheEntry[V], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.liveLocked(key)
	if !ok {
		return models.CacheEntry[V]{}, false
	}
	return *e, true
}

// Put stores value under key for ttl. A write to an existing key replaces the
// entry and refreshes its CreatedAt.
func (t *Tier[V]) Put(key string, value V, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.entries[key]; ok {
		t.order.Remove(el)
		delete(t.entries, key)
	}
	for len(t.entries) >= t.capacity {
		t.removeLocked(t.order.Front())
	}

	now := t.now()
	e := &models.CacheEntry[V]{
		Key:        key,
		Value:      value,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		TTLSeconds: int64(ttl / time.Second),
	}
	t.entries[key] = t.order.PushBack(e)
}

// Has reports whether key is present and live.
func (t *Tier[V]) Has(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.liveLocked(key)
	return ok
}

// Delete removes key and reports whether a live entry was removed.
func (t *Tier[V]) Delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.liveLocked(key); !ok {
		return false
	}
	t.removeLocked(t.entries[key])
	return true
}

// Clear drops every entry and resets the counters.
func (t *Tier[V]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make(map[string]*list.Element)
	t.order.Init()
	t.hits, t.misses = 0, 0
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (t *Tier[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Stats returns a snapshot of the counters.
func (t *Tier[V]) Stats() models.CacheStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return models.CacheStats{
		Hits:        t.hits,
		Misses:      t.misses,
		CurrentSize: len(t.entries),
		HitRate:     models.ComputeHitRate(t.hits, t.misses),
	}
}

// Sweep removes every expired entry and returns how many were removed.
func (t *Tier[V]) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for el := t.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*models.CacheEntry[V]).Expired(now) {
			t.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (t *Tier[V]) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := t.Sweep()
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (t *Tier[V]) liveLocked(key string) (*models.CacheEntry[V], bool) {
	el, ok := t.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*models.CacheEntry[V])
	if e.Expired(t.now()) {
		t.removeLocked(el)
		return nil, false
	}
	return e, true
}

func (t *Tier[V]) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	e := t.order.Remove(el).(*models.CacheEntry[V])
	delete(t.entries, e.Key)
}
