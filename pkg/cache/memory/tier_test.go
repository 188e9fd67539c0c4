package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestPutAndGet(t *testing.T) {
	tier := New[string](10)
	tier.Put("k", "v", time.Hour)

	v, ok := tier.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok = tier.Get("missing")
	assert.False(t, ok)

	stats := tier.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.CurrentSize)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestTTLExpiration(t *testing.T) {
	clock := newFakeClock()
	tier := New[string](10, WithClock(clock.Now))
	tier.Put("k", "v", time.Second)

	_, ok := tier.Get("k")
	require.True(t, ok, "entry should be live immediately")

	clock.Advance(2 * time.Second)
	_, ok = tier.Get("k")
	assert.False(t, ok, "entry should expire without an explicit delete")
	assert.Equal(t, 0, tier.Len(), "expired entry is removed on touch")
}

func TestHasAndDeleteHonourExpiry(t *testing.T) {
	clock := newFakeClock()
	tier := New[int](10, WithClock(clock.Now))
	tier.Put("a", 1, time.Second)
	tier.Put("b", 2, time.Hour)

	assert.True(t, tier.Has("a"))
	clock.Advance(2 * time.Second)
	assert.False(t, tier.Has("a"))
	assert.False(t, tier.Delete("a"))
	assert.True(t, tier.Delete("b"))
	assert.Equal(t, 0, tier.Len())

	// Has and Delete do not count as lookups.
	stats := tier.Stats()
	assert.Zero(t, stats.Hits+stats.Misses)
}

func TestEvictsOldestCreatedAt(t *testing.T) {
	const capacity = 3
	clock := newFakeClock()
	tier := New[int](capacity, WithClock(clock.Now))

	for i := range capacity + 1 {
		tier.Put(fmt.Sprintf("k%d", i), i, time.Hour)
		clock.Advance(time.Millisecond)
	}

	assert.Equal(t, capacity, tier.Len())
	assert.False(t, tier.Has("k0"), "earliest key should be evicted")
	for i := 1; i <= capacity; i++ {
		assert.True(t, tier.Has(fmt.Sprintf("k%d", i)))
	}
}

func TestEvictionIsNotLRU(t *testing.T) {
	tier := New[int](2)
	tier.Put("a", 1, time.Hour)
	tier.Put("b", 2, time.Hour)
	_, _ = tier.Get("a") // reading does not refresh CreatedAt
	tier.Put("c", 3, time.Hour)

	assert.False(t, tier.Has("a"))
	assert.True(t, tier.Has("b"))
	assert.True(t, tier.Has("c"))
}

func TestOverwriteRefreshesCreatedAt(t *testing.T) {
	clock := newFakeClock()
	tier := New[int](2, WithClock(clock.Now))
	tier.Put("a", 1, time.Hour)
	clock.Advance(time.Second)
	tier.Put("b", 2, time.Hour)
	clock.Advance(time.Second)
	tier.Put("a", 10, time.Hour) // same key, no eviction, becomes newest
	assert.Equal(t, 2, tier.Len())

	tier.Put("c", 3, time.Hour)
	assert.False(t, tier.Has("b"))
	v, ok := tier.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	e, ok := tier.Entry("a")
	require.True(t, ok)
	assert.Equal(t, e.CreatedAt.Add(time.Hour), e.ExpiresAt)
	assert.EqualValues(t, 3600, e.TTLSeconds)
	assert.EqualValues(t, 1, e.HitCount)
}

func TestClearResetsStats(t *testing.T) {
	tier := New[int](4)
	tier.Put("a", 1, time.Hour)
	_, _ = tier.Get("a")
	_, _ = tier.Get("b")

	tier.Clear()
	assert.Equal(t, 0, tier.Len())
	stats := tier.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.HitRate)
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	tier := New[int](10, WithClock(clock.Now))
	tier.Put("short", 1, time.Second)
	tier.Put("long", 2, time.Hour)
	clock.Advance(5 * time.Second)

	assert.Equal(t, 1, tier.Sweep())
	assert.Equal(t, 1, tier.Len())
	assert.True(t, tier.Has("long"))
}

func TestConcurrentAccess(t *testing.T) {
	tier := New[int](50)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := fmt.Sprintf("k%d", (g*200+i)%80)
				tier.Put(key, i, time.Minute)
				_, _ = tier.Get(key)
				_ = tier.Has(key)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, tier.Len(), 50)
	stats := tier.Stats()
	assert.EqualValues(t, 8*200, stats.Hits+stats.Misses)
}
