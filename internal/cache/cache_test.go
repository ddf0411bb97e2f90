package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a controllable time source for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1756600000, 0)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, clock *fakeClock) *Cache {
	t.Helper()
	c := New(
		WithTTL(30*time.Second),
		WithSweepInterval(time.Hour), // keep the sweeper out of the way
		WithClock(clock.Now),
	)
	t.Cleanup(c.Stop)
	return c
}

func TestCache_SetThenGet(t *testing.T) {
	c := newTestCache(t, newFakeClock())

	c.Set("shelf-1", "public-access", true)

	val, ok := c.Get("shelf-1", "public-access")
	require.True(t, ok)
	assert.Equal(t, true, val)
}

func TestCache_MissForUnknownKey(t *testing.T) {
	c := newTestCache(t, newFakeClock())

	_, ok := c.Get("shelf-1", "public-access")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCache_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	c.Set("shelf-1", "public-access", true)

	clock.Advance(29 * time.Second)
	_, ok := c.Get("shelf-1", "public-access")
	assert.True(t, ok, "entry should still be fresh just under the TTL")

	clock.Advance(2 * time.Second)
	_, ok = c.Get("shelf-1", "public-access")
	assert.False(t, ok, "entry should expire after the TTL")
}

func TestCache_ExpiredGetEvicts(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	c.Set("shelf-1", "public-access", true)
	assert.Equal(t, 1, c.Stats().Size)

	clock.Advance(31 * time.Second)
	_, ok := c.Get("shelf-1", "public-access")
	assert.False(t, ok)
	// The expired read removed the entry.
	assert.Equal(t, 0, c.Stats().Size)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCache_SetOverwritesAndRefreshes(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	c.Set("shelf-1", "public-access", false)
	clock.Advance(20 * time.Second)
	c.Set("shelf-1", "public-access", true)
	clock.Advance(20 * time.Second)

	// 40s after the first write, 20s after the second: still fresh.
	val, ok := c.Get("shelf-1", "public-access")
	require.True(t, ok)
	assert.Equal(t, true, val)
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache(t, newFakeClock())

	c.Set("shelf-1", "public-access", true)
	c.Set("shelf-1", "editors", []string{"p1"})

	c.Invalidate("shelf-1", "public-access")

	_, ok := c.Get("shelf-1", "public-access")
	assert.False(t, ok)
	_, ok = c.Get("shelf-1", "editors")
	assert.True(t, ok, "other types for the same id must survive")
}

func TestCache_InvalidateForShelf(t *testing.T) {
	c := newTestCache(t, newFakeClock())

	c.Set("shelf-1", "public-access", true)
	c.Set("shelf-1", "editors", []string{"p1"})
	c.Set("shelf-2", "public-access", false)
	c.Set("principal-9", "shelf-count", 4)

	c.InvalidateForShelf("shelf-1")

	_, ok := c.Get("shelf-1", "public-access")
	assert.False(t, ok)
	_, ok = c.Get("shelf-1", "editors")
	assert.False(t, ok)
	_, ok = c.Get("shelf-2", "public-access")
	assert.True(t, ok, "entries for other shelves must be untouched")
	_, ok = c.Get("principal-9", "shelf-count")
	assert.True(t, ok, "entries for principals must be untouched")
}

func TestCache_InvalidateForPrincipal(t *testing.T) {
	c := newTestCache(t, newFakeClock())

	c.Set("principal-9", "shelf-count", 4)
	c.Set("principal-9", "followed-tags", []string{"art"})
	c.Set("principal-7", "shelf-count", 2)

	c.InvalidateForPrincipal("principal-9")

	_, ok := c.Get("principal-9", "shelf-count")
	assert.False(t, ok)
	_, ok = c.Get("principal-9", "followed-tags")
	assert.False(t, ok)
	_, ok = c.Get("principal-7", "shelf-count")
	assert.True(t, ok)
}

func TestCache_InvalidateForShelf_EmptyIsNoop(t *testing.T) {
	c := newTestCache(t, newFakeClock())

	c.Set("shelf-1", "public-access", true)
	c.InvalidateForShelf("")

	assert.Equal(t, 1, c.Stats().Size)
}

func TestCache_InvalidateByType(t *testing.T) {
	c := newTestCache(t, newFakeClock())

	c.Set("shelf-1", "public-access", true)
	c.Set("shelf-2", "public-access", false)
	c.Set("science", "tag-count", 10)

	c.InvalidateByType("public-access")

	_, ok := c.Get("shelf-1", "public-access")
	assert.False(t, ok)
	_, ok = c.Get("shelf-2", "public-access")
	assert.False(t, ok)
	_, ok = c.Get("science", "tag-count")
	assert.True(t, ok)
}

func TestCache_BackgroundSweep(t *testing.T) {
	clock := newFakeClock()
	c := New(
		WithTTL(10*time.Millisecond),
		WithSweepInterval(5*time.Millisecond),
		WithClock(clock.Now),
	)
	defer c.Stop()

	c.Set("shelf-1", "public-access", true)
	c.Set("shelf-2", "public-access", true)
	clock.Advance(time.Second)

	// The sweeper runs on real time; the entries are expired per the
	// fake clock, so the next tick should purge both without any Get.
	assert.Eventually(t, func() bool {
		return c.Stats().Size == 0
	}, time.Second, 2*time.Millisecond)
}

func TestCache_StopIsIdempotent(t *testing.T) {
	c := New(WithSweepInterval(time.Millisecond))
	c.Stop()
	c.Stop()
}

func TestCache_HitAndMissCounters(t *testing.T) {
	c := newTestCache(t, newFakeClock())

	c.Set("shelf-1", "public-access", true)
	c.Get("shelf-1", "public-access")
	c.Get("shelf-1", "public-access")
	c.Get("shelf-404", "public-access")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}
