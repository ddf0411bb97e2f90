// Package cache provides a TTL read-through cache used to deduplicate
// repeated reads of semi-static backend facts (public-access flags, tag
// counts) within a short window, with targeted invalidation on mutation.
//
// The cache is best-effort: a miss is never an error, only a cue to call
// the backend. Instances are constructed explicitly and injected into
// whatever layer needs them; there is no package-level singleton.
package cache

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTTL trades staleness against redundant backend calls for
	// facts that rarely change within a session.
	DefaultTTL = 30 * time.Second

	// DefaultSweepInterval bounds memory growth even when expired
	// entries are never read again.
	DefaultSweepInterval = time.Minute
)

type entry struct {
	data     any
	storedAt time.Time
}

// Stats reports cache counters for diagnostics and tests.
type Stats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is a TTL cache keyed by composite "type:id" keys.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger

	hits      uint64
	misses    uint64
	evictions uint64

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default entry time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithSweepInterval overrides the background sweep period.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) { c.sweepInterval = d }
}

// WithClock injects a time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger attaches a logger for sweep diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New creates a cache and starts its background sweeper.
// Call Stop when done (test teardown, process shutdown).
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:       make(map[string]entry),
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.sweepLoop()

	return c
}

func key(id, typ string) string {
	return typ + ":" + id
}

// Get returns the cached value for (id, type) if present and fresh.
// An expired entry is evicted as a side effect and reported as a miss.
func (c *Cache) Get(id, typ string) (any, bool) {
	k := key(id, typ)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, k)
		c.evictions++
		c.misses++
		return nil, false
	}

	c.hits++
	return e.data, true
}

// Set unconditionally inserts or overwrites the entry for (id, type).
func (c *Cache) Set(id, typ string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(id, typ)] = entry{data: data, storedAt: c.now()}
}

// Invalidate removes exactly one entry.
func (c *Cache) Invalidate(id, typ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(id, typ))
}

// InvalidateForPrincipal removes all entries whose key contains the
// principal. Called after any mutation that could affect cached
// ownership or listing data for that principal.
func (c *Cache) InvalidateForPrincipal(principal string) {
	c.invalidateContaining(principal)
}

// InvalidateForShelf removes all entries whose key contains the shelf ID.
func (c *Cache) InvalidateForShelf(shelfID string) {
	c.invalidateContaining(shelfID)
}

func (c *Cache) invalidateContaining(substr string) {
	if substr == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.Contains(k, substr) {
			delete(c.entries, k)
		}
	}
}

// InvalidateByType removes all entries of a given category.
func (c *Cache) InvalidateByType(typ string) {
	prefix := typ + ":"

	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Stop shuts down the background sweeper. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep purges all expired entries so memory does not grow unbounded
// even without reads.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	purged := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, k)
			c.evictions++
			purged++
		}
	}

	if purged > 0 && c.logger != nil {
		c.logger.Debug("cache sweep", "purged", purged, "size", len(c.entries))
	}
}
