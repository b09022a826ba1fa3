// Package dedupe provides the time-windowed deduplication cache that
// keeps the same logical event from being forwarded twice.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leadfuel/pixelbridge/pkg/metrics"
)

// defaultWindow is how long an admitted key blocks re-admission.
const defaultWindow = 24 * time.Hour

// Cache records admitted event keys for the duration of the window.
type Cache interface {
	// Admit atomically checks whether key is inside the window and
	// records it if not. Returns true if the key was newly admitted,
	// false if it is a duplicate. Check-then-insert is a single
	// critical section.
	Admit(ctx context.Context, key string) bool

	// Forget removes a key, allowing it to be admitted again. Used to
	// roll back an admission whose downstream processing failed.
	Forget(ctx context.Context, key string)

	// Sweep purges every entry older than the window and returns the
	// number removed.
	Sweep(ctx context.Context) int

	Size() int64
}

// Key derives the deterministic deduplication key for an event.
//
// The timestamp is truncated to the second on purpose: the browser
// pixel computes the same id for its own delivery of the event, and the
// platform deduplicates across channels on event_id. Widening the key
// server-side would break that contract.
func Key(eventName, sessionID string, ts time.Time) string {
	return fmt.Sprintf("%s_%s_%d", eventName, sessionID, ts.Unix())
}

// windowedCache implements Cache with a mutex-guarded map from key to
// first-seen time. Growth is bounded only by the time-based eviction;
// the working set stays proportional to one window of distinct events,
// which is an accepted tradeoff at expected traffic volume.
type windowedCache struct {
	mu     sync.Mutex
	seen   map[string]time.Time // key -> first-seen
	window time.Duration
	size   atomic.Int64
	now    func() time.Time
}

// NewWindowedCache creates a dedup cache with configuration options.
func NewWindowedCache(opts ...Option) Cache {
	c := &windowedCache{
		seen:   make(map[string]time.Time),
		window: defaultWindow,
		now:    time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Admit atomically checks and records key, purging expired entries first.
func (c *windowedCache) Admit(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purgeLocked(now)

	if _, exists := c.seen[key]; exists {
		return false
	}

	c.seen[key] = now
	c.size.Add(1)
	metrics.UpdateDedupeSize(c.size.Load())
	return true
}

// Forget removes a key from the cache.
func (c *windowedCache) Forget(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.seen[key]; exists {
		delete(c.seen, key)
		c.size.Add(-1)
		metrics.UpdateDedupeSize(c.size.Load())
	}
}

// Sweep purges expired entries outside the admit path.
func (c *windowedCache) Sweep(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked(c.now())
}

// purgeLocked removes entries older than the window. Must be called
// with c.mu held.
func (c *windowedCache) purgeLocked(now time.Time) int {
	cutoff := now.Add(-c.window)
	removed := 0
	for key, firstSeen := range c.seen {
		if firstSeen.Before(cutoff) {
			delete(c.seen, key)
			removed++
		}
	}
	if removed > 0 {
		c.size.Add(int64(-removed))
		metrics.RecordDedupeKeysSwept(removed)
		metrics.UpdateDedupeSize(c.size.Load())
	}
	return removed
}

// Size returns the current number of keys in the cache.
func (c *windowedCache) Size() int64 {
	return c.size.Load()
}
