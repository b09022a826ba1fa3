// Package dedupe provides the time-windowed deduplication cache.
package dedupe

import "time"

// Option applies a configuration option to the windowed cache.
type Option func(*windowedCache)

// WithWindow sets how long an admitted key blocks re-admission.
func WithWindow(window time.Duration) Option {
	return func(c *windowedCache) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *windowedCache) {
		if now != nil {
			c.now = now
		}
	}
}
