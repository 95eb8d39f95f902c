package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how stale a cached flag definition may get.
const DefaultTTL = 30 * time.Second

// TTLCache is a mutex-guarded cache with per-entry expiry.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry
	ttl     time.Duration
	now     func() time.Time
}

type ttlEntry struct {
	entry     Entry
	expiresAt time.Time
}

// TTLOption customizes a TTLCache.
type TTLOption func(*TTLCache)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) TTLOption {
	return func(c *TTLCache) {
		if c == nil || ttl <= 0 {
			return
		}
		c.ttl = ttl
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) TTLOption {
	return func(c *TTLCache) {
		if c == nil || now == nil {
			return
		}
		c.now = now
	}
}

// NewTTLCache constructs a TTLCache with the default TTL.
func NewTTLCache(opts ...TTLOption) *TTLCache {
	c := &TTLCache{
		entries: map[string]ttlEntry{},
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get implements Cache. Expired entries are treated as misses and removed
// lazily on the next write.
func (c *TTLCache) Get(_ context.Context, key string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(cached.expiresAt) {
		return Entry{}, false
	}
	return cached.entry, true
}

// Set implements Cache.
func (c *TTLCache) Set(_ context.Context, key string, entry Entry) {
	if c == nil || key == "" {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]ttlEntry{}
	}
	for existing, cached := range c.entries {
		if now.After(cached.expiresAt) {
			delete(c.entries, existing)
		}
	}
	c.entries[key] = ttlEntry{entry: entry, expiresAt: now.Add(c.ttl)}
}

// Delete implements Cache. Administrative mutations call this so readers see
// the change on their next lookup rather than after the TTL lapses.
func (c *TTLCache) Delete(_ context.Context, key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear implements Cache.
func (c *TTLCache) Clear(context.Context) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]ttlEntry{}
}

var _ Cache = (*TTLCache)(nil)
