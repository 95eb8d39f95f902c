// Package cache provides bounded-TTL caching for flag definitions. The store
// stays the source of truth: entries are read-through and invalidated on
// administrative mutation, never written back.
package cache

import (
	"context"

	"github.com/goliatone/go-accessgate/gate"
)

// Entry stores a cached flag lookup, including negative lookups.
type Entry struct {
	Flag  gate.FeatureFlag
	Found bool
}

// Cache stores flag lookups by normalized key.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Set(ctx context.Context, key string, entry Entry)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
}

// NoopCache ignores all cache operations.
type NoopCache struct{}

// Get implements Cache.
func (NoopCache) Get(context.Context, string) (Entry, bool) {
	return Entry{}, false
}

// Set implements Cache.
func (NoopCache) Set(context.Context, string, Entry) {}

// Delete implements Cache.
func (NoopCache) Delete(context.Context, string) {}

// Clear implements Cache.
func (NoopCache) Clear(context.Context) {}

var _ Cache = NoopCache{}
