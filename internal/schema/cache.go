package schema

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache holds the current schema snapshot. Reads are lock-free; reloads are
// serialized and publish a complete snapshot in one atomic swap.
type Cache struct {
	source  Source
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewCache returns an empty cache loading from source.
func NewCache(source Source) *Cache {
	return &Cache{source: source}
}

// NewStaticCache returns a cache already holding snap, for tests.
func NewStaticCache(snap *Snapshot) *Cache {
	c := &Cache{}
	c.current.Store(snap)
	return c
}

// Snapshot returns the current snapshot, or nil before the first load.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Set replaces the current snapshot. It must be called before serving
// requests or from a reload path holding no other locks.
func (c *Cache) Set(snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Store(snap)
}

// Reload fetches a new document from the source and swaps it in. On failure
// the previous snapshot stays in place.
func (c *Cache) Reload(ctx context.Context) (*Snapshot, error) {
	if c.source == nil {
		return nil, fmt.Errorf("schema cache has no source")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	doc, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schema from %s: %w", c.source.Name(), err)
	}
	snap, err := NewSnapshot(doc, c.source.Name())
	if err != nil {
		return nil, fmt.Errorf("invalid schema from %s: %w", c.source.Name(), err)
	}
	c.current.Store(snap)

	log.Info().
		Str("source", c.source.Name()).
		Int("entities", len(snap.names)).
		Dur("duration", time.Since(start)).
		Msg("Entity schema loaded")

	return snap, nil
}
