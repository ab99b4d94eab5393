package analyzer

import (
	"context"
	"fmt"
	"sync"

	"github.com/mitchellh/hashstructure/v2"
)

// Cache memoizes Analyze results keyed by (root, hint). Generation sessions
// call Analyze once per round with identical arguments, and the scan is the
// most expensive read in the pipeline.
//
// Invalidation is explicit: anything that writes under a cached root must
// call Invalidate(root) before the next read.
type Cache struct {
	inner Analyzer

	mu      sync.Mutex
	entries map[uint64]*Analysis
	roots   map[uint64]string // key -> root, for Invalidate
}

type cacheKey struct {
	Root string
	Hint string
}

// NewCache wraps an Analyzer with memoization.
func NewCache(inner Analyzer) *Cache {
	return &Cache{
		inner:   inner,
		entries: make(map[uint64]*Analysis),
		roots:   make(map[uint64]string),
	}
}

// Analyze returns a cached result when available, otherwise delegates.
func (c *Cache) Analyze(ctx context.Context, root, hint string) (*Analysis, error) {
	key, err := hashstructure.Hash(cacheKey{Root: root, Hint: hint}, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, fmt.Errorf("hashing cache key: %w", err)
	}

	c.mu.Lock()
	if cached, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	analysis, err := c.inner.Analyze(ctx, root, hint)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = analysis
	c.roots[key] = root
	c.mu.Unlock()

	return analysis, nil
}

// Invalidate drops every cached result under the given root.
func (c *Cache) Invalidate(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, cachedRoot := range c.roots {
		if cachedRoot == root {
			delete(c.entries, key)
			delete(c.roots, key)
		}
	}
}
