package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CompilationCache memoizes compilation results by batch key with TTL
// expiration. The cache is an explicit, caller-owned object: compilation
// stays a pure function of its inputs plus this optionally supplied cache,
// never a hidden process-wide singleton.
//
// Safe for concurrent use.
type CompilationCache struct {
	items map[string]cacheItem
	ttl   time.Duration
	mu    sync.RWMutex
}

type cacheItem struct {
	result    *CompilationResult
	expiresAt time.Time
}

// NewCompilationCache creates a cache whose entries expire after ttl.
// A ttl <= 0 disables expiration.
func NewCompilationCache(ttl time.Duration) *CompilationCache {
	return &CompilationCache{
		items: make(map[string]cacheItem),
		ttl:   ttl,
	}
}

// Get retrieves a cached result if present and not expired.
func (c *CompilationCache) Get(key string) (*CompilationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.result, true
}

// Set stores a compilation result under the given key.
func (c *CompilationCache) Set(key string, result *CompilationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := cacheItem{result: result}
	if c.ttl > 0 {
		item.expiresAt = time.Now().Add(c.ttl)
	}
	c.items[key] = item
}

// Delete removes a cache entry.
func (c *CompilationCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear removes all cache entries.
func (c *CompilationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheItem)
}

// Len returns the number of stored entries, including expired ones not yet
// cleaned up.
func (c *CompilationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Cleanup removes expired entries. Call periodically for long-lived caches.
func (c *CompilationCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if !item.expiresAt.IsZero() && now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
}

// BatchKey derives a stable cache key from an invocation batch and the
// config knobs that influence compilation output. Argument maps are folded
// in sorted key order so the digest does not depend on map iteration order.
func BatchKey(invs []Invocation, cfg FusionConfig) string {
	h := sha256.New()

	fmt.Fprintf(h, "cfg|%v|%d|%g\n", cfg.EnableDependencyAnalysis, cfg.MaxParallelism, cfg.FusionOverhead)

	for _, inv := range invs {
		fmt.Fprintf(h, "inv|%s|%s|%g\n", inv.ID, inv.Name, inv.EstimatedCost)

		keys := make([]string, 0, len(inv.Arguments))
		for k := range inv.Arguments {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "arg|%s|%v\n", k, inv.Arguments[k])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
