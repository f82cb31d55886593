// Package cache holds the in-memory shared state refreshed around the
// external Twitch collaborators: the name->id identity cache and the
// per-channel emote sets. Both are injected into the dispatcher and the
// background workers rather than living in package globals.
package cache

import (
	"context"
	"sync"
)

// IdentityCache maps account names to numeric account ids. Bindings are
// effectively immutable, so entries are never expired individually; the whole
// map is swapped out periodically by the eviction worker to bound growth.
type IdentityCache struct {
	mu sync.Mutex
	m  map[string]int64
}

func NewIdentityCache() *IdentityCache {
	return &IdentityCache{m: make(map[string]int64)}
}

// Get returns a cached binding.
func (c *IdentityCache) Get(name string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.m[name]
	return id, ok
}

// Put inserts a binding.
func (c *IdentityCache) Put(name string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[name] = id
}

// Len returns the current number of bindings.
func (c *IdentityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// Clear swaps the contents for an empty map and returns the evicted count.
func (c *IdentityCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.m)
	c.m = make(map[string]int64)
	return n
}

// LookupFunc resolves a name externally. ok=false means the account does not
// exist (a miss, not an error).
type LookupFunc func(ctx context.Context, name string) (id int64, ok bool, err error)

// Resolve consults the cache first and falls back to lookup on a miss,
// inserting the result before returning. The lock is never held across the
// external call: two concurrent resolves of the same uncached name may both
// hit the network, which is accepted over holding a lock through a suspension
// point.
func (c *IdentityCache) Resolve(ctx context.Context, name string, lookup LookupFunc) (int64, bool, error) {
	if id, ok := c.Get(name); ok {
		return id, true, nil
	}
	id, ok, err := lookup(ctx, name)
	if err != nil || !ok {
		return 0, false, err
	}
	c.Put(name, id)
	return id, true, nil
}
