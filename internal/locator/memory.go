package locator

import (
	"context"
	"sync"
	"time"

	"github.com/convotest/convotest/internal/models"
)

type cacheKey struct {
	principal string
	scope     string
}

type cacheEntry struct {
	agents    []models.AgentSummary
	createdAt time.Time
	ttl       time.Duration
}

// MemoryCache is an in-process Cache. Entries are immutable once stored;
// concurrent refreshes for the same key are last-writer-wins. The clock is
// injectable so expiry can be tested without sleeping.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

// WithClock overrides the cache's time source. Test hook.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Lookup(ctx context.Context, principal, scope string) ([]models.AgentSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{principal: principal, scope: scope}
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}

	// Lazy expiry: stale entries are dropped on access, not swept.
	if c.now().Sub(entry.createdAt) >= entry.ttl {
		delete(c.entries, key)
		return nil, false, nil
	}

	agents := make([]models.AgentSummary, len(entry.agents))
	copy(agents, entry.agents)
	return agents, true, nil
}

func (c *MemoryCache) Store(ctx context.Context, principal, scope string, agents []models.AgentSummary, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	snapshot := make([]models.AgentSummary, len(agents))
	copy(snapshot, agents)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{principal: principal, scope: scope}] = cacheEntry{
		agents:    snapshot,
		createdAt: c.now(),
		ttl:       ttl,
	}
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, principal, scope string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey{principal: principal, scope: scope})
	return nil
}
