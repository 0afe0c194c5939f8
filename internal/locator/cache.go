package locator

import (
	"context"
	"time"

	"github.com/convotest/convotest/internal/models"
)

// DefaultTTL is how long a cached agent listing stays valid.
const DefaultTTL = time.Hour

// Cache stores agent listings per (principal, scope). The key is always the
// pair, never the agent id alone, because visibility differs per principal.
// Entries are replaced wholesale on refresh and expired entries are treated
// as misses; there is no negative caching, so a discovery failure is never
// stored and the next request retries upstream.
type Cache interface {
	// Lookup returns the cached listing and true on a fresh hit.
	Lookup(ctx context.Context, principal, scope string) ([]models.AgentSummary, bool, error)
	// Store replaces the entry for (principal, scope) with a full snapshot.
	Store(ctx context.Context, principal, scope string, agents []models.AgentSummary, ttl time.Duration) error
	// Invalidate drops the entry for (principal, scope), if any.
	Invalidate(ctx context.Context, principal, scope string) error
}
