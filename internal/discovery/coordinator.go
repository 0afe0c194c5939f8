package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/convotest/convotest/internal/agentapi"
	"github.com/convotest/convotest/internal/auth"
	"github.com/convotest/convotest/internal/locator"
	"github.com/convotest/convotest/internal/models"
	"github.com/convotest/convotest/internal/regions"
)

var (
	// ErrAgentNotFound means no region holds the agent.
	ErrAgentNotFound = errors.New("agent not found in any region")
	// ErrPermissionDenied means the principal lacks visibility into the scope.
	ErrPermissionDenied = errors.New("principal lacks visibility into scope")
)

// Coordinator resolves which region hosts an agent. Lookups are cache-first;
// on a miss it fans out one listing call per configured region and caches the
// combined result under (principal, scope).
type Coordinator struct {
	registry  *regions.Registry
	creds     auth.Provider
	cache     locator.Cache
	directory agentapi.Directory
	ttl       time.Duration
	logger    *zerolog.Logger
}

func NewCoordinator(
	registry *regions.Registry,
	creds auth.Provider,
	cache locator.Cache,
	directory agentapi.Directory,
	logger *zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		registry:  registry,
		creds:     creds,
		cache:     cache,
		directory: directory,
		ttl:       locator.DefaultTTL,
		logger:    logger,
	}
}

// WithTTL overrides the cache TTL for stored listings.
func (c *Coordinator) WithTTL(ttl time.Duration) *Coordinator {
	c.ttl = ttl
	return c
}

type regionListing struct {
	region string
	agents []models.AgentSummary
}

// Resolve returns the region hosting agentID. A cached listing containing the
// agent satisfies the call with zero network traffic.
func (c *Coordinator) Resolve(ctx context.Context, agentID, principal, scope string) (models.AgentLocation, error) {
	cached, hit, err := c.cache.Lookup(ctx, principal, scope)
	if err != nil {
		c.logger.Warn().Err(err).Str("scope", scope).Msg("Agent cache lookup failed, falling through to discovery")
	}
	if hit {
		if loc, ok := findAgent(cached, agentID); ok {
			c.logger.Debug().
				Str("agent_id", agentID).
				Str("region", loc.Region).
				Msg("Agent resolved from cache")
			return loc, nil
		}
		// Cached listing exists but lacks the agent: fall through and
		// refresh, the agent may have been created since the snapshot.
	}

	combined, err := c.discover(ctx, principal, scope)
	if err != nil {
		return models.AgentLocation{}, err
	}

	loc, ok := findAgent(combined, agentID)
	if !ok {
		return models.AgentLocation{}, ErrAgentNotFound
	}
	return loc, nil
}

// ListAgents returns the combined cross-region agent listing for the
// principal and scope, cache-first.
func (c *Coordinator) ListAgents(ctx context.Context, principal, scope string) ([]models.AgentSummary, error) {
	cached, hit, err := c.cache.Lookup(ctx, principal, scope)
	if err != nil {
		c.logger.Warn().Err(err).Str("scope", scope).Msg("Agent cache lookup failed, falling through to discovery")
	}
	if hit {
		return cached, nil
	}
	return c.discover(ctx, principal, scope)
}

// Invalidate drops the cached listing for (principal, scope).
func (c *Coordinator) Invalidate(ctx context.Context, principal, scope string) error {
	return c.cache.Invalidate(ctx, principal, scope)
}

// discover fans out one listing per region, swallowing individual region
// failures as long as at least one region answers. The combined listing is
// cached regardless of which agent triggered discovery, so lookups for other
// agents in the same scope become cache hits. Results are collected in
// completion order; ties between regions go to the first region to answer.
func (c *Coordinator) discover(ctx context.Context, principal, scope string) ([]models.AgentSummary, error) {
	// One credential for the whole fan-out, not one per region.
	cred, err := c.creds.Credential(ctx)
	if err != nil {
		return nil, err
	}

	regionList := c.registry.Regions()
	listings := make(chan regionListing, len(regionList))
	var permissionDenials int

	g, gctx := errgroup.WithContext(ctx)
	denied := make(chan struct{}, len(regionList))
	for _, region := range regionList {
		g.Go(func() error {
			endpoint := c.registry.Endpoint(region)
			agents, err := c.directory.ListAgents(gctx, endpoint, scope, cred)
			if err != nil {
				// Individual region failures are logged, never propagated.
				c.logger.Warn().Err(err).Str("region", region).Msg("Region listing failed")
				if errors.Is(err, agentapi.ErrPermissionDenied) {
					denied <- struct{}{}
				}
				return nil
			}
			for i := range agents {
				agents[i].Region = region
			}
			listings <- regionListing{region: region, agents: agents}
			return nil
		})
	}

	// Errors are swallowed per region, so the group only joins the tasks.
	_ = g.Wait()
	close(listings)
	close(denied)
	for range denied {
		permissionDenials++
	}

	var combined []models.AgentSummary
	succeeded := 0
	for listing := range listings {
		succeeded++
		combined = append(combined, listing.agents...)
	}

	if succeeded == 0 {
		if permissionDenials > 0 {
			return nil, ErrPermissionDenied
		}
		return nil, ErrAgentNotFound
	}

	// Discovery failures are never cached; only a successful combined
	// listing replaces the snapshot.
	if err := c.cache.Store(ctx, principal, scope, combined, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("scope", scope).Msg("Failed to store agent cache entry")
	}

	c.logger.Info().
		Int("regions_succeeded", succeeded).
		Int("regions_total", len(regionList)).
		Int("agents", len(combined)).
		Str("scope", scope).
		Msg("Regional discovery complete")

	return combined, nil
}

func findAgent(agents []models.AgentSummary, agentID string) (models.AgentLocation, bool) {
	for _, a := range agents {
		if a.ID == agentID {
			return models.AgentLocation{
				AgentID:    a.ID,
				Region:     a.Region,
				FullName:   a.FullName,
				ResolvedAt: time.Now(),
			}, true
		}
	}
	return models.AgentLocation{}, false
}
