package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/convotest/convotest/internal/agentapi"
	"github.com/convotest/convotest/internal/auth"
	"github.com/convotest/convotest/internal/locator"
	"github.com/convotest/convotest/internal/models"
	"github.com/convotest/convotest/internal/regions"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func testRegistry(t *testing.T) *regions.Registry {
	t.Helper()
	reg, err := regions.New("https://agents.example.com", "https://%s-agents.example.com", nil)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return reg
}

// fakeDirectory serves canned listings per endpoint and counts calls.
type fakeDirectory struct {
	mu       sync.Mutex
	byRegion map[string][]models.AgentSummary // endpoint -> agents
	errs     map[string]error
	calls    int
}

func (d *fakeDirectory) ListAgents(ctx context.Context, endpoint, scope string, cred auth.Credential) ([]models.AgentSummary, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()

	if err, ok := d.errs[endpoint]; ok {
		return nil, err
	}
	return d.byRegion[endpoint], nil
}

func (d *fakeDirectory) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func TestResolve_ColdCache_FindsAgentInSingleRegion(t *testing.T) {
	directory := &fakeDirectory{
		byRegion: map[string][]models.AgentSummary{
			"https://europe-west1-agents.example.com": {{ID: "X", FullName: "scopes/demo/agents/X"}},
			"https://us-central1-agents.example.com":  {{ID: "other"}},
		},
	}
	cache := locator.NewMemoryCache()
	coord := NewCoordinator(testRegistry(t), auth.Static("tok"), cache, directory, newTestLogger())

	loc, err := coord.Resolve(context.Background(), "X", "user-1", "demo")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if loc.Region != "europe-west1" {
		t.Errorf("expected europe-west1, got %s", loc.Region)
	}
	if directory.callCount() != 6 {
		t.Errorf("expected 6 concurrent region queries, got %d", directory.callCount())
	}

	// The combined listing, not just the sought agent, is cached.
	agents, hit, _ := cache.Lookup(context.Background(), "user-1", "demo")
	if !hit {
		t.Fatal("expected combined listing cached under (principal, scope)")
	}
	if len(agents) != 2 {
		t.Errorf("expected 2 agents in combined listing, got %d", len(agents))
	}
}

func TestResolve_CacheHit_NoNetworkCalls(t *testing.T) {
	directory := &fakeDirectory{
		byRegion: map[string][]models.AgentSummary{
			"https://europe-west1-agents.example.com": {{ID: "X"}},
		},
	}
	coord := NewCoordinator(testRegistry(t), auth.Static("tok"), locator.NewMemoryCache(), directory, newTestLogger())

	first, err := coord.Resolve(context.Background(), "X", "user-1", "demo")
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	callsAfterFirst := directory.callCount()

	second, err := coord.Resolve(context.Background(), "X", "user-1", "demo")
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}

	if directory.callCount() != callsAfterFirst {
		t.Errorf("expected zero network calls on cache hit, got %d extra", directory.callCount()-callsAfterFirst)
	}
	if second.Region != first.Region || second.AgentID != first.AgentID {
		t.Errorf("expected identical location, got %+v vs %+v", first, second)
	}
}

func TestResolve_PartialRegionFailures_Swallowed(t *testing.T) {
	directory := &fakeDirectory{
		byRegion: map[string][]models.AgentSummary{
			"https://europe-west1-agents.example.com": {{ID: "X"}},
		},
		errs: map[string]error{
			"https://agents.example.com":             errors.New("global endpoint down"),
			"https://us-central1-agents.example.com": errors.New("timeout"),
		},
	}
	coord := NewCoordinator(testRegistry(t), auth.Static("tok"), locator.NewMemoryCache(), directory, newTestLogger())

	loc, err := coord.Resolve(context.Background(), "X", "user-1", "demo")
	if err != nil {
		t.Fatalf("Resolve should tolerate partial region failures: %v", err)
	}
	if loc.Region != "europe-west1" {
		t.Errorf("expected europe-west1, got %s", loc.Region)
	}
}

func TestResolve_AgentAbsentEverywhere_NotFound(t *testing.T) {
	directory := &fakeDirectory{
		byRegion: map[string][]models.AgentSummary{
			"https://agents.example.com": {{ID: "other"}},
		},
	}
	coord := NewCoordinator(testRegistry(t), auth.Static("tok"), locator.NewMemoryCache(), directory, newTestLogger())

	_, err := coord.Resolve(context.Background(), "X", "user-1", "demo")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestResolve_AllRegionsFail_NotFound(t *testing.T) {
	errs := make(map[string]error)
	reg := testRegistry(t)
	for _, region := range reg.Regions() {
		errs[reg.Endpoint(region)] = errors.New("unreachable")
	}
	directory := &fakeDirectory{errs: errs}
	cache := locator.NewMemoryCache()
	coord := NewCoordinator(reg, auth.Static("tok"), cache, directory, newTestLogger())

	_, err := coord.Resolve(context.Background(), "X", "user-1", "demo")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}

	// A failed discovery must not be cached.
	if _, hit, _ := cache.Lookup(context.Background(), "user-1", "demo"); hit {
		t.Error("discovery failure must not produce a cache entry")
	}
}

func TestResolve_AllRegionsDenied_PermissionError(t *testing.T) {
	errs := make(map[string]error)
	reg := testRegistry(t)
	for _, region := range reg.Regions() {
		errs[reg.Endpoint(region)] = agentapi.ErrPermissionDenied
	}
	directory := &fakeDirectory{errs: errs}
	coord := NewCoordinator(reg, auth.Static("tok"), locator.NewMemoryCache(), directory, newTestLogger())

	_, err := coord.Resolve(context.Background(), "X", "user-1", "demo")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestResolve_ExpiredCache_Refetches(t *testing.T) {
	now := time.Now()
	cache := locator.NewMemoryCache().WithClock(func() time.Time { return now })
	directory := &fakeDirectory{
		byRegion: map[string][]models.AgentSummary{
			"https://agents.example.com": {{ID: "X"}},
		},
	}
	coord := NewCoordinator(testRegistry(t), auth.Static("tok"), cache, directory, newTestLogger())

	if _, err := coord.Resolve(context.Background(), "X", "user-1", "demo"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	callsAfterFirst := directory.callCount()

	now = now.Add(locator.DefaultTTL + time.Minute)

	if _, err := coord.Resolve(context.Background(), "X", "user-1", "demo"); err != nil {
		t.Fatalf("Resolve after expiry failed: %v", err)
	}
	if directory.callCount() == callsAfterFirst {
		t.Error("expected rediscovery after TTL expiry")
	}
}

func TestListAgents_CombinedListing(t *testing.T) {
	directory := &fakeDirectory{
		byRegion: map[string][]models.AgentSummary{
			"https://agents.example.com":              {{ID: "a"}},
			"https://europe-west1-agents.example.com": {{ID: "b"}},
		},
	}
	coord := NewCoordinator(testRegistry(t), auth.Static("tok"), locator.NewMemoryCache(), directory, newTestLogger())

	agents, err := coord.ListAgents(context.Background(), "user-1", "demo")
	if err != nil {
		t.Fatalf("ListAgents failed: %v", err)
	}
	if len(agents) != 2 {
		t.Errorf("expected 2 agents, got %d", len(agents))
	}
	for _, a := range agents {
		if a.Region == "" {
			t.Errorf("agent %s missing region annotation", a.ID)
		}
	}
}

type failingCredentials struct{}

func (failingCredentials) Credential(ctx context.Context) (auth.Credential, error) {
	return auth.Credential{}, errors.New("no credentials")
}

func TestResolve_CredentialFailure_Aborts(t *testing.T) {
	directory := &fakeDirectory{}
	coord := NewCoordinator(testRegistry(t), failingCredentials{}, locator.NewMemoryCache(), directory, newTestLogger())

	if _, err := coord.Resolve(context.Background(), "X", "user-1", "demo"); err == nil {
		t.Fatal("expected error when credentials cannot be constructed")
	}
	if directory.callCount() != 0 {
		t.Error("no region calls should happen without credentials")
	}
}
