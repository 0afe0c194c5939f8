package regions

import (
	"fmt"
)

// Global is the sentinel region served by the default endpoint. It is the
// only region whose endpoint is not built from the template.
const Global = "global"

// DefaultRegions are the deployment zones queried during discovery.
var DefaultRegions = []string{
	Global,
	"us-central1",
	"us-east1",
	"us-west1",
	"europe-west1",
	"asia-northeast1",
}

// Registry maps region identifiers to API endpoints. The global region uses
// the default endpoint; every other region substitutes its identifier into
// the endpoint template.
type Registry struct {
	defaultEndpoint string
	template        string
	regions         []string
}

// New builds a registry. template must contain exactly one %s placeholder for
// the region identifier, e.g. "https://%s-agents.example.com".
func New(defaultEndpoint string, template string, regions []string) (*Registry, error) {
	if defaultEndpoint == "" {
		return nil, fmt.Errorf("default endpoint is required")
	}
	if template == "" {
		return nil, fmt.Errorf("endpoint template is required")
	}
	if len(regions) == 0 {
		regions = DefaultRegions
	}
	return &Registry{
		defaultEndpoint: defaultEndpoint,
		template:        template,
		regions:         regions,
	}, nil
}

// Regions returns the configured region identifiers in registry order.
func (r *Registry) Regions() []string {
	out := make([]string, len(r.regions))
	copy(out, r.regions)
	return out
}

// Endpoint returns the API endpoint for a region.
func (r *Registry) Endpoint(region string) string {
	if region == Global {
		return r.defaultEndpoint
	}
	return fmt.Sprintf(r.template, region)
}
