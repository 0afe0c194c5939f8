package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Credential is a reusable authorization context for outbound calls. A
// discovery operation constructs one credential and shares it across all
// region calls instead of paying one auth round-trip per region.
type Credential struct {
	Token  string
	Expiry time.Time
}

// Provider supplies credentials for outbound calls. Caching across separate
// operations is the provider's own policy.
type Provider interface {
	Credential(ctx context.Context) (Credential, error)
}

// TokenSourceProvider adapts an oauth2.TokenSource. The source handles
// refresh; each Credential call returns the currently valid token.
type TokenSourceProvider struct {
	source oauth2.TokenSource
}

func NewTokenSourceProvider(source oauth2.TokenSource) *TokenSourceProvider {
	return &TokenSourceProvider{source: source}
}

func (p *TokenSourceProvider) Credential(ctx context.Context) (Credential, error) {
	token, err := p.source.Token()
	if err != nil {
		return Credential{}, fmt.Errorf("failed to obtain access token: %w", err)
	}
	return Credential{
		Token:  token.AccessToken,
		Expiry: token.Expiry,
	}, nil
}

// Static returns a provider backed by a fixed token. Used for development
// setups and tests.
func Static(token string) *TokenSourceProvider {
	return NewTokenSourceProvider(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}
