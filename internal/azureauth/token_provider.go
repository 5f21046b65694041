package azureauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// Entra ID scopes for the Azure data planes this gateway talks to
const (
	ScopeCognitiveServices = "https://cognitiveservices.azure.com/.default"
	ScopeSearch            = "https://search.azure.com/.default"
)

// refreshMargin is how long before expiry a cached token is considered stale
const refreshMargin = 2 * time.Minute

// TokenProvider caches bearer tokens from an azcore.TokenCredential for a
// single scope. The REST adapters use it when managed identity is enabled.
type TokenProvider struct {
	cred  azcore.TokenCredential
	scope string

	mu    sync.Mutex
	token azcore.AccessToken
}

// NewTokenProvider creates a token provider for the given credential and scope
func NewTokenProvider(cred azcore.TokenCredential, scope string) *TokenProvider {
	return &TokenProvider{
		cred:  cred,
		scope: scope,
	}
}

// Token returns a valid bearer token, refreshing through the credential when
// the cached one is within the refresh margin of expiry.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token.Token != "" && time.Until(p.token.ExpiresOn) > refreshMargin {
		return p.token.Token, nil
	}

	token, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{p.scope},
	})
	if err != nil {
		return "", fmt.Errorf("failed to acquire token for %s: %w", p.scope, err)
	}

	p.token = token
	return token.Token, nil
}
