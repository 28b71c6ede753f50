package auth

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// Credential adapts any TokenProvider to azcore.TokenCredential so SDK
// clients (msgraph-sdk-go) can share the configured grant. Requested scopes
// are ignored; the provider's configured scope always wins.
func Credential(p TokenProvider) azcore.TokenCredential {
	if aip, ok := p.(*AzureIdentityProvider); ok {
		return aip.Credential()
	}
	return providerCredential{p: p}
}

type providerCredential struct {
	p TokenProvider
}

func (c providerCredential) GetToken(ctx context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	tok, err := c.p.Token(ctx)
	if err != nil {
		return azcore.AccessToken{}, err
	}
	return azcore.AccessToken{Token: tok.AccessToken, ExpiresOn: tok.Expiry}, nil
}
