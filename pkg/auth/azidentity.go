package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/praetorian-inc/auditgraph/internal/config"
)

// AzureIdentityProvider acquires the token through azidentity instead of a
// hand-built form post. Useful when the authority needs the SDK's
// cloud-specific handling.
type AzureIdentityProvider struct {
	cred   *azidentity.ClientSecretCredential
	scopes []string
	logger *slog.Logger
}

func NewAzureIdentityProvider(creds config.Credentials, authorityHost string, httpClient *http.Client, logger *slog.Logger) (*AzureIdentityProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := &azidentity.ClientSecretCredentialOptions{
		ClientOptions: azcore.ClientOptions{
			Cloud: cloud.Configuration{ActiveDirectoryAuthorityHost: authorityHost},
		},
		DisableInstanceDiscovery: true,
	}
	if httpClient != nil {
		opts.ClientOptions.Transport = httpClient
	}

	cred, err := azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.ClientSecret, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client secret credential: %w", err)
	}

	var scopes []string
	if len(creds.Scopes) > 0 {
		scopes = creds.Scopes[:1]
	}
	return &AzureIdentityProvider{cred: cred, scopes: scopes, logger: logger}, nil
}

func (p *AzureIdentityProvider) Token(ctx context.Context) (*Token, error) {
	p.logger.Debug("requesting token through azidentity", "scopes", p.scopes)
	at, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: p.scopes})
	if err != nil {
		var afe *azidentity.AuthenticationFailedError
		if errors.As(err, &afe) && afe.RawResponse != nil {
			e := &Error{Kind: AuthenticationFailure, StatusCode: afe.RawResponse.StatusCode, Err: err}
			if afe.RawResponse.Body != nil {
				body, _ := io.ReadAll(afe.RawResponse.Body)
				e.Body = string(body)
			}
			return nil, e
		}
		return nil, &Error{Kind: TransportFailure, Err: err}
	}
	if at.Token == "" {
		return nil, &Error{Kind: MalformedResponse, StatusCode: http.StatusOK, Err: errors.New("empty access token")}
	}
	return &Token{AccessToken: at.Token, Expiry: at.ExpiresOn}, nil
}

// Credential exposes the underlying SDK credential for SDK clients.
func (p *AzureIdentityProvider) Credential() azcore.TokenCredential {
	return p.cred
}
