// Package tenant looks up the organization behind the configured credentials
// through the Graph SDK.
package tenant

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	kiotaauth "github.com/microsoft/kiota-authentication-azure-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/organization"
)

const unknown = "Unknown"

// Info identifies a tenant.
type Info struct {
	DisplayName     string
	ID              string
	VerifiedDomains []string
	DefaultDomain   string
}

// Describe returns the organization the credential belongs to. Requests go
// through httpClient so the configured timeout applies. graphURL may be empty
// to use the SDK's default endpoint.
func Describe(ctx context.Context, cred azcore.TokenCredential, scopes []string, graphURL string, httpClient *http.Client) (*Info, error) {
	authProvider, err := kiotaauth.NewAzureIdentityAuthenticationProviderWithScopes(cred, scopes)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}
	adapter, err := msgraphsdk.NewGraphRequestAdapterWithParseNodeFactoryAndSerializationWriterFactoryAndHttpClient(authProvider, nil, nil, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph adapter: %w", err)
	}
	if graphURL != "" {
		adapter.SetBaseUrl(graphURL)
	}
	client := msgraphsdk.NewGraphServiceClient(adapter)

	org, err := client.Organization().Get(ctx, &organization.OrganizationRequestBuilderGetRequestConfiguration{})
	if err != nil {
		return nil, fmt.Errorf("failed to get organization details: %w", err)
	}
	return FromOrganizations(org.GetValue()), nil
}

// FromOrganizations summarises the first organization. Missing fields are
// reported as "Unknown".
func FromOrganizations(orgs []models.Organizationable) *Info {
	info := &Info{DisplayName: unknown, ID: unknown}
	if len(orgs) == 0 || orgs[0] == nil {
		return info
	}

	org := orgs[0]
	if name := org.GetDisplayName(); name != nil && *name != "" {
		info.DisplayName = *name
	}
	if id := org.GetId(); id != nil && *id != "" {
		info.ID = *id
	}
	for _, d := range org.GetVerifiedDomains() {
		name := d.GetName()
		if name == nil {
			continue
		}
		info.VerifiedDomains = append(info.VerifiedDomains, *name)
		if isDefault := d.GetIsDefault(); isDefault != nil && *isDefault {
			info.DefaultDomain = *name
		}
	}
	return info
}
