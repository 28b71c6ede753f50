package tenant

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/auditgraph/internal/graphtest"
)

const organizationURL = "https://graph.microsoft.com/v1.0/organization"

type staticCredential string

func (c staticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: string(c), ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func newOrganization(name, id string, domains map[string]bool) models.Organizationable {
	org := models.NewOrganization()
	if name != "" {
		org.SetDisplayName(&name)
	}
	if id != "" {
		org.SetId(&id)
	}
	var verified []models.VerifiedDomainable
	for d, isDefault := range domains {
		vd := models.NewVerifiedDomain()
		vd.SetName(&d)
		vd.SetIsDefault(&isDefault)
		verified = append(verified, vd)
	}
	org.SetVerifiedDomains(verified)
	return org
}

func TestFromOrganizations(t *testing.T) {
	testCases := []struct {
		name string
		orgs []models.Organizationable
		want *Info
	}{
		{
			name: "no organizations",
			orgs: nil,
			want: &Info{DisplayName: "Unknown", ID: "Unknown"},
		},
		{
			name: "missing fields",
			orgs: []models.Organizationable{newOrganization("", "", nil)},
			want: &Info{DisplayName: "Unknown", ID: "Unknown"},
		},
		{
			name: "full organization",
			orgs: []models.Organizationable{newOrganization("Contoso", "tenant-1", map[string]bool{"contoso.com": true})},
			want: &Info{DisplayName: "Contoso", ID: "tenant-1", VerifiedDomains: []string{"contoso.com"}, DefaultDomain: "contoso.com"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FromOrganizations(tc.orgs))
		})
	}
}

func TestDescribeUsesGivenHTTPClient(t *testing.T) {
	transport := graphtest.New().Get(organizationURL, graphtest.JSON(http.StatusOK, map[string]any{
		"value": []map[string]any{{
			"id":          "tenant-1",
			"displayName": "Contoso",
			"verifiedDomains": []map[string]any{
				{"name": "contoso.onmicrosoft.com", "isDefault": false},
				{"name": "contoso.com", "isDefault": true},
			},
		}},
	}))

	info, err := Describe(context.Background(), staticCredential("tok"),
		[]string{"https://graph.microsoft.com/.default"}, "https://graph.microsoft.com/v1.0", transport.Client())
	require.NoError(t, err)

	assert.Equal(t, "Contoso", info.DisplayName)
	assert.Equal(t, "tenant-1", info.ID)
	assert.Equal(t, "contoso.com", info.DefaultDomain)
	assert.ElementsMatch(t, []string{"contoso.onmicrosoft.com", "contoso.com"}, info.VerifiedDomains)

	require.Equal(t, 1, transport.Calls(http.MethodGet, organizationURL))
	assert.Equal(t, "Bearer tok", transport.Requests()[0].Header.Get("Authorization"))
}

func TestDescribeReportsTransportFailure(t *testing.T) {
	transport := graphtest.New().Get(organizationURL, graphtest.Response{Err: context.DeadlineExceeded})

	_, err := Describe(context.Background(), staticCredential("tok"), nil, "", transport.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get organization details")
	assert.Equal(t, 1, transport.Calls(http.MethodGet, organizationURL))
}
