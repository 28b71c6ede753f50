package inspect_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/auditgraph/internal/graphtest"
	"github.com/praetorian-inc/auditgraph/pkg/graphapi"
	"github.com/praetorian-inc/auditgraph/pkg/inspect"
)

const (
	clientID = "client-1"
	spID     = "sp-1"
	graphSP  = "graph-sp"
	readAll  = "b0afded3-3588-46d8-8b3d-9842eff778da"
)

func servicePrincipal() map[string]any {
	return map[string]any{
		"id":             spID,
		"appId":          clientID,
		"appDisplayName": "Audit Exporter",
		"appRoles": []any{
			map[string]any{"id": "r1", "value": "Reports.Read", "displayName": "Read reports"},
		},
		"oauth2PermissionScopes": []any{
			map[string]any{"id": "s1", "value": "user_impersonation", "adminConsentDisplayName": "Access Audit Exporter"},
		},
	}
}

func setup(t *testing.T) (*graphtest.Transport, *inspect.Inspector) {
	t.Helper()
	tr := graphtest.New()
	client := graphapi.NewClient(graphapi.ClientOptions{HTTPClient: tr.Client()})
	return tr, inspect.New(client, nil)
}

func TestInspectListsGrants(t *testing.T) {
	tr, in := setup(t)
	tr.Get(in.ServicePrincipalURL(clientID), graphtest.Page("", servicePrincipal()))
	tr.Get(in.AssignmentsURL(spID), graphtest.Page("",
		map[string]any{"appRoleId": readAll, "resourceId": graphSP, "resourceDisplayName": "Microsoft Graph"},
		map[string]any{"appRoleId": inspect.DefaultAccessRoleID, "resourceId": graphSP, "resourceDisplayName": "Microsoft Graph"},
	))
	tr.Get(in.ResourceRolesURL(graphSP), graphtest.JSON(http.StatusOK, map[string]any{
		"id": graphSP,
		"appRoles": []any{
			map[string]any{"id": readAll, "value": "AuditLog.Read.All"},
		},
	}))

	report, err := in.Inspect(context.Background(), "tok", clientID)
	require.NoError(t, err)

	assert.True(t, report.Found)
	assert.Equal(t, "Audit Exporter", report.AppDisplayName)
	assert.Equal(t, spID, report.ServicePrincipalID)
	assert.Equal(t, []inspect.Permission{{Value: "Reports.Read", DisplayName: "Read reports"}}, report.ApplicationPermissions)
	assert.Equal(t, []inspect.Permission{{Value: "user_impersonation", DisplayName: "Access Audit Exporter"}}, report.DelegatedPermissions)

	assert.Equal(t, inspect.GrantsListed, report.GrantStatus)
	require.Len(t, report.Grants, 2)
	assert.Equal(t, "AuditLog.Read.All", report.Grants[0].Value)
	assert.Equal(t, "(default access)", report.Grants[1].Value)
	// one role lookup per resource
	assert.Equal(t, 1, tr.Calls(http.MethodGet, in.ResourceRolesURL(graphSP)))

	var out bytes.Buffer
	inspect.Render(&out, report)
	assert.Contains(t, out.String(), "AuditLog.Read.All")
	assert.Contains(t, out.String(), "App ID: "+clientID)
	assert.NotContains(t, out.String(), "NO PERMISSIONS GRANTED")
}

func TestInspectNoGrants(t *testing.T) {
	tr, in := setup(t)
	tr.Get(in.ServicePrincipalURL(clientID), graphtest.Page("", servicePrincipal()))
	tr.Get(in.AssignmentsURL(spID), graphtest.Page(""))

	report, err := in.Inspect(context.Background(), "tok", clientID)
	require.NoError(t, err)
	assert.Equal(t, inspect.GrantsNone, report.GrantStatus)
	assert.Empty(t, report.Grants)

	var out bytes.Buffer
	inspect.Render(&out, report)
	assert.Contains(t, out.String(), "NO PERMISSIONS GRANTED")
	assert.Contains(t, out.String(), "grant admin consent")
}

func TestInspectGrantsForbiddenIsNotNoneGranted(t *testing.T) {
	tr, in := setup(t)
	tr.Get(in.ServicePrincipalURL(clientID), graphtest.Page("", servicePrincipal()))
	tr.Get(in.AssignmentsURL(spID), graphtest.Forbidden())

	report, err := in.Inspect(context.Background(), "tok", clientID)
	require.NoError(t, err)
	assert.Equal(t, inspect.GrantsInspectorForbidden, report.GrantStatus)
	require.NotNil(t, report.GrantFailure)
	assert.Equal(t, http.StatusForbidden, report.GrantFailure.StatusCode)

	var out bytes.Buffer
	inspect.Render(&out, report)
	assert.Contains(t, out.String(), "Cannot check granted permissions - insufficient privileges")
	assert.NotContains(t, out.String(), "NO PERMISSIONS GRANTED")
}

func TestInspectGrantsOtherFailure(t *testing.T) {
	tr, in := setup(t)
	tr.Get(in.ServicePrincipalURL(clientID), graphtest.Page("", servicePrincipal()))
	tr.Get(in.AssignmentsURL(spID), graphtest.Text(http.StatusInternalServerError, "boom"))

	report, err := in.Inspect(context.Background(), "tok", clientID)
	require.NoError(t, err)
	assert.Equal(t, inspect.GrantsError, report.GrantStatus)

	var out bytes.Buffer
	inspect.Render(&out, report)
	assert.Contains(t, out.String(), "Error checking granted permissions")
}

func TestInspectNotFound(t *testing.T) {
	tr, in := setup(t)
	tr.Get(in.ServicePrincipalURL(clientID), graphtest.Page(""))

	report, err := in.Inspect(context.Background(), "tok", clientID)
	require.NoError(t, err)
	assert.False(t, report.Found)
	// no assignment lookup without a service principal
	assert.Len(t, tr.Requests(), 1)

	var out bytes.Buffer
	inspect.Render(&out, report)
	assert.Contains(t, out.String(), "App not found")
}

func TestInspectLookupFailure(t *testing.T) {
	tr, in := setup(t)
	tr.Get(in.ServicePrincipalURL(clientID), graphtest.Forbidden())

	report, err := in.Inspect(context.Background(), "tok", clientID)
	assert.Nil(t, report)

	var lookupErr *inspect.LookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, graphapi.KindPermissionDenied, lookupErr.Result.Kind)
	assert.Contains(t, err.Error(), "failed to get app details")
}

func TestInspectUsesFirstMatch(t *testing.T) {
	tr, in := setup(t)
	second := servicePrincipal()
	second["id"] = "sp-2"
	second["appDisplayName"] = "Duplicate"
	tr.Get(in.ServicePrincipalURL(clientID), graphtest.Page("", servicePrincipal(), second))
	tr.Get(in.AssignmentsURL(spID), graphtest.Page(""))

	report, err := in.Inspect(context.Background(), "tok", clientID)
	require.NoError(t, err)
	assert.Equal(t, spID, report.ServicePrincipalID)
	assert.Equal(t, "Audit Exporter", report.AppDisplayName)
}

func TestServicePrincipalURL(t *testing.T) {
	_, in := setup(t)
	assert.Equal(t,
		"https://graph.microsoft.com/v1.0/servicePrincipals?$filter=appId%20eq%20'client-1'&$select=id,appId,appDisplayName,appRoles,oauth2PermissionScopes",
		in.ServicePrincipalURL(clientID))
}
