// Package inspect reports the permissions a registered application declares
// and the app roles actually granted to its service principal.
package inspect

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/praetorian-inc/auditgraph/pkg/graphapi"
)

// DefaultAccessRoleID is the app role id Graph uses for assignments that do
// not name a specific role.
const DefaultAccessRoleID = "00000000-0000-0000-0000-000000000000"

var servicePrincipalSelect = []string{"id", "appId", "appDisplayName", "appRoles", "oauth2PermissionScopes"}

// Permission is a declared permission as (value, display name).
type Permission struct {
	Value       string
	DisplayName string
}

// Grant is one app role assignment held by the service principal.
type Grant struct {
	Value               string
	AppRoleID           string
	ResourceID          string
	ResourceDisplayName string
}

type GrantStatus int

const (
	// GrantsListed means at least one assignment was returned.
	GrantsListed GrantStatus = iota + 1
	// GrantsNone means the assignment list was empty: consent is missing.
	GrantsNone
	// GrantsInspectorForbidden means the caller may not read assignments.
	// This says nothing about the target application.
	GrantsInspectorForbidden
	// GrantsError is any other failure reading assignments.
	GrantsError
)

func (s GrantStatus) String() string {
	switch s {
	case GrantsListed:
		return "granted"
	case GrantsNone:
		return "none granted"
	case GrantsInspectorForbidden:
		return "inspector lacks privileges"
	case GrantsError:
		return "error"
	default:
		return "unknown"
	}
}

type Report struct {
	ClientID string
	// Found is false when no service principal matches the client id.
	Found bool

	AppID              string
	AppDisplayName     string
	ServicePrincipalID string

	ApplicationPermissions []Permission
	DelegatedPermissions   []Permission

	GrantStatus GrantStatus
	Grants      []Grant
	// GrantFailure holds the assignment fetch when it did not succeed.
	GrantFailure *graphapi.Result
}

// LookupError means the service principal query itself failed.
type LookupError struct {
	Result *graphapi.Result
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("failed to get app details: %s", e.Result.Error())
}

type Inspector struct {
	client *graphapi.Client
	logger *slog.Logger
}

func New(client *graphapi.Client, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{client: client, logger: logger}
}

// ServicePrincipalURL is the lookup for the service principal of clientID.
func (i *Inspector) ServicePrincipalURL(clientID string) string {
	q := graphapi.Query{
		Filter: "appId eq " + graphapi.QuoteLiteral(clientID),
		Select: servicePrincipalSelect,
	}
	return q.Apply(i.client.URL("/servicePrincipals"))
}

// AssignmentsURL lists the app role assignments of a service principal.
func (i *Inspector) AssignmentsURL(servicePrincipalID string) string {
	return i.client.URL("/servicePrincipals/" + url.PathEscape(servicePrincipalID) + "/appRoleAssignments")
}

// ResourceRolesURL fetches the app roles a resource service principal exposes.
func (i *Inspector) ResourceRolesURL(resourceID string) string {
	return graphapi.Query{Select: []string{"id", "appRoles"}}.Apply(i.client.URL("/servicePrincipals/" + url.PathEscape(resourceID)))
}

// Inspect builds the permission report for clientID. The error is non-nil
// only when the service principal lookup fails; problems reading grants are
// part of the report.
func (i *Inspector) Inspect(ctx context.Context, token, clientID string) (*Report, error) {
	report := &Report{ClientID: clientID}

	lookup := i.client.Fetch(ctx, token, i.ServicePrincipalURL(clientID))
	if !lookup.OK() {
		return nil, &LookupError{Result: lookup}
	}
	if len(lookup.Records) == 0 {
		i.logger.Debug("no service principal for client id", "client_id", clientID)
		return report, nil
	}
	if len(lookup.Records) > 1 {
		i.logger.Warn("multiple service principals match client id, using the first", "client_id", clientID, "matches", len(lookup.Records))
	}

	sp := lookup.Records[0]
	report.Found = true
	report.AppID = str(sp, "appId")
	report.AppDisplayName = str(sp, "appDisplayName")
	report.ServicePrincipalID = str(sp, "id")

	for _, role := range objects(sp, "appRoles") {
		report.ApplicationPermissions = append(report.ApplicationPermissions, Permission{
			Value:       str(role, "value"),
			DisplayName: str(role, "displayName"),
		})
	}
	for _, scope := range objects(sp, "oauth2PermissionScopes") {
		report.DelegatedPermissions = append(report.DelegatedPermissions, Permission{
			Value:       str(scope, "value"),
			DisplayName: str(scope, "adminConsentDisplayName"),
		})
	}

	i.inspectGrants(ctx, token, report)
	return report, nil
}

func (i *Inspector) inspectGrants(ctx context.Context, token string, report *Report) {
	res := i.client.Fetch(ctx, token, i.AssignmentsURL(report.ServicePrincipalID))

	switch res.Kind {
	case graphapi.KindSuccess:
	case graphapi.KindPermissionDenied:
		report.GrantStatus = GrantsInspectorForbidden
		report.GrantFailure = res
		return
	default:
		report.GrantStatus = GrantsError
		report.GrantFailure = res
		return
	}

	if len(res.Records) == 0 {
		report.GrantStatus = GrantsNone
		return
	}

	report.GrantStatus = GrantsListed
	roles := newRoleResolver(i)
	for _, a := range res.Records {
		g := Grant{
			AppRoleID:           str(a, "appRoleId"),
			ResourceID:          str(a, "resourceId"),
			ResourceDisplayName: str(a, "resourceDisplayName"),
		}
		if role, ok := a["appRole"].(map[string]any); ok {
			g.Value = str(role, "value")
		}
		if g.Value == "" {
			g.Value = roles.resolve(ctx, token, g.ResourceID, g.AppRoleID)
		}
		report.Grants = append(report.Grants, g)
	}
}

// roleResolver maps app role ids to role values, one lookup per resource.
type roleResolver struct {
	inspector  *Inspector
	byResource map[string]map[string]string
}

func newRoleResolver(i *Inspector) *roleResolver {
	return &roleResolver{inspector: i, byResource: make(map[string]map[string]string)}
}

func (r *roleResolver) resolve(ctx context.Context, token, resourceID, roleID string) string {
	if roleID == DefaultAccessRoleID {
		return "(default access)"
	}
	if resourceID == "" {
		return roleID
	}

	roles, ok := r.byResource[resourceID]
	if !ok {
		roles = make(map[string]string)
		res := r.inspector.client.Get(ctx, token, r.inspector.ResourceRolesURL(resourceID))
		if res.OK() {
			for _, role := range objects(res.Records[0], "appRoles") {
				roles[str(role, "id")] = str(role, "value")
			}
		} else {
			r.inspector.logger.Debug("could not resolve app roles of resource", "resource_id", resourceID, "error", res.Error())
		}
		r.byResource[resourceID] = roles
	}

	if v, ok := roles[roleID]; ok && v != "" {
		return v
	}
	return roleID
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func objects(m map[string]any, key string) []map[string]any {
	list, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
