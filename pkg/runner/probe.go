package runner

import (
	"context"

	"github.com/praetorian-inc/auditgraph/internal/message"
	"github.com/praetorian-inc/auditgraph/pkg/graphapi"
)

// Check is a single-page access test against one Graph path.
type Check struct {
	Name string
	Path string
	// Permission is named in the diagnostic when the check is denied.
	Permission string
}

var (
	OrganizationCheck = Check{Name: "Organization Info", Path: "/organization"}
	UsersCheck        = Check{Name: "Users Access", Path: "/users?$top=1", Permission: "User.Read.All"}
	AuditLogsCheck    = Check{Name: "Audit Logs Access", Path: "/auditLogs/directoryAudits?$top=1", Permission: "AuditLog.Read.All"}
)

// DefaultChecks is the basic access test sequence.
var DefaultChecks = []Check{OrganizationCheck, UsersCheck, AuditLogsCheck}

type CheckResult struct {
	Check  Check
	Result *graphapi.Result
	// Count is the number of items on the returned page.
	Count int
	// DisplayName is the first item's displayName, when there is one.
	DisplayName string
}

func (c CheckResult) OK() bool {
	return c.Result.OK()
}

// Probe runs each check once without following pagination and reports the
// outcome as it goes.
func (r *Runner) Probe(ctx context.Context, token string, checks []Check) []CheckResult {
	out := make([]CheckResult, 0, len(checks))
	for i, check := range checks {
		message.Section("Test %d: %s", i+1, check.Name)

		res := r.client.Get(ctx, token, r.client.URL(check.Path))
		cr := CheckResult{Check: check, Result: res}

		switch res.Kind {
		case graphapi.KindSuccess:
			items, _ := res.Records[0]["value"].([]any)
			cr.Count = len(items)
			if len(items) > 0 {
				if first, ok := items[0].(map[string]any); ok {
					cr.DisplayName, _ = first["displayName"].(string)
				}
			}
			if cr.DisplayName != "" {
				message.Success("Success: %s", cr.DisplayName)
			} else {
				message.Success("Success: Found %d records", cr.Count)
			}
		case graphapi.KindPermissionDenied:
			if check.Permission != "" {
				message.Error("Failed: Need %s permission", check.Permission)
			} else {
				message.Error("Failed: 403 Forbidden")
			}
			if odata, ok := res.ODataError(); ok {
				message.Detail("Code: %s", odata.Code)
				message.Detail("Message: %s", odata.Message)
			}
			message.Detail("Please grant admin consent for this permission")
		case graphapi.KindUnexpectedStatus:
			message.Error("Failed: %d", res.StatusCode)
			message.Detail("Response: %s", res.Body)
		default:
			message.Error("Error: %s", res.Error())
		}

		r.logger.Debug("access check", "check", check.Name, "outcome", res.Kind.String(), "status", res.StatusCode)
		out = append(out, cr)
	}
	return out
}

// FailedChecks counts the checks that did not succeed.
func FailedChecks(results []CheckResult) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}
