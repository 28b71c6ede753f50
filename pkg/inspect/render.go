package inspect

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/praetorian-inc/auditgraph/pkg/graphapi"
)

const rule = "============================================================"

// NextSteps is printed after every permission check.
var NextSteps = []string{
	"If permissions are not granted, grant admin consent",
	"Wait 5-10 minutes for permissions to propagate",
	"Run this check again to verify",
	"If still failing, check if you have admin rights",
}

// Render writes the report as plain text tables.
func Render(w io.Writer, r *Report) {
	if !r.Found {
		fmt.Fprintf(w, "App not found in the tenant (client id %s)\n", r.ClientID)
		return
	}

	fmt.Fprintf(w, "App: %s\n", orUnknown(r.AppDisplayName))
	fmt.Fprintf(w, "App ID: %s\n", r.AppID)
	fmt.Fprintf(w, "Service Principal ID: %s\n", r.ServicePrincipalID)

	fmt.Fprintf(w, "\n%s\nAPPLICATION PERMISSIONS (App Roles):\n", rule)
	renderPermissions(w, r.ApplicationPermissions, "No application permissions found")

	fmt.Fprintf(w, "\n%s\nDELEGATED PERMISSIONS (OAuth Scopes):\n", rule)
	renderPermissions(w, r.DelegatedPermissions, "No delegated permissions found")

	fmt.Fprintf(w, "\n%s\nGRANTED PERMISSIONS:\n", rule)
	renderGrants(w, r)
}

func renderPermissions(w io.Writer, perms []Permission, empty string) {
	if len(perms) == 0 {
		fmt.Fprintf(w, "  %s\n", empty)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Value", "Display Name"})
	for _, p := range perms {
		t.AppendRow(table.Row{p.Value, p.DisplayName})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func renderGrants(w io.Writer, r *Report) {
	switch r.GrantStatus {
	case GrantsListed:
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"Granted Role", "Resource"})
		for _, g := range r.Grants {
			t.AppendRow(table.Row{g.Value, g.ResourceDisplayName})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
	case GrantsNone:
		fmt.Fprintln(w, "  NO PERMISSIONS GRANTED")
		fmt.Fprintln(w, "  You need to grant admin consent for the permissions!")
	case GrantsInspectorForbidden:
		fmt.Fprintln(w, "  Cannot check granted permissions - insufficient privileges")
		fmt.Fprintln(w, "  This is normal if you don't have admin rights; it says nothing about the app's own permissions")
	case GrantsError:
		fmt.Fprintf(w, "  Error checking granted permissions: %s\n", describeFailure(r.GrantFailure))
	}
}

func describeFailure(res *graphapi.Result) string {
	if res == nil {
		return "unknown error"
	}
	msg := res.Error()
	if odata, ok := res.ODataError(); ok {
		msg += fmt.Sprintf(" [%s] %s", odata.Code, odata.Message)
	}
	return msg
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
