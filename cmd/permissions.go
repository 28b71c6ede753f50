package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/auditgraph/internal/message"
	"github.com/praetorian-inc/auditgraph/pkg/inspect"
	"github.com/praetorian-inc/auditgraph/pkg/runner"
)

var inspectClientID string

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Show the permissions declared by and granted to the application",
	Long: `Look up the application's service principal, list the application and
delegated permissions it declares, list the app roles that have been granted
(admin consent), and test access to the audit log.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		message.Section("Microsoft Graph API Permission Checker")

		a, err := newApp()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		token, err := a.runner.Authenticate(ctx)
		if err != nil {
			return err
		}

		clientID := inspectClientID
		if clientID == "" {
			clientID = a.cfg.ClientID
		}

		report, err := inspect.New(a.client, logger).Inspect(ctx, token, clientID)
		if err != nil {
			message.Error("%v", err)
			return err
		}
		inspect.Render(message.Writer(), report)

		message.Section("TESTING AUDIT LOGS ACCESS:")
		checks := a.runner.Probe(ctx, token, []runner.Check{runner.AuditLogsCheck})

		message.Section("NEXT STEPS:")
		message.Steps("", inspect.NextSteps...)

		if !report.Found {
			return fmt.Errorf("app %s not found in the tenant", clientID)
		}
		if runner.FailedChecks(checks) > 0 {
			return fmt.Errorf("audit log access check failed")
		}
		return nil
	},
}

func init() {
	permissionsCmd.Flags().StringVar(&inspectClientID, "app-id", "", "Inspect this application instead of the configured client id")
	rootCmd.AddCommand(permissionsCmd)
}
