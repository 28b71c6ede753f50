package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/auditgraph/internal/message"
	"github.com/praetorian-inc/auditgraph/pkg/graphapi"
	"github.com/praetorian-inc/auditgraph/pkg/runner"
)

const auditResource = "entra_audit"

var (
	auditDays int
	auditFile string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Export the directory audit log for the last 30 days",
	Long: `Fetch every directory audit record (auditLogs/directoryAudits) in the
time window and save it as a spreadsheet. Requires AuditLog.Read.All.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		message.Banner()
		message.Section("Microsoft 365 Audit Logs Fetcher")

		a, err := newApp()
		if err != nil {
			return err
		}

		endpoint, err := a.catalog.MustLookup(auditResource)
		if err != nil {
			return err
		}

		end := time.Now().UTC()
		start := end.AddDate(0, 0, -auditDays)
		message.Info("Fetching audit logs from %s to %s", start.Format(time.RFC3339), end.Format(time.RFC3339))

		q := graphapi.Query{Filter: graphapi.TimeWindow(endpoint.TimeField, start, end)}
		summary := a.runner.Run(cmd.Context(), []runner.Request{{
			Resource: endpoint.Name,
			URL:      q.Apply(a.client.URL(endpoint.Path)),
			Output:   outputPath(auditFile),
		}})
		if err := summary.Err(); err != nil {
			message.Error("Failed to fetch audit logs")
			return err
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditDays, "days", 30, "Number of days to look back")
	auditCmd.Flags().StringVar(&auditFile, "file", "AuditLogs_Last30Days.xlsx", "Output file name (extension selects the format)")
	rootCmd.AddCommand(auditCmd)
}
