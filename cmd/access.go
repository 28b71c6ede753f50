package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/auditgraph/internal/message"
	"github.com/praetorian-inc/auditgraph/pkg/runner"
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Test basic Microsoft Graph access with the configured credentials",
	Long: `Authenticate and request one record each from the organization, users and
directory audit endpoints, reporting which permissions are missing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		message.Section("Testing Basic Microsoft Graph API Access")

		a, err := newApp()
		if err != nil {
			return err
		}

		token, err := a.runner.Authenticate(cmd.Context())
		if err != nil {
			return err
		}

		results := a.runner.Probe(cmd.Context(), token, runner.DefaultChecks)
		if failed := runner.FailedChecks(results); failed > 0 {
			return fmt.Errorf("%d of %d access checks failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accessCmd)
}
