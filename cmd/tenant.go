package cmd

import (
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/auditgraph/internal/message"
	"github.com/praetorian-inc/auditgraph/pkg/auth"
	"github.com/praetorian-inc/auditgraph/pkg/tenant"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Show the tenant the credentials belong to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		var cred azcore.TokenCredential
		if p, ok := a.provider.(*auth.AzureIdentityProvider); ok {
			cred = p.Credential()
		} else {
			cred = auth.Credential(a.provider)
		}

		info, err := tenant.Describe(cmd.Context(), cred, a.cfg.Scopes, a.cfg.GraphURL, a.httpClient)
		if err != nil {
			message.Error("Could not read organization details: %v", err)
			message.Detail("Reading the organization requires Organization.Read.All or Directory.Read.All")
			return err
		}

		message.Success("Tenant: %s", message.Emphasize(info.DisplayName))
		message.Detail("Tenant ID: %s", info.ID)
		if info.DefaultDomain != "" {
			message.Detail("Default domain: %s", info.DefaultDomain)
		}
		if len(info.VerifiedDomains) > 0 {
			message.Detail("Verified domains: %s", strings.Join(info.VerifiedDomains, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tenantCmd)
}
