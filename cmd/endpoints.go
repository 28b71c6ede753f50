package cmd

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/praetorian-inc/auditgraph/internal/config"
	"github.com/praetorian-inc/auditgraph/internal/message"
)

var endpointsCmd = &cobra.Command{
	Use:     "endpoints",
	Aliases: []string{"list"},
	Short:   "List the resources that can be fetched by name",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(viper.GetString(config.EndpointsFileKey))
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(message.Writer())
		t.AppendHeader(table.Row{"Resource", "Path", "Service", "Time Field", "Required Permissions"})
		for _, e := range cat.Endpoints() {
			path := e.Path
			if e.Delegated {
				path += " (delegated)"
			}
			t.AppendRow(table.Row{e.Name, path, e.Service, e.TimeField, strings.Join(cat.ServicePermissions(e.Service), ", ")})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(endpointsCmd)
}
