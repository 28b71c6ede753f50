package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/auditgraph/internal/config"
	"github.com/praetorian-inc/auditgraph/internal/jq"
	"github.com/praetorian-inc/auditgraph/internal/message"
	"github.com/praetorian-inc/auditgraph/pkg/catalog"
	"github.com/praetorian-inc/auditgraph/pkg/export"
	"github.com/praetorian-inc/auditgraph/pkg/graphapi"
	"github.com/praetorian-inc/auditgraph/pkg/runner"
)

type fetchOptions struct {
	since  string
	until  string
	days   int
	top    int
	fields []string
	filter string
	query  string
	format string
}

var fetchOpts fetchOptions

var fetchCmd = &cobra.Command{
	Use:   "fetch <resource|/path>...",
	Short: "Fetch Graph resources and save each one to a file",
	Long: `Fetch one or more resources by catalog name (see "auditgraph endpoints")
or by Graph path, following pagination, and save each to its own file in the
output directory. Every resource is attempted even when an earlier one fails.`,
	Example: `  auditgraph fetch entra_audit --days 7
  auditgraph fetch entra_signins entra_users --format csv
  auditgraph fetch /users --select id,userPrincipalName --query 'select(.accountEnabled)'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		requests, err := buildRequests(a.catalog, a.client, args, fetchOpts, time.Now())
		if err != nil {
			return err
		}

		summary := a.runner.Run(cmd.Context(), requests)
		return summary.Err()
	},
}

func init() {
	flags := fetchCmd.Flags()
	flags.StringVar(&fetchOpts.since, "since", "", "Only records at or after this time (RFC3339 or YYYY-MM-DD)")
	flags.StringVar(&fetchOpts.until, "until", "", "Only records at or before this time (RFC3339 or YYYY-MM-DD)")
	flags.IntVar(&fetchOpts.days, "days", 0, "Only records from the last N days (ignored when --since is set)")
	flags.IntVar(&fetchOpts.top, "top", 0, "Page size requested with $top")
	flags.StringSliceVar(&fetchOpts.fields, "select", nil, "Properties to return ($select)")
	flags.StringVar(&fetchOpts.filter, "filter", "", "Additional OData $filter expression")
	flags.StringVar(&fetchOpts.query, "query", "", "jq expression applied to every record before saving")
	flags.StringVar(&fetchOpts.format, "format", string(export.FormatXLSX), "Output format: xlsx, csv or json")
	flags.Int("max-pages", 0, "Stop after this many pages per resource (0 follows every page)")
	bindFlag(flags, config.MaxPagesKey, "max-pages")

	rootCmd.AddCommand(fetchCmd)
}

// window resolves the time flags. Zero values leave that side open.
func (o fetchOptions) window(now time.Time) (time.Time, time.Time, error) {
	var since, until time.Time
	var err error

	if o.since != "" {
		if since, err = parseTime(o.since); err != nil {
			return since, until, fmt.Errorf("--since: %w", err)
		}
	} else if o.days > 0 {
		since = now.AddDate(0, 0, -o.days)
	}
	if o.until != "" {
		if until, err = parseTime(o.until); err != nil {
			return since, until, fmt.Errorf("--until: %w", err)
		}
	} else if !since.IsZero() {
		until = now
	}

	if !since.IsZero() && !until.IsZero() && until.Before(since) {
		return since, until, fmt.Errorf("--until %s is before --since %s", until.Format(time.RFC3339), since.Format(time.RFC3339))
	}
	return since, until, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time", s)
}

// buildRequests turns the command arguments into runner requests.
func buildRequests(cat *catalog.Catalog, client *graphapi.Client, args []string, opts fetchOptions, now time.Time) ([]runner.Request, error) {
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return nil, err
	}
	since, until, err := opts.window(now)
	if err != nil {
		return nil, err
	}

	var filter *jq.Filter
	if strings.TrimSpace(opts.query) != "" {
		if filter, err = jq.Compile(opts.query); err != nil {
			return nil, err
		}
	}

	requests := make([]runner.Request, 0, len(args))
	for _, arg := range args {
		endpoint, err := resolveEndpoint(cat, arg)
		if err != nil {
			return nil, err
		}
		if endpoint.Delegated {
			message.Warning("%s reads /me and needs a signed-in user; application tokens are usually rejected", endpoint.Name)
		}

		q := graphapi.Query{Select: opts.fields, Top: opts.top}
		var window string
		if !since.IsZero() || !until.IsZero() {
			if endpoint.TimeField == "" {
				message.Warning("%s cannot be filtered by time; fetching everything", endpoint.Name)
			} else {
				window = graphapi.TimeWindow(endpoint.TimeField, since, until)
			}
		}
		q.Filter = graphapi.And(window, opts.filter)

		requests = append(requests, runner.Request{
			Resource: endpoint.Name,
			URL:      q.Apply(client.URL(endpoint.Path)),
			Filter:   filter,
			Output:   outputPath(fileName(endpoint.Name, format)),
		})
	}
	return requests, nil
}

// resolveEndpoint accepts a catalog name or a literal Graph path.
func resolveEndpoint(cat *catalog.Catalog, arg string) (catalog.Endpoint, error) {
	if strings.HasPrefix(arg, "/") {
		return catalog.Endpoint{Name: pathName(arg), Path: arg}, nil
	}
	return cat.MustLookup(arg)
}

// pathName derives a file-friendly name from a Graph path.
func pathName(path string) string {
	path, _, _ = strings.Cut(path, "?")
	name := strings.Trim(strings.NewReplacer("/", "_", "$", "", "(", "_", ")", "", "'", "").Replace(path), "_")
	if name == "" {
		return "graph"
	}
	return name
}

func fileName(name string, format export.Format) string {
	return name + "." + string(format)
}
