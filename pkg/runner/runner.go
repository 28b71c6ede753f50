// Package runner drives a run: authenticate once, then fetch and export every
// requested resource in order, reporting each outcome without stopping early.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/praetorian-inc/auditgraph/internal/jq"
	"github.com/praetorian-inc/auditgraph/internal/message"
	"github.com/praetorian-inc/auditgraph/pkg/auth"
	"github.com/praetorian-inc/auditgraph/pkg/catalog"
	"github.com/praetorian-inc/auditgraph/pkg/export"
	"github.com/praetorian-inc/auditgraph/pkg/graphapi"
)

// tokenWarnWindow is how close to expiry a fresh token may be before the run
// warns that later requests could be rejected.
const tokenWarnWindow = 5 * time.Minute

// PortalSteps is the remediation shown when Graph denies a request.
var PortalSteps = []string{
	"Go to Azure Portal -> Microsoft Entra ID -> App registrations",
	"Select your app -> API permissions",
	"Add permission: Microsoft Graph -> Application permissions -> the permissions listed above",
	"Grant admin consent",
}

// Request is one resource to fetch and export.
type Request struct {
	// Resource is the catalog name, used for diagnostics. It may be empty for
	// ad hoc paths.
	Resource string
	URL      string
	// Filter is applied to the fetched records before export when set.
	Filter *jq.Filter
	Output string
}

func (r Request) label() string {
	if r.Resource != "" {
		return r.Resource
	}
	return r.URL
}

type Status int

const (
	StatusExported Status = iota + 1
	StatusNoData
	StatusDenied
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusExported:
		return "exported"
	case StatusNoData:
		return "no data"
	case StatusDenied:
		return "permission denied"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is what happened to one Request.
type Outcome struct {
	Request Request
	Status  Status
	Result  *graphapi.Result
	Export  export.Summary
	Err     error
}

// Summary is the outcome of a whole run.
type Summary struct {
	// AuthErr is set when no token could be obtained; nothing was fetched.
	AuthErr  error
	Outcomes []Outcome
}

func (s *Summary) Count(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Err is non-nil when authentication failed or any resource was denied or
// failed. Empty results are not failures.
func (s *Summary) Err() error {
	if s.AuthErr != nil {
		return fmt.Errorf("authentication failed: %w", s.AuthErr)
	}

	var failed []string
	for _, o := range s.Outcomes {
		if o.Status == StatusDenied || o.Status == StatusFailed {
			failed = append(failed, o.Request.label())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d resources failed: %s", len(failed), len(s.Outcomes), strings.Join(failed, ", "))
	}
	return nil
}

type Runner struct {
	provider auth.TokenProvider
	client   *graphapi.Client
	catalog  *catalog.Catalog
	logger   *slog.Logger
}

func New(provider auth.TokenProvider, client *graphapi.Client, cat *catalog.Catalog, logger *slog.Logger) *Runner {
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{provider: provider, client: client, catalog: cat, logger: logger}
}

// Authenticate obtains a token and reports the outcome to the operator.
func (r *Runner) Authenticate(ctx context.Context) (string, error) {
	tok, err := r.provider.Token(ctx)
	if err != nil {
		var authErr *auth.Error
		if errors.As(err, &authErr) && authErr.StatusCode != 0 && authErr.Kind == auth.AuthenticationFailure {
			message.Error("Authentication failed with status code: %d", authErr.StatusCode)
			message.Detail("Response: %s", authErr.Body)
		} else {
			message.Error("Authentication failed: %v", err)
		}
		return "", err
	}

	message.Success("Authentication successful!")
	if !tok.Expiry.IsZero() {
		r.logger.Debug("token acquired", "expires", tok.Expiry.Format(time.RFC3339))
	}
	if tok.ExpiresWithin(tokenWarnWindow) {
		message.Warning("Access token expires at %s; long runs may be rejected once it lapses", tok.Expiry.Format(time.Kitchen))
	}
	return tok.AccessToken, nil
}

// Run authenticates once and then processes every request in order. A
// failed request never prevents the next one from being attempted.
func (r *Runner) Run(ctx context.Context, requests []Request) *Summary {
	summary := &Summary{}

	token, err := r.Authenticate(ctx)
	if err != nil {
		message.Error("Failed to get access token. Exiting.")
		summary.AuthErr = err
		return summary
	}

	for _, req := range requests {
		summary.Outcomes = append(summary.Outcomes, r.process(ctx, token, req))
	}

	r.logger.Info("run finished",
		"resources", len(summary.Outcomes),
		"exported", summary.Count(StatusExported),
		"no_data", summary.Count(StatusNoData),
		"denied", summary.Count(StatusDenied),
		"failed", summary.Count(StatusFailed))
	return summary
}

func (r *Runner) process(ctx context.Context, token string, req Request) Outcome {
	out := Outcome{Request: req}
	label := req.label()

	message.Info("Fetching %s", label)
	r.logger.Debug("fetching resource", "resource", req.Resource, "url", req.URL)

	res := r.client.Fetch(ctx, token, req.URL)
	out.Result = res

	switch res.Kind {
	case graphapi.KindSuccess:
	case graphapi.KindPermissionDenied:
		out.Status = StatusDenied
		r.reportDenied(req, res)
		return out
	default:
		out.Status = StatusFailed
		out.Err = errors.New(res.Error())
		r.reportFailure(label, res)
		return out
	}

	if res.Partial {
		message.Warning("%s: pagination stopped early (%s); keeping %d records", label, res.Interrupted.Error(), len(res.Records))
	}
	if res.Truncated {
		message.Warning("%s: page limit reached after %d pages; results are incomplete", label, res.Pages)
	}
	message.Success("Successfully fetched %d %s entries", len(res.Records), label)

	records := res.Records
	if req.Filter != nil {
		filtered, err := req.Filter.Apply(records)
		if err != nil {
			out.Status = StatusFailed
			out.Err = fmt.Errorf("apply query %q: %w", req.Filter.String(), err)
			message.Error("%s: %v", label, out.Err)
			return out
		}
		r.logger.Debug("query applied", "resource", label, "before", len(records), "after", len(filtered))
		records = filtered
	}

	summary, err := export.Export(req.Output, records)
	switch {
	case errors.Is(err, export.ErrNoData):
		out.Status = StatusNoData
		message.Warning("No data to save for %s", label)
	case err != nil:
		out.Status = StatusFailed
		out.Err = fmt.Errorf("save %s: %w", req.Output, err)
		message.Error("Error saving %s: %v", req.Output, err)
	default:
		out.Status = StatusExported
		out.Export = summary
		message.Success("Saved %s with %d entries.", summary.Path, summary.Rows)
		if summary.Truncated > 0 {
			message.Warning("%s: %d cells were longer than %d characters and were cut in the spreadsheet; use --format csv or --format json for the full values",
				label, summary.Truncated, export.MaxCellChars)
		}
	}
	return out
}

func (r *Runner) reportDenied(req Request, res *graphapi.Result) {
	message.Error("Permission denied (403 Forbidden) for %s", req.label())
	if odata, ok := res.ODataError(); ok {
		message.Detail("Code: %s", odata.Code)
		message.Detail("Message: %s", odata.Message)
	}

	perms := r.catalog.RequiredPermissions(req.Resource)
	if len(perms) > 0 {
		message.Detail("You need to add the following permissions to your Azure AD app:")
		for _, p := range perms {
			message.Detail("  - %s", p)
		}
	}
	message.Steps("To fix this:", PortalSteps...)
}

func (r *Runner) reportFailure(label string, res *graphapi.Result) {
	switch res.Kind {
	case graphapi.KindUnexpectedStatus:
		message.Error("Error fetching %s: %d", label, res.StatusCode)
		message.Detail("Response: %s", res.Body)
	default:
		message.Error("Error during %s fetch: %s", label, res.Error())
	}
}
