package runner_test

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/auditgraph/internal/graphtest"
	"github.com/praetorian-inc/auditgraph/internal/jq"
	"github.com/praetorian-inc/auditgraph/internal/message"
	"github.com/praetorian-inc/auditgraph/pkg/auth"
	"github.com/praetorian-inc/auditgraph/pkg/catalog"
	"github.com/praetorian-inc/auditgraph/pkg/export"
	"github.com/praetorian-inc/auditgraph/pkg/graphapi"
	"github.com/praetorian-inc/auditgraph/pkg/runner"
)

const base = graphapi.DefaultBaseURL

type staticProvider struct {
	token *auth.Token
	err   error
	calls int
}

func (p *staticProvider) Token(context.Context) (*auth.Token, error) {
	p.calls++
	return p.token, p.err
}

func okProvider() *staticProvider {
	return &staticProvider{token: &auth.Token{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}}
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	message.SetOutput(&buf)
	message.SetNoColor(true)
	t.Cleanup(func() { message.SetOutput(os.Stdout) })
	return &buf
}

func newRunner(tr *graphtest.Transport, p auth.TokenProvider) *runner.Runner {
	client := graphapi.NewClient(graphapi.ClientOptions{HTTPClient: tr.Client()})
	return runner.New(p, client, catalog.Default(), nil)
}

func TestRunAttemptsEveryResource(t *testing.T) {
	out := captureOutput(t)
	dir := t.TempDir()

	tr := graphtest.New().
		Get(base+"/auditLogs/directoryAudits", graphtest.Page("",
			map[string]any{"id": "a1", "activityDisplayName": "Add user"},
			map[string]any{"id": "a2", "activityDisplayName": "Delete user"},
		)).
		Get(base+"/users", graphtest.Forbidden()).
		Get(base+"/security/alerts", graphtest.Text(http.StatusInternalServerError, "upstream exploded"))

	requests := []runner.Request{
		{Resource: "entra_audit", URL: base + "/auditLogs/directoryAudits", Output: filepath.Join(dir, "audit.xlsx")},
		{Resource: "entra_users", URL: base + "/users", Output: filepath.Join(dir, "users.xlsx")},
		{Resource: "defender_alerts", URL: base + "/security/alerts", Output: filepath.Join(dir, "alerts.xlsx")},
	}

	p := okProvider()
	summary := newRunner(tr, p).Run(context.Background(), requests)

	assert.Equal(t, 1, p.calls)
	require.Len(t, summary.Outcomes, 3)
	assert.Equal(t, runner.StatusExported, summary.Outcomes[0].Status)
	assert.Equal(t, runner.StatusDenied, summary.Outcomes[1].Status)
	assert.Equal(t, runner.StatusFailed, summary.Outcomes[2].Status)

	assert.Equal(t, 2, summary.Outcomes[0].Export.Rows)
	assert.FileExists(t, filepath.Join(dir, "audit.xlsx"))
	assert.NoFileExists(t, filepath.Join(dir, "users.xlsx"))
	assert.NoFileExists(t, filepath.Join(dir, "alerts.xlsx"))

	err := summary.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 resources failed")

	text := out.String()
	assert.Contains(t, text, "Permission denied (403 Forbidden) for entra_users")
	assert.Contains(t, text, "User.Read.All")
	assert.Contains(t, text, "Grant admin consent")
	assert.Contains(t, text, "Authorization_RequestDenied")
	assert.Contains(t, text, "Error fetching defender_alerts: 500")
	assert.Contains(t, text, "upstream exploded")
}

func TestRunStopsWhenAuthenticationFails(t *testing.T) {
	out := captureOutput(t)
	tr := graphtest.New()
	p := &staticProvider{err: &auth.Error{Kind: auth.AuthenticationFailure, StatusCode: http.StatusUnauthorized, Body: `{"error":"invalid_client"}`}}

	summary := newRunner(tr, p).Run(context.Background(), []runner.Request{
		{Resource: "entra_audit", URL: base + "/auditLogs/directoryAudits", Output: filepath.Join(t.TempDir(), "a.xlsx")},
	})

	assert.Empty(t, tr.Requests())
	assert.Empty(t, summary.Outcomes)
	require.Error(t, summary.Err())
	assert.Contains(t, summary.Err().Error(), "authentication failed")
	assert.Contains(t, out.String(), "Authentication failed with status code: 401")
	assert.Contains(t, out.String(), "invalid_client")
}

func TestRunEmptyResultIsNotAFailure(t *testing.T) {
	out := captureOutput(t)
	path := filepath.Join(t.TempDir(), "signins.xlsx")
	tr := graphtest.New().Get(base+"/auditLogs/signIns", graphtest.Page(""))

	summary := newRunner(tr, okProvider()).Run(context.Background(), []runner.Request{
		{Resource: "entra_signins", URL: base + "/auditLogs/signIns", Output: path},
	})

	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, runner.StatusNoData, summary.Outcomes[0].Status)
	assert.NoError(t, summary.Err())
	assert.NoFileExists(t, path)
	assert.Contains(t, out.String(), "No data to save")
}

func TestRunWarnsWhenSpreadsheetCellsAreCut(t *testing.T) {
	out := captureOutput(t)
	tr := graphtest.New().Get(base+"/auditLogs/signIns", graphtest.Page("",
		map[string]any{"id": "s1", "status": strings.Repeat("x", export.MaxCellChars+1)},
		map[string]any{"id": "s2", "status": "ok"},
	))

	summary := newRunner(tr, okProvider()).Run(context.Background(), []runner.Request{
		{Resource: "entra_signins", URL: base + "/auditLogs/signIns", Output: filepath.Join(t.TempDir(), "signins.xlsx")},
	})

	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, runner.StatusExported, summary.Outcomes[0].Status)
	assert.Equal(t, 1, summary.Outcomes[0].Export.Truncated)
	assert.Contains(t, out.String(), "entra_signins: 1 cells were longer than 32767 characters and were cut in the spreadsheet")
	assert.Contains(t, out.String(), "--format csv")
}

func TestRunAppliesFilter(t *testing.T) {
	captureOutput(t)
	path := filepath.Join(t.TempDir(), "users.json")
	tr := graphtest.New().Get(base+"/users", graphtest.Page("",
		map[string]any{"id": "1", "accountEnabled": true},
		map[string]any{"id": "2", "accountEnabled": false},
	))
	filter, err := jq.Compile(`select(.accountEnabled == false)`)
	require.NoError(t, err)

	summary := newRunner(tr, okProvider()).Run(context.Background(), []runner.Request{
		{Resource: "entra_users", URL: base + "/users", Filter: filter, Output: path},
	})

	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, runner.StatusExported, summary.Outcomes[0].Status)
	assert.Equal(t, 1, summary.Outcomes[0].Export.Rows)
}

func TestRunKeepsPartialResults(t *testing.T) {
	out := captureOutput(t)
	path := filepath.Join(t.TempDir(), "audit.csv")
	next := base + "/auditLogs/directoryAudits?$skiptoken=2"
	tr := graphtest.New().
		Get(base+"/auditLogs/directoryAudits", graphtest.Page(next, map[string]any{"id": "a1"})).
		Get(next, graphtest.Text(http.StatusServiceUnavailable, "try later"))

	summary := newRunner(tr, okProvider()).Run(context.Background(), []runner.Request{
		{Resource: "entra_audit", URL: base + "/auditLogs/directoryAudits", Output: path},
	})

	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, runner.StatusExported, summary.Outcomes[0].Status)
	assert.True(t, summary.Outcomes[0].Result.Partial)
	assert.FileExists(t, path)
	assert.Contains(t, out.String(), "pagination stopped early")
}

func TestProbe(t *testing.T) {
	out := captureOutput(t)
	tr := graphtest.New().
		Get(base+"/organization", graphtest.Page("", map[string]any{"id": "t1", "displayName": "Contoso"})).
		Get(base+"/users?$top=1", graphtest.Forbidden()).
		Get(base+"/auditLogs/directoryAudits?$top=1", graphtest.Page(base+"/auditLogs/directoryAudits?$skiptoken=x", map[string]any{"id": "a1"}))

	results := newRunner(tr, okProvider()).Probe(context.Background(), "tok", runner.DefaultChecks)

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.Equal(t, "Contoso", results[0].DisplayName)
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())
	assert.Equal(t, 1, results[2].Count)
	assert.Equal(t, 1, runner.FailedChecks(results))

	// single page only
	assert.Equal(t, 0, tr.Calls(http.MethodGet, base+"/auditLogs/directoryAudits?$skiptoken=x"))

	text := out.String()
	assert.Contains(t, text, "Success: Contoso")
	assert.Contains(t, text, "Failed: Need User.Read.All permission")
	assert.Contains(t, text, "Code: Authorization_RequestDenied")
	assert.Contains(t, text, "Success: Found 1 records")
}
