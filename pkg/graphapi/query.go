package graphapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Query holds the OData system query options supported by the fetch
// commands. Zero values are omitted.
type Query struct {
	Filter  string
	Select  []string
	OrderBy string
	Top     int
}

// Empty reports whether no option is set.
func (q Query) Empty() bool {
	return q.Filter == "" && len(q.Select) == 0 && q.OrderBy == "" && q.Top <= 0
}

// Encode renders the options as a query string. Graph expects spaces as %20,
// not '+'.
func (q Query) Encode() string {
	var parts []string
	if q.Filter != "" {
		parts = append(parts, "$filter="+escape(q.Filter))
	}
	if len(q.Select) > 0 {
		parts = append(parts, "$select="+escape(strings.Join(q.Select, ",")))
	}
	if q.OrderBy != "" {
		parts = append(parts, "$orderby="+escape(q.OrderBy))
	}
	if q.Top > 0 {
		parts = append(parts, "$top="+strconv.Itoa(q.Top))
	}
	return strings.Join(parts, "&")
}

// Apply appends the options to rawURL, keeping any query it already has.
func (q Query) Apply(rawURL string) string {
	enc := q.Encode()
	if enc == "" {
		return rawURL
	}
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + enc
	}
	return rawURL + "?" + enc
}

var unescape = strings.NewReplacer("+", "%20", "%2C", ",", "%3A", ":", "%27", "'", "%28", "(", "%29", ")")

func escape(s string) string {
	return unescape.Replace(url.QueryEscape(s))
}

// TimeWindow builds "<field> ge <since> and <field> le <until>". Either
// bound may be zero to leave that side open.
func TimeWindow(field string, since, until time.Time) string {
	var clauses []string
	if !since.IsZero() {
		clauses = append(clauses, fmt.Sprintf("%s ge %s", field, since.UTC().Format(time.RFC3339)))
	}
	if !until.IsZero() {
		clauses = append(clauses, fmt.Sprintf("%s le %s", field, until.UTC().Format(time.RFC3339)))
	}
	return strings.Join(clauses, " and ")
}

// And joins the non-empty clauses with "and".
func And(clauses ...string) string {
	var out []string
	for _, c := range clauses {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) > 1 {
		for i, c := range out {
			out[i] = "(" + c + ")"
		}
	}
	return strings.Join(out, " and ")
}

// QuoteLiteral escapes a string literal for use inside an OData filter.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
