// Package graphapi issues authenticated GETs against Microsoft Graph, follows
// @odata.nextLink pagination and classifies every outcome into a Result.
package graphapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

type ClientOptions struct {
	// HTTPClient carries the transport; http.DefaultClient when nil.
	HTTPClient *http.Client
	BaseURL    string
	// MaxPages caps pagination; 0 follows next links until they run out.
	MaxPages  int
	UserAgent string
	Logger    *slog.Logger
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	maxPages   int
	userAgent  string
	logger     *slog.Logger
}

func NewClient(opts ClientOptions) *Client {
	c := &Client{
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		maxPages:   opts.MaxPages,
		userAgent:  opts.UserAgent,
		logger:     opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// BaseURL is the versioned Graph root, e.g. https://graph.microsoft.com/v1.0.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins path onto the base URL. Absolute URLs are returned unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

type page struct {
	kind       Kind
	statusCode int
	body       string
	err        error
	raw        []byte
}

// Fetch GETs a collection and follows @odata.nextLink until it is absent.
// Records are returned in page order, then in-page order. A failure on the
// first page is returned as that failure; a failure on a later page stops the
// loop and returns the records gathered so far as a partial success.
func (c *Client) Fetch(ctx context.Context, token, rawURL string) *Result {
	res := &Result{URL: rawURL, Kind: KindSuccess, Records: make([]Record, 0)}
	seen := make(map[string]bool)
	next := rawURL

	for next != "" {
		if c.maxPages > 0 && res.Pages >= c.maxPages {
			res.Truncated = true
			c.logger.Warn("reached page limit, stopping pagination", "url", rawURL, "max_pages", c.maxPages, "records", len(res.Records))
			break
		}
		if seen[next] {
			c.logger.Warn("next link repeats an earlier page, stopping pagination", "url", next)
			break
		}
		seen[next] = true

		n := res.Pages + 1
		c.logger.Debug("fetching page", "page", n, "url", next)
		p := c.do(ctx, token, next)

		var batch struct {
			Value    []Record `json:"value"`
			NextLink string   `json:"@odata.nextLink"`
		}
		if p.kind == KindSuccess {
			if err := json.Unmarshal(p.raw, &batch); err != nil {
				p.kind = KindMalformedResponse
				p.err = fmt.Errorf("decode page: %w", err)
			}
		}

		if p.kind != KindSuccess {
			if n == 1 {
				res.Kind = p.kind
				res.StatusCode = p.statusCode
				res.Body = p.body
				res.Err = p.err
				res.Records = nil
				return res
			}
			res.Partial = true
			res.Interrupted = &PageError{Page: n, Kind: p.kind, StatusCode: p.statusCode, Body: p.body, Err: p.err}
			c.logger.Warn("pagination interrupted, keeping earlier pages", "url", rawURL, "error", res.Interrupted.Error(), "records", len(res.Records))
			break
		}

		res.Pages = n
		res.Records = append(res.Records, batch.Value...)
		c.logger.Debug("page fetched", "page", n, "items", len(batch.Value), "has_next", batch.NextLink != "")
		next = batch.NextLink
	}

	return res
}

// Get fetches a single object. On success Records holds exactly that object.
func (c *Client) Get(ctx context.Context, token, rawURL string) *Result {
	res := &Result{URL: rawURL}
	p := c.do(ctx, token, rawURL)
	if p.kind == KindSuccess {
		var rec Record
		if err := json.Unmarshal(p.raw, &rec); err != nil || rec == nil {
			p.kind = KindMalformedResponse
			p.err = fmt.Errorf("decode object: %w", errOrEmpty(err))
		} else {
			res.Records = []Record{rec}
			res.Pages = 1
		}
	}
	res.Kind = p.kind
	res.StatusCode = p.statusCode
	res.Body = p.body
	res.Err = p.err
	return res
}

func errOrEmpty(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("empty document")
}

func (c *Client) do(ctx context.Context, token, rawURL string) page {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return page{kind: KindTransportFailure, err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return page{kind: KindTransportFailure, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return page{kind: KindTransportFailure, statusCode: resp.StatusCode, err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return page{kind: KindSuccess, statusCode: resp.StatusCode, raw: bytes.TrimSpace(raw)}
	case resp.StatusCode == http.StatusForbidden:
		return page{kind: KindPermissionDenied, statusCode: resp.StatusCode, body: string(raw)}
	default:
		return page{kind: KindUnexpectedStatus, statusCode: resp.StatusCode, body: string(raw)}
	}
}
