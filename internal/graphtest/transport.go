// Package graphtest provides a scripted http.RoundTripper so token, fetch and
// inspection code can be exercised without a network.
package graphtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// Response is one scripted reply. When Err is set the round trip fails with
// it and no response is produced.
type Response struct {
	Status int
	Body   string
	Header http.Header
	Err    error
}

// JSON builds a response whose body is v encoded as JSON.
func JSON(status int, v any) Response {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("graphtest: encode body: %v", err))
	}
	return Response{
		Status: status,
		Body:   string(raw),
		Header: http.Header{"Content-Type": []string{"application/json"}},
	}
}

// Text builds a plain-text response.
func Text(status int, body string) Response {
	return Response{
		Status: status,
		Body:   body,
		Header: http.Header{"Content-Type": []string{"text/plain"}},
	}
}

// Page builds a Graph collection page, with a next link when next is not empty.
func Page(next string, records ...map[string]any) Response {
	if records == nil {
		records = []map[string]any{}
	}
	body := map[string]any{"value": records}
	if next != "" {
		body["@odata.nextLink"] = next
	}
	return JSON(http.StatusOK, body)
}

// Forbidden is the body Graph returns when the caller lacks a permission.
func Forbidden() Response {
	return JSON(http.StatusForbidden, map[string]any{
		"error": map[string]any{
			"code":    "Authorization_RequestDenied",
			"message": "Insufficient privileges to complete the operation.",
		},
	})
}

// Request is what the transport saw.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// Form parses a form-encoded request body.
func (r Request) Form() url.Values {
	v, _ := url.ParseQuery(r.Body)
	return v
}

type Transport struct {
	mu       sync.Mutex
	routes   map[string][]Response
	requests []Request
}

func New() *Transport {
	return &Transport{routes: map[string][]Response{}}
}

func key(method, rawURL string) string {
	return method + " " + rawURL
}

// On scripts the replies for method+URL. Replies are consumed in order and
// the last one repeats.
func (t *Transport) On(method, rawURL string, responses ...Response) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[key(method, rawURL)] = append(t.routes[key(method, rawURL)], responses...)
	return t
}

// Get is shorthand for On(http.MethodGet, ...).
func (t *Transport) Get(rawURL string, responses ...Response) *Transport {
	return t.On(http.MethodGet, rawURL, responses...)
}

// Post is shorthand for On(http.MethodPost, ...).
func (t *Transport) Post(rawURL string, responses ...Response) *Transport {
	return t.On(http.MethodPost, rawURL, responses...)
}

// Client wraps the transport in an http.Client.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Requests returns a copy of every request seen so far.
func (t *Transport) Requests() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Request, len(t.requests))
	copy(out, t.requests)
	return out
}

// Calls counts requests for method+URL.
func (t *Transport) Calls(method, rawURL string) int {
	n := 0
	for _, r := range t.Requests() {
		if r.Method == method && r.URL == rawURL {
			n++
		}
	}
	return n
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	t.requests = append(t.requests, Request{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   string(body),
	})

	k := key(req.Method, req.URL.String())
	queue, ok := t.routes[k]
	if !ok || len(queue) == 0 {
		t.mu.Unlock()
		return nil, fmt.Errorf("graphtest: no route for %s", k)
	}
	resp := queue[0]
	if len(queue) > 1 {
		t.routes[k] = queue[1:]
	}
	t.mu.Unlock()

	if resp.Err != nil {
		return nil, resp.Err
	}

	header := resp.Header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header.Clone(),
		Body:          io.NopCloser(bytes.NewBufferString(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       req,
	}, nil
}
