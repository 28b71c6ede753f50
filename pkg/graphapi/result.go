package graphapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one Graph object. Its schema depends on the resource and it is
// passed through untouched until export.
type Record = map[string]any

// Kind classifies the outcome of a fetch.
type Kind int

const (
	KindSuccess Kind = iota
	KindPermissionDenied
	KindUnexpectedStatus
	KindTransportFailure
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindPermissionDenied:
		return "permission denied"
	case KindUnexpectedStatus:
		return "unexpected status"
	case KindTransportFailure:
		return "transport failure"
	case KindMalformedResponse:
		return "malformed response"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// PageError describes why pagination stopped early.
type PageError struct {
	Page       int
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *PageError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("page %d: %s: %v", e.Page, e.Kind, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("page %d: %s (status %d)", e.Page, e.Kind, e.StatusCode)
	default:
		return fmt.Sprintf("page %d: %s", e.Page, e.Kind)
	}
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Result is the tagged outcome of one fetch. Records is only meaningful for
// KindSuccess; StatusCode, Body and Err describe the failure otherwise.
type Result struct {
	URL     string
	Kind    Kind
	Records []Record
	Pages   int

	StatusCode int
	Body       string
	Err        error

	// Partial is set when a later page failed; Records holds every page
	// fetched before the failure and Interrupted says what went wrong.
	Partial     bool
	Interrupted *PageError

	// Truncated is set when the page cap stopped the loop.
	Truncated bool
}

func (r *Result) OK() bool {
	return r.Kind == KindSuccess
}

// Error summarises a failed result for diagnostics. It returns "" on success.
func (r *Result) Error() string {
	switch r.Kind {
	case KindSuccess:
		return ""
	case KindTransportFailure, KindMalformedResponse:
		return fmt.Sprintf("%s: %v", r.Kind, r.Err)
	default:
		return fmt.Sprintf("%s (status %d)", r.Kind, r.StatusCode)
	}
}

// ODataError is the error document Graph returns on failures.
type ODataError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseODataError extracts error.code and error.message from body. ok is
// false when body is not a Graph error document.
func ParseODataError(body string) (ODataError, bool) {
	var doc struct {
		Error *ODataError `json:"error"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &doc); err != nil || doc.Error == nil {
		return ODataError{}, false
	}
	return *doc.Error, true
}

// ODataError parses the failure body of r.
func (r *Result) ODataError() (ODataError, bool) {
	return ParseODataError(r.Body)
}
