package auth

import (
	"fmt"
	"strings"
)

type Kind int

const (
	// AuthenticationFailure means the token endpoint rejected the grant.
	AuthenticationFailure Kind = iota + 1
	// MalformedResponse means a 200 reply did not carry a usable token.
	MalformedResponse
	// TransportFailure means the token endpoint could not be reached.
	TransportFailure
)

func (k Kind) String() string {
	switch k {
	case AuthenticationFailure:
		return "authentication failure"
	case MalformedResponse:
		return "malformed token response"
	case TransportFailure:
		return "transport failure"
	default:
		return "unknown"
	}
}

// Error is the "no token" outcome. StatusCode and Body are set whenever the
// token endpoint answered.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}
