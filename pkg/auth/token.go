// Package auth exchanges application credentials for a Microsoft Graph
// bearer token. Every call performs a fresh grant; tokens are never cached or
// refreshed.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/praetorian-inc/auditgraph/internal/config"
)

// Token is an opaque bearer credential. It is only ever used as a header
// value and is never parsed locally.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// ExpiresWithin reports whether the token expires in less than d. A zero
// expiry means the issuer did not say.
func (t *Token) ExpiresWithin(d time.Duration) bool {
	if t == nil || t.Expiry.IsZero() {
		return false
	}
	return time.Until(t.Expiry) < d
}

// TokenProvider acquires a bearer token for the configured application.
type TokenProvider interface {
	Token(ctx context.Context) (*Token, error)
}

// NewProvider returns the provider selected by cfg.AuthMode.
func NewProvider(cfg config.Config, httpClient *http.Client, logger *slog.Logger) (TokenProvider, error) {
	switch cfg.AuthMode {
	case config.AuthModeClientSecret, "":
		return NewClientSecretProvider(cfg.Credentials, cfg.AuthorityHost, httpClient, logger), nil
	case config.AuthModeAzIdentity:
		return NewAzureIdentityProvider(cfg.Credentials, cfg.AuthorityHost, httpClient, logger)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}
