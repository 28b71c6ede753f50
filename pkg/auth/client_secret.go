package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/praetorian-inc/auditgraph/internal/config"
)

// ClientSecretProvider performs the OAuth2 client-credentials grant against
// {authority}/oauth2/v2.0/token with the credentials in the form body.
type ClientSecretProvider struct {
	conf       *clientcredentials.Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClientSecretProvider(creds config.Credentials, authorityHost string, httpClient *http.Client, logger *slog.Logger) *ClientSecretProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	// only the first scope is requested, .default scopes cannot be combined
	var scopes []string
	if len(creds.Scopes) > 0 {
		scopes = creds.Scopes[:1]
	}

	return &ClientSecretProvider{
		conf: &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     creds.TokenURL(authorityHost),
			Scopes:       scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		logger:     logger,
	}
}

func (p *ClientSecretProvider) Token(ctx context.Context) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	p.logger.Debug("requesting client credentials token", "token_url", p.conf.TokenURL, "client_id", p.conf.ClientID)
	tok, err := p.conf.Token(ctx)
	if err != nil {
		authErr := classify(err)
		p.logger.Debug("token request failed", "kind", authErr.Kind.String(), "status", authErr.StatusCode)
		return nil, authErr
	}

	p.logger.Debug("token acquired", "expiry", tok.Expiry)
	return &Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}, nil
}

func classify(err error) *Error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		e := &Error{Kind: AuthenticationFailure, Body: string(rerr.Body), Err: err}
		if rerr.Response != nil {
			e.StatusCode = rerr.Response.StatusCode
		}
		return e
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &Error{Kind: TransportFailure, Err: err}
	}

	// 200 without access_token, or a body that is not a token document
	return &Error{Kind: MalformedResponse, StatusCode: http.StatusOK, Err: err}
}
