package oidc

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsConfig configures an OAuth2 client-credentials HTTP client.
type ClientCredentialsConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration // per-request timeout, default 30s
}

// Validate checks that the required fields are set.
func (c ClientCredentialsConfig) Validate() error {
	if c.ClientID == "" {
		return errors.New("client ID is required")
	}
	if c.ClientSecret == "" {
		return errors.New("client secret is required")
	}
	if c.TokenURL == "" {
		return errors.New("token URL is required")
	}
	return nil
}

// NewClientCredentialsClient returns an *http.Client that attaches a cached, auto-refreshed
// bearer token to every request.
func NewClientCredentialsClient(ctx context.Context, cfg ClientCredentialsConfig) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := &http.Client{Timeout: timeout}
	tctx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, base)

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	client := cc.Client(tctx)
	client.Timeout = timeout
	return client, nil
}
