package oidc

// Package oidc provides OIDC/OAuth2 adapters: bearer token verification for the API
// and client-credentials HTTP clients for service-to-service calls.

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/vitalsense/analysis-jobs/internal/domain/auth"
)

// Verifier implements ports.TokenVerifier using go-oidc.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

// VerifierConfig holds configuration for the bearer token verifier.
type VerifierConfig struct {
	// IssuerURL is the issuer or its discovery URL.
	IssuerURL string
	// Audience is the expected aud claim. Required unless SkipAudienceCheck is set.
	Audience          string
	SkipAudienceCheck bool
	HTTPClient        *http.Client // Optional, defaults to a client with a 30s timeout
}

// NewVerifier discovers the issuer's keys and returns a Verifier.
func NewVerifier(ctx context.Context, config VerifierConfig) (*Verifier, error) {
	if config.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if config.Audience == "" && !config.SkipAudienceCheck {
		return nil, errors.New("audience is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	// The remote key set refreshes with this context, so it must outlive ctx.
	pctx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(pctx, issuerFromDiscoveryURL(config.IssuerURL))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Verifier{verifier: op.Verifier(&gooidc.Config{
		ClientID:          config.Audience,
		SkipClientIDCheck: config.SkipAudienceCheck,
	})}, nil
}

// NewStaticVerifier returns a Verifier that trusts the given public keys without discovery.
func NewStaticVerifier(issuer, audience string, keys ...crypto.PublicKey) *Verifier {
	ks := &gooidc.StaticKeySet{PublicKeys: keys}
	return &Verifier{verifier: gooidc.NewVerifier(issuer, ks, &gooidc.Config{
		ClientID:          audience,
		SkipClientIDCheck: audience == "",
	})}
}

// Verify checks the token signature, issuer, audience and expiry, then maps its claims.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (domainauth.Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return domainauth.Identity{}, errors.New("token is required")
	}
	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("verify token: %w", err)
	}
	var claims tokenClaims
	if claimsErr := tok.Claims(&claims); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("parse token claims: %w", claimsErr)
	}
	id := mapClaims(claims)
	id.ExpiresAt = tok.Expiry
	if id.Subject == "" {
		return domainauth.Identity{}, errors.New("token has no subject")
	}
	return id, nil
}

// tokenClaims is a superset of common IdP claim shapes (plain OIDC, Keycloak, AD/ADFS).
type tokenClaims struct {
	Sub            string   `json:"sub"`
	SamAccountName string   `json:"samaccountname"`
	Email          string   `json:"email"`
	Mail           string   `json:"mail"`
	Groups         []string `json:"groups"`
	MemberOf       []string `json:"memberof"`
	Roles          []string `json:"roles"`
}

// mapClaims maps raw claims into an Identity using precedence rules.
func mapClaims(c tokenClaims) domainauth.Identity {
	groups := c.Groups
	if len(groups) == 0 {
		groups = c.MemberOf
	}
	if len(groups) == 0 {
		groups = c.Roles
	}
	return domainauth.Identity{
		Subject: firstNonEmpty(c.Sub, c.SamAccountName),
		Email:   firstNonEmpty(c.Email, c.Mail),
		Groups:  groups,
	}
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func issuerFromDiscoveryURL(u string) string {
	issuer := strings.TrimSuffix(u, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	return strings.TrimSuffix(issuer, "/")
}
