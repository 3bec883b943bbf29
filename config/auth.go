package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the API authentication mode.
type AuthMode string

const (
	// AuthModeNone disables authentication (trusted network deployments).
	AuthModeNone AuthMode = "none"
	// AuthModeOIDC validates bearer tokens against an OIDC issuer.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock accepts a single static dev token (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "none", "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: none, oidc, mock)", v)
	}
}

// OIDCConfig contains bearer token validation and client-credentials settings.
type OIDCConfig struct {
	// Issuer is the issuer URL or its discovery URL.
	Issuer            string `env:"ISSUER"`
	Audience          string `env:"AUDIENCE"            envDefault:"analysis-jobs"`
	SkipAudienceCheck bool   `env:"SKIP_AUDIENCE_CHECK" envDefault:"false"`

	// Client credentials used by the admin CLI in remote mode.
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	TokenURL     string   `env:"TOKEN_URL"`
	Scopes       []string `env:"SCOPES"        envSeparator:" "`
}

// DevAuthConfig controls the mock identity accepted when AUTH_MODE=mock.
type DevAuthConfig struct {
	Token   string   `env:"TOKEN"   envDefault:"dev-token"`
	Subject string   `env:"SUBJECT" envDefault:"dev-user"`
	Email   string   `env:"EMAIL"   envDefault:"dev@example.com"`
	Groups  []string `env:"GROUPS"  envDefault:"admins"          envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which token verifier to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"none"`

	OIDC    OIDCConfig    `envPrefix:"OIDC_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// Group names mapped to API roles.
	AdminGroup  string `env:"AUTH_ADMIN_GROUP"  envDefault:"admins"`
	WorkerGroup string `env:"AUTH_WORKER_GROUP" envDefault:"workers"`
	UserGroup   string `env:"AUTH_USER_GROUP"   envDefault:"users"`
}

// Sanitize trims URLs and defaults the mode.
func (a *AuthConfig) Sanitize() {
	a.OIDC.Issuer = strings.TrimSpace(a.OIDC.Issuer)
	a.OIDC.TokenURL = strings.TrimSpace(a.OIDC.TokenURL)
	if a.Mode == "" {
		a.Mode = AuthModeNone
	}
}

// Enabled reports whether API routes require a bearer token.
func (a AuthConfig) Enabled() bool {
	return a.Mode == AuthModeOIDC || a.Mode == AuthModeMock
}

// HasClientCredentials reports whether the client-credentials flow is configured.
func (o OIDCConfig) HasClientCredentials() bool {
	return o.ClientID != "" && o.ClientSecret != "" && o.TokenURL != ""
}
