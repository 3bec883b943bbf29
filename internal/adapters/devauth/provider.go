// Package devauth provides a simple, config-driven TokenVerifier for local development.
package devauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	domainauth "github.com/vitalsense/analysis-jobs/internal/domain/auth"
)

// ErrInvalidToken is returned when the presented token does not match the configured one.
var ErrInvalidToken = errors.New("dev auth: invalid token")

// Config controls the dev verifier behavior.
// All fields are required except Groups, which may be empty.
type Config struct {
	Token   string
	Subject string
	Email   string
	Groups  []string
	TTL     time.Duration // default 8h when zero
}

// Verifier implements ports.TokenVerifier for local development.
// Any request bearing the configured token authenticates as the configured identity.
type Verifier struct {
	token    []byte
	identity domainauth.Identity
	ttl      time.Duration
	now      func() time.Time
}

// NewVerifier constructs a dev verifier from Config.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("dev auth: Token is required")
	}
	if cfg.Subject == "" {
		return nil, errors.New("dev auth: Subject is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 8 * time.Hour
	}
	return &Verifier{
		token: []byte(cfg.Token),
		identity: domainauth.Identity{
			Subject: cfg.Subject,
			Email:   cfg.Email,
			Groups:  append([]string(nil), cfg.Groups...),
		},
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Verify returns the dev identity when rawToken matches the configured token.
func (v *Verifier) Verify(_ context.Context, rawToken string) (domainauth.Identity, error) {
	if subtle.ConstantTimeCompare([]byte(rawToken), v.token) != 1 {
		return domainauth.Identity{}, ErrInvalidToken
	}
	id := v.identity
	id.Groups = append([]string(nil), v.identity.Groups...)
	id.ExpiresAt = v.now().Add(v.ttl)
	return id, nil
}
