package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vitalsense/analysis-jobs/config"
	"github.com/vitalsense/analysis-jobs/internal/adapters/authroles"
	"github.com/vitalsense/analysis-jobs/internal/adapters/devauth"
	"github.com/vitalsense/analysis-jobs/internal/adapters/oidc"
	httpx "github.com/vitalsense/analysis-jobs/internal/http"
	"github.com/vitalsense/analysis-jobs/internal/ports"
)

// AuthConfig contains configuration for API authentication.
type AuthConfig struct {
	Auth   config.AuthConfig
	Logger *slog.Logger
}

// BuildAuth creates the bearer token middleware configuration for the configured auth mode.
// Returns nil when auth is disabled.
func BuildAuth(ctx context.Context, cfg AuthConfig) (*httpx.AuthConfig, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	roles := authroles.StaticRoleMapper{
		AdminGroup:  cfg.Auth.AdminGroup,
		WorkerGroup: cfg.Auth.WorkerGroup,
		UserGroup:   cfg.Auth.UserGroup,
	}

	var (
		verifier ports.TokenVerifier
		err      error
	)
	switch cfg.Auth.Mode {
	case config.AuthModeOIDC:
		verifier, err = buildOIDCVerifier(ctx, cfg.Auth.OIDC)
	case config.AuthModeMock:
		verifier, err = buildDevVerifier(cfg.Auth.DevAuth)
		if err == nil {
			logger.Warn("dev auth enabled; a single static bearer token is accepted", "subject", cfg.Auth.DevAuth.Subject)
		}
	default:
		logger.Info("API authentication disabled")
		return nil, nil //nolint:nilnil // nil config means no auth middleware
	}
	if err != nil {
		return nil, fmt.Errorf("build %s verifier: %w", cfg.Auth.Mode, err)
	}

	return &httpx.AuthConfig{
		Verifier: verifier,
		Roles:    roles,
		Logger:   logger,
	}, nil
}

//nolint:ireturn // callers only need the verifier port.
func buildOIDCVerifier(ctx context.Context, cfg config.OIDCConfig) (ports.TokenVerifier, error) {
	v, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
		IssuerURL:         cfg.Issuer,
		Audience:          cfg.Audience,
		SkipAudienceCheck: cfg.SkipAudienceCheck,
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

//nolint:ireturn // callers only need the verifier port.
func buildDevVerifier(cfg config.DevAuthConfig) (ports.TokenVerifier, error) {
	v, err := devauth.NewVerifier(devauth.Config{
		Token:   cfg.Token,
		Subject: cfg.Subject,
		Email:   cfg.Email,
		Groups:  cfg.Groups,
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
