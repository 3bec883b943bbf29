package httpx

import (
	"context"

	domainauth "github.com/vitalsense/analysis-jobs/internal/domain/auth"
)

// principalKey is an unexported context key type to avoid collisions across packages.
type principalKey struct{}

// SetPrincipalInContext returns a child context that carries the given principal.
// If p is nil, the original ctx is returned unchanged.
func SetPrincipalInContext(ctx context.Context, p *domainauth.Principal) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated caller and a boolean indicating presence.
// Without auth middleware there is never a principal.
func PrincipalFromContext(ctx context.Context) (*domainauth.Principal, bool) {
	if p, ok := ctx.Value(principalKey{}).(*domainauth.Principal); ok && p != nil {
		return p, true
	}
	return nil, false
}

// canActFor reports whether the request may touch jobs owned by userID.
// Unauthenticated deployments allow everything.
func canActFor(ctx context.Context, userID string) bool {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return true
	}
	return p.CanActFor(userID)
}
