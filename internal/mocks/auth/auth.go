package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"

	domainauth "github.com/vitalsense/analysis-jobs/internal/domain/auth"
	"github.com/vitalsense/analysis-jobs/internal/ports"
)

// Ensure compile-time conformance to ports.
var _ ports.TokenVerifier = (*MockTokenVerifier)(nil)

// ErrInvalidToken is returned for tokens the mock does not know.
var ErrInvalidToken = errors.New("invalid token")

// MockTokenVerifier resolves bearer tokens from an in-memory table.
type MockTokenVerifier struct {
	VerifyFunc func(ctx context.Context, rawToken string) (domainauth.Identity, error)

	mu     sync.Mutex
	tokens map[string]domainauth.Identity
	calls  int
}

// NewMockTokenVerifier creates an empty MockTokenVerifier.
func NewMockTokenVerifier() *MockTokenVerifier {
	return &MockTokenVerifier{tokens: make(map[string]domainauth.Identity)}
}

// AddToken registers a token that verifies to id.
func (m *MockTokenVerifier) AddToken(token string, id domainauth.Identity) *MockTokenVerifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = make(map[string]domainauth.Identity)
	}
	m.tokens[token] = id
	return m
}

// Verify implements ports.TokenVerifier.
func (m *MockTokenVerifier) Verify(ctx context.Context, rawToken string) (domainauth.Identity, error) {
	m.mu.Lock()
	m.calls++
	fn := m.VerifyFunc
	id, ok := m.tokens[rawToken]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, rawToken)
	}
	if !ok {
		return domainauth.Identity{}, ErrInvalidToken
	}
	return id, nil
}

// Calls returns how many times Verify was invoked.
func (m *MockTokenVerifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
