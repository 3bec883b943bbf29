package auth

// Package auth contains domain-level types for authenticating API callers.
// It is pure and free of framework/adapter concerns.

import (
	"slices"
	"time"
)

// Role represents an API caller's authorization role.
type Role string

const (
	// RoleAdmin may call every endpoint on behalf of any user.
	RoleAdmin Role = "admin"
	// RoleWorker may post analysis results.
	RoleWorker Role = "worker"
	// RoleUser may submit jobs and read its own status and history.
	RoleUser Role = "user"
	// RoleGuest carries no permissions.
	RoleGuest Role = "guest"
)

// Identity represents the authenticated principal returned by an IdP.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	Subject   string // stable user identifier (sub claim)
	Email     string
	Groups    []string
	ExpiresAt time.Time
}

// Principal is an authenticated caller with its mapped role.
type Principal struct {
	Identity

	Role Role
}

// Allows reports whether the principal may act with any of the given roles.
// Admins are allowed everywhere.
func (p Principal) Allows(roles ...Role) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return slices.Contains(roles, p.Role)
}

// CanActFor reports whether the principal may read or write jobs owned by userID.
func (p Principal) CanActFor(userID string) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleUser:
		return p.Subject != "" && p.Subject == userID
	default:
		return false
	}
}
