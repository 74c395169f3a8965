// Package auth issues and verifies bearer tokens, hashes passwords, and gates
// requests by identity and role.
package auth

import (
	"context"
	"strings"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

var validRoles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

func (r Role) Valid() bool {
	for _, v := range validRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRole returns the role named by s. Role names are case sensitive.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// NormalizeUsername is the canonical stored form of a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
