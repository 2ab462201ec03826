package models

import "fmt"

// Role selects which of the two independent sessions is in use.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// TokenKey is the storage slot for the role's bearer token.
func (r Role) TokenKey() string {
	if r == RoleAdmin {
		return "adminToken"
	}
	return "jwtToken"
}

// LoginRoute is where unauthenticated viewers are sent.
func (r Role) LoginRoute() string {
	if r == RoleAdmin {
		return "/admin/login"
	}
	return "/login"
}

// HomeRoute is where a successful login lands.
func (r Role) HomeRoute() string {
	if r == RoleAdmin {
		return "/admin/dashboard"
	}
	return "/dashboard"
}

// RoleFromFlag maps an --admin style flag to a role.
func RoleFromFlag(admin bool) Role {
	if admin {
		return RoleAdmin
	}
	return RoleUser
}

// ParseRole parses "user" or "admin".
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
