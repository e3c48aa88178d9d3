// Package roles holds the static role hierarchy and permission grants used to
// authorise every action in the point-of-sale backend.
package roles

import (
	"errors"
	"strings"
)

// Role is a privilege level assigned to exactly one user.
type Role string

const (
	// Owner has full access, including settings.
	Owner Role = "owner"
	// Admin manages users, products and reports.
	Admin Role = "admin"
	// Cashier rings up sales.
	Cashier Role = "cashier"
)

// ErrNoRole indicates a missing or unrecognised role value.
var ErrNoRole = errors.New("roles: no role")

var hierarchy = map[Role]int{
	Owner:   3,
	Admin:   2,
	Cashier: 1,
}

var ordered = []Role{Owner, Admin, Cashier}

// ParseRole converts a stored role string into a Role.
func ParseRole(value string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(value)))
	if _, ok := hierarchy[role]; !ok {
		return "", ErrNoRole
	}
	return role, nil
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	_, ok := hierarchy[r]
	return ok
}

// Rank returns the hierarchy level; unknown roles rank 0.
func (r Role) Rank() int {
	return hierarchy[r]
}

func (r Role) String() string {
	return string(r)
}

// All lists the known roles from most to least privileged.
func All() []Role {
	out := make([]Role, len(ordered))
	copy(out, ordered)
	return out
}

// HasRoleOrHigher reports whether role ranks at or above required.
func HasRoleOrHigher(role, required Role) bool {
	if !role.Valid() || !required.Valid() {
		return false
	}
	return role.Rank() >= required.Rank()
}

// CanAccess reports whether role appears in the explicit allow-list.
func CanAccess(role Role, allowed []Role) bool {
	if !role.Valid() {
		return false
	}
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}
