package rbac

import "github.com/kasirku/kasirku/internal/roles"

// RoleSummary describes a role and everything it is granted.
type RoleSummary struct {
	Name        roles.Role         `json:"name"`
	Rank        int                `json:"rank"`
	Permissions []roles.Permission `json:"permissions"`
}

// PermissionSummary lists the roles holding a permission.
type PermissionSummary struct {
	Name  roles.Permission `json:"name"`
	Roles []roles.Role     `json:"roles"`
}

// Matrix is the full grant table as exposed over HTTP.
type Matrix struct {
	Roles       []RoleSummary       `json:"roles"`
	Permissions []PermissionSummary `json:"permissions"`
}

// BuildMatrix snapshots the grant table.
func BuildMatrix() (Matrix, error) {
	var m Matrix
	for _, role := range roles.All() {
		m.Roles = append(m.Roles, RoleSummary{Name: role, Rank: role.Rank(), Permissions: roles.PermissionsFor(role)})
	}
	for _, perm := range roles.Permissions() {
		allowed, err := roles.AllowedRoles(perm)
		if err != nil {
			return Matrix{}, err
		}
		m.Permissions = append(m.Permissions, PermissionSummary{Name: perm, Roles: allowed})
	}
	return m, nil
}
