package roles

import (
	"errors"
	"fmt"
	"sort"
)

// Permission names an action on a resource, e.g. "product:create".
type Permission string

// Permission keys. Adding a key requires a grant entry below.
const (
	UserCreate Permission = "user:create"
	UserUpdate Permission = "user:update"
	UserDelete Permission = "user:delete"
	UserView   Permission = "user:view"

	ProductCreate Permission = "product:create"
	ProductUpdate Permission = "product:update"
	ProductDelete Permission = "product:delete"
	ProductView   Permission = "product:view"

	SaleCreate Permission = "sale:create"
	SaleUpdate Permission = "sale:update"
	SaleDelete Permission = "sale:delete"
	SaleView   Permission = "sale:view"

	ReportView   Permission = "report:view"
	ReportExport Permission = "report:export"

	SettingsView   Permission = "settings:view"
	SettingsUpdate Permission = "settings:update"
)

// ErrUnknownPermission is wrapped by ConfigurationError for unknown keys.
var ErrUnknownPermission = errors.New("roles: unknown permission")

// ConfigurationError reports a programmer error such as querying a
// permission key that has no grant entry.
type ConfigurationError struct {
	Permission Permission
	Err        error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("roles: configuration error for %q: %v", string(e.Permission), e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

var grants = map[Permission][]Role{
	UserCreate: {Owner, Admin},
	UserUpdate: {Owner, Admin},
	UserDelete: {Owner},
	UserView:   {Owner, Admin, Cashier},

	ProductCreate: {Owner, Admin},
	ProductUpdate: {Owner, Admin},
	ProductDelete: {Owner, Admin},
	ProductView:   {Owner, Admin, Cashier},

	SaleCreate: {Owner, Admin, Cashier},
	SaleUpdate: {Owner, Admin},
	SaleDelete: {Owner},
	SaleView:   {Owner, Admin, Cashier},

	ReportView:   {Owner, Admin},
	ReportExport: {Owner, Admin},

	SettingsView:   {Owner},
	SettingsUpdate: {Owner},
}

// HasPermission reports whether role is granted perm. Unknown permission
// keys yield a *ConfigurationError rather than a silent deny.
func HasPermission(role Role, perm Permission) (bool, error) {
	allowed, ok := grants[perm]
	if !ok {
		return false, &ConfigurationError{Permission: perm, Err: ErrUnknownPermission}
	}
	return CanAccess(role, allowed), nil
}

// AllowedRoles returns a copy of the roles granted perm.
func AllowedRoles(perm Permission) ([]Role, error) {
	allowed, ok := grants[perm]
	if !ok {
		return nil, &ConfigurationError{Permission: perm, Err: ErrUnknownPermission}
	}
	out := make([]Role, len(allowed))
	copy(out, allowed)
	return out, nil
}

// Permissions lists every known permission key in lexical order.
func Permissions() []Permission {
	out := make([]Permission, 0, len(grants))
	for perm := range grants {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PermissionsFor lists the permissions granted to role in lexical order.
func PermissionsFor(role Role) []Permission {
	var out []Permission
	for _, perm := range Permissions() {
		if CanAccess(role, grants[perm]) {
			out = append(out, perm)
		}
	}
	return out
}

// Validate checks that every grant maps to a non-empty set of known roles.
func Validate() error {
	for perm, allowed := range grants {
		if len(allowed) == 0 {
			return &ConfigurationError{Permission: perm, Err: errors.New("no roles granted")}
		}
		for _, role := range allowed {
			if !role.Valid() {
				return &ConfigurationError{Permission: perm, Err: fmt.Errorf("unknown role %q", string(role))}
			}
		}
	}
	return nil
}
