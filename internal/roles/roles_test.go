package roles

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermissionMatchesGrantTable(t *testing.T) {
	for _, perm := range Permissions() {
		allowed, err := AllowedRoles(perm)
		require.NoError(t, err)
		for _, role := range All() {
			got, err := HasPermission(role, perm)
			require.NoError(t, err)
			assert.Equal(t, CanAccess(role, allowed), got, "%s / %s", role, perm)
		}
	}
}

func TestHasPermissionExamples(t *testing.T) {
	cases := []struct {
		role Role
		perm Permission
		want bool
	}{
		{Cashier, SaleCreate, true},
		{Cashier, SettingsUpdate, false},
		{Owner, SettingsUpdate, true},
		{Admin, SettingsView, false},
		{Admin, UserDelete, false},
		{Owner, UserDelete, true},
		{Cashier, ProductView, true},
		{Cashier, ProductCreate, false},
		{Admin, ReportExport, true},
		{Cashier, ReportView, false},
	}
	for _, tc := range cases {
		got, err := HasPermission(tc.role, tc.perm)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s / %s", tc.role, tc.perm)
	}
}

func TestHasPermissionUnknownKey(t *testing.T) {
	ok, err := HasPermission(Owner, Permission("customer:create"))
	assert.False(t, ok)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, Permission("customer:create"), cfgErr.Permission)
	assert.ErrorIs(t, err, ErrUnknownPermission)
}

func TestHasPermissionUnknownRoleDenied(t *testing.T) {
	ok, err := HasPermission(Role("superuser"), SaleView)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasRoleOrHigherReflexive(t *testing.T) {
	for _, role := range All() {
		assert.True(t, HasRoleOrHigher(role, role), string(role))
	}
}

func TestHasRoleOrHigherOrder(t *testing.T) {
	assert.True(t, HasRoleOrHigher(Owner, Admin))
	assert.True(t, HasRoleOrHigher(Admin, Cashier))
	assert.True(t, HasRoleOrHigher(Owner, Cashier))
	assert.False(t, HasRoleOrHigher(Cashier, Admin))
	assert.False(t, HasRoleOrHigher(Admin, Owner))
	assert.False(t, HasRoleOrHigher(Role(""), Cashier))
	assert.False(t, HasRoleOrHigher(Owner, Role("root")))
}

func TestHasRoleOrHigherTransitive(t *testing.T) {
	all := All()
	for _, a := range all {
		for _, b := range all {
			for _, c := range all {
				if HasRoleOrHigher(a, b) && HasRoleOrHigher(b, c) {
					assert.True(t, HasRoleOrHigher(a, c), "%s >= %s >= %s", a, b, c)
				}
			}
		}
	}
}

func TestCanAccess(t *testing.T) {
	for _, role := range All() {
		assert.False(t, CanAccess(role, nil))
		assert.False(t, CanAccess(role, []Role{}))
	}
	assert.True(t, CanAccess(Admin, []Role{Owner, Admin}))
	assert.False(t, CanAccess(Cashier, []Role{Owner, Admin}))
	assert.False(t, CanAccess(Role(""), []Role{Role("")}))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, Admin, role)

	for _, raw := range []string{"", "root", "manager"} {
		_, err := ParseRole(raw)
		assert.ErrorIs(t, err, ErrNoRole, raw)
	}
}

func TestRanksStrictlyDecrease(t *testing.T) {
	all := All()
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i-1].Rank(), all[i].Rank())
	}
}

func TestValidateGrantTable(t *testing.T) {
	require.NoError(t, Validate())
	assert.Len(t, Permissions(), 16)
}

func TestAllowedRolesReturnsCopy(t *testing.T) {
	allowed, err := AllowedRoles(SaleCreate)
	require.NoError(t, err)
	allowed[0] = Role("mutated")

	again, err := AllowedRoles(SaleCreate)
	require.NoError(t, err)
	assert.Equal(t, Owner, again[0])
}

func TestPermissionsFor(t *testing.T) {
	assert.Equal(t, []Permission{ProductView, SaleCreate, SaleView, UserView}, PermissionsFor(Cashier))
	assert.Len(t, PermissionsFor(Owner), 16)
}
