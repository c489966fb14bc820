package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/bookauth/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCasbin(t *testing.T) *CasbinService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	svc, err := NewCasbinService(db, "")
	require.NoError(t, err)
	return svc
}

func TestRoleSubject(t *testing.T) {
	assert.Equal(t, "role_super_admin", RoleSubject(domain.RoleSuperAdmin))
	assert.Equal(t, "role_customer", RoleSubject(domain.RoleCustomer))
}

func TestCasbinService_SeedDefaults(t *testing.T) {
	svc := setupCasbin(t)

	seeded, err := svc.SeedDefaults()
	require.NoError(t, err)
	assert.True(t, seeded)

	again, err := svc.SeedDefaults()
	require.NoError(t, err)
	assert.False(t, again, "seeding is skipped once policies exist")

	tests := []struct {
		name   string
		role   domain.Role
		path   string
		method string
		allow  bool
	}{
		{"support reads account", domain.RoleSupport, "/admin/accounts/5", "GET", true},
		{"support cannot lock", domain.RoleSupport, "/admin/accounts/5/lock", "POST", false},
		{"manager unlocks", domain.RoleManager, "/admin/accounts/5/unlock", "POST", true},
		{"manager inherits support", domain.RoleManager, "/users/5/sessions", "GET", true},
		{"manager cannot create staff", domain.RoleManager, "/admin/accounts", "POST", false},
		{"admin creates staff", domain.RoleAdmin, "/admin/accounts", "POST", true},
		{"admin suspends", domain.RoleAdmin, "/admin/accounts/5/suspend", "POST", true},
		{"admin purges", domain.RoleAdmin, "/admin/accounts/5/purge", "DELETE", true},
		{"admin cannot edit policies", domain.RoleAdmin, "/admin/policies", "POST", false},
		{"super admin edits policies", domain.RoleSuperAdmin, "/admin/policies", "POST", true},
		{"super admin inherits admin", domain.RoleSuperAdmin, "/admin/accounts/5/lock", "POST", true},
		{"customer denied", domain.RoleCustomer, "/admin/accounts/5", "GET", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.E.Enforce(RoleSubject(tt.role), tt.path, tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.allow, ok)
		})
	}

	owner, err := svc.E.Enforce(OwnerSubject, "/users/9/sessions", "GET")
	require.NoError(t, err)
	assert.True(t, owner)
}
