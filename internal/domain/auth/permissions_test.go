package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolePermissionsSubset(t *testing.T) {
	allowed := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		allowed[perm] = struct{}{}
	}

	for role, perms := range RolePermissions {
		if len(perms) == 0 {
			t.Fatalf("role %s has no permissions", role)
		}
		for _, perm := range perms {
			if _, ok := allowed[perm]; !ok {
				t.Fatalf("role %s has unknown permission %s", role, perm)
			}
		}
	}
}

func TestDefaultPermissionsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		if _, ok := seen[perm]; ok {
			t.Fatalf("duplicate permission %s", perm)
		}
		seen[perm] = struct{}{}
	}
}

func TestStaffCannotApprovePayroll(t *testing.T) {
	assert.NotContains(t, RolePermissions[RoleStaff], PermPayrollApprove)
	assert.NotContains(t, RolePermissions[RoleSupervisor], PermPayrollProcess)
	assert.Contains(t, RolePermissions[RolePayrollOfficer], PermPayrollApprove)
	assert.Contains(t, RolePermissions[RoleSupervisor], PermLeaveApprove)
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, ScopeAll, ScopeFor(RoleHRManager))
	assert.Equal(t, ScopeAll, ScopeFor(RolePayrollOfficer))
	assert.Equal(t, ScopeTeam, ScopeFor(RoleSupervisor))
	assert.Equal(t, ScopeSelf, ScopeFor(RoleStaff))
	assert.Equal(t, ScopeSelf, ScopeFor("unknown"))
}
