package auth

const (
	RoleSystemAdmin    = "SystemAdmin"
	RoleHRManager      = "HRManager"
	RolePayrollOfficer = "PayrollOfficer"
	RoleSupervisor     = "Supervisor"
	RoleStaff          = "Staff"
	RoleStudent        = "Student"
)

const (
	PermEmployeesRead     = "employees:read"
	PermEmployeesWrite    = "employees:write"
	PermOrgWrite          = "org:write"
	PermAttendanceRead    = "attendance:read"
	PermAttendanceWrite   = "attendance:write"
	PermAttendanceApprove = "attendance:approve"
	PermLeaveRead         = "leave:read"
	PermLeaveWrite        = "leave:write"
	PermLeaveApprove      = "leave:approve"
	PermLeaveAdmin        = "leave:admin"
	PermPayrollRead       = "payroll:read"
	PermPayrollWrite      = "payroll:write"
	PermPayrollProcess    = "payroll:process"
	PermPayrollApprove    = "payroll:approve"
	PermPerformanceRead   = "performance:read"
	PermPerformanceWrite  = "performance:write"
	PermPerformanceReview = "performance:review"
	PermPerformanceAdmin  = "performance:admin"
	PermReportsRead       = "reports:read"
	PermUsersManage       = "users:manage"
	PermAuditRead         = "audit:read"
)

var DefaultPermissions = []string{
	PermEmployeesRead,
	PermEmployeesWrite,
	PermOrgWrite,
	PermAttendanceRead,
	PermAttendanceWrite,
	PermAttendanceApprove,
	PermLeaveRead,
	PermLeaveWrite,
	PermLeaveApprove,
	PermLeaveAdmin,
	PermPayrollRead,
	PermPayrollWrite,
	PermPayrollProcess,
	PermPayrollApprove,
	PermPerformanceRead,
	PermPerformanceWrite,
	PermPerformanceReview,
	PermPerformanceAdmin,
	PermReportsRead,
	PermUsersManage,
	PermAuditRead,
}

var RolePermissions = map[string][]string{
	RoleSystemAdmin: DefaultPermissions,
	RoleHRManager: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermOrgWrite,
		PermAttendanceRead,
		PermAttendanceWrite,
		PermAttendanceApprove,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdmin,
		PermPayrollRead,
		PermPerformanceRead,
		PermPerformanceWrite,
		PermPerformanceReview,
		PermPerformanceAdmin,
		PermReportsRead,
		PermUsersManage,
		PermAuditRead,
	},
	RolePayrollOfficer: {
		PermEmployeesRead,
		PermAttendanceRead,
		PermLeaveRead,
		PermLeaveWrite,
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollProcess,
		PermPayrollApprove,
		PermReportsRead,
		PermAuditRead,
	},
	RoleSupervisor: {
		PermEmployeesRead,
		PermAttendanceRead,
		PermAttendanceWrite,
		PermAttendanceApprove,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermPayrollRead,
		PermPerformanceRead,
		PermPerformanceWrite,
		PermPerformanceReview,
		PermReportsRead,
	},
	RoleStaff: {
		PermEmployeesRead,
		PermAttendanceRead,
		PermAttendanceWrite,
		PermLeaveRead,
		PermLeaveWrite,
		PermPayrollRead,
		PermPerformanceRead,
		PermPerformanceWrite,
	},
	RoleStudent: {
		PermReportsRead,
	},
}

// Scope limits which employee records a role may see.
type Scope int

const (
	ScopeSelf Scope = iota
	ScopeTeam
	ScopeAll
)

func ScopeFor(role string) Scope {
	switch role {
	case RoleSystemAdmin, RoleHRManager, RolePayrollOfficer:
		return ScopeAll
	case RoleSupervisor:
		return ScopeTeam
	default:
		return ScopeSelf
	}
}

// UserTypeForRole maps a role to the account flag stored on users.
func UserTypeForRole(role string) string {
	switch role {
	case RoleSystemAdmin:
		return UserTypeAdmin
	case RoleStudent:
		return UserTypeStudent
	default:
		return UserTypeStaff
	}
}
