package reports

const (
	TypeEmployees         = "employees"
	TypePayrollRegister   = "payroll_register"
	TypePayrollComparison = "payroll_comparison"
	TypeAttendance        = "attendance"
	TypeLeave             = "leave"
	TypeLeaveBalances     = "leave_balances"
	TypePeople            = "people"
	TypePayslip           = "payslip"

	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// comparisonDefault is how many recent periods a comparison covers when
	// none are named.
	comparisonDefault = 6
	comparisonMax     = 24

	storagePrefix = "reports/"
)
