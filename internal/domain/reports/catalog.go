package reports

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

var both = []string{FormatPDF, FormatXLSX}

var catalog = []Definition{
	{
		Type:        TypeEmployees,
		Name:        "Employee list",
		Description: "Staff directory with department, category and status.",
		Formats:     both,
		Params:      []string{"department_id", "status"},
	},
	{
		Type:        TypePayrollRegister,
		Name:        "Payroll register",
		Description: "Per employee pay lines for one period with totals and a summary.",
		Formats:     both,
		Params:      []string{"period_id"},
		Required:    []string{"period_id"},
	},
	{
		Type:        TypePayrollComparison,
		Name:        "Payroll comparison",
		Description: "Headcount, gross and net pay across payroll periods.",
		Formats:     both,
		Params:      []string{"periods"},
	},
	{
		Type:        TypeAttendance,
		Name:        "Attendance report",
		Description: "Attendance status counts and hours per employee for a date range.",
		Formats:     both,
		Params:      []string{"from", "to", "department_id"},
		Required:    []string{"from", "to"},
	},
	{
		Type:        TypeLeave,
		Name:        "Leave report",
		Description: "Leave applications overlapping a date range.",
		Formats:     both,
		Params:      []string{"from", "to", "status"},
		Required:    []string{"from", "to"},
	},
	{
		Type:        TypeLeaveBalances,
		Name:        "Leave balances",
		Description: "Opening, accrued, taken and closing leave per employee and type.",
		Formats:     both,
		Params:      []string{"year"},
	},
	{
		Type:        TypePeople,
		Name:        "Lecturer or student list",
		Description: "Accounts of one user type.",
		Formats:     both,
		Params:      []string{"user_type"},
		Required:    []string{"user_type"},
	},
	{
		Type:        TypePayslip,
		Name:        "Payslip",
		Description: "Payslip of one employee for a released period.",
		Formats:     []string{FormatPDF},
		Params:      []string{"period_id", "employee_id"},
		Required:    []string{"period_id", "employee_id"},
	},
}

func Catalog() []Definition {
	return slices.Clone(catalog)
}

func lookup(reportType string) (Definition, bool) {
	for _, d := range catalog {
		if d.Type == reportType {
			return d, true
		}
	}
	return Definition{}, false
}

// validate checks the report exists, supports the format and has its
// required parameters. An empty format means PDF.
func (r *Request) validate() (Definition, error) {
	def, ok := lookup(r.Type)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownReport, r.Type)
	}
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
	if r.Format == "" {
		r.Format = FormatPDF
	}
	if !slices.Contains(def.Formats, r.Format) {
		return Definition{}, fmt.Errorf("%w: %s as %s", ErrUnsupportedFormat, r.Type, r.Format)
	}
	for _, name := range def.Required {
		if strings.TrimSpace(r.Params[name]) == "" {
			return Definition{}, fmt.Errorf("%w: %s is required", ErrInvalidParams, name)
		}
	}
	return def, nil
}

// key identifies identical requests. Parameters the report does not accept
// are left out so they cannot split otherwise identical renders.
func (r Request) key(def Definition) string {
	params := make([]string, 0, len(def.Params))
	for _, name := range def.Params {
		if v := strings.TrimSpace(r.Params[name]); v != "" {
			params = append(params, name+"="+v)
		}
	}
	sort.Strings(params)
	return r.Type + "|" + r.Format + "|" + strings.Join(params, "&")
}

func (r Request) param(name string) string {
	return strings.TrimSpace(r.Params[name])
}
