package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

func label(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func employeeDataset(rows []EmployeeRow, filter EmployeeFilter) Dataset {
	ds := Dataset{
		Title:     "Employee List",
		Landscape: true,
		Columns: []Column{
			{Header: "Emp No", Width: 20},
			{Header: "Name", Width: 45},
			{Header: "Department", Width: 40},
			{Header: "Category", Width: 25},
			{Header: "Job Title", Width: 40},
			{Header: "Status", Width: 20},
			{Header: "Hire Date", Width: 22},
			{Header: "Email", Width: 50},
			{Header: "Phone", Width: 28},
		},
	}
	if filter.Status != "" {
		ds.Subtitle = "Status: " + label(filter.Status)
	}
	for _, r := range rows {
		ds.Rows = append(ds.Rows, []string{
			r.EmployeeNo, r.FullName, r.Department, label(r.Category), r.JobTitle, label(r.Status),
			day(r.HireDate), r.Email, r.Phone,
		})
	}
	ds.Summary = [][2]string{{"Employees", strconv.Itoa(len(rows))}}
	return ds
}

// registerDataset lays out the payroll register. Bank accounts arrive
// already masked.
func registerDataset(period PeriodRow, rows []RegisterRow) Dataset {
	ds := Dataset{
		Title:     "Payroll Register",
		Subtitle:  fmt.Sprintf("%s (%s to %s), %s", period.Name, day(period.StartDate), day(period.EndDate), label(period.Status)),
		Landscape: true,
		Columns: []Column{
			{Header: "Emp No", Width: 18},
			{Header: "Name", Width: 40},
			{Header: "Department", Width: 34},
			{Header: "Basic", Width: 24, Right: true},
			{Header: "Allowances", Width: 24, Right: true},
			{Header: "Gross", Width: 24, Right: true},
			{Header: "Deductions", Width: 24, Right: true},
			{Header: "Tax", Width: 22, Right: true},
			{Header: "Net", Width: 24, Right: true},
			{Header: "Bank Account", Width: 33},
		},
	}
	var basic, allowances, gross, deductions, tax, net decimal.Decimal
	for _, r := range rows {
		ds.Rows = append(ds.Rows, []string{
			r.EmployeeNo, r.FullName, r.Department, money(r.Basic), money(r.Allowances), money(r.Gross),
			money(r.Deductions), money(r.Tax), money(r.Net), r.BankAccount,
		})
		basic = basic.Add(r.Basic)
		allowances = allowances.Add(r.Allowances)
		gross = gross.Add(r.Gross)
		deductions = deductions.Add(r.Deductions)
		tax = tax.Add(r.Tax)
		net = net.Add(r.Net)
	}
	ds.Totals = []string{"TOTAL", "", "", money(basic), money(allowances), money(gross), money(deductions), money(tax), money(net), ""}
	avg := decimal.Zero
	if len(rows) > 0 {
		avg = net.Div(decimal.NewFromInt(int64(len(rows))))
	}
	ds.Summary = [][2]string{
		{"Employees", strconv.Itoa(len(rows))},
		{"Total gross", money(gross)},
		{"Total deductions", money(deductions)},
		{"Total net", money(net)},
		{"Average net", money(avg)},
	}
	return ds
}

func comparisonDataset(periods []PeriodRow) Dataset {
	ds := Dataset{
		Title: "Payroll Comparison",
		Columns: []Column{
			{Header: "Period", Width: 40},
			{Header: "Status", Width: 20},
			{Header: "Employees", Width: 20, Right: true},
			{Header: "Total Gross", Width: 26, Right: true},
			{Header: "Average Gross", Width: 24, Right: true},
			{Header: "Total Net", Width: 26, Right: true},
			{Header: "Average Net", Width: 24, Right: true},
		},
	}
	for _, p := range periods {
		avgGross, avgNet := decimal.Zero, decimal.Zero
		if p.EmployeeCount > 0 {
			n := decimal.NewFromInt(int64(p.EmployeeCount))
			avgGross = p.TotalGross.Div(n)
			avgNet = p.TotalNet.Div(n)
		}
		ds.Rows = append(ds.Rows, []string{
			p.Name, label(p.Status), strconv.Itoa(p.EmployeeCount), money(p.TotalGross), money(avgGross),
			money(p.TotalNet), money(avgNet),
		})
	}
	if len(periods) > 1 {
		first, last := periods[0], periods[len(periods)-1]
		ds.Summary = [][2]string{
			{"Periods", strconv.Itoa(len(periods))},
			{"Headcount change", strconv.Itoa(last.EmployeeCount - first.EmployeeCount)},
			{"Gross change", money(last.TotalGross.Sub(first.TotalGross))},
			{"Net change", money(last.TotalNet.Sub(first.TotalNet))},
		}
	}
	return ds
}

func attendanceDataset(from, to string, rows []AttendanceRow) Dataset {
	ds := Dataset{
		Title:     "Attendance Report",
		Subtitle:  from + " to " + to,
		Landscape: true,
		Columns: []Column{
			{Header: "Emp No", Width: 20},
			{Header: "Name", Width: 45},
			{Header: "Department", Width: 40},
			{Header: "Present", Width: 20, Right: true},
			{Header: "Late", Width: 18, Right: true},
			{Header: "Absent", Width: 18, Right: true},
			{Header: "Half Day", Width: 20, Right: true},
			{Header: "On Leave", Width: 20, Right: true},
			{Header: "Hours", Width: 22, Right: true},
			{Header: "Overtime", Width: 22, Right: true},
		},
	}
	var present, late, absent, half, onLeave int
	hours, overtime := decimal.Zero, decimal.Zero
	for _, r := range rows {
		ds.Rows = append(ds.Rows, []string{
			r.EmployeeNo, r.FullName, r.Department, strconv.Itoa(r.Present), strconv.Itoa(r.Late),
			strconv.Itoa(r.Absent), strconv.Itoa(r.HalfDay), strconv.Itoa(r.OnLeave), money(r.TotalHours),
			money(r.OvertimeHours),
		})
		present += r.Present
		late += r.Late
		absent += r.Absent
		half += r.HalfDay
		onLeave += r.OnLeave
		hours = hours.Add(r.TotalHours)
		overtime = overtime.Add(r.OvertimeHours)
	}
	ds.Totals = []string{"TOTAL", "", "", strconv.Itoa(present), strconv.Itoa(late), strconv.Itoa(absent),
		strconv.Itoa(half), strconv.Itoa(onLeave), money(hours), money(overtime)}
	return ds
}

func leaveDataset(from, to string, rows []LeaveRow) Dataset {
	ds := Dataset{
		Title:    "Leave Report",
		Subtitle: from + " to " + to,
		Columns: []Column{
			{Header: "Emp No", Width: 18},
			{Header: "Name", Width: 40},
			{Header: "Leave Type", Width: 32},
			{Header: "Start", Width: 22},
			{Header: "End", Width: 22},
			{Header: "Days", Width: 16, Right: true},
			{Header: "Status", Width: 30},
		},
	}
	days := decimal.Zero
	for _, r := range rows {
		ds.Rows = append(ds.Rows, []string{
			r.EmployeeNo, r.FullName, r.LeaveType, day(r.StartDate), day(r.EndDate), r.WorkingDays.String(), label(r.Status),
		})
		days = days.Add(r.WorkingDays)
	}
	ds.Totals = []string{"TOTAL", "", "", "", "", days.String(), ""}
	ds.Summary = [][2]string{{"Applications", strconv.Itoa(len(rows))}}
	return ds
}

func balanceDataset(year int, rows []BalanceRow) Dataset {
	ds := Dataset{
		Title:     "Leave Balances",
		Subtitle:  "Year " + strconv.Itoa(year),
		Landscape: true,
		Columns: []Column{
			{Header: "Emp No", Width: 20},
			{Header: "Name", Width: 45},
			{Header: "Leave Type", Width: 38},
			{Header: "Opening", Width: 24, Right: true},
			{Header: "Accrued", Width: 24, Right: true},
			{Header: "Carried Forward", Width: 28, Right: true},
			{Header: "Taken", Width: 22, Right: true},
			{Header: "Pending", Width: 22, Right: true},
			{Header: "Closing", Width: 24, Right: true},
		},
	}
	for _, r := range rows {
		ds.Rows = append(ds.Rows, []string{
			r.EmployeeNo, r.FullName, r.LeaveType, r.Opening.String(), r.Accrued.String(), r.CarriedForward.String(),
			r.Taken.String(), r.Pending.String(), r.Closing.String(),
		})
	}
	return ds
}

func peopleDataset(userType string, rows []PersonRow) Dataset {
	ds := Dataset{
		Title: label(userType) + " List",
		Columns: []Column{
			{Header: "Username", Width: 30},
			{Header: "Name", Width: 45},
			{Header: "Email", Width: 50},
			{Header: "Phone", Width: 28},
			{Header: "Status", Width: 18},
		},
	}
	if userType == "lecturer" {
		ds.Columns = append(ds.Columns, Column{Header: "Emp No", Width: 20})
	}
	for _, r := range rows {
		row := []string{r.Username, r.FullName, r.Email, r.Phone, label(r.Status)}
		if userType == "lecturer" {
			row = append(row, r.EmployeeNo)
		}
		ds.Rows = append(ds.Rows, row)
	}
	ds.Summary = [][2]string{{"Total", strconv.Itoa(len(rows))}}
	return ds
}
