package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Definition describes one entry of the report catalog.
type Definition struct {
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Formats     []string `json:"formats"`
	Params      []string `json:"params"`
	Required    []string `json:"required"`
}

// Request names a report, its output format and its query parameters.
type Request struct {
	Type   string
	Format string
	Params map[string]string
}

type Output struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// StoredReport is the result recorded on an async report job.
type StoredReport struct {
	StorageKey  string `json:"storageKey"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

type Column struct {
	Header string
	Width  float64
	Right  bool
}

// Dataset is the format neutral table every tabular report is reduced to
// before rendering.
type Dataset struct {
	Title     string
	Subtitle  string
	Landscape bool
	Columns   []Column
	Rows      [][]string
	Totals    []string
	Summary   [][2]string
}

type EmployeeRow struct {
	EmployeeNo string
	FullName   string
	Department string
	Category   string
	JobTitle   string
	Status     string
	HireDate   time.Time
	Email      string
	Phone      string
}

type PeriodRow struct {
	ID            string
	Name          string
	StartDate     time.Time
	EndDate       time.Time
	Status        string
	EmployeeCount int
	TotalGross    decimal.Decimal
	TotalNet      decimal.Decimal
}

type RegisterRow struct {
	EmployeeNo  string
	FullName    string
	Department  string
	Basic       decimal.Decimal
	Allowances  decimal.Decimal
	Gross       decimal.Decimal
	Deductions  decimal.Decimal
	Tax         decimal.Decimal
	Net         decimal.Decimal
	BankAccount string
}

type AttendanceRow struct {
	EmployeeNo    string
	FullName      string
	Department    string
	Present       int
	Late          int
	Absent        int
	HalfDay       int
	OnLeave       int
	TotalHours    decimal.Decimal
	OvertimeHours decimal.Decimal
}

type LeaveRow struct {
	EmployeeNo  string
	FullName    string
	LeaveType   string
	StartDate   time.Time
	EndDate     time.Time
	WorkingDays decimal.Decimal
	Status      string
}

type BalanceRow struct {
	EmployeeNo     string
	FullName       string
	LeaveType      string
	Opening        decimal.Decimal
	Accrued        decimal.Decimal
	CarriedForward decimal.Decimal
	Taken          decimal.Decimal
	Pending        decimal.Decimal
	Closing        decimal.Decimal
}

type PersonRow struct {
	Username   string
	FullName   string
	Email      string
	Phone      string
	Status     string
	EmployeeNo string
}

type EmployeeFilter struct {
	DepartmentID string
	Status       string
}

type JobRunFilter struct {
	Status      string
	RequestedBy string
	StartedFrom *time.Time
	StartedTo   *time.Time
}
