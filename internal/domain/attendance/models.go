package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

type Policy struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	EmployeeCategory      string          `json:"employeeCategory"`
	WorkDaysPerWeek       int             `json:"workDaysPerWeek"`
	StandardHoursPerDay   decimal.Decimal `json:"standardHoursPerDay"`
	GracePeriodMinutes    int             `json:"gracePeriodMinutes"`
	HalfDayThresholdHours decimal.Decimal `json:"halfDayThresholdHours"`
	OvertimeEligible      bool            `json:"overtimeEligible"`
	OvertimeThreshold     decimal.Decimal `json:"overtimeThresholdHours"`
	WeekendMultiplier     decimal.Decimal `json:"weekendMultiplier"`
	HolidayMultiplier     decimal.Decimal `json:"holidayMultiplier"`
	EffectiveFrom         time.Time       `json:"effectiveFrom"`
	EffectiveTo           *time.Time      `json:"effectiveTo,omitempty"`
	IsActive              bool            `json:"isActive"`
}

type PolicyInput struct {
	Name                  string          `json:"name" validate:"notblank,max=100"`
	EmployeeCategory      string          `json:"employeeCategory" validate:"omitempty,oneof=all teaching non_teaching contract casual"`
	WorkDaysPerWeek       int             `json:"workDaysPerWeek" validate:"gte=1,lte=7"`
	StandardHoursPerDay   decimal.Decimal `json:"standardHoursPerDay" validate:"positive"`
	GracePeriodMinutes    int             `json:"gracePeriodMinutes" validate:"gte=0,lte=240"`
	HalfDayThresholdHours decimal.Decimal `json:"halfDayThresholdHours" validate:"nonneg"`
	OvertimeEligible      bool            `json:"overtimeEligible"`
	OvertimeThreshold     decimal.Decimal `json:"overtimeThresholdHours" validate:"nonneg"`
	WeekendMultiplier     decimal.Decimal `json:"weekendMultiplier" validate:"nonneg"`
	HolidayMultiplier     decimal.Decimal `json:"holidayMultiplier" validate:"nonneg"`
	EffectiveFrom         string          `json:"effectiveFrom" validate:"required,datetime=2006-01-02"`
}

// Window is a working window in minutes since midnight. End below Start
// means the window crosses midnight.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Schedule struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	ScheduleType string         `json:"scheduleType"`
	PolicyID     string         `json:"attendancePolicyId"`
	DayWindows   map[int]Window `json:"dayWindows"`
	BreakMinutes int            `json:"breakMinutes"`
	IsActive     bool           `json:"isActive"`
}

type ScheduleInput struct {
	Name         string            `json:"name" validate:"notblank,max=100"`
	ScheduleType string            `json:"scheduleType" validate:"omitempty,oneof=fixed flexible shift teaching_timetable"`
	PolicyID     string            `json:"attendancePolicyId" validate:"required,uuid"`
	Days         map[string]string `json:"days" validate:"required"`
	BreakMinutes int               `json:"breakMinutes" validate:"gte=0,lte=480"`
}

type AssignScheduleInput struct {
	EmployeeID    string `json:"employeeId" validate:"required,uuid"`
	ScheduleID    string `json:"workScheduleId" validate:"required,uuid"`
	EffectiveFrom string `json:"effectiveFrom" validate:"required,datetime=2006-01-02"`
}

type Record struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employeeId"`
	EmployeeNo     string          `json:"employeeNo,omitempty"`
	EmployeeName   string          `json:"employeeName,omitempty"`
	Date           time.Time       `json:"attendanceDate"`
	ScheduleID     *string         `json:"workScheduleId,omitempty"`
	CheckInAt      *time.Time      `json:"checkInAt,omitempty"`
	CheckInMethod  string          `json:"checkInMethod"`
	CheckOutAt     *time.Time      `json:"checkOutAt,omitempty"`
	CheckOutMethod string          `json:"checkOutMethod"`
	TotalHours     decimal.Decimal `json:"totalHours"`
	RegularHours   decimal.Decimal `json:"regularHours"`
	OvertimeHours  decimal.Decimal `json:"overtimeHours"`
	Status         string          `json:"status"`
	LateByMinutes  int             `json:"lateByMinutes"`
	Notes          string          `json:"notes,omitempty"`
}

type ClockInput struct {
	EmployeeID string `json:"employeeId" validate:"required,uuid"`
	Method     string `json:"method" validate:"omitempty,oneof=manual mobile web"`
}

// ManualRecordInput lets HR enter or correct a day. Times use HH:MM.
type ManualRecordInput struct {
	EmployeeID string `json:"employeeId" validate:"required,uuid"`
	Date       string `json:"attendanceDate" validate:"required,datetime=2006-01-02"`
	CheckIn    string `json:"checkIn" validate:"omitempty,datetime=15:04"`
	CheckOut   string `json:"checkOut" validate:"omitempty,datetime=15:04"`
	Status     string `json:"status" validate:"omitempty,oneof=present absent late half_day on_leave holiday weekend"`
	Notes      string `json:"notes" validate:"max=500"`
}

type RecordFilter struct {
	EmployeeID string
	From       *time.Time
	To         *time.Time
	Status     string
	Limit      int
	Offset     int
}

type DailySummary struct {
	Date    string `json:"date"`
	Total   int    `json:"total"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
	Late    int    `json:"late"`
	OnLeave int    `json:"onLeave"`
	HalfDay int    `json:"halfDay"`
}

type MonthlySummary struct {
	EmployeeID    string          `json:"employeeId"`
	Month         string          `json:"month"`
	ByStatus      map[string]int  `json:"byStatus"`
	DaysRecorded  int             `json:"daysRecorded"`
	TotalHours    decimal.Decimal `json:"totalHours"`
	OvertimeHours decimal.Decimal `json:"overtimeHours"`
	LateMinutes   int             `json:"lateMinutes"`
}

type OvertimeRequest struct {
	ID             string              `json:"id"`
	EmployeeID     string              `json:"employeeId"`
	DepartmentID   *string             `json:"departmentId,omitempty"`
	Date           time.Time           `json:"overtimeDate"`
	StartTime      string              `json:"startTime"`
	EndTime        string              `json:"endTime"`
	EstimatedHours decimal.Decimal     `json:"estimatedHours"`
	ActualHours    decimal.NullDecimal `json:"actualHours"`
	Reason         string              `json:"reason"`
	RequestedBy    *string             `json:"requestedBy,omitempty"`
	ApprovedBy     *string             `json:"approvedBy,omitempty"`
	Status         string              `json:"approvalStatus"`
	Notes          string              `json:"approvalNotes,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

type OvertimeInput struct {
	EmployeeID string `json:"employeeId" validate:"required,uuid"`
	Date       string `json:"overtimeDate" validate:"required,datetime=2006-01-02"`
	StartTime  string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime    string `json:"endTime" validate:"required,datetime=15:04"`
	Reason     string `json:"reason" validate:"notblank,max=500"`
}

type OvertimeDecision struct {
	ActualHours *decimal.Decimal `json:"actualHours"`
	Notes       string           `json:"notes" validate:"max=500"`
}

type OvertimeFilter struct {
	EmployeeID string
	Status     string
	Limit      int
	Offset     int
}

type ShiftType struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	StartTime    string    `json:"startTime"`
	EndTime      string    `json:"endTime"`
	IsNightShift bool      `json:"isNightShift"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ShiftTypeInput struct {
	Code      string `json:"code" validate:"required,max=32"`
	Name      string `json:"name" validate:"notblank,max=100"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04"`
}

type ShiftAssignment struct {
	ID          string    `json:"id"`
	EmployeeID  string    `json:"employeeId"`
	ShiftTypeID string    `json:"shiftTypeId"`
	ShiftCode   string    `json:"shiftCode"`
	ShiftDate   time.Time `json:"shiftDate"`
}

type ShiftAssignmentInput struct {
	EmployeeID  string `json:"employeeId" validate:"required,uuid"`
	ShiftTypeID string `json:"shiftTypeId" validate:"required,uuid"`
	ShiftDate   string `json:"shiftDate" validate:"required,datetime=2006-01-02"`
}

type ShiftFilter struct {
	EmployeeID string
	From       *time.Time
	To         *time.Time
}
