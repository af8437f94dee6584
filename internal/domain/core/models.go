package core

import (
	"errors"
	"time"
)

const (
	CategoryTeaching    = "teaching"
	CategoryNonTeaching = "non_teaching"
	CategoryContract    = "contract"
	CategoryCasual      = "casual"

	StatusActive     = "active"
	StatusOnLeave    = "on_leave"
	StatusSuspended  = "suspended"
	StatusTerminated = "terminated"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("record already exists")
	ErrForbidden       = errors.New("not allowed to access this employee")
	ErrDepartmentInUse = errors.New("department still has employees")
	ErrInvalidInput    = errors.New("invalid input")
)

type Employee struct {
	ID               string     `json:"id"`
	EmployeeNo       string     `json:"employeeNo"`
	FirstName        string     `json:"firstName"`
	MiddleName       string     `json:"middleName,omitempty"`
	LastName         string     `json:"lastName"`
	DateOfBirth      *time.Time `json:"dateOfBirth,omitempty"`
	Gender           string     `json:"gender"`
	NationalID       string     `json:"nationalId,omitempty"`
	PersonalEmail    string     `json:"personalEmail,omitempty"`
	OfficialEmail    string     `json:"officialEmail,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	AlternatePhone   string     `json:"alternatePhone,omitempty"`
	Category         string     `json:"employeeCategory"`
	PayrollType      string     `json:"payrollType"`
	Status           string     `json:"employmentStatus"`
	HireDate         time.Time  `json:"hireDate"`
	ConfirmationDate *time.Time `json:"confirmationDate,omitempty"`
	TerminationDate  *time.Time `json:"terminationDate,omitempty"`
	DepartmentID     *string    `json:"departmentId,omitempty"`
	DepartmentName   string     `json:"departmentName,omitempty"`
	JobGradeID       *string    `json:"jobGradeId,omitempty"`
	JobTitleID       *string    `json:"jobTitleId,omitempty"`
	JobTitleName     string     `json:"jobTitleName,omitempty"`
	SupervisorID     *string    `json:"supervisorId,omitempty"`
	BankName         string     `json:"bankName,omitempty"`
	BankAccount      string     `json:"bankAccount,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (e Employee) FullName() string {
	if e.MiddleName != "" {
		return e.FirstName + " " + e.MiddleName + " " + e.LastName
	}
	return e.FirstName + " " + e.LastName
}

// EmployeeInput is the create and update payload. Dates use YYYY-MM-DD.
type EmployeeInput struct {
	EmployeeNo       string  `json:"employeeNo" validate:"required,max=32"`
	FirstName        string  `json:"firstName" validate:"notblank,max=100"`
	MiddleName       string  `json:"middleName" validate:"max=100"`
	LastName         string  `json:"lastName" validate:"notblank,max=100"`
	DateOfBirth      string  `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Gender           string  `json:"gender" validate:"required,oneof=male female other"`
	NationalID       string  `json:"nationalId" validate:"max=64"`
	PersonalEmail    string  `json:"personalEmail" validate:"omitempty,email"`
	OfficialEmail    string  `json:"officialEmail" validate:"omitempty,email"`
	Phone            string  `json:"phone" validate:"max=40"`
	AlternatePhone   string  `json:"alternatePhone" validate:"max=40"`
	Category         string  `json:"employeeCategory" validate:"required,oneof=teaching non_teaching contract casual"`
	PayrollType      string  `json:"payrollType" validate:"omitempty,oneof=monthly hourly"`
	Status           string  `json:"employmentStatus" validate:"omitempty,oneof=active on_leave suspended terminated"`
	HireDate         string  `json:"hireDate" validate:"required,datetime=2006-01-02"`
	ConfirmationDate string  `json:"confirmationDate" validate:"omitempty,datetime=2006-01-02"`
	TerminationDate  string  `json:"terminationDate" validate:"omitempty,datetime=2006-01-02"`
	DepartmentID     *string `json:"departmentId" validate:"omitempty,uuid"`
	JobGradeID       *string `json:"jobGradeId" validate:"omitempty,uuid"`
	JobTitleID       *string `json:"jobTitleId" validate:"omitempty,uuid"`
	SupervisorID     *string `json:"supervisorId" validate:"omitempty,uuid"`
	BankName         string  `json:"bankName" validate:"max=100"`
	BankAccount      string  `json:"bankAccount" validate:"max=64"`
}

type EmployeeFilter struct {
	DepartmentID string
	Category     string
	Status       string
	Query        string
	SupervisorID string
	OnlyID       string
	Limit        int
	Offset       int
}

type Campus struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Faculty struct {
	ID        string    `json:"id"`
	CampusID  *string   `json:"campusId,omitempty"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Department struct {
	ID             string    `json:"id"`
	FacultyID      *string   `json:"facultyId,omitempty"`
	ParentID       *string   `json:"parentId,omitempty"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	HeadEmployeeID *string   `json:"headEmployeeId,omitempty"`
	IsActive       bool      `json:"isActive"`
	EmployeeCount  int       `json:"employeeCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

type DepartmentInput struct {
	FacultyID      *string `json:"facultyId" validate:"omitempty,uuid"`
	ParentID       *string `json:"parentId" validate:"omitempty,uuid"`
	Code           string  `json:"code" validate:"required,max=32"`
	Name           string  `json:"name" validate:"notblank,max=150"`
	HeadEmployeeID *string `json:"headEmployeeId" validate:"omitempty,uuid"`
	IsActive       *bool   `json:"isActive"`
}

type OrgUnitInput struct {
	ParentID *string `json:"parentId" validate:"omitempty,uuid"`
	Code     string  `json:"code" validate:"required,max=32"`
	Name     string  `json:"name" validate:"notblank,max=150"`
}

type JobGrade struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	MinSalary string    `json:"minSalary"`
	MaxSalary string    `json:"maxSalary"`
	CreatedAt time.Time `json:"createdAt"`
}

type JobGradeInput struct {
	Code      string `json:"code" validate:"required,max=32"`
	Name      string `json:"name" validate:"notblank,max=100"`
	Level     int    `json:"level" validate:"gte=1"`
	MinSalary string `json:"minSalary" validate:"required,numeric"`
	MaxSalary string `json:"maxSalary" validate:"required,numeric"`
}

type JobTitle struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	JobGradeID *string   `json:"jobGradeId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type JobTitleInput struct {
	Code       string  `json:"code" validate:"required,max=32"`
	Name       string  `json:"name" validate:"notblank,max=100"`
	JobGradeID *string `json:"jobGradeId" validate:"omitempty,uuid"`
}

type Address struct {
	ID          string `json:"id,omitempty"`
	AddressType string `json:"addressType" validate:"required,oneof=residential postal permanent"`
	Country     string `json:"country" validate:"max=100"`
	County      string `json:"county" validate:"max=100"`
	SubCounty   string `json:"subCounty" validate:"max=100"`
	Village     string `json:"village" validate:"max=100"`
	Street      string `json:"street" validate:"max=200"`
	PostalCode  string `json:"postalCode" validate:"max=20"`
	IsPrimary   bool   `json:"isPrimary"`
}

type EmergencyContact struct {
	ID           string `json:"id,omitempty"`
	FullName     string `json:"fullName" validate:"notblank,max=150"`
	Relationship string `json:"relationship" validate:"notblank,max=50"`
	Phone        string `json:"phone" validate:"required,max=40"`
	Email        string `json:"email" validate:"omitempty,email"`
	IsPrimary    bool   `json:"isPrimary"`
}

type Profile struct {
	Employee          Employee           `json:"employee"`
	Addresses         []Address          `json:"addresses"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts"`
	JobGrade          *JobGrade          `json:"jobGrade,omitempty"`
	JobTitle          *JobTitle          `json:"jobTitle,omitempty"`
	Department        *Department        `json:"department,omitempty"`
	Supervisor        *EmployeeRef       `json:"supervisor,omitempty"`
}

type EmployeeRef struct {
	ID         string `json:"id"`
	EmployeeNo string `json:"employeeNo"`
	Name       string `json:"name"`
}

type DepartmentCount struct {
	DepartmentID string `json:"departmentId"`
	Name         string `json:"name"`
	Count        int    `json:"count"`
}

type Statistics struct {
	Total          int               `json:"total"`
	Active         int               `json:"active"`
	ByCategory     map[string]int    `json:"byCategory"`
	ByStatus       map[string]int    `json:"byStatus"`
	TopDepartments []DepartmentCount `json:"topDepartments"`
}
