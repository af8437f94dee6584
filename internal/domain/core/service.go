package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"schoolerp/internal/domain/audit"
	"schoolerp/internal/domain/auth"
	"schoolerp/internal/platform/cache"
)

const statisticsCacheKey = "employees:statistics"

type StoreAPI interface {
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, int, error)
	CreateEmployee(ctx context.Context, in EmployeeInput, dates employeeDates) (string, error)
	UpdateEmployee(ctx context.Context, id string, in EmployeeInput, dates employeeDates) error
	DeleteEmployee(ctx context.Context, id string) error
	IsSupervisorOf(ctx context.Context, supervisorID, employeeID string) (bool, error)
	ListAddresses(ctx context.Context, employeeID string) ([]Address, error)
	ReplaceAddresses(ctx context.Context, employeeID string, addresses []Address) error
	ListEmergencyContacts(ctx context.Context, employeeID string) ([]EmergencyContact, error)
	ReplaceEmergencyContacts(ctx context.Context, employeeID string, contacts []EmergencyContact) error
	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, id string) (Department, error)
	CreateDepartment(ctx context.Context, in DepartmentInput) (string, error)
	UpdateDepartment(ctx context.Context, id string, in DepartmentInput) error
	DeleteDepartment(ctx context.Context, id string) error
	ListCampuses(ctx context.Context) ([]Campus, error)
	CreateCampus(ctx context.Context, in OrgUnitInput) (string, error)
	ListFaculties(ctx context.Context) ([]Faculty, error)
	CreateFaculty(ctx context.Context, in OrgUnitInput) (string, error)
	ListJobGrades(ctx context.Context) ([]JobGrade, error)
	GetJobGrade(ctx context.Context, id string) (JobGrade, error)
	UpsertJobGrade(ctx context.Context, id string, in JobGradeInput) (string, error)
	ListJobTitles(ctx context.Context) ([]JobTitle, error)
	GetJobTitle(ctx context.Context, id string) (JobTitle, error)
	CreateJobTitle(ctx context.Context, in JobTitleInput) (string, error)
	Statistics(ctx context.Context) (Statistics, error)
}

type Service struct {
	Store StoreAPI
	Cache *cache.Cache
	Audit *audit.Service
}

func NewService(store StoreAPI, c *cache.Cache, auditSvc *audit.Service) *Service {
	return &Service{Store: store, Cache: c, Audit: auditSvc}
}

type employeeDates struct {
	birth        *time.Time
	hire         time.Time
	confirmation *time.Time
	termination  *time.Time
}

func parseDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidInput, value)
	}
	return &t, nil
}

func normalizeEmployee(in EmployeeInput) (EmployeeInput, employeeDates, error) {
	in.EmployeeNo = strings.ToUpper(strings.TrimSpace(in.EmployeeNo))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.OfficialEmail = strings.ToLower(strings.TrimSpace(in.OfficialEmail))
	in.PersonalEmail = strings.ToLower(strings.TrimSpace(in.PersonalEmail))
	if in.PayrollType == "" {
		in.PayrollType = "monthly"
	}
	if in.Status == "" {
		in.Status = StatusActive
	}

	var dates employeeDates
	var err error
	if dates.birth, err = parseDate(in.DateOfBirth); err != nil {
		return in, dates, err
	}
	hire, err := parseDate(in.HireDate)
	if err != nil {
		return in, dates, err
	}
	if hire == nil {
		return in, dates, fmt.Errorf("%w: hire date is required", ErrInvalidInput)
	}
	dates.hire = *hire
	if dates.confirmation, err = parseDate(in.ConfirmationDate); err != nil {
		return in, dates, err
	}
	if dates.termination, err = parseDate(in.TerminationDate); err != nil {
		return in, dates, err
	}
	if dates.birth != nil && !dates.birth.Before(dates.hire) {
		return in, dates, fmt.Errorf("%w: date of birth must precede hire date", ErrInvalidInput)
	}
	if dates.termination != nil && dates.termination.Before(dates.hire) {
		return in, dates, fmt.Errorf("%w: termination date precedes hire date", ErrInvalidInput)
	}
	if in.Status == StatusTerminated && dates.termination == nil {
		return in, dates, fmt.Errorf("%w: terminated employees need a termination date", ErrInvalidInput)
	}
	return in, dates, nil
}

// CanView reports whether user may read the employee record. Supervisors see
// themselves and their direct reports; other non-HR roles see only themselves.
func (s *Service) CanView(ctx context.Context, user auth.UserContext, employeeID string) (bool, error) {
	switch auth.ScopeFor(user.RoleName) {
	case auth.ScopeAll:
		return true, nil
	case auth.ScopeTeam:
		if user.EmployeeID == "" {
			return false, nil
		}
		if user.EmployeeID == employeeID {
			return true, nil
		}
		return s.Store.IsSupervisorOf(ctx, user.EmployeeID, employeeID)
	default:
		return user.EmployeeID != "" && user.EmployeeID == employeeID, nil
	}
}

func (s *Service) ensureView(ctx context.Context, user auth.UserContext, employeeID string) error {
	ok, err := s.CanView(ctx, user, employeeID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *Service) ListEmployees(ctx context.Context, user auth.UserContext, filter EmployeeFilter) ([]Employee, int, error) {
	switch auth.ScopeFor(user.RoleName) {
	case auth.ScopeAll:
	case auth.ScopeTeam:
		if user.EmployeeID == "" {
			return []Employee{}, 0, nil
		}
		filter.OnlyID = user.EmployeeID
		filter.SupervisorID = user.EmployeeID
	default:
		if user.EmployeeID == "" {
			return []Employee{}, 0, nil
		}
		filter.OnlyID = user.EmployeeID
		filter.SupervisorID = ""
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	items, total, err := s.Store.ListEmployees(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		FilterEmployeeFields(&items[i], user)
	}
	return items, total, nil
}

func (s *Service) GetEmployee(ctx context.Context, user auth.UserContext, id string) (Employee, error) {
	if err := s.ensureView(ctx, user, id); err != nil {
		return Employee{}, err
	}
	emp, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	FilterEmployeeFields(&emp, user)
	return emp, nil
}

func (s *Service) CreateEmployee(ctx context.Context, user auth.UserContext, in EmployeeInput) (Employee, error) {
	in, dates, err := normalizeEmployee(in)
	if err != nil {
		return Employee{}, err
	}
	id, err := s.Store.CreateEmployee(ctx, in, dates)
	if err != nil {
		return Employee{}, err
	}
	emp, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	s.record(ctx, user, "employee.create", "employee", id, nil, map[string]any{"employeeNo": emp.EmployeeNo})
	s.Cache.Invalidate(ctx, statisticsCacheKey)
	return emp, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, user auth.UserContext, id string, in EmployeeInput) (Employee, error) {
	before, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	in, dates, err := normalizeEmployee(in)
	if err != nil {
		return Employee{}, err
	}
	if in.SupervisorID != nil && *in.SupervisorID == id {
		return Employee{}, fmt.Errorf("%w: employee cannot supervise themselves", ErrInvalidInput)
	}
	if err := s.Store.UpdateEmployee(ctx, id, in, dates); err != nil {
		return Employee{}, err
	}
	after, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	s.record(ctx, user, "employee.update", "employee", id,
		map[string]any{"status": before.Status, "departmentId": before.DepartmentID},
		map[string]any{"status": after.Status, "departmentId": after.DepartmentID})
	s.Cache.Invalidate(ctx, statisticsCacheKey)
	return after, nil
}

func (s *Service) DeleteEmployee(ctx context.Context, user auth.UserContext, id string) error {
	if err := s.Store.DeleteEmployee(ctx, id); err != nil {
		return err
	}
	s.record(ctx, user, "employee.delete", "employee", id, nil, nil)
	s.Cache.Invalidate(ctx, statisticsCacheKey)
	return nil
}

func (s *Service) Profile(ctx context.Context, user auth.UserContext, id string) (Profile, error) {
	emp, err := s.GetEmployee(ctx, user, id)
	if err != nil {
		return Profile{}, err
	}
	profile := Profile{Employee: emp}
	if profile.Addresses, err = s.Store.ListAddresses(ctx, id); err != nil {
		return Profile{}, err
	}
	if profile.EmergencyContacts, err = s.Store.ListEmergencyContacts(ctx, id); err != nil {
		return Profile{}, err
	}
	if emp.DepartmentID != nil {
		if dep, err := s.Store.GetDepartment(ctx, *emp.DepartmentID); err == nil {
			profile.Department = &dep
		} else if !errors.Is(err, ErrNotFound) {
			return Profile{}, err
		}
	}
	if emp.JobGradeID != nil {
		if grade, err := s.Store.GetJobGrade(ctx, *emp.JobGradeID); err == nil {
			profile.JobGrade = &grade
		} else if !errors.Is(err, ErrNotFound) {
			return Profile{}, err
		}
	}
	if emp.JobTitleID != nil {
		if title, err := s.Store.GetJobTitle(ctx, *emp.JobTitleID); err == nil {
			profile.JobTitle = &title
		} else if !errors.Is(err, ErrNotFound) {
			return Profile{}, err
		}
	}
	if emp.SupervisorID != nil {
		if sup, err := s.Store.GetEmployee(ctx, *emp.SupervisorID); err == nil {
			profile.Supervisor = &EmployeeRef{ID: sup.ID, EmployeeNo: sup.EmployeeNo, Name: sup.FullName()}
		} else if !errors.Is(err, ErrNotFound) {
			return Profile{}, err
		}
	}
	return profile, nil
}

func (s *Service) ReplaceAddresses(ctx context.Context, user auth.UserContext, employeeID string, addresses []Address) error {
	if err := s.ensureEditable(ctx, user, employeeID); err != nil {
		return err
	}
	if countPrimary(len(addresses), func(i int) bool { return addresses[i].IsPrimary }) > 1 {
		return fmt.Errorf("%w: only one primary address allowed", ErrInvalidInput)
	}
	if err := s.Store.ReplaceAddresses(ctx, employeeID, addresses); err != nil {
		return err
	}
	s.record(ctx, user, "employee.addresses", "employee", employeeID, nil, map[string]any{"count": len(addresses)})
	return nil
}

func (s *Service) ReplaceEmergencyContacts(ctx context.Context, user auth.UserContext, employeeID string, contacts []EmergencyContact) error {
	if err := s.ensureEditable(ctx, user, employeeID); err != nil {
		return err
	}
	if countPrimary(len(contacts), func(i int) bool { return contacts[i].IsPrimary }) > 1 {
		return fmt.Errorf("%w: only one primary contact allowed", ErrInvalidInput)
	}
	if err := s.Store.ReplaceEmergencyContacts(ctx, employeeID, contacts); err != nil {
		return err
	}
	s.record(ctx, user, "employee.contacts", "employee", employeeID, nil, map[string]any{"count": len(contacts)})
	return nil
}

// ensureEditable lets HR edit anyone and everyone else edit only their own
// contact details.
func (s *Service) ensureEditable(ctx context.Context, user auth.UserContext, employeeID string) error {
	if auth.ScopeFor(user.RoleName) == auth.ScopeAll {
		return nil
	}
	if user.EmployeeID != "" && user.EmployeeID == employeeID {
		return nil
	}
	return ErrForbidden
}

func countPrimary(n int, primary func(int) bool) int {
	count := 0
	for i := 0; i < n; i++ {
		if primary(i) {
			count++
		}
	}
	return count
}

func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	return cache.GetOrLoad(ctx, s.Cache, statisticsCacheKey, s.Store.Statistics)
}

func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.Store.ListDepartments(ctx)
}

func (s *Service) GetDepartment(ctx context.Context, id string) (Department, error) {
	return s.Store.GetDepartment(ctx, id)
}

func (s *Service) CreateDepartment(ctx context.Context, user auth.UserContext, in DepartmentInput) (Department, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	id, err := s.Store.CreateDepartment(ctx, in)
	if err != nil {
		return Department{}, err
	}
	s.record(ctx, user, "department.create", "department", id, nil, in)
	s.Cache.Invalidate(ctx, statisticsCacheKey)
	return s.Store.GetDepartment(ctx, id)
}

func (s *Service) UpdateDepartment(ctx context.Context, user auth.UserContext, id string, in DepartmentInput) (Department, error) {
	if in.ParentID != nil && *in.ParentID == id {
		return Department{}, fmt.Errorf("%w: department cannot be its own parent", ErrInvalidInput)
	}
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if err := s.Store.UpdateDepartment(ctx, id, in); err != nil {
		return Department{}, err
	}
	s.record(ctx, user, "department.update", "department", id, nil, in)
	s.Cache.Invalidate(ctx, statisticsCacheKey)
	return s.Store.GetDepartment(ctx, id)
}

func (s *Service) DeleteDepartment(ctx context.Context, user auth.UserContext, id string) error {
	if err := s.Store.DeleteDepartment(ctx, id); err != nil {
		return err
	}
	s.record(ctx, user, "department.delete", "department", id, nil, nil)
	s.Cache.Invalidate(ctx, statisticsCacheKey)
	return nil
}

func (s *Service) ListCampuses(ctx context.Context) ([]Campus, error) {
	return s.Store.ListCampuses(ctx)
}

func (s *Service) CreateCampus(ctx context.Context, user auth.UserContext, in OrgUnitInput) (string, error) {
	id, err := s.Store.CreateCampus(ctx, in)
	if err == nil {
		s.record(ctx, user, "campus.create", "campus", id, nil, in)
	}
	return id, err
}

func (s *Service) ListFaculties(ctx context.Context) ([]Faculty, error) {
	return s.Store.ListFaculties(ctx)
}

func (s *Service) CreateFaculty(ctx context.Context, user auth.UserContext, in OrgUnitInput) (string, error) {
	id, err := s.Store.CreateFaculty(ctx, in)
	if err == nil {
		s.record(ctx, user, "faculty.create", "faculty", id, nil, in)
	}
	return id, err
}

func (s *Service) ListJobGrades(ctx context.Context) ([]JobGrade, error) {
	return s.Store.ListJobGrades(ctx)
}

func (s *Service) SaveJobGrade(ctx context.Context, user auth.UserContext, id string, in JobGradeInput) (JobGrade, error) {
	if err := validateSalaryRange(in.MinSalary, in.MaxSalary); err != nil {
		return JobGrade{}, err
	}
	savedID, err := s.Store.UpsertJobGrade(ctx, id, in)
	if err != nil {
		return JobGrade{}, err
	}
	action := "job_grade.update"
	if id == "" {
		action = "job_grade.create"
	}
	s.record(ctx, user, action, "job_grade", savedID, nil, in)
	return s.Store.GetJobGrade(ctx, savedID)
}

func (s *Service) ListJobTitles(ctx context.Context) ([]JobTitle, error) {
	return s.Store.ListJobTitles(ctx)
}

func (s *Service) CreateJobTitle(ctx context.Context, user auth.UserContext, in JobTitleInput) (JobTitle, error) {
	id, err := s.Store.CreateJobTitle(ctx, in)
	if err != nil {
		return JobTitle{}, err
	}
	s.record(ctx, user, "job_title.create", "job_title", id, nil, in)
	return s.Store.GetJobTitle(ctx, id)
}

func (s *Service) record(ctx context.Context, user auth.UserContext, action, entityType, entityID string, before, after any) {
	if err := s.Audit.Record(ctx, audit.Entry{
		ActorID:    user.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		After:      after,
	}); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
