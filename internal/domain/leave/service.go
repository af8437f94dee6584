package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"schoolerp/internal/domain/audit"
	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/notifications"
	"schoolerp/internal/platform/events"
	"schoolerp/internal/platform/metrics"
	"schoolerp/internal/platform/querier"
)

type StoreAPI interface {
	InTx(ctx context.Context, fn func(q querier.Querier) error) error
	Pool() querier.Querier
	ListTypes(ctx context.Context, activeOnly bool) ([]LeaveType, error)
	GetType(ctx context.Context, q querier.Querier, id string) (LeaveType, error)
	CreateType(ctx context.Context, in TypeInput) (string, error)
	ListPolicies(ctx context.Context) ([]Policy, error)
	PolicyFor(ctx context.Context, q querier.Querier, leaveTypeID, category string) (Policy, error)
	UpsertPolicy(ctx context.Context, in PolicyInput, from time.Time) (string, error)
	HolidaySet(ctx context.Context, q querier.Querier, from, to time.Time) (map[string]bool, error)
	ListHolidays(ctx context.Context, year int) ([]Holiday, error)
	UpsertHoliday(ctx context.Context, day time.Time, name string) error
	DeleteHoliday(ctx context.Context, day time.Time) error
	ListBlackouts(ctx context.Context) ([]Blackout, error)
	ActiveBlackouts(ctx context.Context, q querier.Querier, category string, from, to time.Time) ([]Blackout, error)
	CreateBlackout(ctx context.Context, in BlackoutInput, from, to time.Time) (string, error)
	Employee(ctx context.Context, q querier.Querier, employeeID string) (EmployeeInfo, error)
	DirectReports(ctx context.Context, supervisorEmployeeID string) ([]string, error)
	ListBalances(ctx context.Context, employeeID string, year int) ([]Balance, error)
	BalancesForYear(ctx context.Context, q querier.Querier, year int) ([]Balance, error)
	GetBalance(ctx context.Context, id string) (Balance, error)
	LockBalance(ctx context.Context, q querier.Querier, employeeID, leaveTypeID string, year int) (Balance, error)
	LockBalanceByID(ctx context.Context, q querier.Querier, id string) (Balance, error)
	SaveBalance(ctx context.Context, q querier.Querier, b Balance) error
	GetApplication(ctx context.Context, id string) (Application, error)
	LockApplication(ctx context.Context, q querier.Querier, id string) (Application, error)
	CreateApplication(ctx context.Context, app Application) (string, error)
	SaveApplicationStatus(ctx context.Context, q querier.Querier, app Application) error
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]Application, error)
	OverlappingApplications(ctx context.Context, employeeID string, from, to time.Time) (int, error)
	Steps(ctx context.Context, q querier.Querier, applicationID string) ([]ApprovalStep, error)
	ReplaceSteps(ctx context.Context, q querier.Querier, applicationID string, steps []ApprovalStep) error
	DecideStep(ctx context.Context, q querier.Querier, stepID, status, userID, comments string) error
	AccrualCandidates(ctx context.Context, asOf time.Time) ([]AccrualCandidate, error)
	ActiveBasicSalary(ctx context.Context, q querier.Querier, employeeID string, on time.Time) (decimal.Decimal, error)
	CreateEncashment(ctx context.Context, q querier.Querier, e Encashment) (string, error)
	GetEncashment(ctx context.Context, id string) (Encashment, error)
	LockEncashment(ctx context.Context, q querier.Querier, id string) (Encashment, error)
	SetEncashmentStatus(ctx context.Context, q querier.Querier, id, status, userID string) error
	ListEncashments(ctx context.Context, employeeID, status string) ([]Encashment, error)
}

type Service struct {
	Store         StoreAPI
	Audit         *audit.Service
	Outbox        *events.Outbox
	Notifications *notifications.Service
	Metrics       *metrics.Collector
	Now           func() time.Time
}

func NewService(store StoreAPI, auditSvc *audit.Service, outbox *events.Outbox, notifier *notifications.Service, collector *metrics.Collector) *Service {
	return &Service{
		Store:         store,
		Audit:         auditSvc,
		Outbox:        outbox,
		Notifications: notifier,
		Metrics:       collector,
		Now:           time.Now,
	}
}

// DecisionEvent is the payload published when an application leaves the
// approval queue.
type DecisionEvent struct {
	ApplicationID string          `json:"applicationId"`
	EmployeeID    string          `json:"employeeId"`
	LeaveTypeID   string          `json:"leaveTypeId"`
	Status        string          `json:"status"`
	StartDate     string          `json:"startDate"`
	EndDate       string          `json:"endDate"`
	WorkingDays   decimal.Decimal `json:"workingDays"`
	DecidedBy     string          `json:"decidedBy"`
}

func isLeaveAdmin(user auth.UserContext) bool {
	return user.RoleName == auth.RoleSystemAdmin || user.RoleName == auth.RoleHRManager
}

func parseDay(value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidInput, value)
	}
	return t, nil
}

func (s *Service) today() time.Time {
	return truncate(s.Now())
}

func (s *Service) ListTypes(ctx context.Context, activeOnly bool) ([]LeaveType, error) {
	return s.Store.ListTypes(ctx, activeOnly)
}

func (s *Service) CreateType(ctx context.Context, user auth.UserContext, in TypeInput) (LeaveType, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	if in.GenderSpecific == "" {
		in.GenderSpecific = "all"
	}
	if in.AccrualMethod == "" {
		in.AccrualMethod = AccrualMonthly
	}
	id, err := s.Store.CreateType(ctx, in)
	if err != nil {
		return LeaveType{}, err
	}
	t, err := s.Store.GetType(ctx, s.Store.Pool(), id)
	if err != nil {
		return LeaveType{}, err
	}
	s.record(ctx, user, "leave.type.create", "leave_type", id, nil, t)
	return t, nil
}

func (s *Service) ListPolicies(ctx context.Context) ([]Policy, error) {
	return s.Store.ListPolicies(ctx)
}

func (s *Service) SavePolicy(ctx context.Context, user auth.UserContext, in PolicyInput) (string, error) {
	from, err := parseDay(in.EffectiveFrom)
	if err != nil {
		return "", err
	}
	if in.MaxConsecutiveDays.IsPositive() && in.MinDaysPerApplication.GreaterThan(in.MaxConsecutiveDays) {
		return "", fmt.Errorf("%w: minimum days exceed maximum consecutive days", ErrInvalidInput)
	}
	if _, err := s.Store.GetType(ctx, s.Store.Pool(), in.LeaveTypeID); err != nil {
		return "", err
	}
	id, err := s.Store.UpsertPolicy(ctx, in, from)
	if err != nil {
		return "", err
	}
	s.record(ctx, user, "leave.policy.save", "leave_policy", id, nil, in)
	return id, nil
}

func (s *Service) ListHolidays(ctx context.Context, year int) ([]Holiday, error) {
	if year == 0 {
		year = s.Now().Year()
	}
	return s.Store.ListHolidays(ctx, year)
}

func (s *Service) AddHoliday(ctx context.Context, user auth.UserContext, in HolidayInput) error {
	day, err := parseDay(in.Date)
	if err != nil {
		return err
	}
	if err := s.Store.UpsertHoliday(ctx, day, strings.TrimSpace(in.Name)); err != nil {
		return err
	}
	s.record(ctx, user, "leave.holiday.save", "public_holiday", dayKey(day), nil, in)
	return nil
}

func (s *Service) RemoveHoliday(ctx context.Context, user auth.UserContext, date string) error {
	day, err := parseDay(date)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteHoliday(ctx, day); err != nil {
		return err
	}
	s.record(ctx, user, "leave.holiday.delete", "public_holiday", dayKey(day), nil, nil)
	return nil
}

func (s *Service) ListBlackouts(ctx context.Context) ([]Blackout, error) {
	return s.Store.ListBlackouts(ctx)
}

func (s *Service) CreateBlackout(ctx context.Context, user auth.UserContext, in BlackoutInput) (string, error) {
	from, err := parseDay(in.StartDate)
	if err != nil {
		return "", err
	}
	to, err := parseDay(in.EndDate)
	if err != nil {
		return "", err
	}
	if to.Before(from) {
		return "", fmt.Errorf("%w: end date before start date", ErrInvalidInput)
	}
	id, err := s.Store.CreateBlackout(ctx, in, from, to)
	if err != nil {
		return "", err
	}
	s.record(ctx, user, "leave.blackout.create", "leave_blackout", id, nil, in)
	return id, nil
}

// canAccess reports whether user may read leave data of the employee: their
// own, their direct reports', or anyone's for all-scope roles.
func canAccess(user auth.UserContext, info EmployeeInfo) bool {
	switch auth.ScopeFor(user.RoleName) {
	case auth.ScopeAll:
		return true
	case auth.ScopeTeam:
		if info.SupervisorUserID != nil && *info.SupervisorUserID == user.UserID {
			return true
		}
	}
	return user.EmployeeID != "" && user.EmployeeID == info.ID
}

// canActFor is the narrower rule for filing and cancelling: the employee
// themselves or an all-scope role.
func canActFor(user auth.UserContext, employeeID string) bool {
	return auth.ScopeFor(user.RoleName) == auth.ScopeAll || (user.EmployeeID != "" && user.EmployeeID == employeeID)
}

func (s *Service) CreateApplication(ctx context.Context, user auth.UserContext, in ApplicationInput) (Application, error) {
	employeeID := in.EmployeeID
	if employeeID == "" {
		employeeID = user.EmployeeID
	}
	if employeeID == "" {
		return Application{}, fmt.Errorf("%w: employeeId is required", ErrInvalidInput)
	}
	if !canActFor(user, employeeID) {
		return Application{}, ErrForbidden
	}
	start, err := parseDay(in.StartDate)
	if err != nil {
		return Application{}, err
	}
	end, err := parseDay(in.EndDate)
	if err != nil {
		return Application{}, err
	}

	pool := s.Store.Pool()
	info, err := s.Store.Employee(ctx, pool, employeeID)
	if err != nil {
		return Application{}, err
	}
	if info.Status == "terminated" || info.Status == "suspended" {
		return Application{}, fmt.Errorf("%w: employee is %s", ErrInvalidInput, info.Status)
	}
	lt, err := s.Store.GetType(ctx, pool, in.LeaveTypeID)
	if err != nil {
		return Application{}, err
	}
	if !lt.IsActive {
		return Application{}, fmt.Errorf("%w: leave type is inactive", ErrInvalidInput)
	}
	if lt.GenderSpecific != "" && lt.GenderSpecific != "all" && lt.GenderSpecific != info.Gender {
		return Application{}, ErrGenderRestricted
	}
	if lt.AdvanceNoticeDays > 0 && start.Before(s.today().AddDate(0, 0, lt.AdvanceNoticeDays)) {
		return Application{}, fmt.Errorf("%w: %d days required", ErrAdvanceNotice, lt.AdvanceNoticeDays)
	}

	holidays, err := s.Store.HolidaySet(ctx, pool, start, end)
	if err != nil {
		return Application{}, err
	}
	total, working, err := CountDays(start, end, in.StartHalfDay, in.EndHalfDay, holidays)
	if err != nil {
		return Application{}, err
	}
	if !working.IsPositive() {
		return Application{}, ErrNoWorkingDays
	}

	policy, err := s.Store.PolicyFor(ctx, pool, lt.ID, info.Category)
	hasPolicy := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Application{}, err
	}
	if hasPolicy {
		if policy.MaxConsecutiveDays.IsPositive() && working.GreaterThan(policy.MaxConsecutiveDays) {
			return Application{}, fmt.Errorf("%w: limit %s", ErrTooManyDays, policy.MaxConsecutiveDays.String())
		}
		if policy.MinDaysPerApplication.IsPositive() && working.LessThan(policy.MinDaysPerApplication) {
			return Application{}, fmt.Errorf("%w: minimum %s", ErrTooFewDays, policy.MinDaysPerApplication.String())
		}
	}
	if !hasPolicy || policy.BlackoutApplies {
		blackouts, err := s.Store.ActiveBlackouts(ctx, pool, info.Category, start, end)
		if err != nil {
			return Application{}, err
		}
		for _, b := range blackouts {
			if overlaps(start, end, b.StartDate, b.EndDate) {
				return Application{}, fmt.Errorf("%w: %s", ErrBlackout, b.Name)
			}
		}
	}
	n, err := s.Store.OverlappingApplications(ctx, employeeID, start, end)
	if err != nil {
		return Application{}, err
	}
	if n > 0 {
		return Application{}, fmt.Errorf("%w: overlaps an existing application", ErrConflict)
	}

	app := Application{
		EmployeeID:       employeeID,
		LeaveTypeID:      lt.ID,
		StartDate:        start,
		EndDate:          end,
		StartHalfDay:     in.StartHalfDay,
		EndHalfDay:       in.EndHalfDay,
		TotalDays:        total,
		WorkingDays:      working,
		Reason:           strings.TrimSpace(in.Reason),
		ReturnDate:       ReturnDate(end, holidays),
		ActingEmployeeID: in.ActingEmployeeID,
		EmergencyPhone:   strings.TrimSpace(in.EmergencyPhone),
		Status:           StatusDraft,
	}
	if user.UserID != "" {
		app.CreatedBy = &user.UserID
	}
	id, err := s.Store.CreateApplication(ctx, app)
	if err != nil {
		return Application{}, err
	}
	created, err := s.Store.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	s.record(ctx, user, "leave.application.create", "leave_application", id, nil, created)
	return created, nil
}

func (s *Service) GetApplication(ctx context.Context, user auth.UserContext, id string) (ApplicationDetail, error) {
	app, err := s.Store.GetApplication(ctx, id)
	if err != nil {
		return ApplicationDetail{}, err
	}
	pool := s.Store.Pool()
	info, err := s.Store.Employee(ctx, pool, app.EmployeeID)
	if err != nil {
		return ApplicationDetail{}, err
	}
	isApprover := app.CurrentApproverID != nil && *app.CurrentApproverID == user.UserID
	if !canAccess(user, info) && !isApprover {
		return ApplicationDetail{}, ErrForbidden
	}
	steps, err := s.Store.Steps(ctx, pool, id)
	if err != nil {
		return ApplicationDetail{}, err
	}
	return ApplicationDetail{Application: app, Steps: steps}, nil
}

func (s *Service) ListApplications(ctx context.Context, user auth.UserContext, filter ApplicationFilter) ([]Application, error) {
	switch auth.ScopeFor(user.RoleName) {
	case auth.ScopeAll:
	case auth.ScopeTeam:
		ids, err := s.Store.DirectReports(ctx, user.EmployeeID)
		if err != nil {
			return nil, err
		}
		if user.EmployeeID != "" {
			ids = append(ids, user.EmployeeID)
		}
		if filter.EmployeeID != "" && !slices.Contains(ids, filter.EmployeeID) {
			return nil, ErrForbidden
		}
		if len(ids) == 0 {
			return []Application{}, nil
		}
		filter.EmployeeIDs = ids
	default:
		if user.EmployeeID == "" {
			return []Application{}, nil
		}
		if filter.EmployeeID != "" && filter.EmployeeID != user.EmployeeID {
			return nil, ErrForbidden
		}
		filter.EmployeeID = user.EmployeeID
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	return s.Store.ListApplications(ctx, filter)
}

// PendingApprovals lists applications waiting on the caller. HR managers
// and administrators see the whole queue.
func (s *Service) PendingApprovals(ctx context.Context, user auth.UserContext) ([]Application, error) {
	filter := ApplicationFilter{ApproverID: user.UserID, Limit: 200}
	if isLeaveAdmin(user) {
		filter.ApproverID = ""
		filter.AwaitingHR = true
	}
	return s.Store.ListApplications(ctx, filter)
}

// approvalSteps plans the chain for a submitted application: the
// supervisor's account when one exists and is not the applicant, then HR.
func approvalSteps(info EmployeeInfo) []ApprovalStep {
	steps := []ApprovalStep{}
	if sup := info.SupervisorUserID; sup != nil && (info.UserID == nil || *info.UserID != *sup) {
		steps = append(steps, ApprovalStep{Level: 1, ApproverRole: StepSupervisor, ApproverID: sup, Status: StepPending})
	}
	steps = append(steps, ApprovalStep{Level: len(steps) + 1, ApproverRole: StepHR, Status: StepPending})
	return steps
}

func (s *Service) Submit(ctx context.Context, user auth.UserContext, id string) (Application, error) {
	var app Application
	var info EmployeeInfo
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		var err error
		app, err = s.Store.LockApplication(ctx, q, id)
		if err != nil {
			return err
		}
		if !canActFor(user, app.EmployeeID) {
			return ErrForbidden
		}
		if app.Status != StatusDraft {
			return fmt.Errorf("%w: cannot submit from %s", ErrInvalidTransition, app.Status)
		}
		info, err = s.Store.Employee(ctx, q, app.EmployeeID)
		if err != nil {
			return err
		}
		if err := s.reserve(ctx, q, app); err != nil {
			return err
		}

		steps := approvalSteps(info)
		if err := s.Store.ReplaceSteps(ctx, q, app.ID, steps); err != nil {
			return err
		}
		now := s.Now()
		app.SubmittedAt = &now
		app.Status = StatusSubmitted
		if len(steps) > 0 {
			app.Status = StatusPendingApproval
			app.CurrentApproverID = steps[0].ApproverID
		}
		if err := s.Store.SaveApplicationStatus(ctx, q, app); err != nil {
			return err
		}
		return s.Audit.RecordWith(ctx, q, audit.Entry{
			ActorID:    user.UserID,
			Action:     "leave.application.submit",
			EntityType: "leave_application",
			EntityID:   app.ID,
			After:      map[string]any{"status": app.Status, "workingDays": app.WorkingDays},
		})
	})
	if err != nil {
		return Application{}, err
	}
	if app.CurrentApproverID != nil {
		s.Notifications.Notify(ctx, *app.CurrentApproverID, notifications.TypeLeaveSubmitted,
			"Leave request awaiting approval",
			fmt.Sprintf("%s requested %s working days of %s from %s.", info.FullName, app.WorkingDays.String(), app.LeaveTypeName, dayKey(app.StartDate)))
	}
	return app, nil
}

// reserve moves the application's working days into pending on the balance
// of the year the leave starts in.
func (s *Service) reserve(ctx context.Context, q querier.Querier, app Application) error {
	return s.mutateBalance(ctx, q, app, func(b *Balance) error {
		return ApplySubmit(b, app.WorkingDays)
	})
}

// mutateBalance locks the balance the application draws on and saves the
// result of fn. Unpaid leave types carry no balance.
func (s *Service) mutateBalance(ctx context.Context, q querier.Querier, app Application, fn func(b *Balance) error) error {
	lt, err := s.Store.GetType(ctx, q, app.LeaveTypeID)
	if err != nil {
		return err
	}
	if lt.Category == CategoryUnpaid {
		return nil
	}
	b, err := s.Store.LockBalance(ctx, q, app.EmployeeID, app.LeaveTypeID, app.StartDate.Year())
	if err != nil {
		return err
	}
	if err := fn(&b); err != nil {
		return err
	}
	return s.Store.SaveBalance(ctx, q, b)
}

func currentStep(steps []ApprovalStep) (ApprovalStep, int, bool) {
	for i, st := range steps {
		if st.Status == StepPending {
			return st, i, true
		}
	}
	return ApprovalStep{}, -1, false
}

func canDecideStep(user auth.UserContext, step ApprovalStep) bool {
	if isLeaveAdmin(user) {
		return true
	}
	return step.ApproverID != nil && *step.ApproverID == user.UserID
}

// decide runs the shared part of approve and reject: lock, transition
// check, self-approval and approver check. It returns the locked
// application and its steps.
func (s *Service) decide(ctx context.Context, q querier.Querier, user auth.UserContext, id string) (Application, []ApprovalStep, error) {
	app, err := s.Store.LockApplication(ctx, q, id)
	if err != nil {
		return Application{}, nil, err
	}
	if !canDecide(app.Status) {
		return Application{}, nil, fmt.Errorf("%w: application is %s", ErrInvalidTransition, app.Status)
	}
	if user.EmployeeID != "" && user.EmployeeID == app.EmployeeID {
		return Application{}, nil, fmt.Errorf("%w: cannot decide your own application", ErrForbidden)
	}
	steps, err := s.Store.Steps(ctx, q, app.ID)
	if err != nil {
		return Application{}, nil, err
	}
	if step, _, ok := currentStep(steps); ok {
		if !canDecideStep(user, step) {
			return Application{}, nil, ErrNotApprover
		}
	} else if !isLeaveAdmin(user) {
		return Application{}, nil, ErrNotApprover
	}
	return app, steps, nil
}

func (s *Service) Approve(ctx context.Context, user auth.UserContext, id string, in DecisionInput) (Application, error) {
	var app Application
	final := false
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		var steps []ApprovalStep
		var err error
		app, steps, err = s.decide(ctx, q, user, id)
		if err != nil {
			return err
		}
		step, idx, ok := currentStep(steps)
		if ok {
			if err := s.Store.DecideStep(ctx, q, step.ID, StepApproved, user.UserID, in.Comments); err != nil {
				return err
			}
			if next, _, more := currentStep(steps[idx+1:]); more {
				app.Status = StatusPendingApproval
				app.CurrentApproverID = next.ApproverID
				if err := s.Store.SaveApplicationStatus(ctx, q, app); err != nil {
					return err
				}
				return s.Audit.RecordWith(ctx, q, audit.Entry{
					ActorID:    user.UserID,
					Action:     "leave.application.step_approve",
					EntityType: "leave_application",
					EntityID:   app.ID,
					After:      map[string]any{"level": step.Level, "comments": in.Comments},
				})
			}
		}

		final = true
		if err := s.mutateBalance(ctx, q, app, func(b *Balance) error {
			ApplyApprove(b, app.WorkingDays)
			return nil
		}); err != nil {
			return err
		}
		now := s.Now()
		app.Status = StatusApproved
		app.ApprovedAt = &now
		app.CurrentApproverID = nil
		if err := s.Store.SaveApplicationStatus(ctx, q, app); err != nil {
			return err
		}
		if err := s.publishDecision(ctx, q, user, app); err != nil {
			return err
		}
		return s.Audit.RecordWith(ctx, q, audit.Entry{
			ActorID:    user.UserID,
			Action:     "leave.application.approve",
			EntityType: "leave_application",
			EntityID:   app.ID,
			After:      map[string]any{"status": app.Status, "comments": in.Comments},
		})
	})
	if err != nil {
		return Application{}, err
	}
	if final {
		s.Metrics.LeaveDecision()
		s.Notifications.NotifyEmployee(ctx, app.EmployeeID, notifications.TypeLeaveApproved,
			"Leave approved",
			fmt.Sprintf("Your %s from %s to %s was approved.", app.LeaveTypeName, dayKey(app.StartDate), dayKey(app.EndDate)))
	} else if app.CurrentApproverID != nil {
		s.Notifications.Notify(ctx, *app.CurrentApproverID, notifications.TypeLeaveSubmitted,
			"Leave request awaiting approval",
			fmt.Sprintf("%s requested %s working days of %s from %s.", app.EmployeeName, app.WorkingDays.String(), app.LeaveTypeName, dayKey(app.StartDate)))
	}
	return app, nil
}

func (s *Service) Reject(ctx context.Context, user auth.UserContext, id string, in DecisionInput) (Application, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Application{}, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	var app Application
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		var steps []ApprovalStep
		var err error
		app, steps, err = s.decide(ctx, q, user, id)
		if err != nil {
			return err
		}
		if step, _, ok := currentStep(steps); ok {
			if err := s.Store.DecideStep(ctx, q, step.ID, StepRejected, user.UserID, reason); err != nil {
				return err
			}
		}
		if err := s.mutateBalance(ctx, q, app, func(b *Balance) error {
			ApplyReject(b, app.WorkingDays)
			return nil
		}); err != nil {
			return err
		}
		now := s.Now()
		app.Status = StatusRejected
		app.RejectedAt = &now
		app.RejectionReason = reason
		app.CurrentApproverID = nil
		if err := s.Store.SaveApplicationStatus(ctx, q, app); err != nil {
			return err
		}
		if err := s.publishDecision(ctx, q, user, app); err != nil {
			return err
		}
		return s.Audit.RecordWith(ctx, q, audit.Entry{
			ActorID:    user.UserID,
			Action:     "leave.application.reject",
			EntityType: "leave_application",
			EntityID:   app.ID,
			After:      map[string]any{"status": app.Status, "reason": reason},
		})
	})
	if err != nil {
		return Application{}, err
	}
	s.Metrics.LeaveDecision()
	s.Notifications.NotifyEmployee(ctx, app.EmployeeID, notifications.TypeLeaveRejected,
		"Leave rejected",
		fmt.Sprintf("Your %s from %s was rejected: %s", app.LeaveTypeName, dayKey(app.StartDate), reason))
	return app, nil
}

func (s *Service) Cancel(ctx context.Context, user auth.UserContext, id, reason string) (Application, error) {
	var app Application
	var from string
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		var err error
		app, err = s.Store.LockApplication(ctx, q, id)
		if err != nil {
			return err
		}
		if !canActFor(user, app.EmployeeID) {
			return ErrForbidden
		}
		if !canCancel(app.Status, app.StartDate, s.today()) {
			return fmt.Errorf("%w: cannot cancel a %s application", ErrInvalidTransition, app.Status)
		}
		from = app.Status
		if from != StatusDraft {
			if err := s.mutateBalance(ctx, q, app, func(b *Balance) error {
				ApplyCancel(b, app.WorkingDays, from)
				return nil
			}); err != nil {
				return err
			}
		}
		now := s.Now()
		app.Status = StatusCancelled
		app.CancelledAt = &now
		app.CancellationReason = strings.TrimSpace(reason)
		app.CurrentApproverID = nil
		if err := s.Store.SaveApplicationStatus(ctx, q, app); err != nil {
			return err
		}
		if from == StatusApproved {
			if err := s.publishDecision(ctx, q, user, app); err != nil {
				return err
			}
		}
		return s.Audit.RecordWith(ctx, q, audit.Entry{
			ActorID:    user.UserID,
			Action:     "leave.application.cancel",
			EntityType: "leave_application",
			EntityID:   app.ID,
			Before:     map[string]any{"status": from},
			After:      map[string]any{"status": app.Status, "reason": app.CancellationReason},
		})
	})
	if err != nil {
		return Application{}, err
	}
	if user.EmployeeID != app.EmployeeID {
		s.Notifications.NotifyEmployee(ctx, app.EmployeeID, notifications.TypeLeaveCancelled,
			"Leave cancelled",
			fmt.Sprintf("Your %s from %s was cancelled.", app.LeaveTypeName, dayKey(app.StartDate)))
	}
	return app, nil
}

func (s *Service) publishDecision(ctx context.Context, q querier.Querier, user auth.UserContext, app Application) error {
	return s.Outbox.Add(ctx, q, events.TypeLeaveDecided, app.ID, DecisionEvent{
		ApplicationID: app.ID,
		EmployeeID:    app.EmployeeID,
		LeaveTypeID:   app.LeaveTypeID,
		Status:        app.Status,
		StartDate:     dayKey(app.StartDate),
		EndDate:       dayKey(app.EndDate),
		WorkingDays:   app.WorkingDays,
		DecidedBy:     user.UserID,
	})
}

func (s *Service) EmployeeBalances(ctx context.Context, user auth.UserContext, employeeID string, year int) ([]Balance, error) {
	info, err := s.Store.Employee(ctx, s.Store.Pool(), employeeID)
	if err != nil {
		return nil, err
	}
	if !canAccess(user, info) {
		return nil, ErrForbidden
	}
	if year == 0 {
		year = s.Now().Year()
	}
	return s.Store.ListBalances(ctx, employeeID, year)
}

// InitializeBalance sets the opening days of a balance, creating the row
// when needed.
func (s *Service) InitializeBalance(ctx context.Context, user auth.UserContext, in BalanceInput) (Balance, error) {
	if in.Opening.IsNegative() {
		return Balance{}, fmt.Errorf("%w: opening balance must not be negative", ErrInvalidInput)
	}
	var b Balance
	var before Balance
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		if _, err := s.Store.Employee(ctx, q, in.EmployeeID); err != nil {
			return err
		}
		if _, err := s.Store.GetType(ctx, q, in.LeaveTypeID); err != nil {
			return err
		}
		var err error
		b, err = s.Store.LockBalance(ctx, q, in.EmployeeID, in.LeaveTypeID, in.Year)
		if err != nil {
			return err
		}
		before = b
		b.Opening = in.Opening
		b.Recompute()
		if b.Closing.LessThan(b.Pending) {
			return fmt.Errorf("%w: opening balance leaves less than pending days", ErrInsufficientBalance)
		}
		return s.Store.SaveBalance(ctx, q, b)
	})
	if err != nil {
		return Balance{}, err
	}
	s.record(ctx, user, "leave.balance.initialize", "leave_balance", b.ID, before, b)
	return b, nil
}

func (s *Service) AdjustBalance(ctx context.Context, user auth.UserContext, balanceID string, in AdjustInput) (Balance, error) {
	var b Balance
	var before Balance
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		var err error
		b, err = s.Store.LockBalanceByID(ctx, q, balanceID)
		if err != nil {
			return err
		}
		before = b
		if err := ApplyAdjustment(&b, in.Days); err != nil {
			return err
		}
		return s.Store.SaveBalance(ctx, q, b)
	})
	if err != nil {
		return Balance{}, err
	}
	s.record(ctx, user, "leave.balance.adjust", "leave_balance", b.ID, before,
		map[string]any{"balance": b, "days": in.Days, "reason": in.Reason})
	return b, nil
}

// AccrueMonthly credits every due accrual as of asOf. Each employee and
// type pair commits separately so one failure does not undo the rest.
func (s *Service) AccrueMonthly(ctx context.Context, asOf time.Time) (AccrualSummary, error) {
	asOf = truncate(asOf)
	summary := AccrualSummary{AsOf: dayKey(asOf)}
	candidates, err := s.Store.AccrualCandidates(ctx, asOf)
	if err != nil {
		return summary, err
	}
	for _, c := range candidates {
		credited := false
		err := s.Store.InTx(ctx, func(q querier.Querier) error {
			b, err := s.Store.LockBalance(ctx, q, c.EmployeeID, c.LeaveTypeID, asOf.Year())
			if err != nil {
				return err
			}
			if !ApplyAccrual(&b, c, asOf) {
				return nil
			}
			credited = true
			return s.Store.SaveBalance(ctx, q, b)
		})
		if err != nil {
			return summary, fmt.Errorf("accrue employee %s type %s: %w", c.EmployeeID, c.LeaveTypeID, err)
		}
		if credited {
			summary.Credited++
		} else {
			summary.Skipped++
		}
	}
	slog.Info("leave accrual completed", "asOf", summary.AsOf, "credited", summary.Credited, "skipped", summary.Skipped)
	return summary, nil
}

// CarryForward closes a finished year: each balance's unreserved closing days
// move out of fromYear into the next year up to the type's limit and the rest
// is forfeited. Days still pending in fromYear stay reserved there. Running it
// again for the same year only moves days released since the last run.
func (s *Service) CarryForward(ctx context.Context, user auth.UserContext, fromYear int) (CarryForwardSummary, error) {
	summary := CarryForwardSummary{FromYear: fromYear, Carried: decimal.Zero, Forfeited: decimal.Zero}
	if fromYear < 2000 || fromYear >= s.Now().Year() {
		return summary, fmt.Errorf("%w: year %d cannot be closed", ErrInvalidInput, fromYear)
	}
	types, err := s.Store.ListTypes(ctx, false)
	if err != nil {
		return summary, err
	}
	byID := make(map[string]LeaveType, len(types))
	for _, t := range types {
		byID[t.ID] = t
	}
	err = s.Store.InTx(ctx, func(q querier.Querier) error {
		balances, err := s.Store.BalancesForYear(ctx, q, fromYear)
		if err != nil {
			return err
		}
		for _, listed := range balances {
			t, ok := byID[listed.LeaveTypeID]
			if !ok || t.Category == CategoryUnpaid {
				continue
			}
			b, err := s.Store.LockBalanceByID(ctx, q, listed.ID)
			if err != nil {
				return err
			}
			carry, forfeit := CarryForward(b.Available(), t)
			if carry.IsPositive() || forfeit.IsPositive() {
				b.CarriedOut = b.CarriedOut.Add(carry)
				b.Forfeited = b.Forfeited.Add(forfeit)
				b.Recompute()
				if err := s.Store.SaveBalance(ctx, q, b); err != nil {
					return err
				}
			}
			next, err := s.Store.LockBalance(ctx, q, b.EmployeeID, b.LeaveTypeID, fromYear+1)
			if err != nil {
				return err
			}
			next.CarriedForward = b.CarriedOut
			next.Recompute()
			if err := s.Store.SaveBalance(ctx, q, next); err != nil {
				return err
			}
			summary.Balances++
			summary.Carried = summary.Carried.Add(carry)
			summary.Forfeited = summary.Forfeited.Add(forfeit)
		}
		return nil
	})
	if err != nil {
		return summary, err
	}
	s.record(ctx, user, "leave.carry_forward", "leave_balance", fmt.Sprint(fromYear), nil, summary)
	return summary, nil
}

func (s *Service) RequestEncashment(ctx context.Context, user auth.UserContext, in EncashmentInput) (Encashment, error) {
	employeeID := in.EmployeeID
	if employeeID == "" {
		employeeID = user.EmployeeID
	}
	if employeeID == "" || !canActFor(user, employeeID) {
		return Encashment{}, ErrForbidden
	}
	if !in.Days.IsPositive() {
		return Encashment{}, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}
	var id string
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		lt, err := s.Store.GetType(ctx, q, in.LeaveTypeID)
		if err != nil {
			return err
		}
		if !lt.CanBeEncashed {
			return ErrNotEncashable
		}
		b, err := s.Store.LockBalance(ctx, q, employeeID, lt.ID, in.Year)
		if err != nil {
			return err
		}
		if available := b.Available(); available.LessThan(in.Days) {
			return fmt.Errorf("%w: available %s, requested %s", ErrInsufficientBalance, available.StringFixed(2), in.Days.StringFixed(2))
		}
		basic, err := s.Store.ActiveBasicSalary(ctx, q, employeeID, s.today())
		if err != nil {
			return err
		}
		rate := EncashmentRate(basic)
		id, err = s.Store.CreateEncashment(ctx, q, Encashment{
			EmployeeID:  employeeID,
			LeaveTypeID: lt.ID,
			Year:        in.Year,
			Days:        in.Days,
			RatePerDay:  rate,
			TotalAmount: rate.Mul(in.Days).Round(2),
		})
		return err
	})
	if err != nil {
		return Encashment{}, err
	}
	e, err := s.Store.GetEncashment(ctx, id)
	if err != nil {
		return Encashment{}, err
	}
	s.record(ctx, user, "leave.encashment.request", "leave_encashment", id, nil, e)
	return e, nil
}

// DecideEncashment approves or rejects a requested encashment. Approval
// deducts the days from the balance under lock, rechecking availability.
func (s *Service) DecideEncashment(ctx context.Context, user auth.UserContext, id string, approve bool) (Encashment, error) {
	status := EncashRejected
	if approve {
		status = EncashApproved
	}
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		e, err := s.Store.LockEncashment(ctx, q, id)
		if err != nil {
			return err
		}
		if e.Status != EncashRequested {
			return fmt.Errorf("%w: encashment is %s", ErrInvalidTransition, e.Status)
		}
		if approve {
			b, err := s.Store.LockBalance(ctx, q, e.EmployeeID, e.LeaveTypeID, e.Year)
			if err != nil {
				return err
			}
			if err := ApplyEncash(&b, e.Days); err != nil {
				return err
			}
			if err := s.Store.SaveBalance(ctx, q, b); err != nil {
				return err
			}
		}
		return s.Store.SetEncashmentStatus(ctx, q, id, status, user.UserID)
	})
	if err != nil {
		return Encashment{}, err
	}
	e, err := s.Store.GetEncashment(ctx, id)
	if err != nil {
		return Encashment{}, err
	}
	s.record(ctx, user, "leave.encashment."+status, "leave_encashment", id, nil, e)
	return e, nil
}

func (s *Service) ListEncashments(ctx context.Context, user auth.UserContext, employeeID, status string) ([]Encashment, error) {
	if auth.ScopeFor(user.RoleName) != auth.ScopeAll {
		if user.EmployeeID == "" || (employeeID != "" && employeeID != user.EmployeeID) {
			return nil, ErrForbidden
		}
		employeeID = user.EmployeeID
	}
	return s.Store.ListEncashments(ctx, employeeID, status)
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
