package leave

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/platform/querier"
)

type fakeStore struct {
	StoreAPI
	types       map[string]LeaveType
	employees   map[string]EmployeeInfo
	balances    map[string]Balance
	apps        map[string]Application
	steps       map[string][]ApprovalStep
	encashments map[string]Encashment
	candidates  []AccrualCandidate
	basic       decimal.Decimal
	seq         int
}

func strptr(s string) *string { return &s }

func newFakeStore() *fakeStore {
	return &fakeStore{
		types: map[string]LeaveType{
			"annual": {ID: "annual", Name: "Annual", Category: CategoryPaid, GenderSpecific: "all", IsActive: true,
				CanCarryForward: true, MaxCarryForwardDays: dec("5"), CanBeEncashed: true},
			"maternity": {ID: "maternity", Name: "Maternity", Category: CategoryPaid, GenderSpecific: "female", IsActive: true},
			"unpaid":    {ID: "unpaid", Name: "Unpaid", Category: CategoryUnpaid, GenderSpecific: "all", IsActive: true},
			"study":     {ID: "study", Name: "Study", Category: CategoryPaid, GenderSpecific: "all", AdvanceNoticeDays: 14, IsActive: true},
		},
		employees: map[string]EmployeeInfo{
			"e1": {ID: "e1", Gender: "male", Category: "teaching", Status: "active", UserID: strptr("u1"), SupervisorUserID: strptr("u2"), FullName: "Ama Mensah"},
			"e2": {ID: "e2", Gender: "female", Category: "teaching", Status: "active", UserID: strptr("u2")},
		},
		balances:    map[string]Balance{},
		apps:        map[string]Application{},
		steps:       map[string][]ApprovalStep{},
		encashments: map[string]Encashment{},
		basic:       dec("2200"),
	}
}

func (f *fakeStore) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func balanceKey(employeeID, typeID string, year int) string {
	return fmt.Sprintf("%s|%s|%d", employeeID, typeID, year)
}

func (f *fakeStore) setBalance(employeeID, typeID string, year int, opening string) {
	b := Balance{ID: f.next("bal"), EmployeeID: employeeID, LeaveTypeID: typeID, Year: year, Opening: dec(opening)}
	b.Recompute()
	f.balances[balanceKey(employeeID, typeID, year)] = b
}

func (f *fakeStore) balance(employeeID, typeID string, year int) Balance {
	return f.balances[balanceKey(employeeID, typeID, year)]
}

func (f *fakeStore) InTx(_ context.Context, fn func(q querier.Querier) error) error {
	return fn(nil)
}

func (f *fakeStore) Pool() querier.Querier { return nil }

func (f *fakeStore) ListTypes(context.Context, bool) ([]LeaveType, error) {
	out := make([]LeaveType, 0, len(f.types))
	for _, t := range f.types {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) GetType(_ context.Context, _ querier.Querier, id string) (LeaveType, error) {
	t, ok := f.types[id]
	if !ok {
		return LeaveType{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) PolicyFor(context.Context, querier.Querier, string, string) (Policy, error) {
	return Policy{}, ErrNotFound
}

func (f *fakeStore) HolidaySet(context.Context, querier.Querier, time.Time, time.Time) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (f *fakeStore) ActiveBlackouts(context.Context, querier.Querier, string, time.Time, time.Time) ([]Blackout, error) {
	return nil, nil
}

func (f *fakeStore) OverlappingApplications(context.Context, string, time.Time, time.Time) (int, error) {
	return 0, nil
}

func (f *fakeStore) Employee(_ context.Context, _ querier.Querier, id string) (EmployeeInfo, error) {
	info, ok := f.employees[id]
	if !ok {
		return EmployeeInfo{}, ErrNotFound
	}
	return info, nil
}

func (f *fakeStore) LockBalance(_ context.Context, _ querier.Querier, employeeID, typeID string, year int) (Balance, error) {
	key := balanceKey(employeeID, typeID, year)
	b, ok := f.balances[key]
	if !ok {
		b = Balance{ID: f.next("bal"), EmployeeID: employeeID, LeaveTypeID: typeID, Year: year}
		f.balances[key] = b
	}
	return b, nil
}

func (f *fakeStore) LockBalanceByID(_ context.Context, _ querier.Querier, id string) (Balance, error) {
	for _, b := range f.balances {
		if b.ID == id {
			return b, nil
		}
	}
	return Balance{}, ErrNotFound
}

func (f *fakeStore) SaveBalance(_ context.Context, _ querier.Querier, b Balance) error {
	f.balances[balanceKey(b.EmployeeID, b.LeaveTypeID, b.Year)] = b
	return nil
}

func (f *fakeStore) BalancesForYear(_ context.Context, _ querier.Querier, year int) ([]Balance, error) {
	var out []Balance
	for _, b := range f.balances {
		if b.Year == year {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateApplication(_ context.Context, app Application) (string, error) {
	app.ID = f.next("app")
	app.LeaveTypeName = f.types[app.LeaveTypeID].Name
	f.apps[app.ID] = app
	return app.ID, nil
}

func (f *fakeStore) GetApplication(_ context.Context, id string) (Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	return app, nil
}

func (f *fakeStore) LockApplication(ctx context.Context, _ querier.Querier, id string) (Application, error) {
	return f.GetApplication(ctx, id)
}

func (f *fakeStore) SaveApplicationStatus(_ context.Context, _ querier.Querier, app Application) error {
	f.apps[app.ID] = app
	return nil
}

func (f *fakeStore) Steps(_ context.Context, _ querier.Querier, id string) ([]ApprovalStep, error) {
	return append([]ApprovalStep(nil), f.steps[id]...), nil
}

func (f *fakeStore) ReplaceSteps(_ context.Context, _ querier.Querier, id string, steps []ApprovalStep) error {
	f.steps[id] = nil
	for _, st := range steps {
		st.ID = f.next("step")
		st.ApplicationID = id
		f.steps[id] = append(f.steps[id], st)
	}
	return nil
}

func (f *fakeStore) DecideStep(_ context.Context, _ querier.Querier, stepID, status, userID, comments string) error {
	for appID, steps := range f.steps {
		for i := range steps {
			if steps[i].ID == stepID {
				steps[i].Status = status
				steps[i].DecidedBy = &userID
				steps[i].Comments = comments
				f.steps[appID] = steps
				return nil
			}
		}
	}
	return ErrNotFound
}

func (f *fakeStore) AccrualCandidates(context.Context, time.Time) ([]AccrualCandidate, error) {
	return f.candidates, nil
}

func (f *fakeStore) ActiveBasicSalary(context.Context, querier.Querier, string, time.Time) (decimal.Decimal, error) {
	if f.basic.IsZero() {
		return decimal.Zero, ErrNoPayProfile
	}
	return f.basic, nil
}

func (f *fakeStore) CreateEncashment(_ context.Context, _ querier.Querier, e Encashment) (string, error) {
	e.ID = f.next("enc")
	e.Status = EncashRequested
	f.encashments[e.ID] = e
	return e.ID, nil
}

func (f *fakeStore) GetEncashment(_ context.Context, id string) (Encashment, error) {
	e, ok := f.encashments[id]
	if !ok {
		return Encashment{}, ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) LockEncashment(ctx context.Context, _ querier.Querier, id string) (Encashment, error) {
	return f.GetEncashment(ctx, id)
}

func (f *fakeStore) SetEncashmentStatus(_ context.Context, _ querier.Querier, id, status, userID string) error {
	e := f.encashments[id]
	e.Status = status
	e.ApprovedBy = &userID
	f.encashments[id] = e
	return nil
}

var (
	staff      = auth.UserContext{UserID: "u1", EmployeeID: "e1", RoleName: auth.RoleStaff}
	supervisor = auth.UserContext{UserID: "u2", EmployeeID: "e2", RoleName: auth.RoleSupervisor}
	hr         = auth.UserContext{UserID: "u3", EmployeeID: "e3", RoleName: auth.RoleHRManager}
)

func newTestService(store *fakeStore) *Service {
	svc := NewService(store, nil, nil, nil, nil)
	svc.Now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func draft(t *testing.T, svc *Service, typeID, start, end string) Application {
	t.Helper()
	app, err := svc.CreateApplication(context.Background(), staff, ApplicationInput{
		LeaveTypeID: typeID,
		StartDate:   start,
		EndDate:     end,
		Reason:      "family event",
	})
	require.NoError(t, err)
	return app
}

func TestCreateApplicationCountsWorkingDays(t *testing.T) {
	svc := newTestService(newFakeStore())
	app := draft(t, svc, "annual", "2026-03-02", "2026-03-08")
	assert.Equal(t, StatusDraft, app.Status)
	assert.Equal(t, "e1", app.EmployeeID)
	assert.True(t, app.TotalDays.Equal(dec("7")))
	assert.True(t, app.WorkingDays.Equal(dec("5")))
	assert.Equal(t, day("2026-03-09"), app.ReturnDate)
}

func TestCreateApplicationValidations(t *testing.T) {
	svc := newTestService(newFakeStore())
	ctx := context.Background()

	_, err := svc.CreateApplication(ctx, staff, ApplicationInput{LeaveTypeID: "maternity", StartDate: "2026-03-02", EndDate: "2026-03-03", Reason: "x"})
	assert.ErrorIs(t, err, ErrGenderRestricted)

	_, err = svc.CreateApplication(ctx, staff, ApplicationInput{LeaveTypeID: "study", StartDate: "2026-03-05", EndDate: "2026-03-06", Reason: "x"})
	assert.ErrorIs(t, err, ErrAdvanceNotice)

	_, err = svc.CreateApplication(ctx, staff, ApplicationInput{LeaveTypeID: "annual", StartDate: "2026-03-07", EndDate: "2026-03-08", Reason: "x"})
	assert.ErrorIs(t, err, ErrNoWorkingDays)

	_, err = svc.CreateApplication(ctx, staff, ApplicationInput{EmployeeID: "e2", LeaveTypeID: "annual", StartDate: "2026-03-02", EndDate: "2026-03-03", Reason: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSubmitReservesDaysAndPlansApprovals(t *testing.T) {
	store := newFakeStore()
	store.setBalance("e1", "annual", 2026, "10")
	svc := newTestService(store)
	app := draft(t, svc, "annual", "2026-03-02", "2026-03-06")

	submitted, err := svc.Submit(context.Background(), staff, app.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, submitted.Status)
	require.NotNil(t, submitted.CurrentApproverID)
	assert.Equal(t, "u2", *submitted.CurrentApproverID)

	steps := store.steps[app.ID]
	require.Len(t, steps, 2)
	assert.Equal(t, StepSupervisor, steps[0].ApproverRole)
	assert.Equal(t, StepHR, steps[1].ApproverRole)

	b := store.balance("e1", "annual", 2026)
	assert.True(t, b.Pending.Equal(dec("5")))
	assert.True(t, b.Available().Equal(dec("5")))

	_, err = svc.Submit(context.Background(), staff, app.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmitInsufficientBalance(t *testing.T) {
	store := newFakeStore()
	store.setBalance("e1", "annual", 2026, "2")
	svc := newTestService(store)
	app := draft(t, svc, "annual", "2026-03-02", "2026-03-06")

	_, err := svc.Submit(context.Background(), staff, app.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, StatusDraft, store.apps[app.ID].Status)
	assert.True(t, store.balance("e1", "annual", 2026).Pending.IsZero())
}

func TestApproveWalksTheChain(t *testing.T) {
	store := newFakeStore()
	store.setBalance("e1", "annual", 2026, "10")
	svc := newTestService(store)
	ctx := context.Background()
	app := draft(t, svc, "annual", "2026-03-02", "2026-03-06")
	_, err := svc.Submit(ctx, staff, app.ID)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, staff, app.ID, DecisionInput{})
	assert.ErrorIs(t, err, ErrForbidden)

	step1, err := svc.Approve(ctx, supervisor, app.ID, DecisionInput{Comments: "ok"})
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, step1.Status)
	assert.Nil(t, step1.CurrentApproverID)
	assert.True(t, store.balance("e1", "annual", 2026).Taken.IsZero())

	_, err = svc.Approve(ctx, supervisor, app.ID, DecisionInput{})
	assert.ErrorIs(t, err, ErrNotApprover)

	final, err := svc.Approve(ctx, hr, app.ID, DecisionInput{})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, final.Status)
	assert.NotNil(t, final.ApprovedAt)

	b := store.balance("e1", "annual", 2026)
	assert.True(t, b.Taken.Equal(dec("5")))
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Closing.Equal(dec("5")))

	_, err = svc.Approve(ctx, hr, app.ID, DecisionInput{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectReleasesPending(t *testing.T) {
	store := newFakeStore()
	store.setBalance("e1", "annual", 2026, "10")
	svc := newTestService(store)
	ctx := context.Background()
	app := draft(t, svc, "annual", "2026-03-02", "2026-03-03")
	_, err := svc.Submit(ctx, staff, app.ID)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, supervisor, app.ID, DecisionInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	rejected, err := svc.Reject(ctx, supervisor, app.ID, DecisionInput{Reason: "exam week"})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "exam week", rejected.RejectionReason)
	b := store.balance("e1", "annual", 2026)
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Closing.Equal(dec("10")))
	assert.Equal(t, StepRejected, store.steps[app.ID][0].Status)
}

func TestCancelApprovedRestoresTaken(t *testing.T) {
	store := newFakeStore()
	store.setBalance("e1", "annual", 2026, "10")
	svc := newTestService(store)
	ctx := context.Background()
	app := draft(t, svc, "annual", "2026-03-02", "2026-03-03")
	_, err := svc.Submit(ctx, staff, app.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, hr, app.ID, DecisionInput{})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, hr, app.ID, DecisionInput{})
	require.NoError(t, err)
	require.True(t, store.balance("e1", "annual", 2026).Taken.Equal(dec("2")))

	cancelled, err := svc.Cancel(ctx, staff, app.ID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.True(t, store.balance("e1", "annual", 2026).Taken.IsZero())

	_, err = svc.Cancel(ctx, staff, app.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUnpaidLeaveLeavesBalancesAlone(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	app := draft(t, svc, "unpaid", "2026-03-02", "2026-03-03")
	_, err := svc.Submit(ctx, staff, app.ID)
	require.NoError(t, err)
	assert.Empty(t, store.balances)
}

func TestAccrueMonthlyCreditsOnce(t *testing.T) {
	store := newFakeStore()
	store.candidates = []AccrualCandidate{{EmployeeID: "e1", LeaveTypeID: "annual", Method: AccrualMonthly, Rate: dec("1.5"), Entitlement: dec("18"), HireDate: day("2020-01-01")}}
	svc := newTestService(store)

	summary, err := svc.AccrueMonthly(context.Background(), day("2026-03-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Credited)

	summary, err = svc.AccrueMonthly(context.Background(), day("2026-03-15"))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Credited)
	assert.Equal(t, 1, summary.Skipped)
	assert.True(t, store.balance("e1", "annual", 2026).Accrued.Equal(dec("1.5")))
}

func TestCarryForwardIsRepeatable(t *testing.T) {
	store := newFakeStore()
	store.setBalance("e1", "annual", 2025, "8")
	svc := newTestService(store)
	ctx := context.Background()

	summary, err := svc.CarryForward(ctx, hr, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Balances)
	assert.True(t, summary.Carried.Equal(dec("5")))
	assert.True(t, summary.Forfeited.Equal(dec("3")))

	_, err = svc.CarryForward(ctx, hr, 2025)
	require.NoError(t, err)
	next := store.balance("e1", "annual", 2026)
	assert.True(t, next.CarriedForward.Equal(dec("5")))
	assert.True(t, next.Closing.Equal(dec("5")))
	assert.True(t, store.balance("e1", "annual", 2025).Forfeited.Equal(dec("3")))
}

func TestCarryForwardMovesDaysOutOfClosedYear(t *testing.T) {
	store := newFakeStore()
	store.setBalance("e1", "annual", 2025, "5")
	svc := newTestService(store)
	ctx := context.Background()

	summary, err := svc.CarryForward(ctx, hr, 2025)
	require.NoError(t, err)
	assert.True(t, summary.Carried.Equal(dec("5")))

	closed := store.balance("e1", "annual", 2025)
	assert.True(t, closed.CarriedOut.Equal(dec("5")))
	assert.True(t, closed.Closing.IsZero())
	assert.True(t, closed.Available().IsZero())
	assert.True(t, store.balance("e1", "annual", 2026).Closing.Equal(dec("5")))

	app := draft(t, svc, "annual", "2025-12-01", "2025-12-05")
	_, err = svc.Submit(ctx, staff, app.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCarryForwardRejectsRunningYear(t *testing.T) {
	store := newFakeStore()
	store.setBalance("e1", "annual", 2026, "5")
	svc := newTestService(store)

	_, err := svc.CarryForward(context.Background(), hr, 2026)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, store.balance("e1", "annual", 2026).Available().Equal(dec("5")))
	assert.True(t, store.balance("e1", "annual", 2027).CarriedForward.IsZero())
}

func TestEncashmentRequestAndApprove(t *testing.T) {
	store := newFakeStore()
	store.setBalance("e1", "annual", 2026, "6")
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.RequestEncashment(ctx, staff, EncashmentInput{LeaveTypeID: "annual", Year: 2026, Days: dec("7")})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = svc.RequestEncashment(ctx, staff, EncashmentInput{LeaveTypeID: "unpaid", Year: 2026, Days: dec("1")})
	assert.ErrorIs(t, err, ErrNotEncashable)

	e, err := svc.RequestEncashment(ctx, staff, EncashmentInput{LeaveTypeID: "annual", Year: 2026, Days: dec("2")})
	require.NoError(t, err)
	assert.True(t, e.RatePerDay.Equal(dec("100")))
	assert.True(t, e.TotalAmount.Equal(dec("200")))
	assert.True(t, store.balance("e1", "annual", 2026).Encashed.IsZero())

	approved, err := svc.DecideEncashment(ctx, auth.UserContext{UserID: "u9", RoleName: auth.RolePayrollOfficer}, e.ID, true)
	require.NoError(t, err)
	assert.Equal(t, EncashApproved, approved.Status)
	b := store.balance("e1", "annual", 2026)
	assert.True(t, b.Encashed.Equal(dec("2")))
	assert.True(t, b.Closing.Equal(dec("4")))

	_, err = svc.DecideEncashment(ctx, hr, e.ID, false)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
