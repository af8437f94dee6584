package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/platform/jobs"
	"schoolerp/internal/platform/storage"
)

type fakeStore struct {
	StoreAPI
	employeeCalls atomic.Int32
	gate          chan struct{}
	entered       chan struct{}
	pendingFor string
}

func (f *fakeStore) Employees(ctx context.Context, filter EmployeeFilter) ([]EmployeeRow, error) {
	f.employeeCalls.Add(1)
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	return []EmployeeRow{
		{EmployeeNo: "T001", FullName: "Ama Mensah", Department: "Physics", Category: "teaching", Status: "active",
			HireDate: time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func (f *fakeStore) Leave(ctx context.Context, from, to time.Time, status string) ([]LeaveRow, error) {
	return []LeaveRow{{EmployeeNo: "T001", FullName: "Ama Mensah", LeaveType: "Annual", StartDate: from, EndDate: from,
		WorkingDays: dec("1"), Status: "approved"}}, nil
}

func (f *fakeStore) People(ctx context.Context, userType string) ([]PersonRow, error) {
	return []PersonRow{{Username: "jdoe", FullName: "Jane Doe", Email: "jdoe@school.test", Status: "active"}}, nil
}

func (f *fakeStore) LeaveBalance(ctx context.Context, employeeID string, year int) (float64, error) {
	return 12.5, nil
}

func (f *fakeStore) PayslipCount(ctx context.Context, employeeID string) (int, error) { return 3, nil }

func (f *fakeStore) OpenAppraisals(ctx context.Context, employeeID string) (int, error) { return 1, nil }

func (f *fakeStore) PendingApprovals(ctx context.Context, approverUserID string) (int, error) {
	f.pendingFor = approverUserID
	if approverUserID == "" {
		return 9, nil
	}
	return 2, nil
}

func (f *fakeStore) AppraisalsToReview(ctx context.Context, appraiserEmployeeID string) (int, error) {
	return 4, nil
}

func (f *fakeStore) ActiveEmployees(ctx context.Context) (int, error)    { return 40, nil }
func (f *fakeStore) OpenPayrollPeriods(ctx context.Context) (int, error) { return 1, nil }
func (f *fakeStore) ActiveCycles(ctx context.Context) (int, error)       { return 2, nil }

type fakePayslips struct{}

func (fakePayslips) RenderFor(ctx context.Context, user auth.UserContext, periodID, employeeID string) (string, []byte, error) {
	if user.EmployeeID != employeeID {
		return "", nil, fmt.Errorf("forbidden")
	}
	return "PS-" + periodID + "-T001", []byte("%PDF-1.3 payslip"), nil
}

type runStore struct {
	mu   sync.Mutex
	runs map[string]*jobs.Run
}

func (m *runStore) Create(_ context.Context, jobType, requestedBy string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("run-%d", len(m.runs)+1)
	m.runs[id] = &jobs.Run{ID: id, Type: jobType, Status: jobs.StatusQueued, RequestedBy: requestedBy}
	return id, nil
}

func (m *runStore) MarkRunning(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[id].Status = jobs.StatusRunning
	return nil
}

func (m *runStore) Finish(_ context.Context, id, status string, result []byte, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[id].Status = status
	m.runs[id].Result = result
	m.runs[id].Error = errText
	return nil
}

func (m *runStore) Get(_ context.Context, id string) (jobs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return jobs.Run{}, jobs.ErrNotFound
	}
	return *run, nil
}

var (
	hrUser    = auth.UserContext{UserID: "hr", RoleName: auth.RoleHRManager}
	staffUser = auth.UserContext{UserID: "u1", RoleName: auth.RoleStaff, EmployeeID: "e1"}
	supUser   = auth.UserContext{UserID: "u9", RoleName: auth.RoleSupervisor, EmployeeID: "e9"}
)

func newTestService(store *fakeStore) *Service {
	svc := NewService(store, "Test College")
	svc.Now = func() time.Time { return time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC) }
	svc.Payslips = fakePayslips{}
	return svc
}

func TestCatalogListsEveryReport(t *testing.T) {
	types := map[string]Definition{}
	for _, d := range Catalog() {
		types[d.Type] = d
	}
	for _, want := range []string{TypeEmployees, TypePayrollRegister, TypePayrollComparison, TypeAttendance,
		TypeLeave, TypeLeaveBalances, TypePeople, TypePayslip} {
		assert.Contains(t, types, want)
	}
	assert.Equal(t, []string{FormatPDF}, types[TypePayslip].Formats)
}

func TestRequestValidation(t *testing.T) {
	req := Request{Type: "salaries"}
	_, err := req.validate()
	assert.ErrorIs(t, err, ErrUnknownReport)

	req = Request{Type: TypePayslip, Format: "xlsx", Params: map[string]string{"period_id": "p", "employee_id": "e"}}
	_, err = req.validate()
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	req = Request{Type: TypeAttendance, Params: map[string]string{"from": "2026-03-01"}}
	_, err = req.validate()
	assert.ErrorIs(t, err, ErrInvalidParams)

	req = Request{Type: TypeEmployees}
	def, err := req.validate()
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, req.Format)

	a := Request{Type: TypeEmployees, Format: FormatPDF, Params: map[string]string{"status": "active", "noise": "1"}}
	b := Request{Type: TypeEmployees, Format: FormatPDF, Params: map[string]string{"status": "active"}}
	assert.Equal(t, a.key(def), b.key(def))
}

func TestGenerateFormats(t *testing.T) {
	svc := newTestService(&fakeStore{})
	ctx := context.Background()

	out, err := svc.Generate(ctx, hrUser, Request{Type: TypeEmployees})
	require.NoError(t, err)
	assert.Equal(t, "employees-20260402.pdf", out.Filename)
	assert.Equal(t, contentTypePDF, out.ContentType)
	assert.True(t, bytes.HasPrefix(out.Data, []byte("%PDF")))

	out, err = svc.Generate(ctx, hrUser, Request{Type: TypeLeave, Format: FormatXLSX,
		Params: map[string]string{"from": "2026-03-01", "to": "2026-03-31"}})
	require.NoError(t, err)
	assert.Equal(t, contentTypeXLSX, out.ContentType)
	assert.True(t, bytes.HasPrefix(out.Data, []byte("PK")))

	_, err = svc.Generate(ctx, hrUser, Request{Type: TypeLeave,
		Params: map[string]string{"from": "2026-03-31", "to": "2026-03-01"}})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = svc.Generate(ctx, hrUser, Request{Type: TypePeople, Params: map[string]string{"user_type": "admin"}})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = svc.Generate(ctx, hrUser, Request{Type: TypePayrollComparison, Params: map[string]string{"periods": "nope"}})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestGeneratePayslipUsesCallerAccess(t *testing.T) {
	svc := newTestService(&fakeStore{})
	ctx := context.Background()
	params := map[string]string{"period_id": "p1", "employee_id": "e1"}

	out, err := svc.Generate(ctx, staffUser, Request{Type: TypePayslip, Params: params})
	require.NoError(t, err)
	assert.Equal(t, "PS-p1-T001.pdf", out.Filename)

	_, err = svc.Generate(ctx, supUser, Request{Type: TypePayslip, Params: params})
	assert.Error(t, err)
}

func TestGenerateSharesConcurrentRenders(t *testing.T) {
	store := &fakeStore{gate: make(chan struct{}), entered: make(chan struct{}, 2)}
	svc := newTestService(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Output, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := svc.Generate(ctx, hrUser, Request{Type: TypeEmployees, Params: map[string]string{"status": "active"}})
			assert.NoError(t, err)
			results[i] = out
		}(i)
		if i == 0 {
			<-store.entered
		}
	}
	time.Sleep(50 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	assert.Equal(t, int32(1), store.employeeCalls.Load())
	assert.Equal(t, results[0].Data, results[1].Data)
}

func TestGenerateAsyncStoresFile(t *testing.T) {
	svc := newTestService(&fakeStore{})
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc.Files = files
	runner := jobs.New(&runStore{runs: map[string]*jobs.Run{}})
	svc.Jobs = runner

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx)

	id, err := svc.GenerateAsync(ctx, hrUser, Request{Type: TypeEmployees, Format: FormatXLSX})
	require.NoError(t, err)

	var run jobs.Run
	require.Eventually(t, func() bool {
		run, err = runner.Get(ctx, id)
		return err == nil && run.Status == jobs.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "report.employees", run.Type)

	var stored StoredReport
	require.NoError(t, json.Unmarshal(run.Result, &stored))
	assert.Contains(t, stored.StorageKey, "reports/employees/")

	out, err := svc.Fetch(ctx, stored.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "employees-20260402.xlsx", out.Filename)
	assert.Equal(t, contentTypeXLSX, out.ContentType)
	assert.Equal(t, stored.Size, len(out.Data))

	_, err = svc.Fetch(ctx, "payslips/p1/secret.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateAsyncNeedsStorage(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.GenerateAsync(context.Background(), hrUser, Request{Type: TypeEmployees})
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestDashboardSectionsByRole(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	ctx := context.Background()

	staff, err := svc.Dashboard(ctx, staffUser)
	require.NoError(t, err)
	require.NotNil(t, staff.Employee)
	assert.Equal(t, 12.5, staff.Employee.LeaveBalance)
	assert.Equal(t, 3, staff.Employee.PayslipCount)
	assert.Nil(t, staff.Team)
	assert.Nil(t, staff.HR)

	sup, err := svc.Dashboard(ctx, supUser)
	require.NoError(t, err)
	require.NotNil(t, sup.Team)
	assert.Equal(t, 2, sup.Team.PendingApprovals)
	assert.Equal(t, 4, sup.Team.AppraisalsToReview)
	assert.Equal(t, "u9", store.pendingFor)

	hr, err := svc.Dashboard(ctx, hrUser)
	require.NoError(t, err)
	assert.Nil(t, hr.Employee)
	require.NotNil(t, hr.HR)
	assert.Equal(t, HRDashboard{ActiveEmployees: 40, OpenPayrollPeriods: 1, LeavePending: 9, ActiveCycles: 2}, *hr.HR)
}
