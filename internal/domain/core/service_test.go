package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolerp/internal/domain/auth"
)

type fakeStore struct {
	StoreAPI
	employees   map[string]Employee
	reports     map[string]string
	lastFilter  EmployeeFilter
	created     EmployeeInput
	createdAt   employeeDates
	statsCalls  int
	addressSets int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		employees: map[string]Employee{
			"sup": {ID: "sup", FirstName: "Amos", LastName: "Kibet", NationalID: "11112222"},
			"rep": {ID: "rep", FirstName: "Ruth", LastName: "Achieng", NationalID: "33334444"},
			"oth": {ID: "oth", FirstName: "Paul", LastName: "Otieno", NationalID: "55556666"},
		},
		reports: map[string]string{"rep": "sup"},
	}
}

func (f *fakeStore) GetEmployee(_ context.Context, id string) (Employee, error) {
	emp, ok := f.employees[id]
	if !ok {
		return Employee{}, ErrNotFound
	}
	return emp, nil
}

func (f *fakeStore) IsSupervisorOf(_ context.Context, supervisorID, employeeID string) (bool, error) {
	return f.reports[employeeID] == supervisorID, nil
}

func (f *fakeStore) ListEmployees(_ context.Context, filter EmployeeFilter) ([]Employee, int, error) {
	f.lastFilter = filter
	out := []Employee{}
	for _, e := range f.employees {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (f *fakeStore) CreateEmployee(_ context.Context, in EmployeeInput, dates employeeDates) (string, error) {
	f.created = in
	f.createdAt = dates
	f.employees["new"] = Employee{ID: "new", EmployeeNo: in.EmployeeNo, HireDate: dates.hire}
	return "new", nil
}

func (f *fakeStore) ReplaceAddresses(_ context.Context, _ string, _ []Address) error {
	f.addressSets++
	return nil
}

func (f *fakeStore) Statistics(_ context.Context) (Statistics, error) {
	f.statsCalls++
	return Statistics{Total: len(f.employees)}, nil
}

func TestCanViewByScope(t *testing.T) {
	svc := NewService(newFakeStore(), nil, nil)
	ctx := context.Background()

	sup := auth.UserContext{RoleName: auth.RoleSupervisor, EmployeeID: "sup"}
	ok, err := svc.CanView(ctx, sup, "rep")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = svc.CanView(ctx, sup, "oth")
	assert.False(t, ok)

	staff := auth.UserContext{RoleName: auth.RoleStaff, EmployeeID: "rep"}
	ok, _ = svc.CanView(ctx, staff, "rep")
	assert.True(t, ok)
	ok, _ = svc.CanView(ctx, staff, "sup")
	assert.False(t, ok)

	hr := auth.UserContext{RoleName: auth.RoleHRManager}
	ok, _ = svc.CanView(ctx, hr, "oth")
	assert.True(t, ok)
}

func TestGetEmployeeForbiddenOutsideScope(t *testing.T) {
	svc := NewService(newFakeStore(), nil, nil)
	_, err := svc.GetEmployee(context.Background(), auth.UserContext{RoleName: auth.RoleStaff, EmployeeID: "rep"}, "oth")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListEmployeesAppliesScope(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	_, _, err := svc.ListEmployees(ctx, auth.UserContext{RoleName: auth.RoleSupervisor, EmployeeID: "sup"}, EmployeeFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, "sup", store.lastFilter.OnlyID)
	assert.Equal(t, "sup", store.lastFilter.SupervisorID)
	assert.Equal(t, 50, store.lastFilter.Limit)

	_, _, err = svc.ListEmployees(ctx, auth.UserContext{RoleName: auth.RoleStaff, EmployeeID: "rep"}, EmployeeFilter{SupervisorID: "sup"})
	require.NoError(t, err)
	assert.Equal(t, "rep", store.lastFilter.OnlyID)
	assert.Empty(t, store.lastFilter.SupervisorID)

	items, total, err := svc.ListEmployees(ctx, auth.UserContext{RoleName: auth.RoleStudent}, EmployeeFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
}

func TestCreateEmployeeNormalizesInput(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, nil)

	emp, err := svc.CreateEmployee(context.Background(), auth.UserContext{RoleName: auth.RoleHRManager}, EmployeeInput{
		EmployeeNo:    " tsc-0042 ",
		FirstName:     " Mary ",
		LastName:      "Wanjiru",
		Gender:        "female",
		Category:      CategoryTeaching,
		HireDate:      "2020-01-06",
		DateOfBirth:   "1990-08-15",
		OfficialEmail: "Mary.W@School.AC.KE",
	})
	require.NoError(t, err)
	assert.Equal(t, "TSC-0042", emp.EmployeeNo)
	assert.Equal(t, "Mary", store.created.FirstName)
	assert.Equal(t, "mary.w@school.ac.ke", store.created.OfficialEmail)
	assert.Equal(t, StatusActive, store.created.Status)
	assert.Equal(t, "monthly", store.created.PayrollType)
	assert.Equal(t, time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC), store.createdAt.hire)
}

func TestNormalizeEmployeeRejectsBadDates(t *testing.T) {
	base := EmployeeInput{EmployeeNo: "A1", FirstName: "A", LastName: "B", Gender: "male", Category: CategoryCasual, HireDate: "2021-03-01"}

	in := base
	in.DateOfBirth = "2022-01-01"
	_, _, err := normalizeEmployee(in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = base
	in.TerminationDate = "2020-12-31"
	_, _, err = normalizeEmployee(in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = base
	in.Status = StatusTerminated
	_, _, err = normalizeEmployee(in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = base
	in.HireDate = "01/03/2021"
	_, _, err = normalizeEmployee(in)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReplaceAddressesRules(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()
	self := auth.UserContext{RoleName: auth.RoleStaff, EmployeeID: "rep"}

	err := svc.ReplaceAddresses(ctx, self, "oth", nil)
	assert.ErrorIs(t, err, ErrForbidden)

	two := []Address{{AddressType: "postal", IsPrimary: true}, {AddressType: "residential", IsPrimary: true}}
	err = svc.ReplaceAddresses(ctx, self, "rep", two)
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = svc.ReplaceAddresses(ctx, self, "rep", two[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, store.addressSets)
}

func TestStatisticsWithoutRedisStillLoads(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, nil)

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, store.statsCalls)
}
