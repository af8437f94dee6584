package performance

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
	cycles     map[string]Cycle
	templates  map[string]Template
	employees  map[string]EmployeeRef
	appraisals map[string]Appraisal
	scores     map[string][]Score
	seq        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cycles: map[string]Cycle{
			"c1": {ID: "c1", Name: "2026 Annual", Type: "annual", Status: CycleActive},
		},
		templates: map[string]Template{
			"t1": {ID: "t1", Name: "Lecturer", IsActive: true, Metrics: []TemplateMetric{
				{TemplateID: "t1", MetricID: "m1", Code: "TEACH", Name: "Teaching", Weight: dec("60")},
				{TemplateID: "t1", MetricID: "m2", Code: "RSRCH", Name: "Research", Weight: dec("40")},
			}},
		},
		employees: map[string]EmployeeRef{
			"e1": {ID: "e1", Status: "active", SupervisorID: strptr("e9"), UserID: strptr("u1")},
			"e2": {ID: "e2", Status: "terminated"},
		},
		appraisals: map[string]Appraisal{},
		scores:     map[string][]Score{},
	}
}

func (f *fakeStore) InTx(ctx context.Context, fn func(q querier.Querier) error) error {
	return fn(nil)
}

func (f *fakeStore) Pool() querier.Querier { return nil }

func (f *fakeStore) GetTemplate(ctx context.Context, q querier.Querier, id string) (Template, error) {
	t, ok := f.templates[id]
	if !ok {
		return Template{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) CreateTemplate(ctx context.Context, in TemplateInput) (string, error) {
	f.seq++
	id := fmt.Sprintf("tmpl-%d", f.seq)
	f.templates[id] = Template{ID: id, Name: in.Name, IsActive: true}
	return id, nil
}

func (f *fakeStore) GetCycle(ctx context.Context, q querier.Querier, id string) (Cycle, error) {
	c, ok := f.cycles[id]
	if !ok {
		return Cycle{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) LockCycle(ctx context.Context, q querier.Querier, id string) (Cycle, error) {
	return f.GetCycle(ctx, q, id)
}

func (f *fakeStore) CreateCycle(ctx context.Context, c Cycle) (string, error) {
	f.seq++
	c.ID = fmt.Sprintf("cycle-%d", f.seq)
	f.cycles[c.ID] = c
	return c.ID, nil
}

func (f *fakeStore) SetCycleStatus(ctx context.Context, q querier.Querier, id, status string) error {
	c := f.cycles[id]
	c.Status = status
	f.cycles[id] = c
	for aid, a := range f.appraisals {
		if a.CycleID == id {
			a.CycleStatus = status
			f.appraisals[aid] = a
		}
	}
	return nil
}

func (f *fakeStore) CloseAppraisals(ctx context.Context, q querier.Querier, cycleID string) (int64, error) {
	var n int64
	for id, a := range f.appraisals {
		if a.CycleID == cycleID && a.Status == StatusCompleted {
			a.Status = StatusClosed
			f.appraisals[id] = a
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Employee(ctx context.Context, q querier.Querier, id string) (EmployeeRef, error) {
	e, ok := f.employees[id]
	if !ok {
		return EmployeeRef{}, ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) CreateAppraisal(ctx context.Context, q querier.Querier, in AppraisalInput, appraiserID *string, metrics []TemplateMetric) (string, error) {
	for _, a := range f.appraisals {
		if a.EmployeeID == in.EmployeeID && a.CycleID == in.CycleID {
			return "", ErrConflict
		}
	}
	f.seq++
	id := fmt.Sprintf("a%d", f.seq)
	f.appraisals[id] = Appraisal{
		ID:               id,
		EmployeeID:       in.EmployeeID,
		CycleID:          in.CycleID,
		CycleStatus:      f.cycles[in.CycleID].Status,
		TemplateID:       in.TemplateID,
		AppraiserID:      appraiserID,
		SelfStatus:       AssessmentPending,
		SupervisorStatus: AssessmentPending,
		Status:           StatusDraft,
	}
	for i, m := range metrics {
		f.scores[id] = append(f.scores[id], Score{
			ID:          fmt.Sprintf("%s-s%d", id, i),
			AppraisalID: id,
			MetricID:    m.MetricID,
			MetricCode:  m.Code,
			Weight:      m.Weight,
		})
	}
	return id, nil
}

func (f *fakeStore) GetAppraisal(ctx context.Context, q querier.Querier, id string) (Appraisal, error) {
	a, ok := f.appraisals[id]
	if !ok {
		return Appraisal{}, ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) LockAppraisal(ctx context.Context, q querier.Querier, id string) (Appraisal, error) {
	return f.GetAppraisal(ctx, q, id)
}

func (f *fakeStore) ListAppraisals(ctx context.Context, filter AppraisalFilter) ([]Appraisal, error) {
	var out []Appraisal
	for _, a := range f.appraisals {
		if filter.EmployeeID != "" && a.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.AppraiserID != "" && (a.AppraiserID == nil || *a.AppraiserID != filter.AppraiserID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) Scores(ctx context.Context, q querier.Querier, appraisalID string) ([]Score, error) {
	return append([]Score(nil), f.scores[appraisalID]...), nil
}

func (f *fakeStore) SaveScores(ctx context.Context, q querier.Querier, scores []Score) error {
	if len(scores) > 0 {
		f.scores[scores[0].AppraisalID] = scores
	}
	return nil
}

func (f *fakeStore) SaveAppraisal(ctx context.Context, q querier.Querier, a Appraisal) error {
	f.appraisals[a.ID] = a
	return nil
}

func (f *fakeStore) CycleResults(ctx context.Context, cycleID string) ([]string, []*string, []decimal.NullDecimal, error) {
	var statuses []string
	var ratings []*string
	var scores []decimal.NullDecimal
	for _, a := range f.appraisals {
		if a.CycleID != cycleID {
			continue
		}
		statuses = append(statuses, a.Status)
		ratings = append(ratings, a.FinalRating)
		scores = append(scores, a.FinalScore)
	}
	return statuses, ratings, scores, nil
}

var (
	hrUser         = auth.UserContext{UserID: "hr", RoleName: auth.RoleHRManager}
	employeeUser   = auth.UserContext{UserID: "u1", RoleName: auth.RoleStaff, EmployeeID: "e1"}
	supervisorUser = auth.UserContext{UserID: "u9", RoleName: auth.RoleSupervisor, EmployeeID: "e9"}
	otherStaff     = auth.UserContext{UserID: "u5", RoleName: auth.RoleStaff, EmployeeID: "e5"}
)

func newTestService() (*Service, *fakeStore) {
	store := newFakeStore()
	svc := NewService(store, nil, nil)
	svc.Now = func() time.Time { return time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC) }
	return svc, store
}

func ratings(teach, research string) AssessmentInput {
	return AssessmentInput{Scores: []ScoreInput{
		{MetricID: "m1", Rating: dec(teach)},
		{MetricID: "m2", Rating: dec(research)},
	}}
}

func createAppraisal(t *testing.T, svc *Service) AppraisalDetail {
	t.Helper()
	detail, err := svc.CreateAppraisal(context.Background(), hrUser, AppraisalInput{EmployeeID: "e1", CycleID: "c1", TemplateID: "t1"})
	require.NoError(t, err)
	return detail
}

func TestCreateAppraisalSeedsScores(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	detail := createAppraisal(t, svc)
	assert.Equal(t, StatusDraft, detail.Status)
	require.Len(t, detail.Scores, 2)
	assert.Equal(t, "60", detail.Scores[0].Weight.String())
	require.NotNil(t, detail.AppraiserID)
	assert.Equal(t, "e9", *detail.AppraiserID)

	_, err := svc.CreateAppraisal(ctx, hrUser, AppraisalInput{EmployeeID: "e1", CycleID: "c1", TemplateID: "t1"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateAppraisal(ctx, hrUser, AppraisalInput{EmployeeID: "e2", CycleID: "c1", TemplateID: "t1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAppraisalWorkflow(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	id := createAppraisal(t, svc).ID

	_, err := svc.SubmitSelf(ctx, otherStaff, id, ratings("4", "4"))
	assert.ErrorIs(t, err, ErrForbidden)

	self, err := svc.SubmitSelf(ctx, employeeUser, id, ratings("5", "4"))
	require.NoError(t, err)
	assert.Equal(t, AssessmentSubmitted, self.SelfStatus)
	assert.Equal(t, StatusInProgress, self.Status)

	_, err = svc.Finalize(ctx, hrUser, id, FinalizeInput{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.SubmitSupervisor(ctx, employeeUser, id, ratings("5", "5"))
	assert.ErrorIs(t, err, ErrForbidden)

	sup, err := svc.SubmitSupervisor(ctx, supervisorUser, id, ratings("4", "3"))
	require.NoError(t, err)
	assert.Equal(t, AssessmentSubmitted, sup.SupervisorStatus)
	assert.Equal(t, "5", sup.Scores[0].SelfRating.Decimal.String())

	_, err = svc.SubmitSelf(ctx, employeeUser, id, ratings("5", "5"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Finalize(ctx, supervisorUser, id, FinalizeInput{})
	assert.ErrorIs(t, err, ErrForbidden)

	// 4*0.6 + 4*0.4 = 4.0 of 5
	final, err := svc.Finalize(ctx, hrUser, id, FinalizeInput{
		Agreed:            []AgreedInput{{MetricID: "m2", Rating: dec("4")}},
		RecommendedAction: "training",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, "80.00", final.FinalScore.Decimal.StringFixed(2))
	require.NotNil(t, final.FinalRating)
	assert.Equal(t, RatingExceeds, *final.FinalRating)
	require.NotNil(t, final.ApprovedBy)
	assert.Equal(t, "hr", *final.ApprovedBy)
	assert.Equal(t, "1.60", store.scores[id][1].WeightedScore.Decimal.StringFixed(2))

	_, err = svc.Resolve(ctx, hrUser, id, ResolveInput{Resolution: "n/a"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	disputed, err := svc.Dispute(ctx, employeeUser, id, DisputeInput{Reason: "research output undercounted"})
	require.NoError(t, err)
	assert.Equal(t, StatusDisputed, disputed.Status)

	resolved, err := svc.Resolve(ctx, hrUser, id, ResolveInput{Resolution: "score stands"})
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, resolved.Status)
	assert.Equal(t, "score stands", resolved.DisputeResolution)
}

func TestSelfAssessmentNeedsActiveCycle(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	id := createAppraisal(t, svc).ID

	_, err := svc.AdvanceCycle(ctx, hrUser, "c1", CycleInReview)
	require.NoError(t, err)
	assert.Equal(t, CycleInReview, store.appraisals[id].CycleStatus)

	_, err = svc.SubmitSelf(ctx, employeeUser, id, ratings("4", "4"))
	assert.ErrorIs(t, err, ErrCycleNotActive)

	_, err = svc.SubmitSupervisor(ctx, supervisorUser, id, ratings("4", "4"))
	assert.NoError(t, err)
}

func TestAdvanceCycle(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	_, err := svc.AdvanceCycle(ctx, hrUser, "c1", CycleCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	store.appraisals["a1"] = Appraisal{ID: "a1", CycleID: "c1", Status: StatusCompleted}
	for _, next := range []string{CycleInReview, CycleCompleted, CycleClosed} {
		c, err := svc.AdvanceCycle(ctx, hrUser, "c1", next)
		require.NoError(t, err)
		assert.Equal(t, next, c.Status)
	}
	assert.Equal(t, StatusClosed, store.appraisals["a1"].Status)

	_, err = svc.AdvanceCycle(ctx, hrUser, "missing", CycleActive)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateCycleValidatesDeadlines(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	in := CycleInput{
		Name:                "2027 Annual",
		Type:                "annual",
		StartDate:           "2027-01-01",
		EndDate:             "2027-12-31",
		SelfDeadline:        "2027-11-15",
		SupervisorDeadline:  "2027-11-30",
		FinalReviewDeadline: "2027-12-15",
	}
	c, err := svc.CreateCycle(ctx, hrUser, in)
	require.NoError(t, err)
	assert.Equal(t, CyclePlanned, c.Status)

	bad := in
	bad.SupervisorDeadline = "2027-11-01"
	_, err = svc.CreateCycle(ctx, hrUser, bad)
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad = in
	bad.EndDate = "2026-12-31"
	_, err = svc.CreateCycle(ctx, hrUser, bad)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateTemplateChecksWeights(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateTemplate(context.Background(), hrUser, TemplateInput{
		Name:    "Admin staff",
		Metrics: []TemplateMetricInput{{MetricID: "m1", Weight: dec("70")}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAppraisalVisibility(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := createAppraisal(t, svc).ID

	_, err := svc.GetAppraisal(ctx, otherStaff, id)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.GetAppraisal(ctx, supervisorUser, id)
	assert.NoError(t, err)
	_, err = svc.GetAppraisal(ctx, employeeUser, id)
	assert.NoError(t, err)

	list, err := svc.ListAppraisals(ctx, otherStaff, AppraisalFilter{EmployeeID: "e1"})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.ListAppraisals(ctx, supervisorUser, AppraisalFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCycleSummary(t *testing.T) {
	svc, store := newTestService()
	store.appraisals["a1"] = Appraisal{ID: "a1", CycleID: "c1", Status: StatusCompleted,
		FinalRating: strptr(RatingExceeds), FinalScore: decimal.NewNullDecimal(dec("80"))}
	store.appraisals["a2"] = Appraisal{ID: "a2", CycleID: "c1", Status: StatusDisputed,
		FinalRating: strptr(RatingMeets), FinalScore: decimal.NewNullDecimal(dec("65"))}
	store.appraisals["a3"] = Appraisal{ID: "a3", CycleID: "c1", Status: StatusDraft}

	summary, err := svc.CycleSummary(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Disputed)
	assert.Equal(t, 1, summary.ByRating[RatingMeets])
	assert.Equal(t, "72.50", summary.AverageScore.StringFixed(2))
}
