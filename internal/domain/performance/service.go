package performance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"schoolerp/internal/domain/audit"
	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/notifications"
	"schoolerp/internal/platform/querier"
)

type Service struct {
	Store         StoreAPI
	Audit         *audit.Service
	Notifications *notifications.Service
	Now           func() time.Time
}

func NewService(store StoreAPI, auditSvc *audit.Service, notifier *notifications.Service) *Service {
	return &Service{
		Store:         store,
		Audit:         auditSvc,
		Notifications: notifier,
		Now:           time.Now,
	}
}

func isHR(user auth.UserContext) bool {
	return user.RoleName == auth.RoleSystemAdmin || user.RoleName == auth.RoleHRManager
}

func parseDay(value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidInput, value)
	}
	return t, nil
}

func (s *Service) ListMetrics(ctx context.Context, activeOnly bool) ([]Metric, error) {
	return s.Store.ListMetrics(ctx, activeOnly)
}

func (s *Service) CreateMetric(ctx context.Context, user auth.UserContext, in MetricInput) (string, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	if in.MeasurementType == "" {
		in.MeasurementType = "rating_scale"
	}
	if in.Weight.GreaterThan(hundred) {
		return "", fmt.Errorf("%w: weight cannot exceed 100", ErrInvalidInput)
	}
	id, err := s.Store.CreateMetric(ctx, in)
	if err != nil {
		return "", err
	}
	s.record(ctx, user, "performance.metric.create", "performance_metric", id, nil, in)
	return id, nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]Template, error) {
	return s.Store.ListTemplates(ctx)
}

func (s *Service) CreateTemplate(ctx context.Context, user auth.UserContext, in TemplateInput) (Template, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := ValidateTemplateWeights(in.Metrics); err != nil {
		return Template{}, err
	}
	id, err := s.Store.CreateTemplate(ctx, in)
	if err != nil {
		return Template{}, err
	}
	t, err := s.Store.GetTemplate(ctx, s.Store.Pool(), id)
	if err != nil {
		return Template{}, err
	}
	s.record(ctx, user, "performance.template.create", "appraisal_template", id, nil, t)
	return t, nil
}

func (s *Service) ListCycles(ctx context.Context, status string) ([]Cycle, error) {
	return s.Store.ListCycles(ctx, status)
}

func (s *Service) GetCycle(ctx context.Context, id string) (Cycle, error) {
	return s.Store.GetCycle(ctx, s.Store.Pool(), id)
}

func (s *Service) CreateCycle(ctx context.Context, user auth.UserContext, in CycleInput) (Cycle, error) {
	c := Cycle{Name: strings.TrimSpace(in.Name), Type: in.Type, Status: CyclePlanned}
	dates := []struct {
		raw string
		dst *time.Time
	}{
		{in.StartDate, &c.StartDate},
		{in.EndDate, &c.EndDate},
		{in.SelfDeadline, &c.SelfDeadline},
		{in.SupervisorDeadline, &c.SupervisorDeadline},
		{in.FinalReviewDeadline, &c.FinalReviewDeadline},
	}
	for _, d := range dates {
		t, err := parseDay(d.raw)
		if err != nil {
			return Cycle{}, err
		}
		*d.dst = t
	}
	if c.EndDate.Before(c.StartDate) {
		return Cycle{}, fmt.Errorf("%w: end date before start date", ErrInvalidInput)
	}
	if c.SupervisorDeadline.Before(c.SelfDeadline) || c.FinalReviewDeadline.Before(c.SupervisorDeadline) {
		return Cycle{}, fmt.Errorf("%w: deadlines must run self, supervisor, final review", ErrInvalidInput)
	}
	id, err := s.Store.CreateCycle(ctx, c)
	if err != nil {
		return Cycle{}, err
	}
	c.ID = id
	s.record(ctx, user, "performance.cycle.create", "appraisal_cycle", id, nil, c)
	return c, nil
}

// AdvanceCycle moves a cycle one step forward. Closing a cycle closes its
// completed appraisals.
func (s *Service) AdvanceCycle(ctx context.Context, user auth.UserContext, id, status string) (Cycle, error) {
	var before, after Cycle
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		c, err := s.Store.LockCycle(ctx, q, id)
		if err != nil {
			return err
		}
		if !CanAdvance(c.Status, status) {
			return fmt.Errorf("%w: cycle cannot move from %s to %s", ErrInvalidTransition, c.Status, status)
		}
		before = c
		if err := s.Store.SetCycleStatus(ctx, q, id, status); err != nil {
			return err
		}
		if status == CycleClosed {
			if _, err := s.Store.CloseAppraisals(ctx, q, id); err != nil {
				return err
			}
		}
		c.Status = status
		after = c
		return nil
	})
	if err != nil {
		return Cycle{}, err
	}
	s.record(ctx, user, "performance.cycle."+status, "appraisal_cycle", id, before, after)
	return after, nil
}

func (s *Service) CycleSummary(ctx context.Context, cycleID string) (CycleSummary, error) {
	if _, err := s.Store.GetCycle(ctx, s.Store.Pool(), cycleID); err != nil {
		return CycleSummary{}, err
	}
	statuses, ratings, scores, err := s.Store.CycleResults(ctx, cycleID)
	if err != nil {
		return CycleSummary{}, err
	}
	return buildCycleSummary(cycleID, statuses, ratings, scores), nil
}

func (s *Service) CreateAppraisal(ctx context.Context, user auth.UserContext, in AppraisalInput) (AppraisalDetail, error) {
	var id string
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		cycle, err := s.Store.GetCycle(ctx, q, in.CycleID)
		if err != nil {
			return err
		}
		if cycle.Status == CycleCompleted || cycle.Status == CycleClosed {
			return fmt.Errorf("%w: cycle is %s", ErrCycleNotActive, cycle.Status)
		}
		tmpl, err := s.Store.GetTemplate(ctx, q, in.TemplateID)
		if err != nil {
			return err
		}
		if !tmpl.IsActive || len(tmpl.Metrics) == 0 {
			return fmt.Errorf("%w: template has no active metrics", ErrInvalidInput)
		}
		emp, err := s.Store.Employee(ctx, q, in.EmployeeID)
		if err != nil {
			return err
		}
		if emp.Status == "terminated" {
			return fmt.Errorf("%w: employee is terminated", ErrInvalidInput)
		}
		id, err = s.Store.CreateAppraisal(ctx, q, in, emp.SupervisorID, tmpl.Metrics)
		return err
	})
	if err != nil {
		return AppraisalDetail{}, err
	}
	detail, err := s.detail(ctx, s.Store.Pool(), id)
	if err != nil {
		return AppraisalDetail{}, err
	}
	s.record(ctx, user, "performance.appraisal.create", "appraisal", id, nil, in)
	return detail, nil
}

func (s *Service) detail(ctx context.Context, q querier.Querier, id string) (AppraisalDetail, error) {
	a, err := s.Store.GetAppraisal(ctx, q, id)
	if err != nil {
		return AppraisalDetail{}, err
	}
	scores, err := s.Store.Scores(ctx, q, id)
	if err != nil {
		return AppraisalDetail{}, err
	}
	return AppraisalDetail{Appraisal: a, Scores: scores}, nil
}

func canView(user auth.UserContext, a Appraisal) bool {
	switch auth.ScopeFor(user.RoleName) {
	case auth.ScopeAll:
		return true
	case auth.ScopeTeam:
		return a.EmployeeID == user.EmployeeID || (a.AppraiserID != nil && *a.AppraiserID == user.EmployeeID)
	default:
		return user.EmployeeID != "" && a.EmployeeID == user.EmployeeID
	}
}

func (s *Service) GetAppraisal(ctx context.Context, user auth.UserContext, id string) (AppraisalDetail, error) {
	detail, err := s.detail(ctx, s.Store.Pool(), id)
	if err != nil {
		return AppraisalDetail{}, err
	}
	if !canView(user, detail.Appraisal) {
		return AppraisalDetail{}, ErrForbidden
	}
	return detail, nil
}

// ListAppraisals narrows the filter to what the caller may see: supervisors
// get their own appraisal and those they conduct, staff only their own.
func (s *Service) ListAppraisals(ctx context.Context, user auth.UserContext, filter AppraisalFilter) ([]Appraisal, error) {
	switch auth.ScopeFor(user.RoleName) {
	case auth.ScopeAll:
	case auth.ScopeTeam:
		if filter.EmployeeID != user.EmployeeID {
			filter.AppraiserID = user.EmployeeID
		}
	default:
		if user.EmployeeID == "" {
			return []Appraisal{}, nil
		}
		filter.EmployeeID = user.EmployeeID
	}
	return s.Store.ListAppraisals(ctx, filter)
}

// mutate loads and locks an appraisal with its scores, applies fn and
// persists both.
func (s *Service) mutate(ctx context.Context, user auth.UserContext, id, action string, fn func(a *Appraisal, scores []Score) ([]Score, error)) (AppraisalDetail, error) {
	var before Appraisal
	var out AppraisalDetail
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		a, err := s.Store.LockAppraisal(ctx, q, id)
		if err != nil {
			return err
		}
		before = a
		scores, err := s.Store.Scores(ctx, q, id)
		if err != nil {
			return err
		}
		updated, err := fn(&a, scores)
		if err != nil {
			return err
		}
		if updated != nil {
			if err := s.Store.SaveScores(ctx, q, updated); err != nil {
				return err
			}
			scores = updated
		}
		if err := s.Store.SaveAppraisal(ctx, q, a); err != nil {
			return err
		}
		out = AppraisalDetail{Appraisal: a, Scores: scores}
		return nil
	})
	if err != nil {
		return AppraisalDetail{}, err
	}
	s.record(ctx, user, "performance.appraisal."+action, "appraisal", id, before, out.Appraisal)
	return out, nil
}

func (s *Service) SubmitSelf(ctx context.Context, user auth.UserContext, id string, in AssessmentInput) (AppraisalDetail, error) {
	return s.mutate(ctx, user, id, "self", func(a *Appraisal, scores []Score) ([]Score, error) {
		if user.EmployeeID == "" || a.EmployeeID != user.EmployeeID {
			return nil, ErrForbidden
		}
		if a.CycleStatus != CycleActive {
			return nil, ErrCycleNotActive
		}
		if a.SupervisorStatus == AssessmentSubmitted || (a.Status != StatusDraft && a.Status != StatusInProgress) {
			return nil, fmt.Errorf("%w: self assessment is closed", ErrInvalidTransition)
		}
		updated, err := applyRatings(scores, in.Scores, false)
		if err != nil {
			return nil, err
		}
		now := s.Now()
		a.SelfStatus = AssessmentSubmitted
		a.SelfAt = &now
		a.Status = StatusInProgress
		return updated, nil
	})
}

func (s *Service) SubmitSupervisor(ctx context.Context, user auth.UserContext, id string, in AssessmentInput) (AppraisalDetail, error) {
	return s.mutate(ctx, user, id, "supervisor", func(a *Appraisal, scores []Score) ([]Score, error) {
		if user.EmployeeID == "" || a.AppraiserID == nil || *a.AppraiserID != user.EmployeeID {
			return nil, ErrForbidden
		}
		if a.CycleStatus != CycleActive && a.CycleStatus != CycleInReview {
			return nil, ErrCycleNotActive
		}
		if a.Status != StatusDraft && a.Status != StatusInProgress {
			return nil, fmt.Errorf("%w: appraisal is %s", ErrInvalidTransition, a.Status)
		}
		updated, err := applyRatings(scores, in.Scores, true)
		if err != nil {
			return nil, err
		}
		now := s.Now()
		a.SupervisorStatus = AssessmentSubmitted
		a.SupervisorAt = &now
		a.Status = StatusInProgress
		return updated, nil
	})
}

// Finalize fixes the agreed ratings and the final score. It needs the
// supervisor assessment and notifies the employee.
func (s *Service) Finalize(ctx context.Context, user auth.UserContext, id string, in FinalizeInput) (AppraisalDetail, error) {
	if !isHR(user) {
		return AppraisalDetail{}, ErrForbidden
	}
	agreed := map[string]decimal.Decimal{}
	for _, a := range in.Agreed {
		agreed[a.MetricID] = a.Rating
	}
	detail, err := s.mutate(ctx, user, id, "finalize", func(a *Appraisal, scores []Score) ([]Score, error) {
		if a.Status != StatusInProgress || a.SupervisorStatus != AssessmentSubmitted {
			return nil, fmt.Errorf("%w: supervisor assessment not submitted", ErrInvalidTransition)
		}
		if a.CycleStatus == CycleClosed {
			return nil, ErrCycleNotActive
		}
		known := map[string]bool{}
		for _, sc := range scores {
			known[sc.MetricID] = true
		}
		for metricID := range agreed {
			if !known[metricID] {
				return nil, fmt.Errorf("%w: metric %s is not on this appraisal", ErrInvalidInput, metricID)
			}
		}
		updated, final, err := Finalize(scores, agreed)
		if err != nil {
			return nil, err
		}
		rating := RatingFor(final)
		now := s.Now()
		approver := user.UserID
		a.FinalScore = decimal.NewNullDecimal(final)
		a.FinalRating = &rating
		a.OverallComments = strings.TrimSpace(in.OverallComments)
		if in.RecommendedAction != "" {
			action := in.RecommendedAction
			a.RecommendedAction = &action
		}
		a.Status = StatusCompleted
		a.ApprovedBy = &approver
		a.ApprovedAt = &now
		return updated, nil
	})
	if err != nil {
		return AppraisalDetail{}, err
	}
	s.Notifications.NotifyEmployee(ctx, detail.EmployeeID, notifications.TypeAppraisalFinalized,
		"Appraisal finalized",
		fmt.Sprintf("Your appraisal has been finalized with a score of %s (%s).",
			detail.FinalScore.Decimal.StringFixed(2), strings.ReplaceAll(*detail.FinalRating, "_", " ")))
	return detail, nil
}

func (s *Service) Dispute(ctx context.Context, user auth.UserContext, id string, in DisputeInput) (AppraisalDetail, error) {
	return s.mutate(ctx, user, id, "dispute", func(a *Appraisal, _ []Score) ([]Score, error) {
		if user.EmployeeID == "" || a.EmployeeID != user.EmployeeID {
			return nil, ErrForbidden
		}
		if a.Status != StatusCompleted {
			return nil, fmt.Errorf("%w: only completed appraisals can be disputed", ErrInvalidTransition)
		}
		a.Status = StatusDisputed
		a.DisputeReason = strings.TrimSpace(in.Reason)
		return nil, nil
	})
}

func (s *Service) Resolve(ctx context.Context, user auth.UserContext, id string, in ResolveInput) (AppraisalDetail, error) {
	if !isHR(user) {
		return AppraisalDetail{}, ErrForbidden
	}
	return s.mutate(ctx, user, id, "resolve", func(a *Appraisal, _ []Score) ([]Score, error) {
		if a.Status != StatusDisputed {
			return nil, fmt.Errorf("%w: appraisal is not disputed", ErrInvalidTransition)
		}
		a.Status = StatusClosed
		a.DisputeResolution = strings.TrimSpace(in.Resolution)
		return nil, nil
	})
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
