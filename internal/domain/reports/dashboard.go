package reports

import (
	"context"

	"golang.org/x/sync/errgroup"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/platform/cache"
)

const hrDashboardKey = "dashboard:hr"

type EmployeeDashboard struct {
	LeaveBalance   float64 `json:"leaveBalance"`
	PayslipCount   int     `json:"payslipCount"`
	OpenAppraisals int     `json:"openAppraisals"`
}

type TeamDashboard struct {
	PendingApprovals   int `json:"pendingApprovals"`
	AppraisalsToReview int `json:"appraisalsToReview"`
}

type HRDashboard struct {
	ActiveEmployees    int `json:"activeEmployees"`
	OpenPayrollPeriods int `json:"openPayrollPeriods"`
	LeavePending       int `json:"leavePending"`
	ActiveCycles       int `json:"activeCycles"`
}

// Dashboard holds the sections the caller's role can see.
type Dashboard struct {
	Employee *EmployeeDashboard `json:"employee,omitempty"`
	Team     *TeamDashboard     `json:"team,omitempty"`
	HR       *HRDashboard       `json:"hr,omitempty"`
}

func (s *Service) Dashboard(ctx context.Context, user auth.UserContext) (Dashboard, error) {
	var out Dashboard
	g, gctx := errgroup.WithContext(ctx)
	if user.EmployeeID != "" {
		out.Employee = &EmployeeDashboard{}
		year := s.Now().Year()
		g.Go(func() (err error) {
			out.Employee.LeaveBalance, err = s.Store.LeaveBalance(gctx, user.EmployeeID, year)
			return err
		})
		g.Go(func() (err error) {
			out.Employee.PayslipCount, err = s.Store.PayslipCount(gctx, user.EmployeeID)
			return err
		})
		g.Go(func() (err error) {
			out.Employee.OpenAppraisals, err = s.Store.OpenAppraisals(gctx, user.EmployeeID)
			return err
		})
	}
	switch auth.ScopeFor(user.RoleName) {
	case auth.ScopeTeam:
		out.Team = &TeamDashboard{}
		g.Go(func() (err error) {
			out.Team.PendingApprovals, err = s.Store.PendingApprovals(gctx, user.UserID)
			return err
		})
		if user.EmployeeID != "" {
			g.Go(func() (err error) {
				out.Team.AppraisalsToReview, err = s.Store.AppraisalsToReview(gctx, user.EmployeeID)
				return err
			})
		}
	case auth.ScopeAll:
		g.Go(func() error {
			hr, err := cache.GetOrLoad(gctx, s.Cache, hrDashboardKey, s.hrDashboard)
			out.HR = &hr
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return out, nil
}

func (s *Service) hrDashboard(ctx context.Context) (HRDashboard, error) {
	var hr HRDashboard
	var err error
	if hr.ActiveEmployees, err = s.Store.ActiveEmployees(ctx); err != nil {
		return HRDashboard{}, err
	}
	if hr.OpenPayrollPeriods, err = s.Store.OpenPayrollPeriods(ctx); err != nil {
		return HRDashboard{}, err
	}
	if hr.LeavePending, err = s.Store.PendingApprovals(ctx, ""); err != nil {
		return HRDashboard{}, err
	}
	if hr.ActiveCycles, err = s.Store.ActiveCycles(ctx); err != nil {
		return HRDashboard{}, err
	}
	return hr, nil
}
