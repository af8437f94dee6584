package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/platform/lock"
	"schoolerp/internal/platform/querier"
)

type ProcessResult struct {
	PeriodID string      `json:"periodId"`
	Status   string      `json:"status"`
	JobRunID string      `json:"jobRunId,omitempty"`
	Summary  *RunSummary `json:"summary,omitempty"`
}

type computed struct {
	calc    Calculation
	details []Detail
}

// Process moves the period to processing and calculates every payable
// employee. Unless wait is set and a jobs service is configured, the work is
// queued and the job run id is returned. Only one run per period may be in
// flight across replicas.
func (s *Service) Process(ctx context.Context, user auth.UserContext, periodID string, wait bool) (ProcessResult, error) {
	release, err := s.Locker.Acquire(ctx, lock.PayrollPeriodKey(periodID), s.opts.LockTTL)
	if errors.Is(err, lock.ErrLocked) {
		return ProcessResult{}, ErrAlreadyRunning
	}
	if err != nil {
		return ProcessResult{}, err
	}
	unlock := func() {
		if err := release(context.Background()); err != nil {
			slog.Warn("payroll lock release failed", "periodId", periodID, "err", err)
		}
	}

	if err := s.startProcessing(ctx, periodID); err != nil {
		unlock()
		return ProcessResult{}, err
	}

	run := func(jobCtx context.Context) (any, error) {
		defer unlock()
		summary, err := s.calculate(jobCtx, user, periodID)
		if err != nil {
			s.Metrics.PayrollRun(false)
			if revertErr := s.revertProcessing(context.WithoutCancel(jobCtx), periodID); revertErr != nil {
				slog.Error("payroll revert failed", "periodId", periodID, "err", revertErr)
			}
			slog.Error("payroll run failed", "periodId", periodID, "err", err)
			return nil, err
		}
		s.Metrics.PayrollRun(true)
		slog.Info("payroll run completed", "periodId", periodID, "employees", summary.Employees)
		return summary, nil
	}

	if s.Jobs == nil || wait {
		var out any
		var runID string
		if s.Jobs != nil {
			runID, out, err = s.Jobs.RunNow(ctx, JobProcess, user.UserID, run)
		} else {
			out, err = run(ctx)
		}
		if err != nil {
			return ProcessResult{}, err
		}
		summary := out.(RunSummary)
		return ProcessResult{PeriodID: periodID, Status: PeriodCalculated, JobRunID: runID, Summary: &summary}, nil
	}

	runID, err := s.Jobs.Enqueue(ctx, JobProcess, user.UserID, run)
	if err != nil {
		if revertErr := s.revertProcessing(ctx, periodID); revertErr != nil {
			slog.Error("payroll revert failed", "periodId", periodID, "err", revertErr)
		}
		unlock()
		return ProcessResult{}, err
	}
	return ProcessResult{PeriodID: periodID, Status: PeriodProcessing, JobRunID: runID}, nil
}

func (s *Service) startProcessing(ctx context.Context, periodID string) error {
	return s.Store.InTx(ctx, func(q querier.Querier) error {
		p, err := s.Store.LockPeriod(ctx, q, periodID)
		if err != nil {
			return err
		}
		if p.Locked {
			return ErrPeriodLocked
		}
		if err := requireStatus(&p, PeriodOpen, PeriodProcessing); err != nil {
			return err
		}
		now := s.Now()
		p.Status = PeriodProcessing
		p.ProcessingStartedAt = &now
		p.ProcessingCompletedAt = nil
		return s.Store.SavePeriod(ctx, q, p)
	})
}

func (s *Service) revertProcessing(ctx context.Context, periodID string) error {
	return s.Store.InTx(ctx, func(q querier.Querier) error {
		p, err := s.Store.LockPeriod(ctx, q, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodProcessing {
			return nil
		}
		p.Status = PeriodOpen
		p.ProcessingStartedAt = nil
		return s.Store.SavePeriod(ctx, q, p)
	})
}

// calculate computes all employees concurrently and commits every result
// in a single transaction.
func (s *Service) calculate(ctx context.Context, user auth.UserContext, periodID string) (RunSummary, error) {
	period, err := s.Store.GetPeriod(ctx, s.Store.Pool(), periodID)
	if err != nil {
		return RunSummary{}, err
	}
	employees, err := s.Store.PayrollEmployees(ctx, period)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list payroll employees: %w", err)
	}
	bands, err := s.Store.BandsFor(ctx, period.EndDate)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load tax bands: %w", err)
	}
	settings, err := s.Store.Settings(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load payroll settings: %w", err)
	}

	calculatedBy := user.UserID
	if calculatedBy == "" {
		calculatedBy = "system"
	}
	results := make([]computed, len(employees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, emp := range employees {
		g.Go(func() error {
			r, err := s.computeEmployee(gctx, period, emp, bands, settings)
			if err != nil {
				return fmt.Errorf("employee %s: %w", emp.EmployeeNo, err)
			}
			r.calc.CalculatedBy = calculatedBy
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RunSummary{}, err
	}

	var summary RunSummary
	err = s.Store.InTx(ctx, func(q querier.Querier) error {
		keep := make([]string, 0, len(results))
		for _, r := range results {
			if _, err := s.Store.SaveCalculation(ctx, q, r.calc, r.details); err != nil {
				return err
			}
			keep = append(keep, r.calc.EmployeeID)
		}
		if err := s.Store.PruneCalculations(ctx, q, periodID, keep); err != nil {
			return err
		}
		if err := s.Store.ClaimEncashments(ctx, q, periodID, keep); err != nil {
			return err
		}
		totals, err := s.Store.Summary(ctx, q, periodID)
		if err != nil {
			return err
		}
		p, err := s.Store.LockPeriod(ctx, q, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodProcessing {
			return fmt.Errorf("%w: period changed to %s during the run", ErrInvalidTransition, p.Status)
		}
		before := p
		now := s.Now()
		p.Status = PeriodCalculated
		p.ProcessingCompletedAt = &now
		p.EmployeeCount = totals.EmployeeCount
		p.TotalGross = totals.GrossPay
		p.TotalDeductions = totals.Deductions
		p.TotalNet = totals.NetPay
		if err := s.Store.SavePeriod(ctx, q, p); err != nil {
			return err
		}
		summary = RunSummary{PeriodID: periodID, Employees: totals.EmployeeCount, GrossPay: totals.GrossPay, NetPay: totals.NetPay}
		return s.logAction(ctx, q, user, periodID, nil, ActionCalculated, "", before, totals)
	})
	return summary, err
}

func (s *Service) computeEmployee(ctx context.Context, period Period, emp PayrollEmployee, bands []TaxBand, settings Settings) (computed, error) {
	earnings, err := s.Store.EarningLines(ctx, emp, period)
	if err != nil {
		return computed{}, err
	}
	deductions, err := s.Store.DeductionLines(ctx, emp, period)
	if err != nil {
		return computed{}, err
	}
	overtime, err := s.Store.OvertimeHours(ctx, emp.EmployeeID, period.StartDate, period.EndDate)
	if err != nil {
		return computed{}, err
	}
	encashment, err := s.Store.EncashmentTotal(ctx, emp.EmployeeID, period.ID)
	if err != nil {
		return computed{}, err
	}
	calc, details := Compute(Input{
		Basic:         emp.BasicSalary,
		Earnings:      earnings,
		Deductions:    deductions,
		OvertimeHours: overtime,
		Encashment:    encashment,
		Bands:         bands,
		Settings:      settings,
	})
	calc.EmployeeID = emp.EmployeeID
	calc.EmployeeNo = emp.EmployeeNo
	calc.EmployeeName = emp.FullName
	calc.PeriodID = period.ID
	calc.BankAccountNumber = emp.BankAccount
	calc.PaymentMethod = "bank_transfer"
	if emp.BankAccount == "" {
		calc.PaymentMethod = "cash"
	}
	calc.PaymentStatus = PaymentPending
	calc.CalculatedAt = s.Now()
	return computed{calc: calc, details: details}, nil
}
