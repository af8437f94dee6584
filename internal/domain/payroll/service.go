package payroll

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"schoolerp/internal/domain/audit"
	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/notifications"
	"schoolerp/internal/platform/crypto"
	"schoolerp/internal/platform/email"
	"schoolerp/internal/platform/events"
	"schoolerp/internal/platform/jobs"
	"schoolerp/internal/platform/lock"
	"schoolerp/internal/platform/metrics"
	"schoolerp/internal/platform/querier"
	"schoolerp/internal/platform/storage"
	"schoolerp/internal/requestctx"
)

type Options struct {
	Workers     int
	LockTTL     time.Duration
	Institution string
}

type Service struct {
	Store         StoreAPI
	Audit         *audit.Service
	Outbox        *events.Outbox
	Notifications *notifications.Service
	Metrics       *metrics.Collector
	Jobs          *jobs.Service
	Locker        lock.Locker
	Files         storage.Store
	Mailer        email.Mailer
	Crypto        *crypto.Service
	Now           func() time.Time
	opts          Options
}

func NewService(store StoreAPI, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	if opts.Institution == "" {
		opts.Institution = "School ERP"
	}
	return &Service{
		Store:  store,
		Locker: lock.NewLocalLocker(),
		Now:    time.Now,
		opts:   opts,
	}
}

// PeriodEvent is published when a period is approved or paid.
type PeriodEvent struct {
	PeriodID      string          `json:"periodId"`
	PeriodName    string          `json:"periodName"`
	Status        string          `json:"status"`
	EmployeeCount int             `json:"employeeCount"`
	TotalGross    decimal.Decimal `json:"totalGrossPay"`
	TotalNet      decimal.Decimal `json:"totalNetPay"`
	PaymentDate   string          `json:"paymentDate"`
	PerformedBy   string          `json:"performedBy"`
}

func parseDay(value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidInput, value)
	}
	return t, nil
}

func parseOptionalDay(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := parseDay(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) ListEarningTypes(ctx context.Context) ([]EarningType, error) {
	return s.Store.ListEarningTypes(ctx)
}

func (s *Service) CreateEarningType(ctx context.Context, user auth.UserContext, in EarningTypeInput) (string, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	id, err := s.Store.CreateEarningType(ctx, in)
	if err != nil {
		return "", err
	}
	s.record(ctx, user, "payroll.earning_type.create", "earning_type", id, nil, in)
	return id, nil
}

func (s *Service) ListDeductionTypes(ctx context.Context) ([]DeductionType, error) {
	return s.Store.ListDeductionTypes(ctx)
}

func (s *Service) CreateDeductionType(ctx context.Context, user auth.UserContext, in DeductionTypeInput) (string, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	id, err := s.Store.CreateDeductionType(ctx, in)
	if err != nil {
		return "", err
	}
	s.record(ctx, user, "payroll.deduction_type.create", "deduction_type", id, nil, in)
	return id, nil
}

func (s *Service) ListPayProfiles(ctx context.Context) ([]PayProfile, error) {
	return s.Store.ListPayProfiles(ctx)
}

func (s *Service) CreatePayProfile(ctx context.Context, user auth.UserContext, in PayProfileInput) (PayProfile, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if in.PayFrequency == "" {
		in.PayFrequency = "monthly"
	}
	id, err := s.Store.CreatePayProfile(ctx, in)
	if err != nil {
		return PayProfile{}, err
	}
	profile, err := s.Store.GetPayProfile(ctx, id)
	if err != nil {
		return PayProfile{}, err
	}
	s.record(ctx, user, "payroll.pay_profile.create", "pay_profile", id, nil, profile)
	return profile, nil
}

// AssignPayProfile gives the employee a profile from the effective date. The
// profile's basic salary applies unless the request overrides it.
func (s *Service) AssignPayProfile(ctx context.Context, user auth.UserContext, in AssignProfileInput) (string, error) {
	from, err := parseDay(in.EffectiveFrom)
	if err != nil {
		return "", err
	}
	profile, err := s.Store.GetPayProfile(ctx, in.PayProfileID)
	if err != nil {
		return "", err
	}
	ok, err := s.Store.EmployeeExists(ctx, in.EmployeeID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotFound
	}
	basic := profile.BasicSalary
	if in.BasicSalary.Valid {
		if !in.BasicSalary.Decimal.IsPositive() {
			return "", fmt.Errorf("%w: basic salary must be positive", ErrInvalidInput)
		}
		basic = in.BasicSalary.Decimal
	}
	id, err := s.Store.AssignPayProfile(ctx, in, basic, profile.Currency, from)
	if err != nil {
		return "", err
	}
	s.record(ctx, user, "payroll.pay_profile.assign", "employee", in.EmployeeID, nil, map[string]any{
		"payProfileId":  in.PayProfileID,
		"basicSalary":   basic,
		"effectiveFrom": in.EffectiveFrom,
	})
	return id, nil
}

func (s *Service) EmployeePayProfiles(ctx context.Context, employeeID string) ([]EmployeePayProfile, error) {
	return s.Store.EmployeePayProfiles(ctx, employeeID)
}

func (s *Service) AddEmployeeEarning(ctx context.Context, user auth.UserContext, in EmployeeEarningInput) (string, error) {
	from, err := parseDay(in.EffectiveFrom)
	if err != nil {
		return "", err
	}
	to, err := parseOptionalDay(in.EffectiveTo)
	if err != nil {
		return "", err
	}
	if to != nil && to.Before(from) {
		return "", fmt.Errorf("%w: effective range is reversed", ErrInvalidInput)
	}
	if in.Basis == "" {
		in.Basis = BasisFixed
	}
	if err := s.ensureOpenFor(ctx, in.PayrollPeriodID); err != nil {
		return "", err
	}
	id, err := s.Store.CreateEmployeeEarning(ctx, in, from, to)
	if err != nil {
		return "", err
	}
	s.record(ctx, user, "payroll.earning.create", "employee", in.EmployeeID, nil, in)
	return id, nil
}

func (s *Service) EmployeeEarnings(ctx context.Context, employeeID string) ([]EmployeeEarning, error) {
	return s.Store.ListEmployeeEarnings(ctx, employeeID)
}

func (s *Service) AddEmployeeDeduction(ctx context.Context, user auth.UserContext, in EmployeeDeductionInput) (string, error) {
	from, err := parseDay(in.EffectiveFrom)
	if err != nil {
		return "", err
	}
	to, err := parseOptionalDay(in.EffectiveTo)
	if err != nil {
		return "", err
	}
	if to != nil && to.Before(from) {
		return "", fmt.Errorf("%w: effective range is reversed", ErrInvalidInput)
	}
	if in.Method == "" {
		in.Method = MethodFixed
	}
	for _, v := range []decimal.NullDecimal{in.MaxDeductionAmount, in.BalanceRemaining} {
		if v.Valid && v.Decimal.IsNegative() {
			return "", fmt.Errorf("%w: caps must not be negative", ErrInvalidInput)
		}
	}
	if err := s.ensureOpenFor(ctx, in.PayrollPeriodID); err != nil {
		return "", err
	}
	id, err := s.Store.CreateEmployeeDeduction(ctx, in, from, to)
	if err != nil {
		return "", err
	}
	s.record(ctx, user, "payroll.deduction.create", "employee", in.EmployeeID, nil, in)
	return id, nil
}

func (s *Service) EmployeeDeductions(ctx context.Context, employeeID string) ([]EmployeeDeduction, error) {
	return s.Store.ListEmployeeDeductions(ctx, employeeID)
}

// ensureOpenFor rejects one-time items pinned to a period that can no
// longer be recalculated.
func (s *Service) ensureOpenFor(ctx context.Context, periodID *string) error {
	if periodID == nil || *periodID == "" {
		return nil
	}
	p, err := s.Store.GetPeriod(ctx, s.Store.Pool(), *periodID)
	if err != nil {
		return err
	}
	if p.Locked {
		return ErrPeriodLocked
	}
	if p.Status != PeriodOpen && p.Status != PeriodCalculated {
		return fmt.Errorf("%w: period is %s", ErrInvalidTransition, p.Status)
	}
	return nil
}

func (s *Service) ListTaxBands(ctx context.Context) ([]TaxBand, error) {
	return s.Store.ListTaxBands(ctx)
}

func (s *Service) CreateTaxBand(ctx context.Context, user auth.UserContext, in TaxBandInput) (string, error) {
	from, err := parseDay(in.EffectiveFrom)
	if err != nil {
		return "", err
	}
	if in.Upper.Valid && !in.Upper.Decimal.GreaterThan(in.Lower) {
		return "", fmt.Errorf("%w: upper bound must exceed lower bound", ErrInvalidInput)
	}
	if in.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return "", fmt.Errorf("%w: rate is a fraction between 0 and 1", ErrInvalidInput)
	}
	id, err := s.Store.CreateTaxBand(ctx, in, from)
	if err != nil {
		return "", err
	}
	s.record(ctx, user, "payroll.tax_band.create", "tax_band", id, nil, in)
	return id, nil
}

func (s *Service) Settings(ctx context.Context) (Settings, error) {
	return s.Store.Settings(ctx)
}

func (s *Service) SaveSettings(ctx context.Context, user auth.UserContext, in Settings) (Settings, error) {
	before, err := s.Store.Settings(ctx)
	if err != nil {
		return Settings{}, err
	}
	if err := s.Store.SaveSettings(ctx, in); err != nil {
		return Settings{}, err
	}
	s.record(ctx, user, "payroll.settings.update", "payroll_settings", "default", before, in)
	return in, nil
}

func (s *Service) CreatePeriod(ctx context.Context, user auth.UserContext, in PeriodInput) (Period, error) {
	start, err := parseDay(in.StartDate)
	if err != nil {
		return Period{}, err
	}
	end, err := parseDay(in.EndDate)
	if err != nil {
		return Period{}, err
	}
	payment, err := parseDay(in.PaymentDate)
	if err != nil {
		return Period{}, err
	}
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: end date is before start date", ErrInvalidInput)
	}
	if payment.Before(start) {
		return Period{}, fmt.Errorf("%w: payment date is before the period starts", ErrInvalidInput)
	}
	overlap, err := s.Store.OverlappingPeriod(ctx, in.Type, start, end)
	if err != nil {
		return Period{}, err
	}
	if overlap {
		return Period{}, ErrPeriodOverlap
	}
	in.Name = strings.TrimSpace(in.Name)
	id, err := s.Store.CreatePeriod(ctx, in, start, end, payment)
	if err != nil {
		return Period{}, err
	}
	p, err := s.Store.GetPeriod(ctx, s.Store.Pool(), id)
	if err != nil {
		return Period{}, err
	}
	if err := s.logAction(ctx, s.Store.Pool(), user, p.ID, nil, ActionCreated, "", nil, p); err != nil {
		slog.Warn("payroll audit log failed", "periodId", p.ID, "err", err)
	}
	return p, nil
}

func (s *Service) ListPeriods(ctx context.Context, status string, limit, offset int) ([]Period, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.Store.ListPeriods(ctx, status, limit, offset)
}

func (s *Service) GetPeriod(ctx context.Context, id string) (Period, error) {
	return s.Store.GetPeriod(ctx, s.Store.Pool(), id)
}

// mutatePeriod runs fn against the period row held FOR UPDATE and writes the
// payroll audit entry in the same transaction. Locked periods only accept
// unlock.
func (s *Service) mutatePeriod(ctx context.Context, user auth.UserContext, id, action, reason string, fn func(q querier.Querier, p *Period) error) (Period, error) {
	var out Period
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		p, err := s.Store.LockPeriod(ctx, q, id)
		if err != nil {
			return err
		}
		if p.Locked && action != ActionUnlocked {
			return ErrPeriodLocked
		}
		before := p
		if err := fn(q, &p); err != nil {
			return err
		}
		if err := s.Store.SavePeriod(ctx, q, p); err != nil {
			return err
		}
		if err := s.logAction(ctx, q, user, p.ID, nil, action, reason, before, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func requireStatus(p *Period, allowed ...string) error {
	for _, status := range allowed {
		if p.Status == status {
			return nil
		}
	}
	return fmt.Errorf("%w: period is %s", ErrInvalidTransition, p.Status)
}

func (s *Service) Approve(ctx context.Context, user auth.UserContext, id string) (Period, error) {
	now := s.Now()
	return s.mutatePeriod(ctx, user, id, ActionApproved, "", func(q querier.Querier, p *Period) error {
		if err := requireStatus(p, PeriodCalculated); err != nil {
			return err
		}
		if p.EmployeeCount == 0 {
			return ErrNoCalculations
		}
		p.Status = PeriodApproved
		p.ApprovedBy = &user.UserID
		p.ApprovedDate = &now
		return s.Outbox.Add(ctx, q, events.TypePayrollApproved, p.ID, s.periodEvent(*p, user))
	})
}

// Pay settles every pending calculation. The payment date defaults to the
// period's scheduled payment date.
func (s *Service) Pay(ctx context.Context, user auth.UserContext, id string, in PayInput) (Period, error) {
	paidOn, err := parseOptionalDay(in.PaymentDate)
	if err != nil {
		return Period{}, err
	}
	return s.mutatePeriod(ctx, user, id, ActionPaid, in.Reference, func(q querier.Querier, p *Period) error {
		if err := requireStatus(p, PeriodApproved); err != nil {
			return err
		}
		day := p.PaymentDate
		if paidOn != nil {
			day = *paidOn
		}
		if err := s.Store.SettlePeriod(ctx, q, *p, day, strings.TrimSpace(in.Reference)); err != nil {
			return err
		}
		p.Status = PeriodPaid
		return s.Outbox.Add(ctx, q, events.TypePayrollPaid, p.ID, s.periodEvent(*p, user))
	})
}

func (s *Service) Close(ctx context.Context, user auth.UserContext, id string) (Period, error) {
	return s.mutatePeriod(ctx, user, id, ActionClosed, "", func(_ querier.Querier, p *Period) error {
		if err := requireStatus(p, PeriodPaid); err != nil {
			return err
		}
		p.Status = PeriodClosed
		p.Locked = true
		return nil
	})
}

func (s *Service) Lock(ctx context.Context, user auth.UserContext, id, reason string) (Period, error) {
	return s.mutatePeriod(ctx, user, id, ActionLocked, reason, func(_ querier.Querier, p *Period) error {
		if p.Status == PeriodProcessing {
			return fmt.Errorf("%w: period is processing", ErrInvalidTransition)
		}
		p.Locked = true
		return nil
	})
}

func (s *Service) Unlock(ctx context.Context, user auth.UserContext, id, reason string) (Period, error) {
	return s.mutatePeriod(ctx, user, id, ActionUnlocked, reason, func(_ querier.Querier, p *Period) error {
		if p.Status == PeriodClosed {
			return fmt.Errorf("%w: closed periods stay locked", ErrInvalidTransition)
		}
		p.Locked = false
		return nil
	})
}

// Reopen discards a calculated run so inputs can be corrected.
func (s *Service) Reopen(ctx context.Context, user auth.UserContext, id, reason string) (Period, error) {
	return s.mutatePeriod(ctx, user, id, ActionReopened, reason, func(q querier.Querier, p *Period) error {
		if err := requireStatus(p, PeriodCalculated); err != nil {
			return err
		}
		if err := s.Store.PruneCalculations(ctx, q, p.ID, []string{}); err != nil {
			return err
		}
		if err := s.Store.ReleaseEncashments(ctx, q, p.ID); err != nil {
			return err
		}
		p.Status = PeriodOpen
		p.TotalGross = decimal.Zero
		p.TotalDeductions = decimal.Zero
		p.TotalNet = decimal.Zero
		p.EmployeeCount = 0
		p.ProcessingStartedAt = nil
		p.ProcessingCompletedAt = nil
		return nil
	})
}

func (s *Service) periodEvent(p Period, user auth.UserContext) PeriodEvent {
	return PeriodEvent{
		PeriodID:      p.ID,
		PeriodName:    p.Name,
		Status:        p.Status,
		EmployeeCount: p.EmployeeCount,
		TotalGross:    p.TotalGross,
		TotalNet:      p.TotalNet,
		PaymentDate:   p.PaymentDate.Format(time.DateOnly),
		PerformedBy:   user.UserID,
	}
}

func (s *Service) ListCalculations(ctx context.Context, periodID string) ([]Calculation, error) {
	if _, err := s.Store.GetPeriod(ctx, s.Store.Pool(), periodID); err != nil {
		return nil, err
	}
	return s.Store.ListCalculations(ctx, periodID)
}

// Breakdown returns a calculation with its period and detail lines. Staff
// may only read their own.
func (s *Service) Breakdown(ctx context.Context, user auth.UserContext, id string) (Breakdown, error) {
	calc, err := s.Store.GetCalculation(ctx, s.Store.Pool(), id)
	if err != nil {
		return Breakdown{}, err
	}
	if auth.ScopeFor(user.RoleName) != auth.ScopeAll && calc.EmployeeID != user.EmployeeID {
		return Breakdown{}, ErrForbidden
	}
	period, err := s.Store.GetPeriod(ctx, s.Store.Pool(), calc.PeriodID)
	if err != nil {
		return Breakdown{}, err
	}
	details, err := s.Store.Details(ctx, id)
	if err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{Calculation: calc, Period: period, Earnings: []Detail{}, Deductions: []Detail{}}
	for _, d := range details {
		if d.ItemType == ItemEarning {
			b.Earnings = append(b.Earnings, d)
		} else {
			b.Deductions = append(b.Deductions, d)
		}
	}
	return b, nil
}

// SetPaymentStatus records the outcome of one transfer. It is an
// adjustment against an approved or paid period.
func (s *Service) SetPaymentStatus(ctx context.Context, user auth.UserContext, id string, in PaymentStatusInput) (Calculation, error) {
	var out Calculation
	err := s.Store.InTx(ctx, func(q querier.Querier) error {
		calc, err := s.Store.GetCalculation(ctx, q, id)
		if err != nil {
			return err
		}
		p, err := s.Store.LockPeriod(ctx, q, calc.PeriodID)
		if err != nil {
			return err
		}
		if p.Locked {
			return ErrPeriodLocked
		}
		if err := requireStatus(&p, PeriodApproved, PeriodPaid); err != nil {
			return err
		}
		var paidOn *time.Time
		if in.Status == PaymentPaid {
			day := s.Now()
			paidOn = &day
		}
		if err := s.Store.SetPaymentStatus(ctx, q, id, in.Status, strings.TrimSpace(in.Reference), paidOn); err != nil {
			return err
		}
		before := map[string]any{"paymentStatus": calc.PaymentStatus, "paymentReference": calc.PaymentReference}
		after := map[string]any{"paymentStatus": in.Status, "paymentReference": in.Reference}
		if err := s.logAction(ctx, q, user, p.ID, &calc.EmployeeID, ActionAdjusted, "payment status", before, after); err != nil {
			return err
		}
		calc.PaymentStatus = in.Status
		calc.PaymentReference = in.Reference
		calc.PaymentDate = paidOn
		out = calc
		return nil
	})
	return out, err
}

func (s *Service) Summary(ctx context.Context, periodID string) (PeriodSummary, error) {
	p, err := s.Store.GetPeriod(ctx, s.Store.Pool(), periodID)
	if err != nil {
		return PeriodSummary{}, err
	}
	sum, err := s.Store.Summary(ctx, s.Store.Pool(), periodID)
	if err != nil {
		return PeriodSummary{}, err
	}
	sum.Status = p.Status
	return sum, nil
}

// DepartmentSummary totals one department's calculations in a period.
func (s *Service) DepartmentSummary(ctx context.Context, periodID, departmentID string) (PeriodSummary, error) {
	p, err := s.Store.GetPeriod(ctx, s.Store.Pool(), periodID)
	if err != nil {
		return PeriodSummary{}, err
	}
	sum, err := s.Store.DepartmentSummary(ctx, periodID, departmentID)
	if err != nil {
		return PeriodSummary{}, err
	}
	sum.Status = p.Status
	return sum, nil
}

func (s *Service) AuditLog(ctx context.Context, periodID string) ([]AuditEntry, error) {
	if _, err := s.Store.GetPeriod(ctx, s.Store.Pool(), periodID); err != nil {
		return nil, err
	}
	return s.Store.AuditLog(ctx, periodID)
}

// EmployeeHistory lists released calculations for one employee, newest first.
func (s *Service) EmployeeHistory(ctx context.Context, user auth.UserContext, employeeID string, limit int) ([]Calculation, error) {
	if auth.ScopeFor(user.RoleName) != auth.ScopeAll && employeeID != user.EmployeeID {
		return nil, ErrForbidden
	}
	if limit <= 0 || limit > 60 {
		limit = 12
	}
	return s.Store.EmployeeCalculations(ctx, employeeID, limit)
}

func (s *Service) logAction(ctx context.Context, q querier.Querier, user auth.UserContext, periodID string, employeeID *string, action, reason string, before, after any) error {
	oldValues, err := marshalValues(before)
	if err != nil {
		return err
	}
	newValues, err := marshalValues(after)
	if err != nil {
		return err
	}
	var by *string
	if user.UserID != "" {
		by = &user.UserID
	}
	return s.Store.LogAction(ctx, q, AuditEntry{
		PeriodID:    periodID,
		EmployeeID:  employeeID,
		Action:      action,
		OldValues:   oldValues,
		NewValues:   newValues,
		Reason:      reason,
		PerformedBy: by,
		IPAddress:   requestctx.GetClientIP(ctx),
	})
}

func marshalValues(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
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
