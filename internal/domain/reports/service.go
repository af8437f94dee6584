package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/payroll"
	"schoolerp/internal/platform/cache"
	"schoolerp/internal/platform/crypto"
	"schoolerp/internal/platform/jobs"
	"schoolerp/internal/platform/metrics"
	"schoolerp/internal/platform/storage"
)

type StoreAPI interface {
	Employees(ctx context.Context, filter EmployeeFilter) ([]EmployeeRow, error)
	Period(ctx context.Context, id string) (PeriodRow, error)
	Periods(ctx context.Context, ids []string, limit int) ([]PeriodRow, error)
	Register(ctx context.Context, periodID string) ([]RegisterRow, error)
	Attendance(ctx context.Context, from, to time.Time, departmentID string) ([]AttendanceRow, error)
	Leave(ctx context.Context, from, to time.Time, status string) ([]LeaveRow, error)
	Balances(ctx context.Context, year int) ([]BalanceRow, error)
	People(ctx context.Context, userType string) ([]PersonRow, error)
	LeaveBalance(ctx context.Context, employeeID string, year int) (float64, error)
	PayslipCount(ctx context.Context, employeeID string) (int, error)
	OpenAppraisals(ctx context.Context, employeeID string) (int, error)
	PendingApprovals(ctx context.Context, approverUserID string) (int, error)
	AppraisalsToReview(ctx context.Context, appraiserEmployeeID string) (int, error)
	OpenPayrollPeriods(ctx context.Context) (int, error)
	ActiveCycles(ctx context.Context) (int, error)
	ActiveEmployees(ctx context.Context) (int, error)
	ListReportRuns(ctx context.Context, filter JobRunFilter, limit, offset int) ([]jobs.Run, error)
	CountReportRuns(ctx context.Context, filter JobRunFilter) (int, error)
}

// PayslipSource renders a single payslip with the caller's access rules.
type PayslipSource interface {
	RenderFor(ctx context.Context, user auth.UserContext, periodID, employeeID string) (string, []byte, error)
}

type Service struct {
	Store       StoreAPI
	Payslips    PayslipSource
	Jobs        *jobs.Service
	Files       storage.Store
	Crypto      *crypto.Service
	Cache       *cache.Cache
	Metrics     *metrics.Collector
	Institution string
	Now         func() time.Time

	group singleflight.Group
}

func NewService(store StoreAPI, institution string) *Service {
	if institution == "" {
		institution = "School ERP"
	}
	return &Service{Store: store, Institution: institution, Now: time.Now}
}

// Generate renders a report. Concurrent identical requests share one render.
func (s *Service) Generate(ctx context.Context, user auth.UserContext, req Request) (Output, error) {
	def, err := req.validate()
	if err != nil {
		return Output{}, err
	}
	key := req.key(def)
	if req.Type == TypePayslip {
		// payslip access depends on who asks
		key += "|" + user.UserID
	}
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.render(ctx, user, req)
	})
	if err != nil {
		return Output{}, err
	}
	if shared {
		slog.Debug("report render shared", "key", key)
	}
	return v.(Output), nil
}

// GenerateAsync queues the render as a background job. The job result
// records where the file was stored.
func (s *Service) GenerateAsync(ctx context.Context, user auth.UserContext, req Request) (string, error) {
	if _, err := req.validate(); err != nil {
		return "", err
	}
	if s.Files == nil || s.Jobs == nil {
		return "", ErrStorageDisabled
	}
	return s.Jobs.Enqueue(ctx, "report."+req.Type, user.UserID, func(ctx context.Context) (any, error) {
		out, err := s.render(ctx, user, req)
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("%s%s/%s-%s", storagePrefix, req.Type, uuid.NewString(), out.Filename)
		if err := s.Files.Put(ctx, key, out.Data, out.ContentType); err != nil {
			return nil, fmt.Errorf("store report: %w", err)
		}
		return StoredReport{StorageKey: key, Filename: out.Filename, ContentType: out.ContentType, Size: len(out.Data)}, nil
	})
}

// Fetch returns a report file stored by an async job.
func (s *Service) Fetch(ctx context.Context, key string) (Output, error) {
	if s.Files == nil {
		return Output{}, ErrStorageDisabled
	}
	if !strings.HasPrefix(key, storagePrefix) || strings.Contains(key, "..") {
		return Output{}, ErrNotFound
	}
	data, err := s.Files.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Output{}, ErrNotFound
		}
		return Output{}, err
	}
	name := path.Base(key)
	if len(name) > 37 && name[36] == '-' {
		name = name[37:]
	}
	contentType := contentTypePDF
	if strings.HasSuffix(name, "."+FormatXLSX) {
		contentType = contentTypeXLSX
	}
	return Output{Filename: name, ContentType: contentType, Data: data}, nil
}

func (s *Service) ListRuns(ctx context.Context, filter JobRunFilter, limit, offset int) ([]jobs.Run, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	total, err := s.Store.CountReportRuns(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	runs, err := s.Store.ListReportRuns(ctx, filter, limit, offset)
	return runs, total, err
}

func (s *Service) render(ctx context.Context, user auth.UserContext, req Request) (Output, error) {
	stamp := s.Now().Format("20060102")
	if req.Type == TypePayslip {
		if s.Payslips == nil {
			return Output{}, fmt.Errorf("%w: payslips unavailable", ErrUnknownReport)
		}
		number, data, err := s.Payslips.RenderFor(ctx, user, req.param("period_id"), req.param("employee_id"))
		if err != nil {
			return Output{}, err
		}
		s.Metrics.ReportRendered()
		return Output{Filename: number + ".pdf", ContentType: contentTypePDF, Data: data}, nil
	}

	ds, err := s.dataset(ctx, req)
	if err != nil {
		return Output{}, err
	}
	out := Output{Filename: fmt.Sprintf("%s-%s.%s", req.Type, stamp, req.Format)}
	switch req.Format {
	case FormatXLSX:
		out.ContentType = contentTypeXLSX
		out.Data, err = renderXLSX(s.Institution, ds)
	default:
		out.ContentType = contentTypePDF
		out.Data, err = renderPDF(s.Institution, ds, s.Now())
	}
	if err != nil {
		return Output{}, err
	}
	s.Metrics.ReportRendered()
	return out, nil
}

func (s *Service) dataset(ctx context.Context, req Request) (Dataset, error) {
	switch req.Type {
	case TypeEmployees:
		filter := EmployeeFilter{DepartmentID: req.param("department_id"), Status: req.param("status")}
		rows, err := s.Store.Employees(ctx, filter)
		if err != nil {
			return Dataset{}, err
		}
		return employeeDataset(rows, filter), nil

	case TypePayrollRegister:
		return s.register(ctx, req.param("period_id"))

	case TypePayrollComparison:
		var ids []string
		for _, id := range strings.Split(req.param("periods"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				if _, err := uuid.Parse(id); err != nil {
					return Dataset{}, fmt.Errorf("%w: period %q", ErrInvalidParams, id)
				}
				ids = append(ids, id)
			}
		}
		if len(ids) > comparisonMax {
			return Dataset{}, fmt.Errorf("%w: at most %d periods", ErrInvalidParams, comparisonMax)
		}
		periods, err := s.Store.Periods(ctx, ids, comparisonDefault)
		if err != nil {
			return Dataset{}, err
		}
		return comparisonDataset(periods), nil

	case TypeAttendance:
		from, to, err := dateRange(req)
		if err != nil {
			return Dataset{}, err
		}
		rows, err := s.Store.Attendance(ctx, from, to, req.param("department_id"))
		if err != nil {
			return Dataset{}, err
		}
		return attendanceDataset(day(from), day(to), rows), nil

	case TypeLeave:
		from, to, err := dateRange(req)
		if err != nil {
			return Dataset{}, err
		}
		rows, err := s.Store.Leave(ctx, from, to, req.param("status"))
		if err != nil {
			return Dataset{}, err
		}
		return leaveDataset(day(from), day(to), rows), nil

	case TypeLeaveBalances:
		year := s.Now().Year()
		if raw := req.param("year"); raw != "" {
			y, err := strconv.Atoi(raw)
			if err != nil || y < 2000 || y > 2100 {
				return Dataset{}, fmt.Errorf("%w: year %q", ErrInvalidParams, raw)
			}
			year = y
		}
		rows, err := s.Store.Balances(ctx, year)
		if err != nil {
			return Dataset{}, err
		}
		return balanceDataset(year, rows), nil

	case TypePeople:
		userType := req.param("user_type")
		if userType != auth.UserTypeLecturer && userType != auth.UserTypeStudent {
			return Dataset{}, fmt.Errorf("%w: user_type must be lecturer or student", ErrInvalidParams)
		}
		rows, err := s.Store.People(ctx, userType)
		if err != nil {
			return Dataset{}, err
		}
		return peopleDataset(userType, rows), nil
	}
	return Dataset{}, fmt.Errorf("%w: %s", ErrUnknownReport, req.Type)
}

// register loads the period header and its lines in parallel and masks
// bank accounts before they reach the document.
func (s *Service) register(ctx context.Context, periodID string) (Dataset, error) {
	if _, err := uuid.Parse(periodID); err != nil {
		return Dataset{}, fmt.Errorf("%w: period_id", ErrInvalidParams)
	}
	var period PeriodRow
	var rows []RegisterRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		period, err = s.Store.Period(gctx, periodID)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = s.Store.Register(gctx, periodID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}
	for i := range rows {
		account, err := s.Crypto.OpenString(rows[i].BankAccount)
		if err != nil {
			slog.Warn("register bank account unreadable", "employee", rows[i].EmployeeNo, "err", err)
			account = ""
		}
		rows[i].BankAccount = payroll.MaskAccount(account)
	}
	return registerDataset(period, rows), nil
}

func dateRange(req Request) (time.Time, time.Time, error) {
	from, err := time.Parse(time.DateOnly, req.param("from"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from", ErrInvalidParams)
	}
	to, err := time.Parse(time.DateOnly, req.param("to"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to", ErrInvalidParams)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", ErrInvalidParams)
	}
	if to.Sub(from) > 366*24*time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: range longer than a year", ErrInvalidParams)
	}
	return from, to, nil
}
