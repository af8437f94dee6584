package payrollhandler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/payroll"
	"schoolerp/internal/transport/http/api"
	"schoolerp/internal/transport/http/middleware"
	"schoolerp/internal/transport/http/shared"
)

type Handler struct {
	Service     *payroll.Service
	Perms       middleware.PermissionStore
	Idempotency middleware.IdempotencyKeys
}

func NewHandler(service *payroll.Service, perms middleware.PermissionStore, idem middleware.IdempotencyKeys) *Handler {
	return &Handler{Service: service, Perms: perms, Idempotency: idem}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermPayrollRead, h.Perms)
	write := middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)
	process := middleware.RequirePermission(auth.PermPayrollProcess, h.Perms)
	approve := middleware.RequirePermission(auth.PermPayrollApprove, h.Perms)
	once := middleware.Idempotent(h.Idempotency)

	r.Route("/payroll", func(r chi.Router) {
		r.With(read).Get("/earning-types", h.handleListEarningTypes)
		r.With(write).Post("/earning-types", h.handleCreateEarningType)
		r.With(read).Get("/deduction-types", h.handleListDeductionTypes)
		r.With(write).Post("/deduction-types", h.handleCreateDeductionType)

		r.With(read).Get("/pay-profiles", h.handleListPayProfiles)
		r.With(write).Post("/pay-profiles", h.handleCreatePayProfile)
		r.With(write).Post("/pay-profiles/assign", h.handleAssignPayProfile)

		r.With(read).Get("/employees/{employeeID}/pay-profiles", h.handleEmployeePayProfiles)
		r.With(read).Get("/employees/{employeeID}/earnings", h.handleEmployeeEarnings)
		r.With(write).Post("/earnings", h.handleAddEarning)
		r.With(read).Get("/employees/{employeeID}/deductions", h.handleEmployeeDeductions)
		r.With(write).Post("/deductions", h.handleAddDeduction)

		r.With(read).Get("/tax-bands", h.handleListTaxBands)
		r.With(write).Post("/tax-bands", h.handleCreateTaxBand)
		r.With(read).Get("/settings", h.handleSettings)
		r.With(write).Put("/settings", h.handleSaveSettings)

		r.With(read).Get("/periods", h.handleListPeriods)
		r.With(write).Post("/periods", h.handleCreatePeriod)
		r.Route("/periods/{periodID}", func(r chi.Router) {
			r.With(read).Get("/", h.handleGetPeriod)
			r.With(process).Post("/process", h.handleProcess)
			r.With(approve, once).Post("/approve", h.handleApprove)
			r.With(approve, once).Post("/pay", h.handlePay)
			r.With(approve).Post("/close", h.handleClose)
			r.With(approve).Post("/lock", h.handleLock)
			r.With(approve).Post("/unlock", h.handleUnlock)
			r.With(approve).Post("/reopen", h.handleReopen)
			r.With(read).Get("/calculations", h.handleListCalculations)
			r.With(read).Get("/summary", h.handleSummary)
			r.With(read).Get("/audit-log", h.handleAuditLog)
			r.With(process).Post("/payslips", h.handleGeneratePayslips)
			r.Get("/employees/{employeeID}/payslip", h.handleRenderPayslip)
		})

		r.With(read).Get("/calculations/{calculationID}", h.handleBreakdown)
		r.With(write).Put("/calculations/{calculationID}/payment-status", h.handlePaymentStatus)

		r.Get("/payslips/mine", h.handleMyPayslips)
		r.Get("/payslips/{payslipID}/download", h.handleDownloadPayslip)
		r.With(write).Post("/payslips/{payslipID}/email", h.handleEmailPayslip)
	})
}

func (h *Handler) handleListEarningTypes(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListEarningTypes(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateEarningType(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload payroll.EarningTypeInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.CreateEarningType(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDeductionTypes(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListDeductionTypes(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateDeductionType(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload payroll.DeductionTypeInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.CreateDeductionType(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPayProfiles(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListPayProfiles(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreatePayProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload payroll.PayProfileInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	profile, err := h.Service.CreatePayProfile(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, profile, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAssignPayProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload payroll.AssignProfileInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	if payload.BasicSalary.Valid && !payload.BasicSalary.Decimal.IsPositive() {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "basicSalary", Reason: "basicSalary must be positive"}})
		return
	}
	id, err := h.Service.AssignPayProfile(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEmployeePayProfiles(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.EmployeePayProfiles(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEmployeeEarnings(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.EmployeeEarnings(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddEarning(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload payroll.EmployeeEarningInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.AddEmployeeEarning(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEmployeeDeductions(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.EmployeeDeductions(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddDeduction(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload payroll.EmployeeDeductionInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.AddEmployeeDeduction(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListTaxBands(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListTaxBands(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateTaxBand(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload payroll.TaxBandInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	if payload.Upper.Valid && !payload.Upper.Decimal.GreaterThan(payload.Lower) {
		v.Add("upperBound", "upperBound must be above lowerBound")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	id, err := h.Service.CreateTaxBand(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Service.Settings(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, settings, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload payroll.Settings
	if !shared.Decode(w, r, &payload) {
		return
	}
	settings, err := h.Service.SaveSettings(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, settings, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	v := shared.NewValidator()
	v.Enum("status", status, []string{
		payroll.PeriodOpen, payroll.PeriodProcessing, payroll.PeriodCalculated,
		payroll.PeriodApproved, payroll.PeriodPaid, payroll.PeriodClosed,
	}, "unknown period status")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	page := shared.ParsePagination(r, 24, 120)
	items, err := h.Service.ListPeriods(r.Context(), status, page.Limit, page.Offset)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload payroll.PeriodInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	start, _ := v.Date("startDate", payload.StartDate)
	end, _ := v.Date("endDate", payload.EndDate)
	v.DateOrder("startDate", start, "endDate", end)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	period, err := h.Service.CreatePeriod(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.Service.GetPeriod(r.Context(), chi.URLParam(r, "periodID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

// handleProcess queues the payroll run and answers 202 with the job run id.
// ?sync=true calculates inline and returns the run summary.
func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("sync"))
	result, err := h.Service.Process(r.Context(), user, chi.URLParam(r, "periodID"), wait)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	if result.Summary == nil {
		api.Accepted(w, result, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	period, err := h.Service.Approve(r.Context(), user, chi.URLParam(r, "periodID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload payroll.PayInput
	if !shared.DecodeOptional(w, r, &payload) {
		return
	}
	period, err := h.Service.Pay(r.Context(), user, chi.URLParam(r, "periodID"), payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	period, err := h.Service.Close(r.Context(), user, chi.URLParam(r, "periodID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

type reasonPayload struct {
	Reason string `json:"reason" validate:"notblank,max=500"`
}

type periodTransition func(r *http.Request, user auth.UserContext, id, reason string) (payroll.Period, error)

func (h *Handler) withReason(w http.ResponseWriter, r *http.Request, apply periodTransition) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload reasonPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	period, err := apply(r, user, chi.URLParam(r, "periodID"), payload.Reason)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, func(r *http.Request, user auth.UserContext, id, reason string) (payroll.Period, error) {
		return h.Service.Lock(r.Context(), user, id, reason)
	})
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, func(r *http.Request, user auth.UserContext, id, reason string) (payroll.Period, error) {
		return h.Service.Unlock(r.Context(), user, id, reason)
	})
}

func (h *Handler) handleReopen(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, func(r *http.Request, user auth.UserContext, id, reason string) (payroll.Period, error) {
		return h.Service.Reopen(r.Context(), user, id, reason)
	})
}

func (h *Handler) handleListCalculations(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListCalculations(r.Context(), chi.URLParam(r, "periodID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Service.Summary(r.Context(), chi.URLParam(r, "periodID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, sum, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.AuditLog(r.Context(), chi.URLParam(r, "periodID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	out, err := h.Service.Breakdown(r.Context(), user, chi.URLParam(r, "calculationID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload payroll.PaymentStatusInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	calc, err := h.Service.SetPaymentStatus(r.Context(), user, chi.URLParam(r, "calculationID"), payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, calc, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGeneratePayslips(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	result, err := h.Service.GeneratePayslips(r.Context(), user, chi.URLParam(r, "periodID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRenderPayslip(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	number, pdf, err := h.Service.RenderFor(r.Context(), user, chi.URLParam(r, "periodID"), chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.File(w, number+".pdf", "application/pdf", pdf)
}

func (h *Handler) handleMyPayslips(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	items, err := h.Service.MyPayslips(r.Context(), user)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadPayslip(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	slip, pdf, err := h.Service.DownloadPayslip(r.Context(), user, chi.URLParam(r, "payslipID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.File(w, slip.Number+".pdf", "application/pdf", pdf)
}

func (h *Handler) handleEmailPayslip(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	slip, err := h.Service.EmailPayslip(r.Context(), user, chi.URLParam(r, "payslipID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, slip, middleware.GetRequestID(r.Context()))
}
