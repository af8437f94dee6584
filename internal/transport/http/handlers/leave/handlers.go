package leavehandler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/leave"
	"schoolerp/internal/platform/jobs"
	"schoolerp/internal/transport/http/api"
	"schoolerp/internal/transport/http/middleware"
	"schoolerp/internal/transport/http/shared"
)

const (
	jobLeaveAccrual      = "leave_accrual"
	jobLeaveCarryForward = "leave_carry_forward"
)

type Handler struct {
	Service *leave.Service
	Perms   middleware.PermissionStore
	Jobs    *jobs.Service
}

func NewHandler(service *leave.Service, perms middleware.PermissionStore, jobSvc *jobs.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Jobs: jobSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermLeaveRead, h.Perms)
	write := middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)
	approve := middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)
	admin := middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)

	r.Route("/leave", func(r chi.Router) {
		r.Get("/types", h.handleListTypes)
		r.With(admin).Post("/types", h.handleCreateType)
		r.With(read).Get("/policies", h.handleListPolicies)
		r.With(admin).Post("/policies", h.handleSavePolicy)

		r.Get("/holidays", h.handleListHolidays)
		r.With(admin).Post("/holidays", h.handleAddHoliday)
		r.With(admin).Delete("/holidays/{date}", h.handleRemoveHoliday)
		r.Get("/blackouts", h.handleListBlackouts)
		r.With(admin).Post("/blackouts", h.handleCreateBlackout)

		r.With(read).Get("/balances/{employeeID}", h.handleBalances)
		r.With(admin).Post("/balances", h.handleInitializeBalance)
		r.With(admin).Post("/balances/{balanceID}/adjust", h.handleAdjustBalance)

		r.With(write).Post("/applications", h.handleCreateApplication)
		r.With(read).Get("/applications", h.handleListApplications)
		r.With(read).Get("/applications/{applicationID}", h.handleGetApplication)
		r.With(write).Post("/applications/{applicationID}/submit", h.handleSubmit)
		r.With(approve).Post("/applications/{applicationID}/approve", h.handleApprove)
		r.With(approve).Post("/applications/{applicationID}/reject", h.handleReject)
		r.With(write).Post("/applications/{applicationID}/cancel", h.handleCancel)
		r.With(middleware.RequireAnyPermission(h.Perms, auth.PermLeaveApprove, auth.PermLeaveAdmin)).Get("/pending-approvals", h.handlePendingApprovals)

		r.With(admin).Post("/accrue", h.handleAccrue)
		r.With(admin).Post("/carry-forward", h.handleCarryForward)

		r.With(write).Post("/encashments", h.handleRequestEncashment)
		r.With(read).Get("/encashments", h.handleListEncashments)
		r.With(admin).Post("/encashments/{encashmentID}/approve", h.handleApproveEncashment)
		r.With(admin).Post("/encashments/{encashmentID}/reject", h.handleRejectEncashment)
	})
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	items, err := h.Service.ListTypes(r.Context(), activeOnly)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload leave.TypeInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	lt, err := h.Service.CreateType(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, lt, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListPolicies(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSavePolicy(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload leave.PolicyInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.SavePolicy(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

// yearParam reads ?year=, defaulting to the current year.
func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return time.Now().Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 2000 || year > 2100 {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "year", Reason: "must be a year between 2000 and 2100"}})
		return 0, false
	}
	return year, true
}

func (h *Handler) handleListHolidays(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	items, err := h.Service.ListHolidays(r.Context(), year)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddHoliday(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload leave.HolidayInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	if err := h.Service.AddHoliday(r.Context(), user, payload); err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, payload, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRemoveHoliday(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	date := chi.URLParam(r, "date")
	v := shared.NewValidator()
	v.Date("date", date)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	if err := h.Service.RemoveHoliday(r.Context(), user, date); err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]string{"date": date}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListBlackouts(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListBlackouts(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateBlackout(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload leave.BlackoutInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.CreateBlackout(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	items, err := h.Service.EmployeeBalances(r.Context(), user, chi.URLParam(r, "employeeID"), year)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleInitializeBalance(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload leave.BalanceInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	bal, err := h.Service.InitializeBalance(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, bal, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload leave.AdjustInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	if payload.Days.IsZero() {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "days", Reason: "days must not be zero"}})
		return
	}
	bal, err := h.Service.AdjustBalance(r.Context(), user, chi.URLParam(r, "balanceID"), payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, bal, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload leave.ApplicationInput
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
	app, err := h.Service.CreateApplication(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, app, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("status", q.Get("status"), []string{
		leave.StatusDraft, leave.StatusSubmitted, leave.StatusPendingApproval, leave.StatusApproved,
		leave.StatusRejected, leave.StatusCancelled, leave.StatusOnLeave, leave.StatusCompleted,
	}, "unknown application status")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	items, err := h.Service.ListApplications(r.Context(), user, leave.ApplicationFilter{
		EmployeeID:  q.Get("employee"),
		LeaveTypeID: q.Get("type"),
		Status:      q.Get("status"),
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	app, err := h.Service.GetApplication(r.Context(), user, chi.URLParam(r, "applicationID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, app, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	app, err := h.Service.Submit(r.Context(), user, chi.URLParam(r, "applicationID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, app, middleware.GetRequestID(r.Context()))
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload leave.DecisionInput
	if !shared.DecodeOptional(w, r, &payload) {
		return
	}
	id := chi.URLParam(r, "applicationID")
	var (
		app leave.Application
		err error
	)
	if approve {
		app, err = h.Service.Approve(r.Context(), user, id, payload)
	} else {
		app, err = h.Service.Reject(r.Context(), user, id, payload)
	}
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, app, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

type cancelPayload struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload cancelPayload
	if !shared.DecodeOptional(w, r, &payload) {
		return
	}
	app, err := h.Service.Cancel(r.Context(), user, chi.URLParam(r, "applicationID"), payload.Reason)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, app, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	items, err := h.Service.PendingApprovals(r.Context(), user)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

type accruePayload struct {
	AsOf string `json:"asOf" validate:"omitempty,datetime=2006-01-02"`
}

// handleAccrue runs monthly accrual synchronously; the run is still recorded
// as a job so the scheduler and manual triggers share one history.
func (h *Handler) handleAccrue(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload accruePayload
	if !shared.DecodeOptional(w, r, &payload) {
		return
	}
	asOf := time.Now()
	if payload.AsOf != "" {
		parsed, err := shared.ParseDate(payload.AsOf)
		if err != nil {
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "asOf", Reason: "must be a valid date in YYYY-MM-DD format"}})
			return
		}
		asOf = parsed
	}
	runID, result, err := h.Jobs.RunNow(r.Context(), jobLeaveAccrual, user.UserID, func(ctx context.Context) (any, error) {
		return h.Service.AccrueMonthly(ctx, asOf)
	})
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]any{"jobRunId": runID, "summary": result}, middleware.GetRequestID(r.Context()))
}

type carryForwardPayload struct {
	FromYear int `json:"fromYear" validate:"gte=2000,lte=2100"`
}

func (h *Handler) handleCarryForward(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload carryForwardPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	runID, result, err := h.Jobs.RunNow(r.Context(), jobLeaveCarryForward, user.UserID, func(ctx context.Context) (any, error) {
		return h.Service.CarryForward(ctx, user, payload.FromYear)
	})
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]any{"jobRunId": runID, "summary": result}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRequestEncashment(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload leave.EncashmentInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	enc, err := h.Service.RequestEncashment(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, enc, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEncashments(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("status", q.Get("status"), []string{leave.EncashRequested, leave.EncashApproved, leave.EncashRejected, leave.EncashProcessed}, "unknown encashment status")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	items, err := h.Service.ListEncashments(r.Context(), user, q.Get("employee"), q.Get("status"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) decideEncashment(w http.ResponseWriter, r *http.Request, approve bool) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	enc, err := h.Service.DecideEncashment(r.Context(), user, chi.URLParam(r, "encashmentID"), approve)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, enc, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApproveEncashment(w http.ResponseWriter, r *http.Request) {
	h.decideEncashment(w, r, true)
}

func (h *Handler) handleRejectEncashment(w http.ResponseWriter, r *http.Request) {
	h.decideEncashment(w, r, false)
}
