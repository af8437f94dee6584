package attendancehandler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"schoolerp/internal/domain/attendance"
	"schoolerp/internal/domain/auth"
	"schoolerp/internal/transport/http/api"
	"schoolerp/internal/transport/http/middleware"
	"schoolerp/internal/transport/http/shared"
)

type Handler struct {
	Service *attendance.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *attendance.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)
	write := middleware.RequirePermission(auth.PermAttendanceWrite, h.Perms)
	approve := middleware.RequirePermission(auth.PermAttendanceApprove, h.Perms)

	r.Route("/attendance", func(r chi.Router) {
		r.Post("/clock-in", h.handleClockIn)
		r.Post("/clock-out", h.handleClockOut)
		r.With(read).Get("/", h.handleListRecords)
		r.With(write).Post("/manual", h.handleManual)
		r.With(read).Get("/daily-summary", h.handleDailySummary)

		r.With(read).Get("/policies", h.handleListPolicies)
		r.With(write).Post("/policies", h.handleCreatePolicy)
		r.With(read).Get("/schedules", h.handleListSchedules)
		r.With(write).Post("/schedules", h.handleCreateSchedule)
		r.With(write).Post("/schedules/assign", h.handleAssignSchedule)

		r.Post("/overtime", h.handleRequestOvertime)
		r.With(read).Get("/overtime", h.handleListOvertime)
		r.With(approve).Post("/overtime/{requestID}/approve", h.handleApproveOvertime)
		r.With(approve).Post("/overtime/{requestID}/reject", h.handleRejectOvertime)

		r.With(read).Get("/shift-types", h.handleListShiftTypes)
		r.With(write).Post("/shift-types", h.handleCreateShiftType)
		r.With(read).Get("/shifts", h.handleListShifts)
		r.With(write).Post("/shifts", h.handleAssignShift)
	})
}

// actingFor resolves the employee a self-service request targets. Acting for
// someone else needs attendance:write.
func (h *Handler) actingFor(w http.ResponseWriter, r *http.Request, user auth.UserContext, employeeID string) (string, bool) {
	if employeeID == "" {
		employeeID = user.EmployeeID
	}
	if employeeID == "" {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "employeeId", Reason: "employeeId is required"}})
		return "", false
	}
	if employeeID == user.EmployeeID {
		return employeeID, true
	}
	allowed, err := h.Perms.HasPermission(r.Context(), user.RoleID, auth.PermAttendanceWrite)
	if err != nil {
		shared.Fail(w, r, err)
		return "", false
	}
	if !allowed {
		api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", middleware.GetRequestID(r.Context()))
		return "", false
	}
	return employeeID, true
}

// scopedEmployee narrows list queries to the caller for self-scoped roles.
func scopedEmployee(user auth.UserContext, requested string) string {
	if auth.ScopeFor(user.RoleName) == auth.ScopeSelf {
		return user.EmployeeID
	}
	return requested
}

type clockPayload struct {
	EmployeeID string `json:"employeeId" validate:"omitempty,uuid"`
	Method     string `json:"method" validate:"omitempty,oneof=manual mobile web"`
}

func (h *Handler) clock(w http.ResponseWriter, r *http.Request, out bool) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload clockPayload
	if !shared.DecodeOptional(w, r, &payload) {
		return
	}
	employeeID, ok := h.actingFor(w, r, user, payload.EmployeeID)
	if !ok {
		return
	}
	in := attendance.ClockInput{EmployeeID: employeeID, Method: payload.Method}
	var (
		rec attendance.Record
		err error
	)
	if out {
		rec, err = h.Service.ClockOut(r.Context(), in)
	} else {
		rec, err = h.Service.ClockIn(r.Context(), in)
	}
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleClockIn(w http.ResponseWriter, r *http.Request) {
	h.clock(w, r, false)
}

func (h *Handler) handleClockOut(w http.ResponseWriter, r *http.Request) {
	h.clock(w, r, true)
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	filter := attendance.RecordFilter{
		EmployeeID: scopedEmployee(user, q.Get("employee")),
		Status:     q.Get("status"),
	}
	v.Enum("status", filter.Status, []string{
		attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusLate, attendance.StatusHalfDay,
		attendance.StatusOnLeave, attendance.StatusHoliday, attendance.StatusWeekend,
	}, "unknown attendance status")
	var from, to time.Time
	if raw := q.Get("from"); raw != "" {
		if t, ok := v.Date("from", raw); ok {
			from = t
			filter.From = &from
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, ok := v.Date("to", raw); ok {
			to = t
			filter.To = &to
		}
	}
	if filter.From != nil && filter.To != nil {
		v.DateOrder("from", from, "to", to)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	page := shared.ParsePagination(r, 100, 500)
	filter.Limit, filter.Offset = page.Limit, page.Offset
	records, err := h.Service.ListRecords(r.Context(), filter)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, records, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleManual(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload attendance.ManualRecordInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	rec, err := h.Service.RecordManual(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" {
		v := shared.NewValidator()
		v.Date("date", date)
		if v.Reject(w, middleware.GetRequestID(r.Context())) {
			return
		}
	}
	summary, err := h.Service.DailySummary(r.Context(), date)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListPolicies(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload attendance.PolicyInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.CreatePolicy(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListSchedules(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload attendance.ScheduleInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.CreateSchedule(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAssignSchedule(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload attendance.AssignScheduleInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.AssignSchedule(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

type overtimePayload struct {
	EmployeeID string `json:"employeeId" validate:"omitempty,uuid"`
	Date       string `json:"overtimeDate" validate:"required,datetime=2006-01-02"`
	StartTime  string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime    string `json:"endTime" validate:"required,datetime=15:04"`
	Reason     string `json:"reason" validate:"notblank,max=500"`
}

func (h *Handler) handleRequestOvertime(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload overtimePayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	employeeID, ok := h.actingFor(w, r, user, payload.EmployeeID)
	if !ok {
		return
	}
	req, err := h.Service.RequestOvertime(r.Context(), user, attendance.OvertimeInput{
		EmployeeID: employeeID,
		Date:       payload.Date,
		StartTime:  payload.StartTime,
		EndTime:    payload.EndTime,
		Reason:     payload.Reason,
	})
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListOvertime(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("status", q.Get("status"), []string{attendance.OvertimePending, attendance.OvertimeApproved, attendance.OvertimeRejected}, "unknown overtime status")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	items, err := h.Service.ListOvertime(r.Context(), attendance.OvertimeFilter{
		EmployeeID: scopedEmployee(user, q.Get("employee")),
		Status:     q.Get("status"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) decideOvertime(w http.ResponseWriter, r *http.Request, approve bool) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload attendance.OvertimeDecision
	if !shared.DecodeOptional(w, r, &payload) {
		return
	}
	id := chi.URLParam(r, "requestID")
	var (
		req attendance.OvertimeRequest
		err error
	)
	if approve {
		req, err = h.Service.ApproveOvertime(r.Context(), user, id, payload)
	} else {
		req, err = h.Service.RejectOvertime(r.Context(), user, id, payload)
	}
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApproveOvertime(w http.ResponseWriter, r *http.Request) {
	h.decideOvertime(w, r, true)
}

func (h *Handler) handleRejectOvertime(w http.ResponseWriter, r *http.Request) {
	h.decideOvertime(w, r, false)
}

func (h *Handler) handleListShiftTypes(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListShiftTypes(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateShiftType(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload attendance.ShiftTypeInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.CreateShiftType(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListShifts(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	filter := attendance.ShiftFilter{EmployeeID: scopedEmployee(user, q.Get("employee"))}
	if raw := q.Get("from"); raw != "" {
		if t, ok := v.Date("from", raw); ok {
			filter.From = &t
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, ok := v.Date("to", raw); ok {
			filter.To = &t
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	items, err := h.Service.ListShiftAssignments(r.Context(), filter)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAssignShift(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload attendance.ShiftAssignmentInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.AssignShift(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}
