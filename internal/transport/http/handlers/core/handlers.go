package corehandler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"schoolerp/internal/domain/attendance"
	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/core"
	"schoolerp/internal/domain/leave"
	"schoolerp/internal/domain/payroll"
	"schoolerp/internal/transport/http/api"
	"schoolerp/internal/transport/http/middleware"
	"schoolerp/internal/transport/http/shared"
)

// Handler serves the workforce records plus the per-employee views that
// pull from leave, attendance and payroll.
type Handler struct {
	Service    *core.Service
	Leave      *leave.Service
	Attendance *attendance.Service
	Payroll    *payroll.Service
	Perms      middleware.PermissionStore
}

func NewHandler(service *core.Service, leaveSvc *leave.Service, attendanceSvc *attendance.Service, payrollSvc *payroll.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Leave: leaveSvc, Attendance: attendanceSvc, Payroll: payrollSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)
	write := middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)
	org := middleware.RequirePermission(auth.PermOrgWrite, h.Perms)

	r.Route("/employees", func(r chi.Router) {
		r.With(read).Get("/", h.handleListEmployees)
		r.With(write).Post("/", h.handleCreateEmployee)
		r.With(read).Get("/statistics", h.handleStatistics)
		r.With(read).Get("/{employeeID}", h.handleGetEmployee)
		r.With(write).Put("/{employeeID}", h.handleUpdateEmployee)
		r.With(write).Delete("/{employeeID}", h.handleDeleteEmployee)
		r.With(read).Get("/{employeeID}/profile", h.handleProfile)
		r.With(read).Put("/{employeeID}/addresses", h.handleReplaceAddresses)
		r.With(read).Put("/{employeeID}/emergency-contacts", h.handleReplaceContacts)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/{employeeID}/leave-balance", h.handleLeaveBalance)
		r.With(middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)).Get("/{employeeID}/attendance-summary", h.handleAttendanceSummary)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/{employeeID}/payroll-history", h.handlePayrollHistory)
	})

	r.Route("/departments", func(r chi.Router) {
		r.With(read).Get("/", h.handleListDepartments)
		r.With(org).Post("/", h.handleCreateDepartment)
		r.With(read).Get("/{departmentID}", h.handleGetDepartment)
		r.With(org).Put("/{departmentID}", h.handleUpdateDepartment)
		r.With(org).Delete("/{departmentID}", h.handleDeleteDepartment)
		r.With(read).Get("/{departmentID}/employees", h.handleDepartmentEmployees)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/{departmentID}/payroll-summary", h.handleDepartmentPayroll)
	})

	r.With(read).Get("/campuses", h.handleListCampuses)
	r.With(org).Post("/campuses", h.handleCreateCampus)
	r.With(read).Get("/faculties", h.handleListFaculties)
	r.With(org).Post("/faculties", h.handleCreateFaculty)
	r.With(read).Get("/job-grades", h.handleListJobGrades)
	r.With(org).Post("/job-grades", h.handleSaveJobGrade)
	r.With(org).Put("/job-grades/{gradeID}", h.handleSaveJobGrade)
	r.With(read).Get("/job-titles", h.handleListJobTitles)
	r.With(org).Post("/job-titles", h.handleCreateJobTitle)
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request, departmentID string) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("category", q.Get("category"), []string{core.CategoryTeaching, core.CategoryNonTeaching, core.CategoryContract, core.CategoryCasual}, "unknown employee category")
	v.Enum("status", q.Get("status"), []string{core.StatusActive, core.StatusOnLeave, core.StatusSuspended, core.StatusTerminated}, "unknown employment status")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	if departmentID == "" {
		departmentID = q.Get("department")
	}
	page := shared.ParsePagination(r, 50, 200)
	items, total, err := h.Service.ListEmployees(r.Context(), user, core.EmployeeFilter{
		DepartmentID: departmentID,
		Category:     q.Get("category"),
		Status:       q.Get("status"),
		Query:        q.Get("q"),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, shared.NewPage(items, total, page), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	h.listEmployees(w, r, "")
}

func (h *Handler) handleDepartmentEmployees(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Service.GetDepartment(r.Context(), chi.URLParam(r, "departmentID")); err != nil {
		shared.Fail(w, r, err)
		return
	}
	h.listEmployees(w, r, chi.URLParam(r, "departmentID"))
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload core.EmployeeInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	emp, err := h.Service.CreateEmployee(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	emp, err := h.Service.GetEmployee(r.Context(), user, chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload core.EmployeeInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	emp, err := h.Service.UpdateEmployee(r.Context(), user, chi.URLParam(r, "employeeID"), payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "employeeID")
	if err := h.Service.DeleteEmployee(r.Context(), user, id); err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	profile, err := h.Service.Profile(r.Context(), user, chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, profile, middleware.GetRequestID(r.Context()))
}

type addressesPayload struct {
	Addresses []core.Address `json:"addresses" validate:"max=5,dive"`
}

func (h *Handler) handleReplaceAddresses(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload addressesPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	id := chi.URLParam(r, "employeeID")
	if err := h.Service.ReplaceAddresses(r.Context(), user, id, payload.Addresses); err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]int{"count": len(payload.Addresses)}, middleware.GetRequestID(r.Context()))
}

type contactsPayload struct {
	Contacts []core.EmergencyContact `json:"contacts" validate:"max=5,dive"`
}

func (h *Handler) handleReplaceContacts(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload contactsPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	id := chi.URLParam(r, "employeeID")
	if err := h.Service.ReplaceEmergencyContacts(r.Context(), user, id, payload.Contacts); err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]int{"count": len(payload.Contacts)}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleLeaveBalance(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	year := time.Now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2000 || parsed > 2100 {
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "year", Reason: "must be a year between 2000 and 2100"}})
			return
		}
		year = parsed
	}
	balances, err := h.Leave.EmployeeBalances(r.Context(), user, chi.URLParam(r, "employeeID"), year)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, balances, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAttendanceSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "employeeID")
	allowed, err := h.Service.CanView(r.Context(), user, id)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	if !allowed {
		shared.Fail(w, r, core.ErrForbidden)
		return
	}
	v := shared.NewValidator()
	month := v.Month("month", r.URL.Query().Get("month"))
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	summary, err := h.Attendance.MonthlySummary(r.Context(), id, month)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePayrollHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	limit := shared.ParsePagination(r, 12, 60).Limit
	history, err := h.Payroll.EmployeeHistory(r.Context(), user, chi.URLParam(r, "employeeID"), limit)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, history, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	if auth.ScopeFor(user.RoleName) != auth.ScopeAll {
		shared.Fail(w, r, core.ErrForbidden)
		return
	}
	stats, err := h.Service.Statistics(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListDepartments(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetDepartment(w http.ResponseWriter, r *http.Request) {
	dept, err := h.Service.GetDepartment(r.Context(), chi.URLParam(r, "departmentID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, dept, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload core.DepartmentInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	dept, err := h.Service.CreateDepartment(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, dept, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateDepartment(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload core.DepartmentInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	dept, err := h.Service.UpdateDepartment(r.Context(), user, chi.URLParam(r, "departmentID"), payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, dept, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "departmentID")
	if err := h.Service.DeleteDepartment(r.Context(), user, id); err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDepartmentPayroll(w http.ResponseWriter, r *http.Request) {
	periodID := r.URL.Query().Get("period")
	if periodID == "" {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "period", Reason: "period is required"}})
		return
	}
	departmentID := chi.URLParam(r, "departmentID")
	if _, err := h.Service.GetDepartment(r.Context(), departmentID); err != nil {
		shared.Fail(w, r, err)
		return
	}
	sum, err := h.Payroll.DepartmentSummary(r.Context(), periodID, departmentID)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, sum, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListCampuses(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListCampuses(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateCampus(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload core.OrgUnitInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.CreateCampus(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListFaculties(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListFaculties(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateFaculty(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload core.OrgUnitInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.CreateFaculty(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListJobGrades(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListJobGrades(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

// handleSaveJobGrade creates on POST and updates on PUT /job-grades/{gradeID}.
func (h *Handler) handleSaveJobGrade(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload core.JobGradeInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id := chi.URLParam(r, "gradeID")
	grade, err := h.Service.SaveJobGrade(r.Context(), user, id, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	if id == "" {
		api.Created(w, grade, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, grade, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListJobTitles(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListJobTitles(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateJobTitle(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload core.JobTitleInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	title, err := h.Service.CreateJobTitle(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, title, middleware.GetRequestID(r.Context()))
}
