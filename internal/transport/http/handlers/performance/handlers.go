package performancehandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/performance"
	"schoolerp/internal/transport/http/api"
	"schoolerp/internal/transport/http/middleware"
	"schoolerp/internal/transport/http/shared"
)

type Handler struct {
	Service *performance.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *performance.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermPerformanceRead, h.Perms)
	write := middleware.RequirePermission(auth.PermPerformanceWrite, h.Perms)
	review := middleware.RequirePermission(auth.PermPerformanceReview, h.Perms)
	admin := middleware.RequirePermission(auth.PermPerformanceAdmin, h.Perms)

	r.Route("/performance", func(r chi.Router) {
		r.With(read).Get("/metrics", h.handleListMetrics)
		r.With(admin).Post("/metrics", h.handleCreateMetric)
		r.With(read).Get("/templates", h.handleListTemplates)
		r.With(admin).Post("/templates", h.handleCreateTemplate)

		r.With(read).Get("/cycles", h.handleListCycles)
		r.With(admin).Post("/cycles", h.handleCreateCycle)
		r.With(read).Get("/cycles/{cycleID}", h.handleGetCycle)
		r.With(admin).Post("/cycles/{cycleID}/status", h.handleAdvanceCycle)
		r.With(review).Get("/cycles/{cycleID}/summary", h.handleCycleSummary)

		r.With(admin).Post("/appraisals", h.handleCreateAppraisal)
		r.With(read).Get("/appraisals", h.handleListAppraisals)
		r.With(read).Get("/appraisals/{appraisalID}", h.handleGetAppraisal)
		r.With(write).Post("/appraisals/{appraisalID}/self-assessment", h.handleSubmitSelf)
		r.With(review).Post("/appraisals/{appraisalID}/supervisor-assessment", h.handleSubmitSupervisor)
		r.With(review).Post("/appraisals/{appraisalID}/finalize", h.handleFinalize)
		r.With(write).Post("/appraisals/{appraisalID}/dispute", h.handleDispute)
		r.With(admin).Post("/appraisals/{appraisalID}/resolve", h.handleResolve)
	})
}

func (h *Handler) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListMetrics(r.Context(), r.URL.Query().Get("all") != "true")
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateMetric(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload performance.MetricInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	id, err := h.Service.CreateMetric(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListTemplates(r.Context())
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload performance.TemplateInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	tpl, err := h.Service.CreateTemplate(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, tpl, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListCycles(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	v := shared.NewValidator()
	v.Enum("status", status, []string{
		performance.CyclePlanned, performance.CycleActive, performance.CycleInReview,
		performance.CycleCompleted, performance.CycleClosed,
	}, "unknown cycle status")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	items, err := h.Service.ListCycles(r.Context(), status)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.Service.GetCycle(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, cycle, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload performance.CycleInput
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
	cycle, err := h.Service.CreateCycle(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, cycle, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdvanceCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload performance.CycleStatusInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	cycle, err := h.Service.AdvanceCycle(r.Context(), user, chi.URLParam(r, "cycleID"), payload.Status)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, cycle, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCycleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Service.CycleSummary(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, sum, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateAppraisal(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload performance.AppraisalInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	appraisal, err := h.Service.CreateAppraisal(r.Context(), user, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Created(w, appraisal, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAppraisals(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("status", q.Get("status"), []string{
		performance.StatusDraft, performance.StatusInProgress, performance.StatusCompleted,
		performance.StatusDisputed, performance.StatusClosed,
	}, "unknown appraisal status")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	items, err := h.Service.ListAppraisals(r.Context(), user, performance.AppraisalFilter{
		CycleID:     q.Get("cycle"),
		EmployeeID:  q.Get("employee"),
		AppraiserID: q.Get("appraiser"),
		Status:      q.Get("status"),
	})
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetAppraisal(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	appraisal, err := h.Service.GetAppraisal(r.Context(), user, chi.URLParam(r, "appraisalID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, appraisal, middleware.GetRequestID(r.Context()))
}

type assessFunc func(r *http.Request, user auth.UserContext, id string, in performance.AssessmentInput) (performance.AppraisalDetail, error)

func (h *Handler) assess(w http.ResponseWriter, r *http.Request, submit assessFunc) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload performance.AssessmentInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	appraisal, err := submit(r, user, chi.URLParam(r, "appraisalID"), payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, appraisal, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmitSelf(w http.ResponseWriter, r *http.Request) {
	h.assess(w, r, func(r *http.Request, user auth.UserContext, id string, in performance.AssessmentInput) (performance.AppraisalDetail, error) {
		return h.Service.SubmitSelf(r.Context(), user, id, in)
	})
}

func (h *Handler) handleSubmitSupervisor(w http.ResponseWriter, r *http.Request) {
	h.assess(w, r, func(r *http.Request, user auth.UserContext, id string, in performance.AssessmentInput) (performance.AppraisalDetail, error) {
		return h.Service.SubmitSupervisor(r.Context(), user, id, in)
	})
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload performance.FinalizeInput
	if !shared.DecodeOptional(w, r, &payload) {
		return
	}
	appraisal, err := h.Service.Finalize(r.Context(), user, chi.URLParam(r, "appraisalID"), payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, appraisal, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDispute(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload performance.DisputeInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	appraisal, err := h.Service.Dispute(r.Context(), user, chi.URLParam(r, "appraisalID"), payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, appraisal, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload performance.ResolveInput
	if !shared.Decode(w, r, &payload) {
		return
	}
	appraisal, err := h.Service.Resolve(r.Context(), user, chi.URLParam(r, "appraisalID"), payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, appraisal, middleware.GetRequestID(r.Context()))
}
