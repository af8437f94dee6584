package reportshandler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/reports"
	"schoolerp/internal/platform/jobs"
	"schoolerp/internal/transport/http/api"
	"schoolerp/internal/transport/http/middleware"
	"schoolerp/internal/transport/http/shared"
)

type Handler struct {
	Service *reports.Service
	Jobs    *jobs.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *reports.Service, jobSvc *jobs.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Jobs: jobSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermReportsRead, h.Perms)

	r.Get("/dashboard", h.handleDashboard)
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.handleCatalog)
		r.With(read).Get("/runs", h.handleListRuns)
		r.With(read).Get("/runs/{runID}", h.handleGetRun)
		r.With(read).Get("/files", h.handleFetch)
		r.Get("/{reportType}", h.handleGenerate)
		r.With(read).Post("/{reportType}/async", h.handleGenerateAsync)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	dash, err := h.Service.Dashboard(r.Context(), user)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, dash, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	api.Success(w, reports.Catalog(), middleware.GetRequestID(r.Context()))
}

// request builds a report request from the path and query string. Every
// query parameter other than format is passed through as a report param.
func request(r *http.Request) reports.Request {
	q := r.URL.Query()
	params := make(map[string]string, len(q))
	for name, values := range q {
		if name == "format" || len(values) == 0 {
			continue
		}
		params[name] = values[0]
	}
	return reports.Request{Type: chi.URLParam(r, "reportType"), Format: q.Get("format"), Params: params}
}

// handleGenerate renders synchronously. Payslips are open to every
// authenticated user since the payroll service enforces ownership.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	req := request(r)
	if req.Type != reports.TypePayslip {
		allowed, err := middleware.HasAny(r.Context(), h.Perms, user.RoleID, auth.PermReportsRead)
		if err != nil {
			shared.Fail(w, r, err)
			return
		}
		if !allowed {
			api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", middleware.GetRequestID(r.Context()))
			return
		}
	}
	out, err := h.Service.Generate(r.Context(), user, req)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.File(w, out.Filename, out.ContentType, out.Data)
}

func (h *Handler) handleGenerateAsync(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	runID, err := h.Service.GenerateAsync(r.Context(), user, request(r))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Accepted(w, map[string]string{"jobRunId": runID, "status": jobs.StatusQueued}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "key", Reason: "key is required"}})
		return
	}
	out, err := h.Service.Fetch(r.Context(), key)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.File(w, out.Filename, out.ContentType, out.Data)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("status", q.Get("status"), []string{jobs.StatusQueued, jobs.StatusRunning, jobs.StatusCompleted, jobs.StatusFailed}, "unknown run status")
	filter := reports.JobRunFilter{Status: q.Get("status"), RequestedBy: q.Get("requested_by")}
	var from, to time.Time
	if raw := q.Get("from"); raw != "" {
		if t, ok := v.Date("from", raw); ok {
			from = t
			filter.StartedFrom = &from
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, ok := v.Date("to", raw); ok {
			to = t.Add(24*time.Hour - time.Nanosecond)
			filter.StartedTo = &to
		}
	}
	v.DateOrder("from", from, "to", to)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	page := shared.ParsePagination(r, 25, 100)
	runs, total, err := h.Service.ListRuns(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, shared.NewPage(runs, total, page), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Jobs.Get(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}
