package authhandler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"schoolerp/internal/domain/audit"
	"schoolerp/internal/domain/auth"
	"schoolerp/internal/transport/http/api"
	"schoolerp/internal/transport/http/middleware"
	"schoolerp/internal/transport/http/shared"
)

type Handler struct {
	Service *auth.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *auth.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

// RegisterPublic mounts the endpoints reachable without a token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/refresh", h.handleRefresh)
	r.Post("/auth/password/forgot", h.handleForgotPassword)
	r.Post("/auth/password/reset", h.handleResetPassword)
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/logout", h.handleLogout)
	r.Post("/auth/first-login", h.handleFirstLogin)
	r.Post("/auth/mfa/setup", h.handleMFASetup)
	r.Post("/auth/mfa/enable", h.handleMFAToggle(true))
	r.Post("/auth/mfa/disable", h.handleMFAToggle(false))

	r.Get("/me", h.handleMe)
	r.Put("/me", h.handleUpdateProfile)
	r.Post("/me/password", h.handleChangePassword)

	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermUsersManage, h.Perms))
		r.Get("/", h.handleListUsers)
		r.Post("/", h.handleCreateUser)
		r.Put("/{userID}", h.handleUpdateUser)
		r.Delete("/{userID}", h.handleDeleteUser)
	})
}

type loginPayload struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
	OTP      string `json:"otp" validate:"omitempty,numeric,len=6"`
}

func (p loginPayload) login() string {
	for _, v := range []string{p.Login, p.Username, p.Email} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	login := payload.login()
	if login == "" {
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "username", Reason: "username or email is required"}})
		return
	}
	result, err := h.Service.Login(r.Context(), auth.LoginInput{Login: login, Password: payload.Password, OTP: payload.OTP})
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, result, reqID)
}

type refreshPayload struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var payload refreshPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	result, err := h.Service.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	if err := h.Service.Logout(r.Context(), user.SessionID); err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]bool{"loggedOut": true}, middleware.GetRequestID(r.Context()))
}

type newPasswordPayload struct {
	NewPassword string `json:"newPassword" validate:"required"`
}

func (h *Handler) handleFirstLogin(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload newPasswordPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	if err := h.Service.CompleteFirstLogin(r.Context(), user.UserID, payload.NewPassword); err != nil {
		shared.Fail(w, r, err)
		return
	}
	h.record(r, user, "auth.first_login", "user", user.UserID, nil)
	api.Success(w, map[string]bool{"passwordChanged": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	me, err := h.Service.Me(r.Context(), user.UserID)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, me, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload auth.ProfileUpdate
	if !shared.Decode(w, r, &payload) {
		return
	}
	updated, err := h.Service.UpdateProfile(r.Context(), user.UserID, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	h.record(r, user, "user.profile.update", "user", user.UserID, payload)
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

type changePasswordPayload struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload changePasswordPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	if err := h.Service.ChangePassword(r.Context(), user.UserID, payload.CurrentPassword, payload.NewPassword); err != nil {
		shared.Fail(w, r, err)
		return
	}
	h.record(r, user, "user.password.change", "user", user.UserID, nil)
	api.Success(w, map[string]bool{"passwordChanged": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMFASetup(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	setup, err := h.Service.SetupMFA(r.Context(), user)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, setup, middleware.GetRequestID(r.Context()))
}

type mfaPayload struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

func (h *Handler) handleMFAToggle(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := shared.User(w, r)
		if !ok {
			return
		}
		var payload mfaPayload
		if !shared.Decode(w, r, &payload) {
			return
		}
		if err := h.Service.SetMFA(r.Context(), user.UserID, payload.Code, enabled); err != nil {
			shared.Fail(w, r, err)
			return
		}
		h.record(r, user, "user.mfa.update", "user", user.UserID, map[string]bool{"enabled": enabled})
		api.Success(w, map[string]bool{"mfaEnabled": enabled}, middleware.GetRequestID(r.Context()))
	}
}

type forgotPayload struct {
	Email string `json:"email" validate:"required,email"`
}

// handleForgotPassword always answers 202 so callers cannot probe which
// addresses have accounts.
func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload forgotPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	h.Service.RequestPasswordReset(r.Context(), payload.Email)
	api.Accepted(w, map[string]bool{"requested": true}, middleware.GetRequestID(r.Context()))
}

type resetPayload struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload resetPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	if err := h.Service.ResetPassword(r.Context(), payload.Token, payload.NewPassword); err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]bool{"passwordReset": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	userType := r.URL.Query().Get("type")
	v := shared.NewValidator()
	v.Enum("type", userType, []string{auth.UserTypeAdmin, auth.UserTypeLecturer, auth.UserTypeStudent, auth.UserTypeStaff}, "must be admin, lecturer, student or staff")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	users, err := h.Service.ListUsers(r.Context(), auth.UserFilter{
		UserType: strings.ToLower(userType),
		Query:    r.URL.Query().Get("q"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, users, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload auth.NewUser
	if !shared.Decode(w, r, &payload) {
		return
	}
	created, err := h.Service.CreateUser(r.Context(), payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	h.record(r, user, "user.create", "user", created.ID, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	var payload auth.UserUpdate
	if !shared.Decode(w, r, &payload) {
		return
	}
	id := chi.URLParam(r, "userID")
	updated, err := h.Service.UpdateUser(r.Context(), id, payload)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	h.record(r, user, "user.update", "user", id, updated)
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "userID")
	if id == user.UserID {
		api.Fail(w, http.StatusConflict, "conflict", "cannot delete your own account", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Service.DeleteUser(r.Context(), id); err != nil {
		shared.Fail(w, r, err)
		return
	}
	h.record(r, user, "user.delete", "user", id, nil)
	api.Success(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID string, after any) {
	if err := h.Audit.Record(r.Context(), audit.Entry{
		ActorID:    user.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		After:      after,
	}); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
