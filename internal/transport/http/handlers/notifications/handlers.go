package notificationshandler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"schoolerp/internal/domain/notifications"
	"schoolerp/internal/transport/http/api"
	"schoolerp/internal/transport/http/middleware"
	"schoolerp/internal/transport/http/shared"
)

type Handler struct {
	Service *notifications.Service
}

func NewHandler(service *notifications.Service) *Handler {
	return &Handler{Service: service}
}

// RegisterRoutes mounts the caller's inbox. Every route is scoped to the
// authenticated user so no permission is needed.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/unread-count", h.handleUnreadCount)
		r.Post("/read-all", h.handleMarkAllRead)
		r.Post("/{notificationID}/read", h.handleMarkRead)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	items, err := h.Service.List(r.Context(), user.UserID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	n, err := h.Service.UnreadCount(r.Context(), user.UserID)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]int{"unread": n}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "notificationID")
	if err := h.Service.MarkRead(r.Context(), user.UserID, id); err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.User(w, r)
	if !ok {
		return
	}
	n, err := h.Service.MarkAllRead(r.Context(), user.UserID)
	if err != nil {
		shared.Fail(w, r, err)
		return
	}
	api.Success(w, map[string]int64{"updated": n}, middleware.GetRequestID(r.Context()))
}
