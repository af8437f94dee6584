package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"schoolerp/internal/transport/http/api"
)

// PermissionStore resolves role grants. The auth store caches them per role.
type PermissionStore interface {
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
}

// HasAny reports whether roleID holds at least one of permissions.
func HasAny(ctx context.Context, store PermissionStore, roleID string, permissions ...string) (bool, error) {
	for _, permission := range permissions {
		ok, err := store.HasPermission(ctx, roleID, permission)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return RequireAnyPermission(store, permission)
}

// RequireAnyPermission lets the request through when the caller's role holds
// any of permissions.
func RequireAnyPermission(store PermissionStore, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
				return
			}
			allowed, err := HasAny(r.Context(), store, user.RoleID, permissions...)
			if err != nil {
				slog.Error("permission lookup failed", "request_id", reqID, "role", user.RoleName, "err", err)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", reqID)
				return
			}
			if !allowed {
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", reqID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
