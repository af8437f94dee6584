package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/transport/http/api"
)

type ctxKey int

const (
	ctxKeyUser ctxKey = iota
	ctxKeyUserHolder
)

// SessionChecker reports whether the session behind an access token is still
// live. Logout and password changes revoke sessions before tokens expire.
type SessionChecker interface {
	SessionActive(ctx context.Context, sessionID string) (bool, error)
}

type userHolder struct {
	userID string
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, ctxKeyUserHolder, h)
}

// Auth attaches the caller from a bearer token. Requests without a valid
// token pass through anonymous; RequireAuth and RequirePermission reject them.
func Auth(secret string, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			if !found || !strings.EqualFold(scheme, "bearer") {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := auth.ParseToken(secret, strings.TrimSpace(token))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if sessions != nil && claims.SessionID != "" {
				active, err := sessions.SessionActive(r.Context(), claims.SessionID)
				if err != nil {
					slog.Warn("session lookup failed", "sessionId", claims.SessionID, "err", err)
				}
				if err != nil || !active {
					next.ServeHTTP(w, r)
					return
				}
			}

			user := claims.UserContext()
			if holder, ok := r.Context().Value(ctxKeyUserHolder).(*userHolder); ok {
				holder.userID = user.UserID
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}
