package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"schoolerp/internal/domain/auth"
)

type grants map[string]bool

func (g grants) HasPermission(_ context.Context, _ string, permission string) (bool, error) {
	if permission == "broken" {
		return false, errors.New("db down")
	}
	return g[permission], nil
}

func serveAs(user *auth.UserContext, mw func(http.Handler) http.Handler) int {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leave/pending-approvals", nil)
	if user != nil {
		req = req.WithContext(context.WithValue(req.Context(), ctxKeyUser, *user))
	}
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAnyPermission(t *testing.T) {
	store := grants{auth.PermLeaveAdmin: true}
	supervisor := &auth.UserContext{UserID: "u1", RoleID: "r1", RoleName: auth.RoleHRManager}

	assert.Equal(t, http.StatusNoContent, serveAs(supervisor, RequireAnyPermission(store, auth.PermLeaveApprove, auth.PermLeaveAdmin)))
	assert.Equal(t, http.StatusForbidden, serveAs(supervisor, RequirePermission(auth.PermLeaveApprove, store)))
	assert.Equal(t, http.StatusUnauthorized, serveAs(nil, RequirePermission(auth.PermLeaveAdmin, store)))
	assert.Equal(t, http.StatusInternalServerError, serveAs(supervisor, RequireAnyPermission(store, "broken", auth.PermLeaveAdmin)))
}

func TestHasAnyStopsAtFirstGrant(t *testing.T) {
	ok, err := HasAny(context.Background(), grants{auth.PermReportsRead: true}, "r1", auth.PermReportsRead, "broken")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasAny(context.Background(), grants{}, "r1")
	assert.NoError(t, err)
	assert.False(t, ok)
}
