package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/transport/http/api"
	"schoolerp/internal/transport/http/middleware"
)

// ClientIP prefers the first X-Forwarded-For hop over the socket address.
func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// User returns the authenticated caller or writes a 401.
func User(w http.ResponseWriter, r *http.Request) (auth.UserContext, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return auth.UserContext{}, false
	}
	return user, true
}

// Decode reads a JSON body into dst and runs tag validation on it. It writes
// the error response and returns false when the payload is unusable.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	reqID := middleware.GetRequestID(r.Context())
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", reqID)
		case errors.Is(err, io.EOF):
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "request body is empty", reqID)
		default:
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		}
		return false
	}
	v := NewValidator()
	v.Struct(dst)
	return !v.Reject(w, reqID)
}

// DecodeOptional is Decode for endpoints whose body may be omitted.
func DecodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		v := NewValidator()
		v.Struct(dst)
		return !v.Reject(w, middleware.GetRequestID(r.Context()))
	}
	return Decode(w, r, dst)
}
