package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"schoolerp/internal/transport/http/api"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimiter)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per key. A bucket holds limit tokens
// and refills completely over window.
type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	keyFn     RateLimitKeyFunc
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(rl *rateLimiter) {
		if fn != nil {
			rl.keyFn = fn
		}
	}
}

func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := newRateLimiter(limit, window, actorOrIPKey)
	for _, opt := range opts {
		opt(rl)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveRateLimit applies tighter budgets to credential endpoints (per IP
// and per submitted login) and to expensive mutations (per actor).
func SensitiveRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/4, 1)
	mutationLimit := max(baseLimit/2, 1)
	authByIP := newRateLimiter(authLimit, window, clientIPKey)
	authByLogin := newRateLimiter(authLimit, window, AuthLoginOrIPKey("username", "email"))
	sensitiveByActor := newRateLimiter(mutationLimit, window, actorOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch sensitiveRateScope(r) {
			case sensitiveScopeAuth:
				if !authByIP.enforce(w, r) || !authByLogin.enforce(w, r) {
					return
				}
			case sensitiveScopeActor:
				if !sensitiveByActor.enforce(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthLoginOrIPKey keys on the first non-empty JSON field among fields, so
// repeated guesses against one account share a bucket across addresses.
func AuthLoginOrIPKey(fields ...string) RateLimitKeyFunc {
	if len(fields) == 0 {
		fields = []string{"email"}
	}
	return func(r *http.Request) string {
		payload := readJSONBody(r)
		for _, field := range fields {
			if value, _ := payload[field].(string); strings.TrimSpace(value) != "" {
				return "login:" + strings.ToLower(strings.TrimSpace(value))
			}
		}
		return clientIPKey(r)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

func newRateLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		keyFn:   keyFn,
		clients: map[string]*clientLimiter{},
	}
}

func (rl *rateLimiter) get(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if now.Sub(rl.lastSweep) > rl.window {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > rl.window {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}
	c, ok := rl.clients[key]
	if !ok {
		every := rate.Every(rl.window / time.Duration(rl.limit))
		c = &clientLimiter{limiter: rate.NewLimiter(every, rl.limit)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.limit <= 0 || rl.window <= 0 {
		return true
	}
	key := rl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	now := time.Now()
	limiter := rl.get(key, now)

	reservation := limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
	}
	remaining := int(math.Max(0, math.Floor(limiter.TokensAt(now))))

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

	if delay > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(max(int(math.Ceil(delay.Seconds())), 1)))
		slog.Warn("rate limit exceeded",
			"key", key,
			"path", r.URL.Path,
			"method", r.Method,
			"limit", rl.limit,
			"windowSec", int(rl.window.Seconds()),
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}
	return true
}

func readJSONBody(r *http.Request) map[string]any {
	if r == nil || r.Body == nil {
		return nil
	}
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "application/json") {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return nil
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}

type sensitiveScope int

const (
	sensitiveScopeNone sensitiveScope = iota
	sensitiveScopeAuth
	sensitiveScopeActor
)

func sensitiveRateScope(r *http.Request) sensitiveScope {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return sensitiveScopeNone
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case path == "/auth/login",
		path == "/auth/first-login",
		strings.HasPrefix(path, "/auth/password/"),
		strings.HasPrefix(path, "/auth/mfa/"):
		return sensitiveScopeAuth
	case path == "/leave/accrue",
		path == "/leave/carry-forward":
		return sensitiveScopeActor
	case strings.HasPrefix(path, "/payroll/periods/") &&
		(strings.HasSuffix(path, "/process") || strings.HasSuffix(path, "/payslips")):
		return sensitiveScopeActor
	case strings.HasPrefix(path, "/reports/") && strings.HasSuffix(path, "/async"):
		return sensitiveScopeActor
	}
	return sensitiveScopeNone
}
