package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"schoolerp/internal/domain/auth"
)

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func loginRequest(body, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remote
	return req
}

func TestRateLimitUsesUserKeyBeforeIPFallback(t *testing.T) {
	limited := RateLimit(1, time.Minute)(http.HandlerFunc(noContent))
	userCtx := WithUser(context.Background(), auth.UserContext{UserID: "user-1"})

	first := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/periods/p1/approve", nil).WithContext(userCtx)
	first.RemoteAddr = "198.51.100.11:2222"
	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, first)
	if firstRec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/periods/p1/approve", nil).WithContext(userCtx)
	second.RemoteAddr = "198.51.100.12:3333"
	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, second)
	if secondRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled by user key, got %d", secondRec.Code)
	}
}

func TestRateLimitFallsBackToIP(t *testing.T) {
	limited := RateLimit(1, time.Minute)(http.HandlerFunc(noContent))

	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, loginRequest(`{"email":"a@example.com"}`, "203.0.113.10:4444"))
	if firstRec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", firstRec.Code)
	}

	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, loginRequest(`{"email":"b@example.com"}`, "203.0.113.10:5555"))
	if secondRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled by ip key, got %d", secondRec.Code)
	}
}

func TestRateLimitRefills(t *testing.T) {
	limited := RateLimit(1, 40*time.Millisecond)(http.HandlerFunc(noContent))

	rec1 := httptest.NewRecorder()
	limited.ServeHTTP(rec1, loginRequest(`{}`, "192.0.2.20:1111"))
	if rec1.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", rec1.Code)
	}
	rec2 := httptest.NewRecorder()
	limited.ServeHTTP(rec2, loginRequest(`{}`, "192.0.2.20:1111"))
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}

	time.Sleep(60 * time.Millisecond)

	rec3 := httptest.NewRecorder()
	limited.ServeHTTP(rec3, loginRequest(`{}`, "192.0.2.20:1111"))
	if rec3.Code != http.StatusNoContent {
		t.Fatalf("expected request after refill to pass, got %d", rec3.Code)
	}
}

func TestRateLimitReturnsRetryMetadata(t *testing.T) {
	limited := RateLimit(1, time.Minute)(http.HandlerFunc(noContent))
	limited.ServeHTTP(httptest.NewRecorder(), loginRequest(`{}`, "192.0.2.30:1234"))

	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, loginRequest(`{}`, "192.0.2.30:1234"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected throttled response, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected no remaining tokens, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestSensitiveRateLimitScope(t *testing.T) {
	limited := SensitiveRateLimit(4, time.Minute)(http.HandlerFunc(noContent))

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/dashboard", nil)
		req.RemoteAddr = "198.51.100.40:8888"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected read route request %d to bypass sensitive limits, got %d", i+1, rec.Code)
		}
	}

	userCtx := WithUser(context.Background(), auth.UserContext{UserID: "hr-1"})
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/periods/p1/process", nil).WithContext(userCtx)
		req.RemoteAddr = "198.51.100.41:9999"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if i < 2 && rec.Code != http.StatusNoContent {
			t.Fatalf("expected sensitive request %d to pass, got %d", i+1, rec.Code)
		}
		if i == 2 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected third sensitive request to be throttled, got %d", rec.Code)
		}
	}
}

func TestSensitiveRateLimitKeysOnLogin(t *testing.T) {
	limited := SensitiveRateLimit(8, time.Minute)(http.HandlerFunc(noContent))

	for i, remote := range []string{"192.0.2.1:1", "192.0.2.2:1", "192.0.2.3:1"} {
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, loginRequest(`{"username":"bursar"}`, remote))
		if i < 2 && rec.Code != http.StatusNoContent {
			t.Fatalf("expected attempt %d to pass, got %d", i+1, rec.Code)
		}
		if i == 2 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected third attempt on the same account to be throttled, got %d", rec.Code)
		}
	}
}
