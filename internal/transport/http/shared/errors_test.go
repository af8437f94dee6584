package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolerp/internal/domain/attendance"
	"schoolerp/internal/domain/leave"
	"schoolerp/internal/domain/payroll"
	"schoolerp/internal/domain/performance"
	"schoolerp/internal/transport/http/api"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: startDate", leave.ErrInvalidInput), http.StatusBadRequest, "validation_error"},
		{leave.ErrInsufficientBalance, http.StatusConflict, "insufficient_balance"},
		{fmt.Errorf("approve: %w", payroll.ErrPeriodLocked), http.StatusConflict, "period_locked"},
		{payroll.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{performance.ErrConflict, http.StatusConflict, "conflict"},
		{attendance.ErrAlreadyClockedIn, http.StatusBadRequest, "already_clocked_in"},
		{attendance.ErrNoSchedule, http.StatusBadRequest, "no_schedule"},
		{payroll.ErrPeriodNotFound, http.StatusNotFound, "not_found"},
		{payroll.ErrStorageDisabled, http.StatusServiceUnavailable, "storage_disabled"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := Classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	Fail(rec, req, errors.New("pq: relation does not exist"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var env api.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "internal server error", env.Error.Message)
}

type samplePayload struct {
	Name  string `json:"name" validate:"notblank"`
	Email string `json:"email" validate:"required,email"`
}

func TestDecodeReportsFieldIssues(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":" ","email":"nope"}`))
	var payload samplePayload
	ok := Decode(rec, req, &payload)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"email"`)
	assert.Contains(t, rec.Body.String(), `"field":"name"`)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","email":"a@b.co","extra":1}`))
	var payload samplePayload
	assert.False(t, Decode(rec, req, &payload))
	assert.Contains(t, rec.Body.String(), "invalid_payload")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:5123"
	assert.Equal(t, "10.0.0.5", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}
