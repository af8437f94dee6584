package shared

import (
	"errors"
	"log/slog"
	"net/http"

	"schoolerp/internal/domain/attendance"
	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/core"
	"schoolerp/internal/domain/leave"
	"schoolerp/internal/domain/notifications"
	"schoolerp/internal/domain/payroll"
	"schoolerp/internal/domain/performance"
	"schoolerp/internal/domain/reports"
	"schoolerp/internal/platform/jobs"
	"schoolerp/internal/platform/lock"
	"schoolerp/internal/platform/storage"
	"schoolerp/internal/transport/http/api"
	"schoolerp/internal/transport/http/middleware"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorTable is checked in order with errors.Is. More specific sentinels
// come before the generic ones of the same package.
var errorTable = []errorMapping{
	{attendance.ErrAlreadyClockedIn, http.StatusBadRequest, "already_clocked_in"},
	{attendance.ErrAlreadyClockedOut, http.StatusBadRequest, "already_clocked_out"},
	{attendance.ErrNoSchedule, http.StatusBadRequest, "no_schedule"},
	{attendance.ErrNotClockedIn, http.StatusNotFound, "not_clocked_in"},
	{attendance.ErrEmployeeNotFound, http.StatusNotFound, "not_found"},
	{attendance.ErrNotPending, http.StatusConflict, "invalid_transition"},

	{leave.ErrInsufficientBalance, http.StatusConflict, "insufficient_balance"},
	{leave.ErrNotApprover, http.StatusForbidden, "not_approver"},
	{leave.ErrGenderRestricted, http.StatusBadRequest, "gender_restricted"},
	{leave.ErrBlackout, http.StatusBadRequest, "blackout_period"},
	{leave.ErrAdvanceNotice, http.StatusBadRequest, "advance_notice"},
	{leave.ErrTooManyDays, http.StatusBadRequest, "too_many_days"},
	{leave.ErrTooFewDays, http.StatusBadRequest, "too_few_days"},
	{leave.ErrNoWorkingDays, http.StatusBadRequest, "no_working_days"},
	{leave.ErrNotEncashable, http.StatusBadRequest, "not_encashable"},
	{leave.ErrNoPayProfile, http.StatusBadRequest, "no_pay_profile"},

	{payroll.ErrPeriodLocked, http.StatusConflict, "period_locked"},
	{payroll.ErrPeriodOverlap, http.StatusConflict, "period_overlap"},
	{payroll.ErrAlreadyRunning, http.StatusConflict, "already_running"},
	{payroll.ErrNoCalculations, http.StatusConflict, "no_calculations"},
	{payroll.ErrNoEmail, http.StatusBadRequest, "no_email"},
	{payroll.ErrPeriodNotFound, http.StatusNotFound, "not_found"},
	{lock.ErrLocked, http.StatusConflict, "already_running"},

	{performance.ErrCycleNotActive, http.StatusConflict, "cycle_not_active"},
	{core.ErrDepartmentInUse, http.StatusConflict, "department_in_use"},

	{reports.ErrUnknownReport, http.StatusNotFound, "unknown_report"},
	{reports.ErrUnsupportedFormat, http.StatusBadRequest, "unsupported_format"},
	{reports.ErrInvalidParams, http.StatusBadRequest, "validation_error"},
	{reports.ErrStorageDisabled, http.StatusServiceUnavailable, "storage_disabled"},
	{payroll.ErrStorageDisabled, http.StatusServiceUnavailable, "storage_disabled"},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{auth.ErrMFARequired, http.StatusUnauthorized, "mfa_required"},
	{auth.ErrMFAInvalid, http.StatusUnauthorized, "mfa_invalid"},
	{auth.ErrSessionInvalid, http.StatusUnauthorized, "session_invalid"},
	{auth.ErrMFAUnavailable, http.StatusServiceUnavailable, "mfa_unavailable"},
	{auth.ErrMFANotSetUp, http.StatusBadRequest, "mfa_not_set_up"},
	{auth.ErrWeakPassword, http.StatusBadRequest, "weak_password"},
	{auth.ErrWrongPassword, http.StatusBadRequest, "wrong_password"},
	{auth.ErrInvalidResetToken, http.StatusBadRequest, "invalid_reset_token"},
	{auth.ErrUnknownRole, http.StatusBadRequest, "unknown_role"},
	{auth.ErrSetupNotRequired, http.StatusConflict, "invalid_transition"},

	{jobs.ErrQueueFull, http.StatusServiceUnavailable, "queue_full"},

	{attendance.ErrNotFound, http.StatusNotFound, "not_found"},
	{leave.ErrNotFound, http.StatusNotFound, "not_found"},
	{payroll.ErrNotFound, http.StatusNotFound, "not_found"},
	{performance.ErrNotFound, http.StatusNotFound, "not_found"},
	{reports.ErrNotFound, http.StatusNotFound, "not_found"},
	{core.ErrNotFound, http.StatusNotFound, "not_found"},
	{auth.ErrNotFound, http.StatusNotFound, "not_found"},
	{jobs.ErrNotFound, http.StatusNotFound, "not_found"},
	{storage.ErrNotFound, http.StatusNotFound, "not_found"},
	{notifications.ErrNotFound, http.StatusNotFound, "not_found"},

	{leave.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{payroll.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{performance.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},

	{attendance.ErrConflict, http.StatusConflict, "conflict"},
	{leave.ErrConflict, http.StatusConflict, "conflict"},
	{payroll.ErrConflict, http.StatusConflict, "conflict"},
	{performance.ErrConflict, http.StatusConflict, "conflict"},
	{core.ErrConflict, http.StatusConflict, "conflict"},
	{auth.ErrConflict, http.StatusConflict, "conflict"},

	{leave.ErrForbidden, http.StatusForbidden, "forbidden"},
	{payroll.ErrForbidden, http.StatusForbidden, "forbidden"},
	{performance.ErrForbidden, http.StatusForbidden, "forbidden"},
	{core.ErrForbidden, http.StatusForbidden, "forbidden"},

	{attendance.ErrInvalidInput, http.StatusBadRequest, "validation_error"},
	{leave.ErrInvalidInput, http.StatusBadRequest, "validation_error"},
	{payroll.ErrInvalidInput, http.StatusBadRequest, "validation_error"},
	{performance.ErrInvalidInput, http.StatusBadRequest, "validation_error"},
	{core.ErrInvalidInput, http.StatusBadRequest, "validation_error"},
	{storage.ErrInvalidKey, http.StatusBadRequest, "validation_error"},
}

// Classify maps a domain error to its HTTP status and error code. Unknown
// errors are internal.
func Classify(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// Fail writes err as an envelope. Internal errors are logged and replaced
// with a generic message.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	status, code := Classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "requestId", reqID, "err", err)
		api.Fail(w, status, code, "internal server error", reqID)
		return
	}
	api.Fail(w, status, code, err.Error(), reqID)
}
