package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/api/v1/employees", "/api/v1/payroll/periods", "/api/v1/me", "/api/v1/audit"} {
		status, env, _ := h.do(http.MethodGet, path, "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		require.NotNil(t, env.Error, path)
		assert.Equal(t, "unauthorized", env.Error.Code, path)
	}
	status, _, _ := h.do(http.MethodGet, "/api/v1/employees", "not-a-jwt", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPayloadValidation(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken()

	status, env, _ := h.do(http.MethodPost, "/api/v1/employees", token, map[string]any{
		"firstName":  "Ada",
		"lastName":   "Okafor",
		"unexpected": true,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_payload", env.Error.Code)

	status, env, _ = h.do(http.MethodPost, "/api/v1/employees", token, map[string]any{
		"employeeNo":       "X1",
		"firstName":        "  ",
		"lastName":         "Okafor",
		"gender":           "unknown",
		"employeeCategory": "teaching",
		"hireDate":         "2020-13-40",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)

	status, env, _ = h.do(http.MethodGet, "/api/v1/employees?status=retired", token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)

	status, _, _ = h.do(http.MethodPost, "/api/v1/payroll/periods", token, map[string]any{
		"periodName":  "Backwards",
		"periodType":  "monthly",
		"startDate":   "2301-02-28",
		"endDate":     "2301-02-01",
		"paymentDate": "2301-02-28",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStaffCannotReachPayrollAdministration(t *testing.T) {
	h := newHarness(t)
	admin := h.adminToken()
	employeeID := h.createEmployee(admin, "teaching", "female")
	staff := h.createStaffUser(admin, employeeID)

	status, _, _ := h.do(http.MethodPost, "/api/v1/payroll/periods", staff, map[string]any{
		"periodName":  "Nope",
		"periodType":  "monthly",
		"startDate":   "2301-01-01",
		"endDate":     "2301-01-31",
		"paymentDate": "2301-01-31",
	}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _, _ = h.do(http.MethodGet, "/api/v1/audit", staff, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Self-scoped users only see their own record.
	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	h.expect(http.StatusOK, http.MethodGet, "/api/v1/employees", staff, nil, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, employeeID, page.Items[0].ID)

	var payslips []map[string]any
	h.expect(http.StatusOK, http.MethodGet, "/api/v1/payroll/payslips/mine", staff, nil, &payslips)
	assert.Empty(t, payslips)
}
