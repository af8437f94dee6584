package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportCatalogAndSyncDownload(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken()
	h.createEmployee(token, "teaching", "male")

	var catalog []map[string]any
	h.expect(http.StatusOK, http.MethodGet, "/api/v1/reports", token, nil, &catalog)
	assert.NotEmpty(t, catalog)

	status, _, body := h.do(http.MethodGet, "/api/v1/reports/employees?format=xlsx", token, nil, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "PK", string(body[:2]))

	status, env, _ := h.do(http.MethodGet, "/api/v1/reports/unknown_report", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
}

func TestAsyncReportRunIsTrackedAndDownloadable(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken()
	h.createEmployee(token, "non_teaching", "female")

	var queued struct {
		JobRunID string `json:"jobRunId"`
		Status   string `json:"status"`
	}
	h.expect(http.StatusAccepted, http.MethodPost, "/api/v1/reports/employees/async?format=xlsx", token, nil, &queued)
	require.NotEmpty(t, queued.JobRunID)
	assert.Equal(t, "queued", queued.Status)

	var run struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		h.expect(http.StatusOK, http.MethodGet, "/api/v1/reports/runs/"+queued.JobRunID, token, nil, &run)
		if run.Status == "completed" || run.Status == "failed" {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	require.Equal(t, "completed", run.Status, run.Error)

	var stored struct {
		StorageKey string `json:"storageKey"`
		Filename   string `json:"filename"`
	}
	require.NoError(t, json.Unmarshal(run.Result, &stored))
	require.NotEmpty(t, stored.StorageKey)

	status, _, body := h.do(http.MethodGet, "/api/v1/reports/files?key="+url.QueryEscape(stored.StorageKey), token, nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "PK", string(body[:2]))

	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Total int `json:"total"`
	}
	h.expect(http.StatusOK, http.MethodGet, "/api/v1/reports/runs?status=completed", token, nil, &page)
	assert.Positive(t, page.Total)

	status, _, _ = h.do(http.MethodGet, "/api/v1/reports/files?key="+url.QueryEscape("../secrets"), token, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDashboardAndMetrics(t *testing.T) {
	h := newHarness(t)
	token := h.adminToken()

	var dashboard map[string]any
	h.expect(http.StatusOK, http.MethodGet, "/api/v1/dashboard", token, nil, &dashboard)
	assert.NotEmpty(t, dashboard)

	var snapshot map[string]any
	h.expect(http.StatusOK, http.MethodGet, "/metrics", "", nil, &snapshot)
	assert.Contains(t, snapshot, "requestsTotal")
}
