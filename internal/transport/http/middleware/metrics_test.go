package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"schoolerp/internal/platform/metrics"
)

func TestMetricsRecordsStatus(t *testing.T) {
	collector := metrics.New()
	handler := Metrics(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	snap := collector.Snapshot()
	assert.Equal(t, uint64(1), snap["requestsTotal"])
	assert.Equal(t, uint64(1), snap["errorsTotal"])
}
