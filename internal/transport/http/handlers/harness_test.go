package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"schoolerp/internal/app/server"
	"schoolerp/internal/platform/config"
	"schoolerp/internal/platform/email"
)

const (
	adminUsername = "admin"
	adminPassword = "ChangeMe123"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type harness struct {
	t      *testing.T
	app    *server.App
	server *httptest.Server
	mailer *email.NoopMailer
}

func testConfig(t *testing.T, dbURL string) config.Config {
	t.Helper()
	return config.Config{
		DatabaseURL:        dbURL,
		MigrationsDir:      "../../../../migrations",
		JWTSecret:          "integration-test-secret-integration",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    time.Hour,
		DataEncryptionKey:  "0123456789abcdef0123456789abcdef",
		Environment:        "test",
		LogLevel:           "error",
		InstitutionName:    "Test Academy",
		Timezone:           "UTC",
		SeedAdminUsername:  adminUsername,
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  adminPassword,
		RunMigrations:      true,
		RunSeed:            true,
		EmailProvider:      "none",
		EmailFrom:          "no-reply@test.local",
		PasswordResetTTL:   time.Hour,
		PasswordResetURL:   "http://localhost/reset",
		KafkaTopicPrefix:   "test",
		StorageDriver:      "local",
		StorageDir:         t.TempDir(),
		PayrollWorkers:     2,
		PayrollLockTTL:     time.Minute,
		MaxBodyBytes:       1 << 20,
		RateLimitPerMinute: 1000,
		MetricsEnabled:     true,
	}
}

// newHarness boots the full application against TEST_DATABASE_URL and starts
// the background job worker.
func newHarness(t *testing.T) *harness {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	mailer := &email.NoopMailer{}
	app, err := server.New(context.Background(), testConfig(t, dbURL), server.WithMailer(mailer))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)
	ts := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		app.Jobs.Wait()
		app.Close()
	})
	return &harness{t: t, app: app, server: ts, mailer: mailer}
}

func (h *harness) do(method, path, token string, body any, headers map[string]string) (int, envelope, []byte) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(h.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.server.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	var env envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(h.t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env, raw
}

// expect performs the request and decodes data into out when the status
// matches.
func (h *harness) expect(status int, method, path, token string, body, out any) envelope {
	h.t.Helper()
	got, env, raw := h.do(method, path, token, body, nil)
	require.Equal(h.t, status, got, "%s %s: %s", method, path, string(raw))
	if out != nil {
		require.NoError(h.t, json.Unmarshal(env.Data, out))
	}
	return env
}

func (h *harness) login(username, password string) string {
	h.t.Helper()
	var result struct {
		AccessToken string `json:"accessToken"`
	}
	h.expect(http.StatusOK, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": username,
		"password": password,
	}, &result)
	require.NotEmpty(h.t, result.AccessToken)
	return result.AccessToken
}

func (h *harness) adminToken() string {
	return h.login(adminUsername, adminPassword)
}

func unique(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano())
}

func (h *harness) createEmployee(token, category, gender string) string {
	h.t.Helper()
	var emp struct {
		ID string `json:"id"`
	}
	h.expect(http.StatusCreated, http.MethodPost, "/api/v1/employees", token, map[string]any{
		"employeeNo":       unique("E"),
		"firstName":        "Ada",
		"lastName":         "Okafor",
		"gender":           gender,
		"employeeCategory": category,
		"hireDate":         "2020-01-06",
		"officialEmail":    unique("ada") + "@school.test",
	}, &emp)
	require.NotEmpty(h.t, emp.ID)
	return emp.ID
}

// createStaffUser adds a Staff account linked to employeeID and returns a
// token for it.
func (h *harness) createStaffUser(adminToken, employeeID string) string {
	h.t.Helper()
	username := unique("staff")
	password := "StaffPass123"
	h.expect(http.StatusCreated, http.MethodPost, "/api/v1/users", adminToken, map[string]any{
		"username":   username,
		"email":      username + "@school.test",
		"password":   password,
		"firstName":  "Sam",
		"lastName":   "Staff",
		"userType":   "staff",
		"role":       "Staff",
		"employeeId": employeeID,
	}, nil)
	return h.login(username, password)
}

// nextMonday returns the first Monday at least days after today.
func nextMonday(days int) time.Time {
	d := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, days)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
