package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolerp/internal/domain/auth"
)

type keyEntry struct {
	hash string
	resp *StoredResponse
}

type memoryKeys struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{entries: map[string]*keyEntry{}}
}

func (m *memoryKeys) Reserve(_ context.Context, userID, endpoint, key, requestHash string) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := userID + "|" + endpoint + "|" + key
	e, ok := m.entries[id]
	if !ok {
		m.entries[id] = &keyEntry{hash: requestHash}
		return Reservation{Reserved: true}, nil
	}
	if e.hash != requestHash {
		return Reservation{}, ErrIdempotencyConflict
	}
	if e.resp == nil {
		return Reservation{InFlight: true}, nil
	}
	return Reservation{Replay: e.resp}, nil
}

func (m *memoryKeys) Complete(_ context.Context, userID, endpoint, key string, resp StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID+"|"+endpoint+"|"+key].resp = &resp
	return nil
}

func (m *memoryKeys) Release(_ context.Context, userID, endpoint, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := userID + "|" + endpoint + "|" + key
	if e, ok := m.entries[id]; ok && e.resp == nil {
		delete(m.entries, id)
	}
	return nil
}

func keyedRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/payroll/periods/p1/approve", strings.NewReader(body))
	req.Header.Set(IdempotencyHeader, key)
	return req.WithContext(WithUser(req.Context(), auth.UserContext{UserID: "u1"}))
}

func TestRequestHashDeterministic(t *testing.T) {
	hash1 := RequestHash([]byte("payload"))
	hash2 := RequestHash([]byte("payload"))
	hash3 := RequestHash([]byte("other"))

	assert.Equal(t, hash1, hash2)
	assert.NotEqual(t, hash1, hash3)
}

func TestIdempotentWithoutKeyRunsHandler(t *testing.T) {
	calls := 0
	handler := Idempotent(NewIdempotencyStore(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/payroll/periods/p1/approve", nil))
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotentRunsConcurrentDuplicatesOnce(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	handler := Idempotent(newMemoryKeys())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-unblock
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(first, keyedRequest("k1", `{}`))
	}()
	<-entered

	dup := httptest.NewRecorder()
	handler.ServeHTTP(dup, keyedRequest("k1", `{}`))
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Contains(t, dup.Body.String(), "idempotency_in_progress")

	close(unblock)
	<-done
	require.Equal(t, http.StatusOK, first.Code)

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, keyedRequest("k1", `{}`))
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"success":true}`, replay.Body.String())
	assert.Equal(t, 1, calls)

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, keyedRequest("k1", `{"reference":"x"}`))
	assert.Equal(t, http.StatusConflict, other.Code)
	assert.Contains(t, other.Body.String(), "idempotency_conflict")
}

func TestIdempotentReleasesKeyAfterFailure(t *testing.T) {
	calls := 0
	status := http.StatusConflict
	handler := Idempotent(newMemoryKeys())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest("k2", `{}`))
	assert.Equal(t, http.StatusConflict, rec.Code)

	status = http.StatusOK
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest("k2", `{}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)
}
