package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"schoolerp/internal/platform/querier"
	"schoolerp/internal/transport/http/api"
)

const IdempotencyHeader = "Idempotency-Key"

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

type StoredResponse struct {
	Status int
	Body   []byte
}

type IdempotencyStore struct {
	db querier.Querier
}

func NewIdempotencyStore(db querier.Querier) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// IdempotencyKeys records Idempotency-Key reservations and their responses.
type IdempotencyKeys interface {
	Reserve(ctx context.Context, userID, endpoint, key, requestHash string) (Reservation, error)
	Complete(ctx context.Context, userID, endpoint, key string, resp StoredResponse) error
	Release(ctx context.Context, userID, endpoint, key string) error
}

// Reservation is the outcome of claiming a key. Exactly one of Reserved,
// InFlight or Replay is set.
type Reservation struct {
	Reserved bool
	InFlight bool
	Replay   *StoredResponse
}

// pendingTimeout is how long a reservation without a response blocks the key.
const pendingTimeout = 5 * time.Minute

// Reserve claims the key for this request. A key reused with a different
// payload yields ErrIdempotencyConflict.
func (s *IdempotencyStore) Reserve(ctx context.Context, userID, endpoint, key, requestHash string) (Reservation, error) {
	if s == nil || s.db == nil {
		return Reservation{Reserved: true}, nil
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO idempotency_keys (user_id, key, endpoint, request_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, key, endpoint)
		DO UPDATE SET created_at = now()
		WHERE idempotency_keys.status_code IS NULL
		  AND idempotency_keys.request_hash = EXCLUDED.request_hash
		  AND idempotency_keys.created_at < now() - make_interval(secs => $5)
	`, userID, key, endpoint, requestHash, pendingTimeout.Seconds())
	if err != nil {
		return Reservation{}, err
	}
	if tag.RowsAffected() == 1 {
		return Reservation{Reserved: true}, nil
	}

	var storedHash string
	var status *int
	var body []byte
	err = s.db.QueryRow(ctx, `
		SELECT request_hash, status_code, response_body
		FROM idempotency_keys
		WHERE user_id = $1 AND key = $2 AND endpoint = $3
	`, userID, key, endpoint).Scan(&storedHash, &status, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		// released between the insert and the read
		return Reservation{InFlight: true}, nil
	}
	if err != nil {
		return Reservation{}, err
	}
	if storedHash != requestHash {
		return Reservation{}, ErrIdempotencyConflict
	}
	if status == nil {
		return Reservation{InFlight: true}, nil
	}
	return Reservation{Replay: &StoredResponse{Status: *status, Body: body}}, nil
}

// Complete stores the response for a reserved key.
func (s *IdempotencyStore) Complete(ctx context.Context, userID, endpoint, key string, resp StoredResponse) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE idempotency_keys
		SET status_code = $4, response_body = $5
		WHERE user_id = $1 AND key = $2 AND endpoint = $3 AND status_code IS NULL
	`, userID, key, endpoint, resp.Status, resp.Body)
	return err
}

// Release drops a reservation that produced no response worth replaying.
func (s *IdempotencyStore) Release(ctx context.Context, userID, endpoint, key string) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		DELETE FROM idempotency_keys
		WHERE user_id = $1 AND key = $2 AND endpoint = $3 AND status_code IS NULL
	`, userID, key, endpoint)
	return err
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

// Idempotent replays the first successful response for a repeated
// Idempotency-Key from the same user on the same route. While the first
// request is still running, repeats get 409 idempotency_in_progress. Requests
// without the header run normally.
func Idempotent(store IdempotencyKeys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			user, ok := GetUser(r.Context())
			if key == "" || !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			reqID := GetRequestID(r.Context())
			if len(key) > 128 {
				api.Fail(w, http.StatusBadRequest, "validation_error", "Idempotency-Key too long", reqID)
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			endpoint := r.Method + " " + r.URL.Path
			res, err := store.Reserve(r.Context(), user.UserID, endpoint, key, RequestHash(body))
			switch {
			case errors.Is(err, ErrIdempotencyConflict):
				api.Fail(w, http.StatusConflict, "idempotency_conflict", err.Error(), reqID)
				return
			case err != nil:
				slog.Error("idempotency reserve failed", "requestId", reqID, "err", err)
				api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", reqID)
				return
			case res.InFlight:
				api.Fail(w, http.StatusConflict, "idempotency_in_progress", "a request with this Idempotency-Key is still running", reqID)
				return
			case res.Replay != nil:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(res.Replay.Status)
				_, _ = w.Write(res.Replay.Body)
				return
			}

			ctx := context.WithoutCancel(r.Context())
			completed := false
			defer func() {
				if completed {
					return
				}
				if err := store.Release(ctx, user.UserID, endpoint, key); err != nil {
					slog.Warn("idempotency release failed", "requestId", reqID, "err", err)
				}
			}()

			capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			if capture.status >= http.StatusBadRequest {
				return
			}
			resp := StoredResponse{Status: capture.status, Body: capture.body.Bytes()}
			if err := store.Complete(ctx, user.UserID, endpoint, key, resp); err != nil {
				slog.Warn("idempotency save failed", "requestId", reqID, "err", err)
				return
			}
			completed = true
		})
	}
}
