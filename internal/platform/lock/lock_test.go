package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	locker := NewRedisLocker(rdb)
	locker.newToken = func() string { return "token-1" }

	key := PayrollPeriodKey("p-1")
	mock.ExpectSetNX(key, "token-1", time.Minute).SetVal(true)
	mock.ExpectEval(releaseScript, []string{key}, "token-1").SetVal(int64(1))

	release, err := locker.Acquire(context.Background(), key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockerHeld(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	locker := NewRedisLocker(rdb)
	locker.newToken = func() string { return "token-2" }

	key := PayrollPeriodKey("p-2")
	mock.ExpectSetNX(key, "token-2", time.Minute).SetVal(false)

	_, err := locker.Acquire(context.Background(), key, time.Minute)
	assert.ErrorIs(t, err, ErrLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockerBackendError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	locker := NewRedisLocker(rdb)
	locker.newToken = func() string { return "token-3" }

	mock.ExpectSetNX("k", "token-3", time.Second).SetErr(errors.New("connection refused"))

	_, err := locker.Acquire(context.Background(), "k", time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	current := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return current }

	release, err := locker.Acquire(context.Background(), "payroll:period:p-1", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), "payroll:period:p-1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	_, err = locker.Acquire(context.Background(), "payroll:period:p-2", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, release(context.Background()))
	current = current.Add(time.Second)
	_, err = locker.Acquire(context.Background(), "payroll:period:p-1", time.Minute)
	assert.NoError(t, err)
}

func TestLocalLockerExpiry(t *testing.T) {
	locker := NewLocalLocker()
	current := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return current }

	stale, err := locker.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	fresh, err := locker.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	// the expired holder must not free the new holder's lock
	require.NoError(t, stale(context.Background()))
	_, err = locker.Acquire(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)
	require.NoError(t, fresh(context.Background()))
}
