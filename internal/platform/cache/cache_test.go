package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

func TestGetOrLoadMissStoresValue(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb, time.Minute)

	mock.ExpectGet("employees:statistics").RedisNil()
	mock.ExpectSet("employees:statistics", `{"total":12,"active":10}`, time.Minute).SetVal("OK")

	calls := 0
	got, err := GetOrLoad(context.Background(), c, "employees:statistics", func(context.Context) (stats, error) {
		calls++
		return stats{Total: 12, Active: 10}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, stats{Total: 12, Active: 10}, got)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrLoadHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb, time.Minute)

	mock.ExpectGet("employees:statistics").SetVal(`{"total":3,"active":2}`)

	got, err := GetOrLoad(context.Background(), c, "employees:statistics", func(context.Context) (stats, error) {
		t.Fatal("loader must not run on a hit")
		return stats{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrLoadLoaderError(t *testing.T) {
	c := New(nil, time.Minute)
	_, err := GetOrLoad(context.Background(), c, "k", func(context.Context) (stats, error) {
		return stats{}, errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
}

func TestInvalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb, time.Minute)
	mock.ExpectDel("a", "b").SetVal(2)

	c.Invalidate(context.Background(), "a", "b")
	assert.NoError(t, mock.ExpectationsWereMet())
}
