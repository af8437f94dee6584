// Package lock provides short lived mutual exclusion across server replicas.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("lock is held by another worker")

// Release frees a held lock. Releasing an expired or stolen lock is a no-op.
type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// releaseScript deletes the key only when it still carries our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type RedisLocker struct {
	rdb      redis.Cmdable
	newToken func() string
}

func NewRedisLocker(rdb redis.Cmdable) *RedisLocker {
	return &RedisLocker{rdb: rdb, newToken: uuid.NewString}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	token := l.newToken()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func(ctx context.Context) error {
		if err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		return nil
	}, nil
}

// LocalLocker is used when no Redis is configured; it only excludes callers
// within the same process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	seq  uint64
	now  func() time.Time
}

type localEntry struct {
	token   uint64
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]localEntry{}, now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.held[key]; ok && now.Before(entry.expires) {
		return nil, ErrLocked
	}
	l.seq++
	token := l.seq
	l.held[key] = localEntry{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if entry, ok := l.held[key]; ok && entry.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}

func PayrollPeriodKey(periodID string) string {
	return "payroll:period:" + periodID
}
