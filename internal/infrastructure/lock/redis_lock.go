package lock

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tldrchinese/internal/domain"
	"tldrchinese/internal/ports"
)

// lockTTL bounds how long a crashed builder can hold a date. It is a safety
// valve; the primary mechanism is the atomic SET NX.
const lockTTL = 5 * time.Minute

// releaseScript deletes the lock only when the stored token still belongs
// to the caller, so an expired builder cannot release its successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock implements the per-date build mutex with SET NX EX and an
// ownership token.
type RedisLock struct {
	client *redis.Client
	logger *slog.Logger
}

var _ ports.DigestLock = (*RedisLock)(nil)

// NewRedisLock wires a redis client.
func NewRedisLock(client *redis.Client, logger *slog.Logger) *RedisLock {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &RedisLock{client: client, logger: logger}
}

// Acquire attempts the per-date lock. ok=false means another worker is
// already building that date. The returned release func is safe on every
// exit path and only removes this caller's lock.
func (l *RedisLock) Acquire(ctx context.Context, date time.Time) (func(), bool, error) {
	key := "digest:lock:" + date.Format(domain.DateLayout)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Release must not inherit a cancelled request context.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("lock release failed, relying on TTL", "key", key, "error", err)
		}
	}

	return release, true, nil
}
