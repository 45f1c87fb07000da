package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/concertseats/config"
	"github.com/Domenick1991/concertseats/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only while it still belongs to the caller, so a
// lock that expired and was taken by someone else is left alone.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisLock struct {
	client redis.Cmdable
	logger *slog.Logger
}

type Option func(*RedisLock)

func WithLogger(logger *slog.Logger) Option {
	return func(l *RedisLock) {
		l.logger = logger
	}
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

func NewRedisLock(client redis.Cmdable, opts ...Option) *RedisLock {
	l := &RedisLock{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryLock sets key to ownerID if it is absent. Contention is reported as
// false, not as an error.
func (l *RedisLock) TryLock(ctx context.Context, key, ownerID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, ownerID, ttl).Result()
	if err != nil {
		metrics.LockAttempts.WithLabelValues("error").Inc()
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		metrics.LockAttempts.WithLabelValues("contended").Inc()
		return false, nil
	}
	metrics.LockAttempts.WithLabelValues("acquired").Inc()
	return true, nil
}

// Unlock releases key if ownerID still holds it. Errors are only logged; the
// TTL reclaims the key anyway.
func (l *RedisLock) Unlock(ctx context.Context, key, ownerID string) {
	released, err := unlockScript.Run(ctx, l.client, []string{key}, ownerID).Int64()
	if err != nil {
		l.logger.Warn("release lock failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	if released == 0 {
		l.logger.Warn("lock no longer held by owner", slog.String("key", key), slog.String("owner", ownerID))
	}
}

func SeatKey(concertID int64, seatNumber int) string {
	return fmt.Sprintf("seat:%d:%d", concertID, seatNumber)
}
