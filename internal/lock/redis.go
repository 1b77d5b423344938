package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired holder can never release a lock someone else has taken since.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker is a single-key lock: SET key token NX PX ttl.  The TTL
// bounds how long a crashed holder can block everyone else and must be
// longer than any batch run.
type RedisLocker struct {
	rdb  redis.Cmdable
	key  string
	ttl  time.Duration
	poll time.Duration
	log  *slog.Logger
}

// NewRedis returns a RedisLocker on key.
func NewRedis(rdb redis.Cmdable, key string, ttl time.Duration, log *slog.Logger) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}
	return &RedisLocker{rdb: rdb, key: key, ttl: ttl, poll: 50 * time.Millisecond, log: log}
}

func (l *RedisLocker) Acquire(ctx context.Context, wait time.Duration) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return l.releaser(token), nil
		}
		if !time.Now().Add(l.poll).Before(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-time.After(l.poll):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *RedisLocker) releaser(token string) func() {
	return func() {
		// Release even if the caller's context was cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Int()
		switch {
		case err != nil:
			l.log.Error("lock release failed", "key", l.key, "err", err)
		case n == 0:
			l.log.Warn("lock expired before release", "key", l.key)
		}
	}
}
