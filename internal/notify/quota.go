package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Quota tracks how many messages may still go out today.
type Quota interface {
	Remaining(ctx context.Context) (int, error)
	Consume(ctx context.Context) error
}

// dayKey names the quota bucket for the calendar day of t in loc, and
// returns when that day ends.
func dayKey(t time.Time, loc *time.Location) (string, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.Format("20060102"), start.AddDate(0, 0, 1)
}

// MemoryQuota counts sends per day in process memory.
type MemoryQuota struct {
	limit int
	loc   *time.Location
	now   func() time.Time

	mu   sync.Mutex
	day  string
	used int
}

// NewMemoryQuota allows limit sends per calendar day in loc.  now may be
// nil, in which case time.Now is used.
func NewMemoryQuota(limit int, loc *time.Location, now func() time.Time) *MemoryQuota {
	if now == nil {
		now = time.Now
	}
	return &MemoryQuota{limit: limit, loc: loc, now: now}
}

func (q *MemoryQuota) roll() {
	if day, _ := dayKey(q.now(), q.loc); day != q.day {
		q.day, q.used = day, 0
	}
}

func (q *MemoryQuota) Remaining(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	return q.limit - q.used, nil
}

func (q *MemoryQuota) Consume(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	q.used++
	return nil
}

// RedisQuota shares the daily counter between replicas.  The key for a
// day expires at the end of that day.
type RedisQuota struct {
	rdb    redis.Cmdable
	prefix string
	limit  int
	loc    *time.Location
	now    func() time.Time
}

// NewRedisQuota returns a quota stored under prefix:YYYYMMDD.
func NewRedisQuota(rdb redis.Cmdable, prefix string, limit int, loc *time.Location) *RedisQuota {
	return &RedisQuota{rdb: rdb, prefix: prefix, limit: limit, loc: loc, now: time.Now}
}

func (q *RedisQuota) key() (string, time.Time) {
	day, end := dayKey(q.now(), q.loc)
	return fmt.Sprintf("%s:%s", q.prefix, day), end
}

func (q *RedisQuota) Remaining(ctx context.Context) (int, error) {
	key, _ := q.key()
	used, err := q.rdb.Get(ctx, key).Int()
	if err == redis.Nil {
		return q.limit, nil
	}
	if err != nil {
		return 0, err
	}
	return q.limit - used, nil
}

func (q *RedisQuota) Consume(ctx context.Context) error {
	key, end := q.key()
	pipe := q.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, end)
	_, err := pipe.Exec(ctx)
	return err
}
