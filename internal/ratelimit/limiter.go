package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window request counter shared by every process through
// Redis, so throttling holds no matter which instance a request lands on.
type Limiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Count     int
	Remaining int
	// RetryAfter is the time left in the current window.
	RetryAfter time.Duration
}

var ErrNoClient = errors.New("ratelimit: redis client is nil")

// New returns a limiter allowing limit requests per window per key.
// limit <= 0 disables limiting.
func New(rdb redis.Scripter, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{rdb: rdb, limit: limit, window: window, prefix: "ratelimit"}
}

func (l *Limiter) Enabled() bool { return l != nil && l.limit > 0 }

var windowScript = redis.NewScript(`
-- KEYS[1] = counter key
-- ARGV[1] = window_ms (int)
--
-- Returns {count, ttl_ms}
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  -- key existed without TTL; never let a counter live forever
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// Key builds the Redis key for scope and client.
func (l *Limiter) Key(scope, client string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, scope, client)
}

// Allow counts one request for (scope, client).
func (l *Limiter) Allow(ctx context.Context, scope, client string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true, Remaining: -1}, nil
	}
	if l.rdb == nil {
		return Decision{}, ErrNoClient
	}

	res, err := windowScript.Run(ctx, l.rdb, []string{l.Key(scope, client)}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}

	count := int(res[0])
	d := Decision{
		Allowed:    count <= l.limit,
		Count:      count,
		Remaining:  max(l.limit-count, 0),
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
	}
	return d, nil
}
