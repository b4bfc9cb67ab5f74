package utils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/redis/go-redis/v9"
)

// RedisConfig describes the Redis instance backing the webhook rate limiter.
// The limiter fails open, so timeouts are kept short: a slow Redis must not
// hold a provider callback past its own retry deadline.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// ClientName shows up in CLIENT LIST.
	ClientName string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.ClientName == "" {
		out.ClientName = "tradeline"
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 2 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 500 * time.Millisecond
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 500 * time.Millisecond
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 20
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

var ErrRedisAddr = errors.New("redis addr is required")

func newRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		ClientName:      cfg.ClientName,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})
}

// OpenRedis connects and retries PING with backoff. attempts == 0 means one try.
func OpenRedis(ctx context.Context, cfg RedisConfig, attempts uint, log *slog.Logger) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, ErrRedisAddr
	}
	if attempts == 0 {
		attempts = 1
	}
	if log == nil {
		log = slog.Default()
	}

	rdb := newRedisClient(cfg)
	err := retry.Do(
		func() error { return RedisHealthCheck(ctx, rdb, cfg.PingTimeout) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(250*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("redis not ready, retrying", "attempt", n+1, "addr", cfg.Addr, "error", err)
		}),
	)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// RedisHealthCheck pings Redis with a timeout.
func RedisHealthCheck(ctx context.Context, rdb redis.UniversalClient, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
