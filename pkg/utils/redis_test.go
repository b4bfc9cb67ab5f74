package utils

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestRedisConfig_Defaults(t *testing.T) {
	cfg := RedisConfig{MinIdleConns: -1}.withDefaults()
	if cfg.PoolSize != 20 || cfg.MinIdleConns != 0 || cfg.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ReadTimeout != 500*time.Millisecond || cfg.ClientName != "tradeline" {
		t.Fatalf("unexpected hot path defaults: %+v", cfg)
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}, 3, nil); !errors.Is(err, ErrRedisAddr) {
		t.Fatalf("expected ErrRedisAddr, got %v", err)
	}
}

func TestOpenRedis_GivesUpAfterAttempts(t *testing.T) {
	cfg := RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, PingTimeout: 100 * time.Millisecond}
	start := time.Now()
	if _, err := OpenRedis(context.Background(), cfg, 2, nil); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("retry took too long: %s", time.Since(start))
	}
}

func TestOpenRedis_Live(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := OpenRedis(context.Background(), RedisConfig{Addr: addr}, 3, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rdb.Close()
	if err := RedisHealthCheck(context.Background(), rdb, time.Second); err != nil {
		t.Fatalf("health: %v", err)
	}
}
