package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandidates lists addresses probed in order when REDIS_ADDR is unset:
// the compose service name, a default local install, then the test-profile port.
var redisCandidates = []string{"redis:6379", "localhost:6379", "localhost:56379"}

// SetupTestRedis returns a client on a flushed test DB (TEST_REDIS_DB, default 9).
// The test is skipped when no Redis answers unless TEST_REQUIRE_REDIS is set.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addrs := redisCandidates
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		addrs = []string{addr}
	}

	dbIndex := 9
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			dbIndex = i
		}
	}

	var lastErr error
	for _, addr := range addrs {
		client := redis.NewClient(&redis.Options{Addr: addr, DB: dbIndex})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := client.Ping(ctx).Err()
		if err == nil {
			err = client.FlushDB(ctx).Err()
		}
		cancel()
		if err == nil {
			t.Logf("Using Redis DB=%d at %s", dbIndex, addr)
			return client
		}
		closeAndLog(t, "redis client", client)
		lastErr = fmt.Errorf("%s: %w", addr, err)
	}

	if requireRedis() {
		t.Fatalf("Redis not available for testing: %v", lastErr)
	}
	t.Skipf("Redis not available for testing: %v", lastErr)
	return nil
}
