package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/goliatone/go-integrations/providers/devkit"
)

// newTestClient connects to INTEGRATIONS_TEST_REDIS_ADDR or skips.
func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping redis integration test in short mode")
	}
	addr := strings.TrimSpace(os.Getenv("INTEGRATIONS_TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("INTEGRATIONS_TEST_REDIS_ADDR is not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testPrefix() string {
	return "integrations-test:" + uuid.NewString() + ":"
}

func TestNewStore_RequiresClient(t *testing.T) {
	if _, err := NewStore(nil); err == nil {
		t.Fatalf("expected nil client to fail")
	}
	if _, err := NewLocker(nil); err == nil {
		t.Fatalf("expected nil client to fail")
	}
}

func TestStore_Conformance(t *testing.T) {
	client := newTestClient(t)
	store, err := NewStore(client, WithKeyPrefix(testPrefix()))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := devkit.ValidateKeyValueStoreConformance(context.Background(), store, "hubspot_credentials:u1"); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}

func TestStore_PutSetsNativeExpiry(t *testing.T) {
	client := newTestClient(t)
	prefix := testPrefix()
	store, err := NewStore(client, WithKeyPrefix(prefix))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := store.Put(ctx, "state:abc", []byte("u1"), time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	ttl, err := client.TTL(ctx, prefix+"state:abc").Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 59*time.Minute || ttl > time.Hour {
		t.Fatalf("expected about one hour ttl, got %v", ttl)
	}
	_ = store.Delete(ctx, "state:abc")
}

func TestLocker_Conformance(t *testing.T) {
	client := newTestClient(t)
	locker, err := NewLocker(client, WithKeyPrefix(testPrefix()))
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	if err := devkit.ValidateKeyLockerConformance(context.Background(), locker, "lock:hubspot_credentials:u1"); err != nil {
		t.Fatalf("locker conformance: %v", err)
	}
}

func TestLocker_StaleHandleDoesNotReleaseNewHolder(t *testing.T) {
	client := newTestClient(t)
	locker, err := NewLocker(client, WithKeyPrefix(testPrefix()))
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	ctx := context.Background()
	first, err := locker.Acquire(ctx, "k", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	second, err := locker.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	if err := first.Unlock(ctx); err != nil {
		t.Fatalf("stale unlock: %v", err)
	}
	if _, err := locker.Acquire(ctx, "k", time.Minute); err == nil {
		t.Fatalf("expected stale unlock to leave the second holder in place")
	}
	_ = second.Unlock(ctx)
}
