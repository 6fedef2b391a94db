package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestMemoryClient(t *testing.T) {
	c := NewMemoryClient(2)
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get on empty cache = %v, want ErrCacheMiss", err)
	}

	if err := c.Set(ctx, "a", []byte("1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "a")
	if err != nil || string(got) != "1" {
		t.Errorf("Get(a) = %q, %v", got, err)
	}

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after Delete = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryClient_Expiry(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "short", []byte("x"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired entry returned: %v", err)
	}

	c.removeExpired(time.Now())
	if c.Len() != 0 {
		t.Errorf("Len after sweep = %d, want 0", c.Len())
	}
}

func TestMemoryClient_EvictsWhenFull(t *testing.T) {
	c := NewMemoryClient(2)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "first", []byte("1"), time.Minute)
	c.Set(ctx, "second", []byte("2"), time.Hour)
	c.Set(ctx, "third", []byte("3"), time.Hour)

	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if _, err := c.Get(ctx, "first"); !errors.Is(err, ErrCacheMiss) {
		t.Error("entry closest to expiry should have been evicted")
	}
}

func TestKey(t *testing.T) {
	a := Key([]byte("doc"), []string{"s1"}, "fail-fast")

	tests := []struct {
		name string
		key  string
		same bool
	}{
		{name: "identical input", key: Key([]byte("doc"), []string{"s1"}, "fail-fast"), same: true},
		{name: "different payload", key: Key([]byte("doc2"), []string{"s1"}, "fail-fast")},
		{name: "different schemas", key: Key([]byte("doc"), []string{"s2"}, "fail-fast")},
		{name: "different policy", key: Key([]byte("doc"), []string{"s1"}, "isolate")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.key == a) != tt.same {
				t.Errorf("key equality = %v, want %v", tt.key == a, tt.same)
			}
		})
	}
}

func TestRedisClient(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	c, err := NewRedisClient(ctx, RedisConfig{Addr: addr, Prefix: "statements-test:"})
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Errorf("Get = %q, %v", got, err)
	}
	c.Delete(ctx, "k")
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after Delete = %v, want ErrCacheMiss", err)
	}
}
