package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/chromecollective/marketplace-backend/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisLimiterBlocksAfterQuota(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	defer srv.Close()

	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	defer client.Close()

	limiter, err := NewRedis(client, "ai", Policy{Limit: 3, Window: 5 * time.Minute})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "user-1")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if d.Remaining != int64(2-i) {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, 2-i, d.Remaining)
		}
	}

	d, err := limiter.Allow(ctx, "user-1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.RetryAfter <= 0 {
		t.Fatalf("expected block with retry-after, got %+v", d)
	}

	other, err := limiter.Allow(ctx, "user-2")
	if err != nil || !other.Allowed {
		t.Fatalf("other caller should have its own quota: %+v %v", other, err)
	}

	srv.FastForward(5*time.Minute + time.Second)
	d, err = limiter.Allow(ctx, "user-1")
	if err != nil || !d.Allowed {
		t.Fatalf("quota should reset after window: %+v %v", d, err)
	}
}

type failingCounter struct{}

func (failingCounter) FixedWindowAllow(context.Context, string, int64, time.Duration) (redis.Window, error) {
	return redis.Window{}, errors.New("connection refused")
}

func TestRedisLimiterSurfacesStoreErrors(t *testing.T) {
	limiter, err := NewRedis(failingCounter{}, "ai", Policy{Limit: 1, Window: time.Minute})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if _, err := limiter.Allow(context.Background(), "k"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestLocalLimiterBurstThenRefill(t *testing.T) {
	limiter, err := NewLocal(Policy{Limit: 2, Window: time.Minute})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if d, _ := limiter.Allow(ctx, "ip-1"); !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	d, _ := limiter.Allow(ctx, "ip-1")
	if d.Allowed {
		t.Fatal("third request should be blocked")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > 30*time.Second {
		t.Fatalf("unexpected retry after %v", d.RetryAfter)
	}

	now = now.Add(30 * time.Second)
	if d, _ := limiter.Allow(ctx, "ip-1"); !d.Allowed {
		t.Fatal("one token should have refilled after half a window")
	}
}

func TestLocalLimiterEvictsIdleKeys(t *testing.T) {
	limiter, err := NewLocal(Policy{Limit: 1, Window: time.Minute})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	_, _ = limiter.Allow(context.Background(), "a")
	now = now.Add(2 * time.Minute)
	_, _ = limiter.Allow(context.Background(), "b")

	if _, ok := limiter.entries["a"]; ok {
		t.Fatal("expected idle key to be evicted")
	}
}

func TestPolicyValidation(t *testing.T) {
	if _, err := NewLocal(Policy{Limit: 0, Window: time.Minute}); err == nil {
		t.Fatal("expected zero limit to fail")
	}
	if _, err := NewRedis(nil, "ai", Policy{Limit: 1, Window: time.Minute}); err == nil {
		t.Fatal("expected nil store to fail")
	}
}
