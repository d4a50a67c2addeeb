package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T) (Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Limiter{Client: client, Prefix: "rl:"}, mr
}

func TestAllowCountsWithinWindow(t *testing.T) {
	limiter, mr := newLimiter(t)
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "webhook:203.0.113.9", window, 2)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("hit %d should be allowed", i)
		}
		if remaining != 1-i {
			t.Fatalf("hit %d: expected remaining %d, got %d", i, 1-i, remaining)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "webhook:203.0.113.9", window, 2)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed || remaining != 0 {
		t.Fatalf("expected rejection with zero remaining, got allowed=%v remaining=%d", allowed, remaining)
	}

	// Old hits fall out of the window and the caller recovers.
	mr.FastForward(window)
	if allowed, _, _, err = limiter.Allow(ctx, "webhook:203.0.113.9", window, 2); err != nil || !allowed {
		t.Fatalf("expected fresh window to allow, got allowed=%v err=%v", allowed, err)
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	limiter, _ := newLimiter(t)
	ctx := context.Background()

	if allowed, _, _, _ := limiter.Allow(ctx, "coupon:user-a", time.Second, 1); !allowed {
		t.Fatal("first caller should be allowed")
	}
	if allowed, _, _, _ := limiter.Allow(ctx, "coupon:user-b", time.Second, 1); !allowed {
		t.Fatal("a different key must have its own allowance")
	}
}

func TestAllowDisabledWithoutClient(t *testing.T) {
	allowed, _, _, err := Limiter{}.Allow(context.Background(), "any", time.Second, 5)
	if err != nil || !allowed {
		t.Fatalf("nil client must fail open, got allowed=%v err=%v", allowed, err)
	}
}
