package config

import (
	"testing"
	"time"
)

func requiredEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/griya?sslmode=disable",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(requiredEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.TaxBps != 500 {
		t.Fatalf("expected default tax of 500 bps, got %d", cfg.TaxBps)
	}
	if cfg.NotifyQueue != "notifications" {
		t.Fatalf("expected default queue, got %q", cfg.NotifyQueue)
	}
	if cfg.SegmentCacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m segment cache TTL, got %s", cfg.SegmentCacheTTL)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("expected 24h idempotency TTL, got %s", cfg.IdempotencyTTL)
	}
	if cfg.JWTIssuer != "backend-griya" {
		t.Fatalf("expected default issuer, got %q", cfg.JWTIssuer)
	}
	if cfg.RateLimitWebhookPerMin != 300 || cfg.RateLimitCouponPerMin != 30 {
		t.Fatalf("unexpected rate limit defaults: %d/%d", cfg.RateLimitWebhookPerMin, cfg.RateLimitCouponPerMin)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := requiredEnv()
	env["DATABASE_URL"] = ""
	if _, err := LoadForTests(env); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadRejectsNegativeTax(t *testing.T) {
	env := requiredEnv()
	env["TAX_BPS"] = "-1"
	if _, err := LoadForTests(env); err == nil {
		t.Fatal("expected error for negative TAX_BPS")
	}
}

func TestLoadOverrides(t *testing.T) {
	env := requiredEnv()
	env["TAX_BPS"] = "1100"
	env["CORS_ALLOWED_ORIGINS"] = "https://griya.example.com, https://admin.griya.example.com"

	cfg, err := LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TaxBps != 1100 {
		t.Fatalf("expected 1100 bps, got %d", cfg.TaxBps)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.griya.example.com" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestHTTPAddr(t *testing.T) {
	cases := map[string]string{
		"8080":  ":8080",
		":9000": ":9000",
		"":      ":8080",
	}
	for port, want := range cases {
		c := Config{Port: port}
		if got := c.HTTPAddr(); got != want {
			t.Fatalf("port %q: expected %q, got %q", port, want, got)
		}
	}
}
