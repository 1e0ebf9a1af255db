package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatalf("expected burst of 2 to be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("expected third request to be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatalf("expected other ip to have its own bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Fatalf("expected token to refill after one second")
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(5, 5)
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	now = now.Add(limiterIdleTTL / 2)
	rl.Allow("10.0.0.2")
	now = now.Add(limiterIdleTTL/2 + time.Second)
	rl.Sweep()

	if rl.Len() != 1 {
		t.Fatalf("expected only the recent client to remain, got %d", rl.Len())
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d limited with limiting disabled", i)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
	req.RemoteAddr = "192.0.2.1:5555"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	other := httptest.NewRequest(http.MethodPost, "/bookings", nil)
	other.RemoteAddr = "192.0.2.2:5555"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected other client to pass, got %d", rec.Code)
	}
}
