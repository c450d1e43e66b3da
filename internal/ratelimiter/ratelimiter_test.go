package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestNew verifies limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond float64
		burst             int
		wantLimit         float64
		wantUnlimited     bool
	}{
		{name: "standard rate", requestsPerSecond: 100, burst: 200, wantLimit: 100},
		{name: "fractional rate", requestsPerSecond: 0.5, burst: 0, wantLimit: 0.5},
		{name: "unlimited (zero rate)", requestsPerSecond: 0, burst: 0, wantUnlimited: true},
		{name: "unlimited (negative rate)", requestsPerSecond: -1, burst: 10, wantUnlimited: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			if limiter.Unlimited() != tt.wantUnlimited {
				t.Fatalf("Unlimited() = %v, want %v", limiter.Unlimited(), tt.wantUnlimited)
			}
			if limiter.Limit() != tt.wantLimit {
				t.Fatalf("Limit() = %v, want %v", limiter.Limit(), tt.wantLimit)
			}
		})
	}
}

// TestAllow verifies that Allow() enforces the burst capacity.
func TestAllow(t *testing.T) {
	// 10 req/s, burst of 10
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed (within burst)", i)
		}
	}

	// Bucket empty
	if limiter.Allow() {
		t.Fatal("request should be rate-limited after burst exhausted")
	}

	// 100ms replenishes one token at 10 req/s
	time.Sleep(110 * time.Millisecond)
	if !limiter.Allow() {
		t.Fatal("request should be allowed after token replenishment")
	}
}

// TestDefaultBurst verifies the burst defaults to one second of requests.
func TestDefaultBurst(t *testing.T) {
	limiter := New(5, 0)
	for i := 0; i < 5; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed (default burst)", i)
		}
	}
	if limiter.Allow() {
		t.Fatal("sixth request should be rate-limited")
	}
}

// TestWait verifies that Wait() blocks until a token is available.
func TestWait(t *testing.T) {
	limiter := New(10, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first request should succeed: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("second request should succeed after waiting: %v", err)
	}
	elapsed := time.Since(start)

	// About 100ms at 10 req/s, with margin for timing jitter
	if elapsed < 50*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Fatalf("wait time %v outside expected range 50ms-500ms", elapsed)
	}
}

// TestWaitContextCancellation verifies that Wait() reports context errors.
func TestWaitContextCancellation(t *testing.T) {
	limiter := New(1, 1)
	if !limiter.Allow() {
		t.Fatal("first request should be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() = %v, want context.DeadlineExceeded", err)
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() = %v, want context.Canceled", err)
	}
}

// TestUnlimited verifies an unlimited limiter never blocks.
func TestUnlimited(t *testing.T) {
	limiter := New(0, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10000; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait() failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("unlimited waits took %v", elapsed)
	}
}
