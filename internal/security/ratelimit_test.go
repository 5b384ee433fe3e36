package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiterStore_BurstThenDeny(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 2, time.Minute)

	if !s.Allow("key") || !s.Allow("key") {
		t.Error("burst of 2 should be allowed")
	}
	if s.Allow("key") {
		t.Error("third immediate request should be denied")
	}
}

func TestLimiterStore_KeysAreIndependent(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !s.Allow("a") {
		t.Error("first request for a should pass")
	}
	if !s.Allow("b") {
		t.Error("a's spent budget must not affect b")
	}
}

func TestLimiterStore_EmptyKeyCoalesces(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !s.Allow("") {
		t.Error("first request should pass")
	}
	if s.Allow("  ") {
		t.Error("blank keys share one bucket")
	}
}

func TestLimiterStore_Wait(t *testing.T) {
	s := NewLimiterStore(rate.Limit(50), 1, time.Minute)
	ctx := context.Background()

	start := time.Now()
	if err := s.Wait(ctx, "key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Wait(ctx, "key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("second wait should block for a token, elapsed %v", elapsed)
	}
}

func TestLimiterStore_WaitCancelled(t *testing.T) {
	// one token a minute: the second wait can only end via the context
	s := NewLimiterStore(rate.Limit(1.0/60.0), 1, time.Minute)

	if err := s.Wait(context.Background(), "key"); err != nil {
		t.Fatalf("burst token should be immediate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.Wait(ctx, "key")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancelled wait should return promptly, took %v", elapsed)
	}
}
