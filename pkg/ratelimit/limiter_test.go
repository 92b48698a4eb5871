package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(5, time.Second)

	// Test initial capacity
	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("Expected token %d to be available", i+1)
		}
	}

	// Test exhaustion
	if tb.Allow() {
		t.Error("Expected no more tokens to be available")
	}

	// Test refill after waiting
	time.Sleep(time.Second + 100*time.Millisecond)
	if !tb.Allow() {
		t.Error("Expected a token to be earned after waiting")
	}

	// Test reset
	tb.tokens = 0
	tb.Reset()
	if tb.tokens != tb.capacity {
		t.Error("Expected tokens to be reset to capacity")
	}
}

func TestTokenBucketDripRefill(t *testing.T) {
	tb := NewTokenBucket(10, 50*time.Millisecond)

	// Drain the bucket
	for i := 0; i < 10; i++ {
		tb.Allow()
	}
	if tb.Allow() {
		t.Error("Expected bucket to be empty")
	}

	// After ~2 intervals roughly two tokens come back, not a full bucket
	time.Sleep(120 * time.Millisecond)
	if !tb.Allow() {
		t.Error("Expected first earned token")
	}
	if !tb.Allow() {
		t.Error("Expected second earned token")
	}
	if tb.Allow() {
		t.Error("Expected no third token yet")
	}
}

func TestNewPerMinute(t *testing.T) {
	tb := NewPerMinute(60, 10)

	if tb.capacity != 10 {
		t.Errorf("Expected burst capacity 10, got %d", tb.capacity)
	}
	if tb.refillInterval != time.Second {
		t.Errorf("Expected one token per second at 60 rpm, got %v", tb.refillInterval)
	}

	// Degenerate inputs clamp instead of panicking
	tb = NewPerMinute(0, 0)
	if tb.capacity != 1 {
		t.Errorf("Expected clamped capacity 1, got %d", tb.capacity)
	}
}

func TestTokenBucketWait(t *testing.T) {
	tb := NewTokenBucket(1, 50*time.Millisecond)
	tb.Allow() // drain

	start := time.Now()
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait took too long: %v", elapsed)
	}
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	tb.Allow() // drain

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tb.Wait(ctx); err == nil {
		t.Error("Expected context error from cancelled Wait")
	}
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Second)

	// Test initial requests
	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}

	// Test limit reached
	if sw.Allow() {
		t.Error("Expected request to be denied when limit is reached")
	}

	// Test window sliding
	time.Sleep(time.Second + 100*time.Millisecond)
	if !sw.Allow() {
		t.Error("Expected request to be allowed after window slides")
	}

	// Test reset
	sw.Reset()
	if len(sw.requests) != 0 {
		t.Error("Expected requests to be cleared after reset")
	}
}

func TestSlidingWindowWaitCancelled(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	sw.Allow() // fill the window

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := sw.Wait(ctx); err == nil {
		t.Error("Expected context error from timed-out Wait")
	}
}
