// Package ratelimit provides rate limiting for requests against the
// collection API.
//
// This package implements multiple rate limiting algorithms to keep the
// harvester polite: listing pages, metadata probes, and asset downloads
// all pass through one limiter so the combined request rate stays under
// the configured budget.
//
// Available Implementations:
//
// Token Bucket:
//   - Earns one token per refill interval, up to a burst capacity
//   - Suitable for burst traffic followed by quiet periods
//   - Default implementation used by the harvester (see NewPerMinute)
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - More accurate rate limiting over time
//   - Better for consistent request patterns
//
// Interface:
//
// All rate limiters implement the Limiter interface:
//   - Allow() bool - Check if a request is allowed
//   - Wait(ctx) error - Block until a request is allowed or ctx ends
//   - Reset() - Reset the limiter state
//
// Usage:
//
//	// 60 requests per minute with bursts of 10
//	limiter := ratelimit.NewPerMinute(60, 10)
//
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // cancelled while waiting
//	}
//	// Proceed with request
//
//	// Sliding window: 100 requests per 15 minutes
//	limiter := ratelimit.NewSlidingWindow(100, 15*time.Minute)
//
//	if limiter.Allow() {
//	    // Proceed with request
//	}
package ratelimit
