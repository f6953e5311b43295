package search

import (
	"context"
	"sync"
	"time"
)

// RateLimiter gates outbound calls to the search provider with adaptive
// exponential backoff. The delay grows multiplicatively on failure (capped
// at the ceiling) and resets to the floor on the next success. There is no
// time-based decay: a burst of failures followed by one success fully
// resets backoff.
//
// All state lives behind a single mutex. Wait holds the mutex for its full
// duration, which serializes concurrent callers and spaces their requests
// by the current delay.
type RateLimiter struct {
	mu sync.Mutex

	minDelay      time.Duration
	maxDelay      time.Duration
	backoffFactor float64

	currentDelay        time.Duration
	lastRequest         time.Time
	consecutiveFailures int
}

// NewRateLimiter creates a limiter with the given floor, ceiling and
// backoff factor. Non-positive values fall back to 1s / 30s / 2.0.
func NewRateLimiter(minDelay, maxDelay time.Duration, backoffFactor float64) *RateLimiter {
	if minDelay <= 0 {
		minDelay = time.Second
	}
	if maxDelay < minDelay {
		maxDelay = 30 * time.Second
	}
	if backoffFactor <= 1 {
		backoffFactor = 2.0
	}
	return &RateLimiter{
		minDelay:      minDelay,
		maxDelay:      maxDelay,
		backoffFactor: backoffFactor,
		currentDelay:  minDelay,
	}
}

// Wait blocks until the current delay has elapsed since the previous
// request, then records the new request time. Returns early with the
// context's error if the context is cancelled while waiting.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elapsed := time.Since(rl.lastRequest)
	if remaining := rl.currentDelay - elapsed; remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	rl.lastRequest = time.Now()
	return nil
}

// Success resets the delay to the floor and clears the failure counter.
func (rl *RateLimiter) Success() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.consecutiveFailures = 0
	rl.currentDelay = rl.minDelay
}

// Failure multiplies the delay by the backoff factor, capped at the
// ceiling, and increments the failure counter.
func (rl *RateLimiter) Failure() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.consecutiveFailures++
	next := time.Duration(float64(rl.currentDelay) * rl.backoffFactor)
	if next > rl.maxDelay {
		next = rl.maxDelay
	}
	rl.currentDelay = next
}

// Delay returns the current inter-request delay.
func (rl *RateLimiter) Delay() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.currentDelay
}

// Failures returns the consecutive failure count since the last success.
func (rl *RateLimiter) Failures() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.consecutiveFailures
}
