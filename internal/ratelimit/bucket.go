package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm for rate limiting.
type TokenBucket struct {
	capacity   int        // Maximum number of tokens
	tokens     float64    // Current number of tokens
	refillRate float64    // Tokens added per second
	lastRefill time.Time  // Last time tokens were refilled
	mu         sync.Mutex // Protects all fields
}

// NewTokenBucket creates a full bucket with the given capacity and refill
// rate in tokens per second.
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return newTokenBucketAt(capacity, refillRate, time.Now())
}

func newTokenBucketAt(capacity int, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now,
	}
}

// Allow attempts to consume one token.
func (b *TokenBucket) Allow() bool {
	return b.AllowAt(time.Now())
}

// AllowAt attempts to consume one token at a specific time.
func (b *TokenBucket) AllowAt(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Return gives back a token taken by Allow when a later check rejected
// the request.
func (b *TokenBucket) Return() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens++
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
}

// RetryAfter returns how long until one token is available.
func (b *TokenBucket) RetryAfter(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens >= 1 || b.refillRate <= 0 {
		return 0
	}
	deficit := 1 - b.tokens
	return time.Duration(deficit / b.refillRate * float64(time.Second))
}

// Tokens returns the current number of tokens available.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(time.Now())
	return b.tokens
}

// refill adds tokens for the time elapsed since the last refill.
// Must be called with lock held.
func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}

	b.tokens += elapsed.Seconds() * b.refillRate
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
	b.lastRefill = now
}

// Reset resets the bucket to full capacity.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = float64(b.capacity)
	b.lastRefill = time.Now()
}
