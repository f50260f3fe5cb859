// Package ratelimit throttles render requests per client and per operation
// with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmmcquay/sgfrender/internal/config"
	"github.com/dmmcquay/sgfrender/internal/logging"
)

const (
	cleanupInterval = 5 * time.Minute
	staleTimeout    = 30 * time.Minute
)

// LimitError is returned when a request is rejected.
type LimitError struct {
	Scope      string // global, operation or client
	Operation  string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s) for %s, retry after %s",
		e.Scope, e.Operation, e.RetryAfter.Round(time.Millisecond))
}

// Limiter applies a global bucket, optional per-operation buckets and a
// bucket per client. A nil *Limiter allows everything.
type Limiter struct {
	logger       logging.ContextLogger
	config       config.RateLimitConfig
	now          func() time.Time
	globalBucket *TokenBucket
	opBuckets    map[string]*TokenBucket
	clients      map[string]*clientLimit
	mu           sync.Mutex
	cancel       context.CancelFunc
}

type clientLimit struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// NewLimiter creates a limiter and starts its cleanup loop, which stops
// when ctx is done or Close is called. It returns nil when rate limiting
// is disabled.
func NewLimiter(ctx context.Context, cfg *config.RateLimitConfig, logger logging.ContextLogger) *Limiter {
	if cfg == nil || !cfg.Enabled || cfg.RequestsPerMin < 1 {
		return nil
	}

	now := time.Now()
	l := &Limiter{
		logger:       logger,
		config:       *cfg,
		now:          time.Now,
		globalBucket: newTokenBucketAt(cfg.BurstSize, perSecond(cfg.RequestsPerMin), now),
		opBuckets:    make(map[string]*TokenBucket),
		clients:      make(map[string]*clientLimit),
	}

	for op, limit := range cfg.PerToolLimits {
		l.opBuckets[strings.ToLower(op)] = newTokenBucketAt(l.burstFor(limit), perSecond(limit), now)
	}

	ctx, l.cancel = context.WithCancel(ctx)
	go l.cleanupLoop(ctx)

	return l
}

func perSecond(perMinute int) float64 {
	return float64(perMinute) / 60.0
}

// burstFor scales the global burst to a per-operation limit.
func (l *Limiter) burstFor(limit int) int {
	burst := (l.config.BurstSize * limit) / l.config.RequestsPerMin
	if burst < 1 {
		burst = 1
	}
	return burst
}

// Allow reports whether clientID may run operation now. Operation names are
// matched case-insensitively. A rejection is a *LimitError.
func (l *Limiter) Allow(clientID, operation string) error {
	if l == nil {
		return nil
	}

	now := l.now()

	if !l.globalBucket.AllowAt(now) {
		return l.reject("global", clientID, operation, l.globalBucket.RetryAfter(now))
	}

	l.mu.Lock()
	opBucket := l.opBuckets[strings.ToLower(operation)]
	client := l.clientLocked(clientID, now)
	l.mu.Unlock()

	if opBucket != nil && !opBucket.AllowAt(now) {
		l.globalBucket.Return()
		return l.reject("operation", clientID, operation, opBucket.RetryAfter(now))
	}

	if client != nil && !client.bucket.AllowAt(now) {
		l.globalBucket.Return()
		if opBucket != nil {
			opBucket.Return()
		}
		return l.reject("client", clientID, operation, client.bucket.RetryAfter(now))
	}

	return nil
}

func (l *Limiter) clientLocked(clientID string, now time.Time) *clientLimit {
	if clientID == "" {
		return nil
	}
	c, ok := l.clients[clientID]
	if !ok {
		c = &clientLimit{
			bucket: newTokenBucketAt(l.config.BurstSize, perSecond(l.config.RequestsPerMin), now),
		}
		l.clients[clientID] = c
	}
	c.lastSeen = now
	return c
}

func (l *Limiter) reject(scope, clientID, operation string, retryAfter time.Duration) error {
	l.logger.Warn("Rate limit exceeded",
		"scope", scope,
		"client", clientID,
		"operation", operation,
		"retry_after", retryAfter.String())
	return &LimitError{Scope: scope, Operation: operation, RetryAfter: retryAfter}
}

// Reset refills every bucket.
func (l *Limiter) Reset() {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.globalBucket.Reset()
	for _, bucket := range l.opBuckets {
		bucket.Reset()
	}
	for _, c := range l.clients {
		c.bucket.Reset()
	}
}

// Close stops the cleanup loop.
func (l *Limiter) Close() {
	if l == nil {
		return
	}
	l.cancel()
}

func (l *Limiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.removeStaleClients()
		}
	}
}

// removeStaleClients drops clients not seen for staleTimeout.
func (l *Limiter) removeStaleClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, c := range l.clients {
		if now.Sub(c.lastSeen) > staleTimeout {
			delete(l.clients, id)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Debug("Removed stale rate limit clients", "count", removed)
	}
	return removed
}

// GetStatus returns the limiter state for serverStatus.
func (l *Limiter) GetStatus() map[string]interface{} {
	if l == nil {
		return map[string]interface{}{"enabled": false}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ops := make(map[string]interface{}, len(l.opBuckets))
	for op, bucket := range l.opBuckets {
		ops[op] = map[string]interface{}{
			"tokens": bucket.Tokens(),
		}
	}

	return map[string]interface{}{
		"enabled":        true,
		"requestsPerMin": l.config.RequestsPerMin,
		"burstSize":      l.config.BurstSize,
		"globalTokens":   l.globalBucket.Tokens(),
		"activeClients":  len(l.clients),
		"operations":     ops,
	}
}
