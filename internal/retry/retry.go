// Package retry runs startup operations, such as connecting to the cache
// backend, with exponential backoff.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// Config defines retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts; 0 retries until the
	// context is done.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter spreads each delay by up to ±Jitter of its value (0-1).
	Jitter float64
}

// DefaultConfig returns the backoff used for backend connections.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts
// run out or ctx is done. onRetry, if set, is called before each wait.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error, onRetry func(attempt int, delay time.Duration, err error)) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return err
		}

		delay := cfg.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (c Config) Delay(attempt int) time.Duration {
	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	if c.Jitter > 0 {
		spread := int64(delay * c.Jitter * 2)
		if spread > 0 {
			if n, err := rand.Int(rand.Reader, big.NewInt(spread)); err == nil {
				delay += float64(n.Int64()) - delay*c.Jitter
			}
		}
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
