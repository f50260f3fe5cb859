package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo(t *testing.T) {
	errBoom := errors.New("connection refused")

	tests := []struct {
		name        string
		attempts    int
		failures    int
		permanent   bool
		wantErr     error
		wantCalls   int
		wantRetries int
	}{
		{"first attempt succeeds", 3, 0, false, nil, 1, 0},
		{"succeeds after retries", 5, 2, false, nil, 3, 2},
		{"gives up after max attempts", 3, 10, false, errBoom, 3, 2},
		{"permanent error stops immediately", 5, 10, true, errBoom, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, retries := 0, 0
			err := Do(context.Background(), fastConfig(tt.attempts), func(context.Context) error {
				calls++
				if calls > tt.failures {
					return nil
				}
				if tt.permanent {
					return Permanent(errBoom)
				}
				return errBoom
			}, func(attempt int, delay time.Duration, err error) {
				retries++
				assert.Equal(t, retries, attempt)
				assert.ErrorIs(t, err, errBoom)
			})

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.wantErr, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantRetries, retries)
		})
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 0, InitialDelay: time.Hour, Multiplier: 1}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(context.Context) error {
			calls++
			return errors.New("down")
		}, nil)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestDelay(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, cfg.Delay(1))
	assert.Equal(t, 200*time.Millisecond, cfg.Delay(2))
	assert.Equal(t, 800*time.Millisecond, cfg.Delay(4))
	assert.Equal(t, time.Second, cfg.Delay(10))

	cfg.Jitter = 0.1
	for i := 0; i < 50; i++ {
		d := cfg.Delay(2)
		require.GreaterOrEqual(t, d, 180*time.Millisecond)
		require.LessOrEqual(t, d, 220*time.Millisecond)
	}
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
