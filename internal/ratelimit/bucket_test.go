package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		capacity int
		rate     float64
		steps    []struct {
			after time.Duration
			want  bool
		}
	}{
		{
			name:     "burst then empty",
			capacity: 2,
			rate:     1,
			steps: []struct {
				after time.Duration
				want  bool
			}{{0, true}, {0, true}, {0, false}},
		},
		{
			name:     "refills over time",
			capacity: 1,
			rate:     2,
			steps: []struct {
				after time.Duration
				want  bool
			}{{0, true}, {100 * time.Millisecond, false}, {500 * time.Millisecond, true}},
		},
		{
			name:     "never exceeds capacity",
			capacity: 2,
			rate:     10,
			steps: []struct {
				after time.Duration
				want  bool
			}{{time.Hour, true}, {0, true}, {0, false}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTokenBucketAt(tt.capacity, tt.rate, start)
			now := start
			for i, step := range tt.steps {
				now = now.Add(step.after)
				assert.Equal(t, step.want, b.AllowAt(now), "step %d", i)
			}
		})
	}
}

func TestTokenBucketReturnAndRetryAfter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newTokenBucketAt(1, 0.5, start)

	assert.True(t, b.AllowAt(start))
	assert.Equal(t, 2*time.Second, b.RetryAfter(start))

	b.Return()
	assert.Equal(t, time.Duration(0), b.RetryAfter(start))
	b.Return()
	assert.True(t, b.AllowAt(start))
	assert.False(t, b.AllowAt(start), "Return must not overfill the bucket")
}

func TestTokenBucketConcurrent(t *testing.T) {
	b := newTokenBucketAt(50, 0, time.Now())

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if b.Allow() {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}
