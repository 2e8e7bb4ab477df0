package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces outgoing requests
type Limiter interface {
	// Allow reports whether a request may proceed right now, consuming a token if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	Reset()
}

// TokenBucket is a token bucket that refills one token every interval,
// up to capacity. It is safe for concurrent use by the worker pool.
type TokenBucket struct {
	capacity   int
	tokens     int
	interval   time.Duration
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a bucket holding capacity tokens that regains one every interval
func NewTokenBucket(capacity int, interval time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		interval:   interval,
		lastRefill: time.Now(),
	}
}

// PerMinute returns a limiter allowing n requests per minute with a burst of one
// second's worth, or nil when n <= 0 (unlimited).
func PerMinute(n int) Limiter {
	if n <= 0 {
		return nil
	}
	burst := n / 60
	return NewTokenBucket(burst, time.Minute/time.Duration(n))
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(time.Now())
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		wait := tb.interval - time.Since(tb.lastRefill)
		tb.mu.Unlock()
		if wait <= 0 {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Reset refills the bucket to capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

func (tb *TokenBucket) refill(now time.Time) {
	if tb.interval <= 0 {
		tb.tokens = tb.capacity
		return
	}
	gained := int(now.Sub(tb.lastRefill) / tb.interval)
	if gained <= 0 {
		return
	}
	tb.tokens += gained
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = tb.lastRefill.Add(time.Duration(gained) * tb.interval)
}
