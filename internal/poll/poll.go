// Package poll repeats a check with exponential backoff until it reports
// completion, fails, runs out of attempts or its context is cancelled.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt ran without completion.
var ErrExhausted = errors.New("poll: gave up waiting")

// Backoff describes the wait before each attempt.
type Backoff struct {
	Initial     time.Duration
	Factor      float64
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff waits 3s, 6s, 12s, 24s, 30s, 30s.
var DefaultBackoff = Backoff{
	Initial:     3 * time.Second,
	Factor:      2,
	Max:         30 * time.Second,
	MaxAttempts: 6,
}

func (b Backoff) normalized() Backoff {
	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.Factor < 1 {
		b.Factor = DefaultBackoff.Factor
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = DefaultBackoff.MaxAttempts
	}
	return b
}

// Delay is the wait before attempt n, counting from zero.
func (b Backoff) Delay(n int) time.Duration {
	b = b.normalized()
	d := float64(b.Initial)
	for i := 0; i < n; i++ {
		d *= b.Factor
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	return time.Duration(d)
}

// Check runs one attempt. done=false with a nil error means try again.
type Check[T any] func(ctx context.Context, attempt int) (value T, done bool, err error)

// Until waits Delay(n) before each attempt n and returns the first completed
// value. A check error stops polling immediately.
func Until[T any](ctx context.Context, b Backoff, check Check[T]) (T, error) {
	var zero T
	b = b.normalized()
	timer := time.NewTimer(b.Delay(0))
	defer timer.Stop()

	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer.Reset(b.Delay(attempt))
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
		}

		value, done, err := check(ctx, attempt)
		if err != nil {
			return zero, err
		}
		if done {
			return value, nil
		}
	}
	return zero, ErrExhausted
}
