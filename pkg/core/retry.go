package core

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Sleeper abstracts waiting between attempts for deterministic tests.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// FuncSleeper wraps a function to satisfy Sleeper.
type FuncSleeper func(ctx context.Context, d time.Duration) error

// Sleep implements the Sleeper interface.
func (f FuncSleeper) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BackoffStrategy holds retry parameters.
type BackoffStrategy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	Jitter      float64
	Sleeper     Sleeper
	Rand        func() float64
}

// DefaultBackoff returns the backoff used for connection lookups: three quick
// attempts, never longer than a couple of seconds in total.
func DefaultBackoff() BackoffStrategy {
	return BackoffStrategy{
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    time.Second,
		MaxAttempts: 3,
		Jitter:      0.2,
	}
}

// Retry executes fn with exponential backoff. It stops when fn returns nil,
// when shouldRetry rejects the error, when ctx is done, or after MaxAttempts.
// A nil shouldRetry retries only errors classified as transient.
func (b BackoffStrategy) Retry(ctx context.Context, fn func(context.Context) error, shouldRetry func(error) bool) (int, error) {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 1
	}
	if b.BaseDelay <= 0 {
		b.BaseDelay = 100 * time.Millisecond
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = time.Second
	}
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}
	sleeper := b.Sleeper
	if sleeper == nil {
		sleeper = FuncSleeper(contextSleep)
	}
	rnd := b.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	var err error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if !shouldRetry(err) || attempt == b.MaxAttempts {
			return attempt, err
		}
		delay := b.nextDelay(attempt)
		if b.Jitter > 0 {
			delay += time.Duration(float64(delay) * b.Jitter * rnd())
		}
		if sleepErr := sleeper.Sleep(ctx, delay); sleepErr != nil {
			return attempt, err
		}
	}
	return b.MaxAttempts, err
}

func (b BackoffStrategy) nextDelay(attempt int) time.Duration {
	delay := float64(b.BaseDelay) * math.Pow(2, float64(attempt-1))
	if max := float64(b.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}
