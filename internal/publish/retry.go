package publish

import (
	"context"
	"time"
)

// AttemptFunc runs one publish attempt. attempt starts at 1.
type AttemptFunc func(ctx context.Context, attempt int) error

// Retrier wraps publish attempts with bounded exponential backoff. Only
// transient failures are retried; validation and auth errors end the run on
// the attempt that raised them.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Sleep waits between attempts. Tests inject a recorder; the default is
	// a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrier(maxAttempts int, baseDelay, maxDelay time.Duration) *Retrier {
	return &Retrier{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
}

// Do runs attempt until it succeeds, fails permanently, or the attempt
// budget runs out. It returns the number of attempts made and the last
// error, nil on success.
func (r *Retrier) Do(ctx context.Context, attempt AttemptFunc) (int, error) {
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for n := 1; ; n++ {
		err = attempt(ctx, n)
		if err == nil {
			return n, nil
		}

		if !IsTransient(err) || n >= r.MaxAttempts {
			return n, err
		}

		if serr := sleep(ctx, r.delay(n)); serr != nil {
			return n, serr
		}
	}
}

// delay computes the backoff before attempt n+1: base × 2^(n-1), capped.
func (r *Retrier) delay(attempt int) time.Duration {
	d := r.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
