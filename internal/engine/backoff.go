package engine

import (
	"context"
	"math/rand/v2"
	"time"
)

// BackoffFunc returns how long to wait before retry number attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// SleepFunc blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// JitterBackoff grows linearly: base·attempt plus up to jitter·attempt of
// random spread.
func JitterBackoff(base, jitter time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base * time.Duration(attempt)
		if jitter > 0 {
			d += rand.N(jitter * time.Duration(attempt))
		}
		return d
	}
}

// SleepContext is the production SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
