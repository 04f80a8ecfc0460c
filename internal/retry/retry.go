// Package retry provides a reusable retry policy with exponential backoff
// and jitter. The same policy value parameterizes embedding calls and bulk
// upload calls.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy describes how a fallible operation is retried. The zero value is not
// usable; construct with the fields set or use Default.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter returns a fraction in [0,1) of BaseDelay added to each backoff.
	// nil means math/rand.
	Jitter func() float64
}

func Default() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Minute}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. Do returns the wrapped error
// immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, a permanent error is returned, the attempt
// budget is exhausted, or ctx is done. Backoff doubles per attempt, capped at
// MaxDelay, with jitter so concurrent retries do not synchronize.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	jitter := p.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}

	delay := p.BaseDelay
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == p.MaxAttempts {
			return err
		}

		sleep := delay + time.Duration(jitter()*float64(p.BaseDelay))
		if err := wait(ctx, sleep); err != nil {
			return err
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
