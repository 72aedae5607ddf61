// Package poll provides the bounded poll-until-ready primitive used by the
// automation handlers in place of open-ended sleeps.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrNotReady is returned by Until when the budget runs out before the
// check reports ready.
var ErrNotReady = errors.New("resource did not become ready")

// Budget bounds a poll: at most Attempts checks, Interval apart.
type Budget struct {
	Attempts int
	Interval time.Duration
}

// Check reports whether the polled resource is ready. A non-nil error ends
// the poll immediately.
type Check func(ctx context.Context) (bool, error)

// Until runs check until it reports ready, returns an error, or the budget is
// exhausted. It returns the number of checks performed.
func Until(ctx context.Context, budget Budget, check Check) (int, error) {
	attempts := budget.Attempts
	if attempts < 1 {
		attempts = 1
	}

	performed := 0
	operation := func() error {
		performed++
		ready, err := check(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ready {
			return ErrNotReady
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(budget.Interval), uint64(attempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return performed, ctxErr
		}
		return performed, err
	}
	return performed, nil
}

// Wait blocks for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
