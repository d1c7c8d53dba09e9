package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/savannahghi/idrclient/internal/idrerrors"
)

// Do wraps op with exponential backoff, equal jitter, and deadline
// enforcement per §4.2. op is retried while cfg.Enabled is true and
// cfg.Predicate(err) is true for the failure it returned; any other failure
// is re-raised unchanged.
//
// The delay/factor/max-interval bookkeeping is delegated to a
// backoff.ExponentialBackOff configured with RandomizationFactor 0 (we apply
// our own equal-jitter sleep on top of the bare interval it hands back) and
// MaxElapsedTime 0 (disabled — the deadline below is enforced against
// time.Now directly, since the library's own elapsed-time cutoff doesn't
// clamp the final sleep the way §4.2 step 6 requires).
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialDelay
	bo.MaxInterval = cfg.MaximumDelay
	bo.Multiplier = cfg.MultiplicativeFactor
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	start := time.Now()

	var deadlineAt time.Time

	hasDeadline := cfg.Deadline != nil
	if hasDeadline {
		deadlineAt = start.Add(*cfg.Deadline)
	}

	attempt := 0

	for {
		attempt++

		err := op(ctx)
		if err == nil {
			return nil
		}

		if !cfg.Enabled || !cfg.Predicate(err) {
			return err
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			delay = cfg.MaximumDelay
		}

		sleep := equalJitter(delay)

		if hasDeadline {
			remaining := time.Until(deadlineAt)
			if remaining <= 0 {
				return &idrerrors.RetryDeadlineExceededError{Attempts: attempt, Err: err}
			}

			if sleep > remaining {
				sleep = remaining
			}
		}

		select {
		case <-ctx.Done():
			return &idrerrors.CancelledError{Op: "retry"}
		case <-time.After(sleep):
		}
	}
}

// equalJitter samples uniform [0, delay] per §4.2 step 5. delay of 0 sleeps
// 0.
func equalJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}

	return time.Duration(rand.Int63n(int64(delay) + 1))
}
