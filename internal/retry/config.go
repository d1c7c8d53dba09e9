// Package retry implements the first-class retry combinator (§4.2): a
// value configured with a predicate, delay bounds, and a deadline, that
// wraps any fallible operation with exponential backoff, equal jitter, and
// deadline enforcement.
package retry

import (
	"time"

	"github.com/savannahghi/idrclient/internal/idrerrors"
)

// Defaults mirror §4.2 / §6.2.
const (
	DefaultInitialDelay         = 1 * time.Second
	DefaultMaximumDelay         = 60 * time.Second
	DefaultMultiplicativeFactor = 2.0
	DefaultDeadline             = 300 * time.Second
)

// Predicate decides whether a given failure should be retried.
type Predicate func(error) bool

// Config holds the tunables for one retry-wrapped operation. The zero value
// is not valid; use DefaultConfig and override fields, then call Validate.
type Config struct {
	InitialDelay         time.Duration
	MaximumDelay         time.Duration
	MultiplicativeFactor float64

	// Deadline is wall-clock seconds from the first attempt. Nil means no
	// deadline.
	Deadline *time.Duration

	// Predicate decides whether a given failure is retried. Defaults to
	// idrerrors.IsTransient.
	Predicate Predicate

	// Enabled is the master retry switch (§6.2 RETRY.enable_retries).
	Enabled bool
}

// DefaultConfig returns the §4.2/§6.2 defaults: 1s initial delay, 60s
// maximum delay, factor 2.0, 300s deadline, retries enabled, default
// transient predicate.
func DefaultConfig() Config {
	deadline := DefaultDeadline

	return Config{
		InitialDelay:         DefaultInitialDelay,
		MaximumDelay:         DefaultMaximumDelay,
		MultiplicativeFactor: DefaultMultiplicativeFactor,
		Deadline:             &deadline,
		Predicate:            idrerrors.IsTransient,
		Enabled:              true,
	}
}

// WithDeadline returns a copy of c with Deadline set to d. Passing 0
// disables the deadline (matches §6.2's "None = no deadline").
func (c Config) WithDeadline(d time.Duration) Config {
	if d <= 0 {
		c.Deadline = nil
		return c
	}

	c.Deadline = &d

	return c
}

// Validate enforces §4.2's "every numeric field must be strictly positive"
// rule, returning ImproperlyConfiguredError otherwise.
func (c Config) Validate() error {
	switch {
	case c.InitialDelay <= 0:
		return &idrerrors.ImproperlyConfiguredError{Field: "InitialDelay", Message: "must be > 0"}
	case c.MaximumDelay <= 0:
		return &idrerrors.ImproperlyConfiguredError{Field: "MaximumDelay", Message: "must be > 0"}
	case c.MaximumDelay < c.InitialDelay:
		return &idrerrors.ImproperlyConfiguredError{Field: "MaximumDelay", Message: "must be >= InitialDelay"}
	case c.MultiplicativeFactor < 1:
		return &idrerrors.ImproperlyConfiguredError{Field: "MultiplicativeFactor", Message: "must be >= 1"}
	case c.Deadline != nil && *c.Deadline <= 0:
		return &idrerrors.ImproperlyConfiguredError{Field: "Deadline", Message: "must be > 0 when set"}
	case c.Predicate == nil:
		return &idrerrors.ImproperlyConfiguredError{Field: "Predicate", Message: "must not be nil"}
	}

	return nil
}
