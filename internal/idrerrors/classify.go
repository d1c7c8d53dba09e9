package idrerrors

import (
	"context"
	"errors"
)

// ErrorKind tags the coarse category an error belongs to, mirroring the
// exception-hierarchy dispatch the original implementation used, without
// resorting to a class hierarchy: the retry engine and the workflow switch
// on Classify's result instead of type-asserting their way through a tree.
type ErrorKind int8

const (
	// KindUnknown is returned for errors outside the closed taxonomy; the
	// default retry predicate treats these as non-retryable.
	KindUnknown ErrorKind = iota
	KindImproperlyConfigured
	KindTransient
	KindPermanent
	KindResourceDisposed
	KindRetryDeadlineExceeded
	KindCancelled
	KindWorkflowFailed
)

// Classify inspects err's chain and returns its ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, new(*ImproperlyConfiguredError)):
		return KindImproperlyConfigured
	case errors.As(err, new(*TransientError)):
		return KindTransient
	case errors.As(err, new(*PermanentError)):
		return KindPermanent
	case errors.As(err, new(*ResourceDisposedError)):
		return KindResourceDisposed
	case errors.As(err, new(*RetryDeadlineExceededError)):
		return KindRetryDeadlineExceeded
	case errors.As(err, new(*CancelledError)):
		return KindCancelled
	case errors.As(err, new(*WorkflowFailedError)):
		return KindWorkflowFailed
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindUnknown
	}
}

// IsTransient is the default retry predicate (§4.2): it matches any
// TransientError, plus context.DeadlineExceeded surfaced by a driver that
// hasn't classified itself, since an unclassified timeout is far more often
// transient than not.
func IsTransient(err error) bool {
	if Classify(err) == KindTransient {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// IsPermanent reports whether err (or something in its chain) is a
// PermanentError.
func IsPermanent(err error) bool {
	return Classify(err) == KindPermanent
}
