package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrRetryBudgetExceeded indicates a propagation transaction kept
// conflicting until the retry budget ran out. The wrapped error is the
// last conflict observed. No partial increment is left behind: every
// attempt either committed fully or rolled back.
var ErrRetryBudgetExceeded = errors.New("propagation retry budget exceeded")

// conflictMarkers are substrings of driver error messages that identify
// optimistic-concurrency collisions worth retrying. Covers postgres
// serialization failures and deadlocks plus sqlite's busy writer, which
// the tests run against.
var conflictMarkers = []string{
	"serialization failure",
	"could not serialize",
	"deadlock detected",
	"database is locked",
	"database table is locked",
}

// IsConflict reports whether err represents a transactional conflict
// that a fresh re-read-and-recompute attempt can resolve. Anything else
// (missing references, constraint violations) is permanent for this
// invocation and must not be retried.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}

	message := strings.ToLower(err.Error())
	for _, marker := range conflictMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}

	return false
}

// WithConflictRetry runs fn up to attempts times, retrying only
// conflicts and only while ctx is live. Each retry must re-read its
// inputs inside fn; nothing from the failed attempt may be reused.
// onRetry, when non-nil, is invoked once per retry for accounting.
func WithConflictRetry(ctx context.Context, attempts int, onRetry func(), fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsConflict(lastErr) {
			return lastErr
		}
		if onRetry != nil && attempt < attempts-1 {
			onRetry()
		}
	}

	return fmt.Errorf("%w: %w", ErrRetryBudgetExceeded, lastErr)
}
