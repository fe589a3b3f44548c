// Package retry implements the bounded exponential backoff policy for
// transient embedding backend and vector store failures. Precondition
// violations are never retried.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nordlys-labs/qfrm/internal/domain"
)

// Policy is a bounded exponential backoff retry policy.
type Policy struct {
	// MaxAttempts is the total number of attempts (first call included).
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
}

// Default is the policy used when none is configured.
var Default = Policy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// Do runs op, retrying transient failures (domain.Retryable) with
// exponential backoff until the attempt limit. Non-retryable errors and
// context cancellation surface immediately.
func (p Policy) Do(ctx context.Context, op func() error) error {
	if p.MaxAttempts <= 0 {
		p = Default
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	wrapped := func() error {
		err := op()
		if err != nil && !domain.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry( //nolint:wrapcheck // op errors pass through unchanged
		wrapped,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx),
	)
}
