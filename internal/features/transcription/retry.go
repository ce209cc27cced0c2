package transcription

import (
	"context"
	"time"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
)

// RetryPolicy bounds WithOptimisticLocking.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryPolicy retries twice with linear backoff.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 2, Backoff: 100 * time.Millisecond}

// WithOptimisticLocking re-invokes op when it fails with a VersionConflict,
// waiting policy.Backoff * attempt between tries. Any other error, and the
// conflict on the final attempt, propagate unchanged. Entity Update methods
// never retry on their own; callers opt in by wrapping them here.
func WithOptimisticLocking[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var result T
	var err error

	for attempt := 0; ; attempt++ {
		result, err = op(ctx)
		if err == nil || !apperror.IsKind(err, apperror.KindVersionConflict) {
			return result, err
		}
		if attempt >= policy.MaxRetries {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(policy.Backoff * time.Duration(attempt+1)):
		}
	}
}
