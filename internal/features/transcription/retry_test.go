package transcription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
)

func TestWithOptimisticLockingRetriesConflicts(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond}
	attempts := 0

	result, err := WithOptimisticLocking(context.Background(), policy, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", apperror.VersionConflict(map[string]any{"attempt": attempts})
		}
		return "done", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if result != "done" || attempts != 3 {
		t.Errorf("result=%q attempts=%d", result, attempts)
	}
}

func TestWithOptimisticLockingGivesUp(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond}
	attempts := 0

	_, err := WithOptimisticLocking(context.Background(), policy, func(ctx context.Context) (int, error) {
		attempts++
		return 0, apperror.VersionConflict(map[string]any{"n": attempts})
	})
	if !apperror.IsKind(err, apperror.KindVersionConflict) {
		t.Fatalf("error = %v, want the final VersionConflict", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want initial try plus two retries", attempts)
	}
	if copy := apperror.ServerCopyOf(err); copy["n"] != 3 {
		t.Errorf("surfaced conflict is not the last one: %v", copy)
	}
}

func TestWithOptimisticLockingDoesNotRetryOtherErrors(t *testing.T) {
	attempts := 0
	boom := errors.New("boom")

	_, err := WithOptimisticLocking(context.Background(), DefaultRetryPolicy, func(ctx context.Context) (int, error) {
		attempts++
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestWithOptimisticLockingHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithOptimisticLocking(ctx, RetryPolicy{MaxRetries: 5, Backoff: time.Hour}, func(ctx context.Context) (int, error) {
		return 0, apperror.VersionConflict(nil)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
