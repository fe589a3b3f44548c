package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nordlys-labs/qfrm/internal/domain"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestDo_TransientErrorRetried(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return domain.ErrStoreUnavailable
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestDo_AttemptLimit(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return domain.ErrEmbeddingBackend
	})
	if !errors.Is(err, domain.ErrEmbeddingBackend) {
		t.Fatalf("expected embedding backend error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func() error {
		calls++
		return domain.ErrCollectionNotFound
	})
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1 (precondition violations are not retried)", calls)
	}
}

func TestDo_SuccessFirstTry(t *testing.T) {
	calls := 0
	if err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Policy{MaxAttempts: 10, InitialBackoff: 50 * time.Millisecond, MaxBackoff: time.Second}.
		Do(ctx, func() error {
			calls++
			cancel()
			return domain.ErrStoreUnavailable
		})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls != 1 {
		t.Errorf("op called %d times after cancel, want 1", calls)
	}
}

func TestDo_ZeroPolicyUsesDefaults(t *testing.T) {
	calls := 0
	_ = Policy{}.Do(context.Background(), func() error {
		calls++
		return domain.ErrStoreUnavailable
	})
	if calls != Default.MaxAttempts {
		t.Errorf("op called %d times, want default %d", calls, Default.MaxAttempts)
	}
}
