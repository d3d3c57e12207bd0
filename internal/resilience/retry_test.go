package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartmsg/internal/common"
)

func transientErr() error {
	return &common.DispatchError{Op: "send", ChatID: 1, Message: "timeout"}
}

func TestRetryExhaustion(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, Delay: time.Millisecond, Backoff: 2.0},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, transientErr()
		})

	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	var exhausted *common.RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetryExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("unexpected attempt count: %d", exhausted.Attempts)
	}
	var dispatch *common.DispatchError
	if !errors.As(err, &dispatch) {
		t.Fatalf("the underlying failure must stay reachable: %v", err)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	value, err := Retry(context.Background(), RetryConfig{MaxAttempts: 5, Delay: time.Millisecond, Backoff: 2.0},
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", transientErr()
			}
			return "ok", nil
		})

	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if value != "ok" {
		t.Fatalf("unexpected value: %q", value)
	}
	if calls != 3 {
		t.Fatalf("success must stop further attempts, got %d calls", calls)
	}
}

func TestRetryPermanentErrorShortCircuits(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, Delay: time.Millisecond},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, &common.MissingContextKeyError{Key: "username"}
		})

	if calls != 1 {
		t.Fatalf("structural errors must not be retried, got %d calls", calls)
	}
	var missing *common.MissingContextKeyError
	if !errors.As(err, &missing) {
		t.Fatalf("expected the original error unwrapped, got %v", err)
	}
	var exhausted *common.RetryExhaustedError
	if errors.As(err, &exhausted) {
		t.Fatal("structural errors must not be wrapped as exhaustion")
	}
}

func TestRetryCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, RetryConfig{MaxAttempts: 3, Delay: time.Minute},
			func(ctx context.Context) (int, error) {
				calls++
				return 0, transientErr()
			})
		done <- err
	}()

	// Let the first attempt fail, then cancel mid-delay.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not abort the delay")
	}
	if calls != 1 {
		t.Fatalf("cancellation must not consume another attempt, got %d calls", calls)
	}
}

func TestRetryDefaultsSingleAttempt(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, transientErr()
		})
	if calls != 1 {
		t.Fatalf("zero config means one attempt, got %d", calls)
	}
	var exhausted *common.RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetryExhaustedError, got %v", err)
	}
}
