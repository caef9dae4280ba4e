package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "cropcrawler/pkg/errors"
)

func testConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		return nil
	}, testConfig())

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeTransientFetch, "timeout")
		}
		return nil
	}, testConfig())

	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		return errs.New(errs.ErrorTypeTransientFetch, "timeout")
	}, testConfig())

	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	permanent := errs.NewWithCode(errs.ErrorTypePermanentFetch, "not found", 404)

	err := Do(func() error {
		attempts++
		return permanent
	}, testConfig())

	if !errors.Is(err, permanent) {
		t.Errorf("Expected the permanent error back, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for a permanent error, got %d", attempts)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := testConfig()
	cfg.Context = ctx
	cfg.Backoff = &ConstantBackoff{Delay: time.Second}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(func() error {
			attempts++
			return errs.New(errs.ErrorTypeTransientFetch, "timeout")
		}, cfg)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Retry did not stop on cancellation")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errs.New(errs.ErrorTypeTransientFetch, "timeout")
		}
		return "payload", nil
	}, testConfig())

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result != "payload" {
		t.Errorf("Expected payload, got %q", result)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	if DefaultRetryIf(nil) {
		t.Error("nil error must not be retried")
	}
	if !DefaultRetryIf(errs.New(errs.ErrorTypeTransientFetch, "x")) {
		t.Error("transient fetch errors must be retried")
	}
	if DefaultRetryIf(errs.New(errs.ErrorTypeMalformedPayload, "x")) {
		t.Error("malformed payload errors must not be retried")
	}
	if DefaultRetryIf(context.Canceled) {
		t.Error("context cancellation must not be retried")
	}
}

func TestRetrierWithOptions(t *testing.T) {
	retrier := NewRetrier(testConfig()).WithMaxAttempts(2)

	attempts := 0
	err := retrier.Do(func() error {
		attempts++
		return errs.New(errs.ErrorTypeTransientFetch, "timeout")
	})

	if err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestExponentialBackoffGrows(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	first := backoff.NextDelay(1)
	second := backoff.NextDelay(2)
	third := backoff.NextDelay(3)

	if first != 100*time.Millisecond {
		t.Errorf("Expected 100ms for attempt 1, got %v", first)
	}
	if second != 200*time.Millisecond {
		t.Errorf("Expected 200ms for attempt 2, got %v", second)
	}
	if third != 400*time.Millisecond {
		t.Errorf("Expected 400ms for attempt 3, got %v", third)
	}

	// The cap holds for late attempts
	if capped := backoff.NextDelay(20); capped != time.Second {
		t.Errorf("Expected delay capped at 1s, got %v", capped)
	}
}

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 50 * time.Millisecond}
	for attempt := 1; attempt <= 3; attempt++ {
		if d := backoff.NextDelay(attempt); d != 50*time.Millisecond {
			t.Errorf("Expected constant 50ms, got %v for attempt %d", d, attempt)
		}
	}
}
