package budget

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestControllerCap(t *testing.T) {
	ctrl := NewController(3, 0, 0)

	// Reserve up to the cap
	for i := 0; i < 3; i++ {
		if !ctrl.TryReserve() {
			t.Fatalf("Expected reservation %d to succeed", i+1)
		}
	}

	// Cap reached: no further reservations while three are in flight
	if ctrl.TryReserve() {
		t.Error("Expected reservation beyond cap to fail")
	}

	ctrl.Commit()
	ctrl.Commit()
	ctrl.Commit()

	if ctrl.Committed() != 3 {
		t.Errorf("Expected 3 committed, got %d", ctrl.Committed())
	}
	if !ctrl.Exhausted() {
		t.Error("Expected controller to be exhausted")
	}
	if ctrl.TryReserve() {
		t.Error("Expected reservation after exhaustion to fail")
	}
}

func TestControllerReleaseReturnsBudget(t *testing.T) {
	ctrl := NewController(1, 0, 0)

	if !ctrl.TryReserve() {
		t.Fatal("Expected first reservation to succeed")
	}
	if ctrl.TryReserve() {
		t.Error("Expected second reservation to fail while one is in flight")
	}

	// A failed download releases its slot without consuming budget
	ctrl.Release()

	if ctrl.Committed() != 0 {
		t.Errorf("Expected 0 committed after release, got %d", ctrl.Committed())
	}
	if !ctrl.TryReserve() {
		t.Error("Expected reservation to succeed after release")
	}
	ctrl.Commit()

	if !ctrl.Exhausted() {
		t.Error("Expected controller to be exhausted after commit")
	}
}

func TestControllerConcurrentReservations(t *testing.T) {
	ctrl := NewController(5, 0, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ctrl.TryReserve() {
				ctrl.Commit()
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 5 {
		t.Errorf("Expected exactly 5 reservations granted, got %d", granted)
	}
	if ctrl.Committed() != 5 {
		t.Errorf("Expected 5 committed, got %d", ctrl.Committed())
	}
}

func TestControllerWaitPacing(t *testing.T) {
	delay := 50 * time.Millisecond
	ctrl := NewController(10, delay, 0)
	ctx := context.Background()

	// First wait is free, the second must honor the spacing
	if err := ctrl.Wait(ctx); err != nil {
		t.Fatalf("First wait failed: %v", err)
	}

	start := time.Now()
	if err := ctrl.Wait(ctx); err != nil {
		t.Fatalf("Second wait failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < delay-5*time.Millisecond {
		t.Errorf("Expected wait of at least %v, got %v", delay, elapsed)
	}
}

func TestControllerWaitCancellation(t *testing.T) {
	ctrl := NewController(10, 10*time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	if err := ctrl.Wait(ctx); err != nil {
		t.Fatalf("First wait failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Wait(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected cancelled wait to return an error")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not honor context cancellation")
	}
}

func TestControllerZeroDelay(t *testing.T) {
	ctrl := NewController(10, 0, 0.2)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := ctrl.Wait(ctx); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Expected zero-delay waits to be immediate, took %v", elapsed)
	}
}
