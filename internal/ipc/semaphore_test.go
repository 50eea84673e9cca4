package ipc

import (
	"errors"
	"testing"
	"time"

	"github.com/microkernel-project/microkernel/internal/kernel"
)

func TestSemaphoreImmediateAcquire(t *testing.T) {
	sem := NewSemaphore("mutex", 1)

	if err := sem.Acquire("proc_a", time.Second); err != nil {
		t.Fatalf("first acquire should be immediate: %v", err)
	}
	if info := sem.Info(); info.Count != 0 {
		t.Errorf("expected count 0 after acquire, got %d", info.Count)
	}
}

func TestSemaphoreBlocksUntilRelease(t *testing.T) {
	sem := NewSemaphore("mutex", 1)
	if err := sem.Acquire("proc_a", 0); err != nil {
		t.Fatal(err)
	}

	acquired := make(chan error, 1)
	go func() {
		acquired <- sem.Acquire("proc_b", 2*time.Second)
	}()

	select {
	case err := <-acquired:
		t.Fatalf("second acquire should block, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if waiters := sem.Info().Waiters; len(waiters) != 1 || waiters[0] != "proc_b" {
		t.Errorf("expected proc_b waiting, got %v", waiters)
	}

	sem.Release("proc_a")

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("waiter should acquire after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
}

func TestSemaphoreAcquireTimeout(t *testing.T) {
	sem := NewSemaphore("mutex", 0)

	start := time.Now()
	err := sem.Acquire("proc_a", 50*time.Millisecond)
	if !errors.Is(err, kernel.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("timed out too early: %v", elapsed)
	}
	if waiters := sem.Info().Waiters; len(waiters) != 0 {
		t.Errorf("timed-out waiter must be deregistered, got %v", waiters)
	}

	// The unit released later goes to the count, not a ghost waiter.
	sem.Release("proc_b")
	if err := sem.Acquire("proc_c", time.Second); err != nil {
		t.Fatalf("released unit should be acquirable: %v", err)
	}
}

func TestSemaphoreFIFOWakeup(t *testing.T) {
	sem := NewSemaphore("queue", 0)

	order := make(chan string, 3)
	for i, pid := range []string{"proc_1", "proc_2", "proc_3"} {
		pid := pid
		go func() {
			if err := sem.Acquire(pid, 5*time.Second); err == nil {
				order <- pid
			}
		}()
		// Ensure deterministic queue order before parking the next waiter.
		deadline := time.Now().Add(time.Second)
		for len(sem.Info().Waiters) != i+1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}

	for i, want := range []string{"proc_1", "proc_2", "proc_3"} {
		sem.Release("owner")
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("wakeup %d: expected %s, got %s", i, want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("wakeup %d never happened", i)
		}
	}
}

func TestSemaphoreCountingBehavior(t *testing.T) {
	sem := NewSemaphore("slots", 3)
	for i := 0; i < 3; i++ {
		if err := sem.Acquire("proc_a", time.Second); err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
	}
	if err := sem.Acquire("proc_a", 20*time.Millisecond); !errors.Is(err, kernel.ErrTimeout) {
		t.Fatalf("fourth acquire should time out, got %v", err)
	}
}

func TestSemaphoreForget(t *testing.T) {
	sem := NewSemaphore("mutex", 0)

	go sem.Acquire("proc_gone", 5*time.Second)
	deadline := time.Now().Add(time.Second)
	for len(sem.Info().Waiters) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	sem.Forget("proc_gone")
	if waiters := sem.Info().Waiters; len(waiters) != 0 {
		t.Errorf("forgotten process should leave the queue, got %v", waiters)
	}
}
