package sched

import (
	"testing"
	"time"

	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/types"
)

func newTestSetup(t *testing.T, policy Policy) (*kernel.Kernel, *Scheduler) {
	t.Helper()
	k := kernel.New(kernel.DefaultConfig(), nil)
	s := New(k, policy, nil)
	t.Cleanup(func() {
		s.Stop()
		k.Shutdown()
	})
	return k, s
}

func TestStartStop(t *testing.T) {
	_, s := newTestSetup(t, RoundRobin{})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(); err != kernel.ErrInvalidState {
		t.Errorf("double start should fail with ErrInvalidState, got %v", err)
	}

	s.Stop()
	s.Stop() // idempotent

	if s.Info().Running {
		t.Error("stopped scheduler should not report running")
	}
	if err := s.Start(); err != nil {
		t.Errorf("restart after stop should succeed: %v", err)
	}
}

func TestSetPolicyRequiresStopped(t *testing.T) {
	_, s := newTestSetup(t, RoundRobin{})

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPolicy(FIFO{}); err != kernel.ErrInvalidState {
		t.Errorf("policy switch while running should fail, got %v", err)
	}

	s.Stop()
	if err := s.SetPolicy(FIFO{}); err != nil {
		t.Fatalf("policy switch when stopped failed: %v", err)
	}
	if info := s.Info(); info.Policy != "fifo" || info.TimeSliceMs != 200 {
		t.Errorf("expected fifo/200ms, got %s/%v", info.Policy, info.TimeSliceMs)
	}
}

// Two equal-priority ready processes must both keep getting dispatched:
// round robin cannot starve within a priority band.
func TestRoundRobinNoStarvation(t *testing.T) {
	k, s := newTestSetup(t, RoundRobin{})

	a, _ := k.CreateProcess("a", nil, 5)
	b, _ := k.CreateProcess("b", nil, 5)

	s.SetTimeSlice(10 * time.Millisecond)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	dispatches := s.Info().Dispatches
	if dispatches[a] < 2 {
		t.Errorf("process a starved: %d dispatches", dispatches[a])
	}
	if dispatches[b] < 2 {
		t.Errorf("process b starved: %d dispatches", dispatches[b])
	}
}

func TestDispatchedProcessReturnsToReady(t *testing.T) {
	k, s := newTestSetup(t, RoundRobin{})

	pid, _ := k.CreateProcess("p", nil, 1)
	s.SetTimeSlice(10 * time.Millisecond)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	proc, ok := k.Get(pid)
	if !ok {
		t.Fatal("process disappeared")
	}
	if proc.State != types.StateReady {
		t.Errorf("expected READY after stop, got %s", proc.State)
	}
	if s.Info().Dispatches[pid] == 0 {
		t.Error("process was never dispatched")
	}
}

func TestSchedulerSurvivesTermination(t *testing.T) {
	k, s := newTestSetup(t, RoundRobin{})

	s.SetTimeSlice(5 * time.Millisecond)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	// Churn processes underneath the running scheduler.
	for i := 0; i < 10; i++ {
		pid, err := k.CreateProcess("ephemeral", nil, 1)
		if err != nil {
			t.Fatal(err)
		}
		time.Sleep(3 * time.Millisecond)
		k.TerminateProcess(pid)
	}

	if !s.Info().Running {
		t.Error("scheduler should survive process churn")
	}
}

func TestIdleSchedulerRuns(t *testing.T) {
	_, s := newTestSetup(t, Priority{})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if !s.Info().Running {
		t.Error("scheduler should idle without processes, not exit")
	}
}
