package kernel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/microkernel-project/microkernel/internal/types"
)

func newTestKernel(t *testing.T, cfg Config) *Kernel {
	t.Helper()
	k := New(cfg, nil)
	t.Cleanup(k.Shutdown)
	return k
}

func TestCreateProcess(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())

	pid, err := k.CreateProcess("worker", nil, 3)
	if err != nil {
		t.Fatalf("CreateProcess failed: %v", err)
	}

	proc, ok := k.Get(pid)
	if !ok {
		t.Fatal("created process should be retrievable")
	}
	if proc.State != types.StateReady {
		t.Errorf("expected READY, got %s", proc.State)
	}
	if proc.MemoryAllocated != 1024 {
		t.Errorf("expected 1024 bytes allocated, got %d", proc.MemoryAllocated)
	}
	if k.Stats().ProcessesCreated != 1 {
		t.Errorf("expected created counter 1, got %d", k.Stats().ProcessesCreated)
	}
}

func TestCreateProcessOutOfMemory(t *testing.T) {
	k := newTestKernel(t, Config{MemoryTotal: 2048, ProcessQuota: 1024})

	for i := 0; i < 2; i++ {
		if _, err := k.CreateProcess("fits", nil, 1); err != nil {
			t.Fatalf("process %d should fit: %v", i, err)
		}
	}

	_, err := k.CreateProcess("overflow", nil, 1)
	if !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
	if got := len(k.List()); got != 2 {
		t.Errorf("failed creation must leave the table unchanged, got %d processes", got)
	}
	if info := k.MemoryInfo(); info.Used != 2048 {
		t.Errorf("failed creation must not leak memory, used=%d", info.Used)
	}
}

func TestTerminateProcess(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())

	if k.TerminateProcess("proc_unknown") {
		t.Fatal("terminating an unknown pid should fail")
	}

	pid, _ := k.CreateProcess("victim", nil, 1)
	before := k.MemoryInfo().Used

	if !k.TerminateProcess(pid) {
		t.Fatal("terminate should succeed")
	}
	if _, ok := k.Get(pid); ok {
		t.Error("terminated process should disappear from the table")
	}
	if after := k.MemoryInfo().Used; before-after != 1024 {
		t.Errorf("expected exactly 1024 bytes reclaimed, got %d", before-after)
	}
	if k.Stats().ProcessesTerminated != 1 {
		t.Error("terminated counter should increment")
	}
}

func TestStartProcessRunsBody(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())

	ran := make(chan struct{})
	pid, _ := k.CreateProcess("runner", func(ctx context.Context) {
		close(ran)
	}, 1)

	if !k.StartProcess(pid) {
		t.Fatal("start should succeed")
	}

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("body never ran")
	}

	// Body completion transitions the record to TERMINATED.
	deadline := time.After(time.Second)
	for {
		if proc, ok := k.Get(pid); ok && proc.State == types.StateTerminated {
			break
		}
		select {
		case <-deadline:
			t.Fatal("process never reached TERMINATED")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if k.StartProcess(pid) {
		t.Error("restarting a finished process should fail")
	}
}

func TestStartProcessWithoutBody(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	pid, _ := k.CreateProcess("idle", nil, 1)
	if k.StartProcess(pid) {
		t.Error("starting a process without a body should fail")
	}
	if k.StartProcess("proc_unknown") {
		t.Error("starting an unknown pid should fail")
	}
}

func TestBodyPanicIsContained(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	pid, _ := k.CreateProcess("faulty", func(ctx context.Context) {
		panic("boom")
	}, 1)
	k.StartProcess(pid)

	deadline := time.After(time.Second)
	for {
		if proc, ok := k.Get(pid); ok && proc.State == types.StateTerminated {
			return
		}
		select {
		case <-deadline:
			t.Fatal("panicking body should terminate the process")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTerminateCancelsBodyContext(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())

	cancelled := make(chan struct{})
	pid, _ := k.CreateProcess("looper", func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	}, 1)
	k.StartProcess(pid)
	k.TerminateProcess(pid)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("terminate should cancel the body context")
	}
}

func TestMessagesFIFO(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	sender, _ := k.CreateProcess("sender", nil, 1)
	receiver, _ := k.CreateProcess("receiver", nil, 1)

	if k.SendMessage(sender, "proc_unknown", "x", "data") {
		t.Fatal("sending to an unknown receiver should fail")
	}

	for _, payload := range []string{"A", "B", "C"} {
		if !k.SendMessage(sender, receiver, payload, "data") {
			t.Fatalf("send %q failed", payload)
		}
	}
	if k.MessageCount(receiver) != 3 {
		t.Fatalf("expected 3 pending, got %d", k.MessageCount(receiver))
	}

	for _, want := range []string{"A", "B", "C"} {
		msg := k.ReceiveMessage(receiver)
		if msg == nil {
			t.Fatalf("expected message %q, got nil", want)
		}
		if msg.Payload != want {
			t.Errorf("expected %q, got %v", want, msg.Payload)
		}
		if msg.Sender != sender {
			t.Errorf("expected sender %s, got %s", sender, msg.Sender)
		}
	}

	if k.ReceiveMessage(receiver) != nil {
		t.Error("drained inbox should return nil")
	}
	if k.HasMessages(receiver) {
		t.Error("drained inbox should report no messages")
	}
}

func TestTransition(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	pid, _ := k.CreateProcess("p", nil, 1)

	if !k.Transition(pid, types.StateReady, types.StateRunning) {
		t.Fatal("READY -> RUNNING should succeed")
	}
	if k.Transition(pid, types.StateReady, types.StateRunning) {
		t.Fatal("transition from a stale state should fail")
	}
	if !k.Transition(pid, types.StateRunning, types.StateReady) {
		t.Fatal("RUNNING -> READY should succeed")
	}
}

func TestShutdown(t *testing.T) {
	k := New(DefaultConfig(), nil)
	k.CreateProcess("a", nil, 1)
	k.CreateProcess("b", nil, 1)

	k.Shutdown()

	if len(k.List()) != 0 {
		t.Error("shutdown should terminate all processes")
	}
	if _, err := k.CreateProcess("late", nil, 1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("creation after shutdown should fail with ErrInvalidState, got %v", err)
	}
}

func TestSystemInfo(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	a, _ := k.CreateProcess("a", nil, 1)
	k.CreateProcess("b", nil, 1)
	k.Transition(a, types.StateReady, types.StateRunning)

	info := k.SystemInfo()
	if info.Processes.Total != 2 || info.Processes.Running != 1 || info.Processes.Ready != 1 {
		t.Errorf("unexpected counts: %+v", info.Processes)
	}
	if info.Memory.Used != 2048 {
		t.Errorf("expected 2048 used, got %d", info.Memory.Used)
	}
	if !info.Running {
		t.Error("kernel should report running")
	}
}
