package sched

import (
	"testing"
	"time"

	"github.com/microkernel-project/microkernel/internal/types"
)

func proc(id string, priority int, age time.Duration) types.Process {
	return types.Process{
		ID:        id,
		Name:      id,
		Priority:  priority,
		State:     types.StateReady,
		CreatedAt: time.Now().Add(-age),
	}
}

func TestNewPolicy(t *testing.T) {
	for name, want := range map[string]string{
		"round_robin": "round_robin",
		"rr":          "round_robin",
		"":            "round_robin",
		"priority":    "priority",
		"fifo":        "fifo",
	} {
		p, err := NewPolicy(name)
		if err != nil {
			t.Fatalf("NewPolicy(%q) failed: %v", name, err)
		}
		if p.Name() != want {
			t.Errorf("NewPolicy(%q) = %s, want %s", name, p.Name(), want)
		}
	}

	if _, err := NewPolicy("lottery"); err == nil {
		t.Error("unknown policy should fail")
	}
}

func TestRoundRobinPrefersHighPriority(t *testing.T) {
	ready := []types.Process{
		proc("low", 1, time.Minute),
		proc("high", 9, time.Second),
	}
	next := RoundRobin{}.Next(ready, "")
	if next.ID != "high" {
		t.Errorf("expected high, got %s", next.ID)
	}
}

func TestRoundRobinCyclesWithinBand(t *testing.T) {
	ready := []types.Process{
		proc("a", 5, 3*time.Minute),
		proc("b", 5, 2*time.Minute),
		proc("c", 5, time.Minute),
	}

	// Band order by creation time is a, b, c; cycling advances from current.
	if next := (RoundRobin{}).Next(ready, "a"); next.ID != "b" {
		t.Errorf("after a expected b, got %s", next.ID)
	}
	if next := (RoundRobin{}).Next(ready, "c"); next.ID != "a" {
		t.Errorf("after c expected wrap to a, got %s", next.ID)
	}
}

func TestRoundRobinSingletonBand(t *testing.T) {
	ready := []types.Process{
		proc("solo", 9, time.Minute),
		proc("other", 1, time.Minute),
	}
	if next := (RoundRobin{}).Next(ready, "solo"); next.ID != "solo" {
		t.Errorf("a one-process band keeps running, got %s", next.ID)
	}
}

func TestPriorityPolicy(t *testing.T) {
	ready := []types.Process{
		proc("old-low", 1, time.Hour),
		proc("new-high", 8, time.Second),
		proc("old-high", 8, time.Minute),
	}
	if next := (Priority{}).Next(ready, ""); next.ID != "old-high" {
		t.Errorf("expected old-high (priority then age tie-break), got %s", next.ID)
	}
}

func TestFIFOPolicy(t *testing.T) {
	ready := []types.Process{
		proc("young", 9, time.Second),
		proc("oldest", 1, time.Hour),
	}
	if next := (FIFO{}).Next(ready, ""); next.ID != "oldest" {
		t.Errorf("FIFO ignores priority, expected oldest, got %s", next.ID)
	}
}

func TestPolicyQuantums(t *testing.T) {
	if q := (RoundRobin{}).DefaultQuantum(); q != 100*time.Millisecond {
		t.Errorf("round robin quantum = %v", q)
	}
	if q := (Priority{}).DefaultQuantum(); q != 50*time.Millisecond {
		t.Errorf("priority quantum = %v", q)
	}
	if q := (FIFO{}).DefaultQuantum(); q != 200*time.Millisecond {
		t.Errorf("fifo quantum = %v", q)
	}
}
