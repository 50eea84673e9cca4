package sched

import (
	"fmt"
	"sort"
	"time"

	"github.com/microkernel-project/microkernel/internal/types"
)

// Policy selects the next process to run from the ready set.
type Policy interface {
	Name() string
	// DefaultQuantum is the time slice the policy was tuned for.
	DefaultQuantum() time.Duration
	// Next picks a process from ready, which is never empty. currentID is
	// the last dispatched process, used for tie-breaking only.
	Next(ready []types.Process, currentID string) *types.Process
}

// NewPolicy returns the policy registered under name.
func NewPolicy(name string) (Policy, error) {
	switch name {
	case "round_robin", "rr", "":
		return RoundRobin{}, nil
	case "priority":
		return Priority{}, nil
	case "fifo":
		return FIFO{}, nil
	default:
		return nil, fmt.Errorf("unknown scheduling policy %q", name)
	}
}

// RoundRobin cycles through ready processes within the highest priority band.
type RoundRobin struct{}

func (RoundRobin) Name() string                  { return "round_robin" }
func (RoundRobin) DefaultQuantum() time.Duration { return 100 * time.Millisecond }

func (RoundRobin) Next(ready []types.Process, currentID string) *types.Process {
	byPriority(ready)

	if currentID != "" {
		if cur := find(ready, currentID); cur != nil {
			band := samePriority(ready, cur.Priority)
			if len(band) > 1 {
				for i := range band {
					if band[i].ID == currentID {
						next := band[(i+1)%len(band)]
						return &next
					}
				}
			}
		}
	}
	return &ready[0]
}

// Priority always picks the highest-priority ready process.
type Priority struct{}

func (Priority) Name() string                  { return "priority" }
func (Priority) DefaultQuantum() time.Duration { return 50 * time.Millisecond }

func (Priority) Next(ready []types.Process, _ string) *types.Process {
	byPriority(ready)
	return &ready[0]
}

// FIFO runs processes strictly in creation order, ignoring priority.
type FIFO struct{}

func (FIFO) Name() string                  { return "fifo" }
func (FIFO) DefaultQuantum() time.Duration { return 200 * time.Millisecond }

func (FIFO) Next(ready []types.Process, _ string) *types.Process {
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})
	return &ready[0]
}

// byPriority orders by priority descending, creation time ascending.
func byPriority(procs []types.Process) {
	sort.SliceStable(procs, func(i, j int) bool {
		if procs[i].Priority != procs[j].Priority {
			return procs[i].Priority > procs[j].Priority
		}
		return procs[i].CreatedAt.Before(procs[j].CreatedAt)
	})
}

func find(procs []types.Process, pid string) *types.Process {
	for i := range procs {
		if procs[i].ID == pid {
			return &procs[i]
		}
	}
	return nil
}

func samePriority(procs []types.Process, priority int) []types.Process {
	var out []types.Process
	for _, p := range procs {
		if p.Priority == priority {
			out = append(out, p)
		}
	}
	return out
}
