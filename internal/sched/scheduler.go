// Package sched implements cooperative time-slice scheduling over the
// kernel's ready set. The loop models CPU occupancy by sleeping for the
// quantum; no real context switch occurs.
package sched

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/logging"
	"github.com/microkernel-project/microkernel/internal/types"
)

// idlePause separates loop iterations when the ready set is empty.
const idlePause = 10 * time.Millisecond

// ProcessTable is the slice of the kernel the scheduler needs. The scheduler
// only reads snapshots and flips READY/RUNNING; it never touches IPC state.
type ProcessTable interface {
	Ready() []types.Process
	Transition(pid string, from, to types.ProcessState) bool
}

// Scheduler drives the scheduling loop on a dedicated worker goroutine.
type Scheduler struct {
	table  ProcessTable
	policy Policy
	log    *logging.Logger

	mu         sync.Mutex
	quantum    time.Duration
	currentID  string
	running    bool
	stop       chan struct{}
	wg         sync.WaitGroup
	dispatches map[string]uint64
}

// New creates a stopped scheduler using the policy's default quantum.
func New(table ProcessTable, policy Policy, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Scheduler{
		table:      table,
		policy:     policy,
		log:        log.Named("sched"),
		quantum:    policy.DefaultQuantum(),
		dispatches: make(map[string]uint64),
	}
}

// NewDefault creates a round-robin scheduler.
func NewDefault(k *kernel.Kernel, log *logging.Logger) *Scheduler {
	return New(k, RoundRobin{}, log)
}

// Start launches the scheduling worker. Starting a running scheduler fails.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return kernel.ErrInvalidState
	}
	s.running = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stop)

	s.log.Info("scheduler started",
		zap.String("policy", s.policy.Name()),
		zap.Duration("quantum", s.quantum),
	)
	return nil
}

// Stop signals the worker and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// SetPolicy switches the active policy and adopts its default quantum.
// The scheduler must be stopped first.
func (s *Scheduler) SetPolicy(policy Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return kernel.ErrInvalidState
	}
	s.policy = policy
	s.quantum = policy.DefaultQuantum()
	s.currentID = ""
	return nil
}

// SetTimeSlice changes the quantum for subsequent iterations.
func (s *Scheduler) SetTimeSlice(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantum = d
}

// Info returns a point-in-time snapshot of the scheduler.
func (s *Scheduler) Info() types.SchedulerInfo {
	ready := len(s.table.Ready())

	s.mu.Lock()
	defer s.mu.Unlock()
	info := types.SchedulerInfo{
		Running:        s.running,
		Policy:         s.policy.Name(),
		TimeSliceMs:    float64(s.quantum) / float64(time.Millisecond),
		ReadyProcesses: ready,
		Dispatches:     make(map[string]uint64, len(s.dispatches)),
	}
	if s.currentID != "" {
		cur := s.currentID
		info.CurrentProcess = &cur
	}
	for pid, n := range s.dispatches {
		info.Dispatches[pid] = n
	}
	return info
}

func (s *Scheduler) loop(stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}
		s.iterate(stop)
	}
}

// iterate runs one scheduling decision. Panics are logged and swallowed so a
// faulty iteration cannot kill the worker.
func (s *Scheduler) iterate(stop <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler iteration panicked", zap.Any("panic", r))
		}
	}()

	ready := s.table.Ready()
	if len(ready) == 0 {
		s.pause(idlePause, stop)
		return
	}

	next := s.policy.Next(ready, s.current())
	if next == nil {
		s.pause(idlePause, stop)
		return
	}

	if !s.table.Transition(next.ID, types.StateReady, types.StateRunning) {
		// Lost the race against termination; pick again next iteration.
		return
	}

	s.dispatched(next.ID)
	s.log.Debug("dispatched",
		zap.String("pid", next.ID),
		zap.String("name", next.Name),
	)

	s.pause(s.timeSlice(), stop)

	// Return the process to the ready set if its body did not finish.
	s.table.Transition(next.ID, types.StateRunning, types.StateReady)
}

// pause sleeps for d but wakes early on stop.
func (s *Scheduler) pause(d time.Duration, stop <-chan struct{}) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stop:
	}
}

func (s *Scheduler) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

func (s *Scheduler) timeSlice() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantum
}

func (s *Scheduler) dispatched(pid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentID = pid
	s.dispatches[pid]++
}
