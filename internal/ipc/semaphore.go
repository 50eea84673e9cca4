package ipc

import (
	"sync"
	"time"

	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/types"
)

// waiter is one parked Acquire call. grant carries the hand-off token; it is
// buffered so Release never blocks on a waiter that timed out concurrently.
type waiter struct {
	pid   string
	grant chan struct{}
}

// Semaphore is a counting semaphore with a FIFO waiter queue. Release hands
// the token directly to the head waiter instead of incrementing the count,
// which gives FIFO fairness and avoids lost wakeups without a condition
// variable re-check loop.
type Semaphore struct {
	name    string
	initial int

	mu      sync.Mutex
	count   int
	waiters []*waiter
}

// NewSemaphore creates a semaphore with the given initial count.
func NewSemaphore(name string, initial int) *Semaphore {
	if initial < 0 {
		initial = 0
	}
	return &Semaphore{name: name, initial: initial, count: initial}
}

// Acquire takes one unit, parking the caller when none is available. A
// timeout <= 0 waits forever. It returns ErrTimeout when the wait expires.
func (s *Semaphore) Acquire(pid string, timeout time.Duration) error {
	s.mu.Lock()
	if s.count > 0 && len(s.waiters) == 0 {
		s.count--
		s.mu.Unlock()
		return nil
	}

	w := &waiter{pid: pid, grant: make(chan struct{}, 1)}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	if timeout <= 0 {
		<-w.grant
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.grant:
		return nil
	case <-timer.C:
	}

	// The grant may have raced the timer; only fail if we can still
	// withdraw from the queue.
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-w.grant:
		return nil
	default:
	}
	for i, q := range s.waiters {
		if q == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			break
		}
	}
	return kernel.ErrTimeout
}

// Release returns one unit, waking the oldest waiter if any.
func (s *Semaphore) Release(pid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		w.grant <- struct{}{}
		return
	}
	s.count++
}

// Forget removes a process from the waiter queue without granting it,
// used when the process terminates.
func (s *Semaphore) Forget(pid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.waiters[:0]
	for _, w := range s.waiters {
		if w.pid != pid {
			kept = append(kept, w)
		}
	}
	s.waiters = kept
}

// Info returns a snapshot of the semaphore.
func (s *Semaphore) Info() types.SemaphoreInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	waiting := make([]string, 0, len(s.waiters))
	for _, w := range s.waiters {
		waiting = append(waiting, w.pid)
	}
	return types.SemaphoreInfo{
		Name:    s.name,
		Count:   s.count,
		Initial: s.initial,
		Waiters: waiting,
	}
}
