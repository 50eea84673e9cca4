package ipc

import (
	"sort"
	"sync"
	"time"

	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/types"
)

// Pipe is a named bounded FIFO with disjoint reader and writer grants.
// The buffer is a channel, so ordering per pipe is FIFO and blocking waits
// park the calling goroutine without spinning.
type Pipe struct {
	name     string
	capacity int
	buf      chan interface{}

	mu      sync.Mutex
	readers map[string]struct{}
	writers map[string]struct{}
}

// NewPipe creates a pipe with the given capacity.
func NewPipe(name string, capacity int) *Pipe {
	if capacity < 1 {
		capacity = 1
	}
	return &Pipe{
		name:     name,
		capacity: capacity,
		buf:      make(chan interface{}, capacity),
		readers:  make(map[string]struct{}),
		writers:  make(map[string]struct{}),
	}
}

// AddReader grants read access.
func (p *Pipe) AddReader(pid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readers[pid] = struct{}{}
}

// AddWriter grants write access.
func (p *Pipe) AddWriter(pid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writers[pid] = struct{}{}
}

// Revoke removes both grants, used when the process terminates.
func (p *Pipe) Revoke(pid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.readers, pid)
	delete(p.writers, pid)
}

// Write appends data, blocking while the pipe is full. A timeout <= 0 waits
// forever. Overflow past the timeout is an explicit ErrTimeout, never a
// silent drop.
func (p *Pipe) Write(pid string, data interface{}, timeout time.Duration) error {
	if !p.canWrite(pid) {
		return kernel.ErrUnauthorized
	}
	if timeout <= 0 {
		p.buf <- data
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case p.buf <- data:
		return nil
	case <-timer.C:
		return kernel.ErrTimeout
	}
}

// Read pops the oldest element, blocking while the pipe is empty. A timeout
// <= 0 waits forever.
func (p *Pipe) Read(pid string, timeout time.Duration) (interface{}, error) {
	if !p.canRead(pid) {
		return nil, kernel.ErrUnauthorized
	}
	if timeout <= 0 {
		return <-p.buf, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-p.buf:
		return data, nil
	case <-timer.C:
		return nil, kernel.ErrTimeout
	}
}

func (p *Pipe) canRead(pid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.readers[pid]
	return ok
}

func (p *Pipe) canWrite(pid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.writers[pid]
	return ok
}

// Info returns a snapshot of the pipe.
func (p *Pipe) Info() types.PipeInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return types.PipeInfo{
		Name:     p.name,
		Capacity: p.capacity,
		Buffered: len(p.buf),
		Readers:  sortedKeys(p.readers),
		Writers:  sortedKeys(p.writers),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
