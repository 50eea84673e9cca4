package kernel

import (
	"sync"

	"github.com/microkernel-project/microkernel/internal/types"
)

// Pool is a fixed-capacity byte ledger for simulated process memory.
// It shares one lock with the process table so that process creation and
// termination update both transactionally.
type Pool struct {
	mu    *sync.Mutex
	total int
	used  int
}

// NewPool creates a standalone pool guarded by its own lock.
func NewPool(total int) *Pool {
	return &Pool{mu: &sync.Mutex{}, total: total}
}

// newSharedPool creates a pool guarded by the caller's lock.
func newSharedPool(mu *sync.Mutex, total int) *Pool {
	return &Pool{mu: mu, total: total}
}

// Allocate reserves size bytes for the process. It fails without side
// effects when the reservation would exceed capacity.
func (p *Pool) Allocate(proc *process, size int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocate(proc, size)
}

// Deallocate returns the process's reserved bytes to the pool. It fails when
// the process holds no allocation.
func (p *Pool) Deallocate(proc *process) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deallocate(proc)
}

// Info returns a point-in-time snapshot of pool usage.
func (p *Pool) Info() types.MemoryInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info()
}

// allocate requires the pool lock held.
func (p *Pool) allocate(proc *process, size int) bool {
	if size < 0 || p.used+size > p.total {
		return false
	}
	p.used += size
	proc.memory = size
	return true
}

// deallocate requires the pool lock held.
func (p *Pool) deallocate(proc *process) bool {
	if proc.memory <= 0 {
		return false
	}
	p.used -= proc.memory
	proc.memory = 0
	return true
}

// info requires the pool lock held.
func (p *Pool) info() types.MemoryInfo {
	var percent float64
	if p.total > 0 {
		percent = float64(p.used) / float64(p.total) * 100
	}
	return types.MemoryInfo{
		Total:       p.total,
		Used:        p.used,
		Free:        p.total - p.used,
		PercentUsed: percent,
	}
}
