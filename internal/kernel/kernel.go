// Package kernel implements the microkernel core: the process table, the
// memory pool, and per-process message inboxes.
package kernel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/microkernel-project/microkernel/internal/logging"
	"github.com/microkernel-project/microkernel/internal/shared/id"
	"github.com/microkernel-project/microkernel/internal/types"
)

// Body is a process body. The context is cancelled when the process is
// terminated; bodies observe it cooperatively, they are never forced.
type Body func(ctx context.Context)

// Config sizes the kernel.
type Config struct {
	MemoryTotal  int // total simulated memory in bytes
	ProcessQuota int // fixed reservation per process
}

// DefaultConfig returns the reference sizing: 1 MiB pool, 1 KiB per process.
func DefaultConfig() Config {
	return Config{
		MemoryTotal:  1 << 20,
		ProcessQuota: 1 << 10,
	}
}

// process is the internal process record. All fields are guarded by the
// kernel lock except done/cancel, which are written once at creation.
type process struct {
	id        string
	name      string
	priority  int
	state     types.ProcessState
	memory    int
	createdAt time.Time
	inbox     []types.Message

	run     Body
	started bool
	cancel  context.CancelFunc
	ctx     context.Context
}

// Kernel owns the process table and the memory pool under a single lock.
type Kernel struct {
	mu      sync.Mutex
	pool    *Pool
	procs   map[string]*process
	quota   int
	running bool

	createdTotal    uint64
	terminatedTotal uint64
	messagesSent    uint64

	startedAt time.Time
	log       *logging.Logger
}

// New constructs a running kernel.
func New(cfg Config, log *logging.Logger) *Kernel {
	if log == nil {
		log = logging.NewNop()
	}
	k := &Kernel{
		procs:     make(map[string]*process),
		quota:     cfg.ProcessQuota,
		running:   true,
		startedAt: time.Now(),
		log:       log.Named("kernel"),
	}
	k.pool = newSharedPool(&k.mu, cfg.MemoryTotal)
	return k
}

// Pool exposes the memory pool for read-only consumers.
func (k *Kernel) Pool() *Pool {
	return k.pool
}

// CreateProcess inserts a READY process record, reserving its memory quota.
// The body, if any, is prepared but not started.
func (k *Kernel) CreateProcess(name string, body Body, priority int) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.running {
		return "", fmt.Errorf("create process %q: %w", name, ErrInvalidState)
	}

	pid := id.NewProcessID().String()
	p := &process{
		id:        pid,
		name:      name,
		priority:  priority,
		state:     types.StateReady,
		createdAt: time.Now(),
		inbox:     []types.Message{},
	}

	if !k.pool.allocate(p, k.quota) {
		return "", fmt.Errorf("create process %q: %w", name, ErrOutOfMemory)
	}

	if body != nil {
		p.ctx, p.cancel = context.WithCancel(context.Background())
		p.run = body
	}

	k.procs[pid] = p
	k.createdTotal++

	k.log.Debug("process created",
		zap.String("pid", pid),
		zap.String("name", name),
		zap.Int("priority", priority),
	)
	return pid, nil
}

// StartProcess launches the prepared body. It returns false when the process
// is unknown, not READY, has no body, or was already started. The body runs
// fire-and-forget; completion or panic transitions the process to TERMINATED.
func (k *Kernel) StartProcess(pid string) bool {
	k.mu.Lock()
	p, ok := k.procs[pid]
	if !ok || p.state != types.StateReady || p.run == nil || p.started {
		k.mu.Unlock()
		return false
	}
	p.started = true
	body, ctx := p.run, p.ctx
	k.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				k.log.Error("process body panicked",
					zap.String("pid", pid),
					zap.Any("panic", r),
				)
			}
			k.finish(pid)
		}()
		body(ctx)
	}()
	return true
}

// finish marks a completed body TERMINATED if the record still exists.
func (k *Kernel) finish(pid string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if p, ok := k.procs[pid]; ok {
		p.state = types.StateTerminated
	}
}

// TerminateProcess removes the record, returns its memory to the pool, and
// discards its inbox. An in-flight body is signalled through its context but
// never interrupted.
func (k *Kernel) TerminateProcess(pid string) bool {
	k.mu.Lock()
	p, ok := k.procs[pid]
	if !ok {
		k.mu.Unlock()
		return false
	}
	p.state = types.StateTerminated
	k.pool.deallocate(p)
	p.inbox = nil
	delete(k.procs, pid)
	k.terminatedTotal++
	k.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	k.log.Debug("process terminated", zap.String("pid", pid), zap.String("name", p.name))
	return true
}

// Get returns a snapshot of one process.
func (k *Kernel) Get(pid string) (types.Process, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.procs[pid]
	if !ok {
		return types.Process{}, false
	}
	return snapshot(p), true
}

// List returns snapshots of all live processes.
func (k *Kernel) List() []types.Process {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]types.Process, 0, len(k.procs))
	for _, p := range k.procs {
		out = append(out, snapshot(p))
	}
	return out
}

// Ready returns snapshots of all READY processes, for the scheduler.
func (k *Kernel) Ready() []types.Process {
	k.mu.Lock()
	defer k.mu.Unlock()
	var out []types.Process
	for _, p := range k.procs {
		if p.state == types.StateReady {
			out = append(out, snapshot(p))
		}
	}
	return out
}

// Transition moves a process from one state to another. It returns false if
// the process is unknown or not in the expected state. There is no
// transition out of TERMINATED.
func (k *Kernel) Transition(pid string, from, to types.ProcessState) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.procs[pid]
	if !ok || p.state != from || p.state == types.StateTerminated {
		return false
	}
	p.state = to
	return true
}

// SendMessage appends a message to the receiver's inbox. It fails when the
// receiver is unknown.
func (k *Kernel) SendMessage(from, to string, payload interface{}, kind string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.procs[to]
	if !ok {
		return false
	}
	p.inbox = append(p.inbox, types.Message{
		ID:        id.NewMessageID().String(),
		Sender:    from,
		Receiver:  to,
		Payload:   payload,
		Kind:      kind,
		Timestamp: time.Now(),
	})
	k.messagesSent++
	return true
}

// ReceiveMessage pops the oldest pending message, or nil when none.
func (k *Kernel) ReceiveMessage(pid string) *types.Message {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.procs[pid]
	if !ok || len(p.inbox) == 0 {
		return nil
	}
	msg := p.inbox[0]
	p.inbox = p.inbox[1:]
	return &msg
}

// HasMessages reports whether the process has pending messages.
func (k *Kernel) HasMessages(pid string) bool {
	return k.MessageCount(pid) > 0
}

// MessageCount returns the number of pending messages.
func (k *Kernel) MessageCount(pid string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.procs[pid]
	if !ok {
		return 0
	}
	return len(p.inbox)
}

// MemoryInfo returns a snapshot of the memory pool.
func (k *Kernel) MemoryInfo() types.MemoryInfo {
	return k.pool.Info()
}

// Stats returns kernel counters.
func (k *Kernel) Stats() types.KernelStats {
	k.mu.Lock()
	defer k.mu.Unlock()
	return types.KernelStats{
		ProcessesCreated:    k.createdTotal,
		ProcessesTerminated: k.terminatedTotal,
		MessagesSent:        k.messagesSent,
	}
}

// Running reports whether the kernel accepts new work.
func (k *Kernel) Running() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}

// SystemInfo returns a full kernel snapshot.
func (k *Kernel) SystemInfo() types.SystemInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	counts := types.ProcessCounts{Total: len(k.procs)}
	for _, p := range k.procs {
		switch p.state {
		case types.StateReady:
			counts.Ready++
		case types.StateRunning:
			counts.Running++
		case types.StateBlocked:
			counts.Blocked++
		case types.StateTerminated:
			counts.Terminated++
		}
	}

	return types.SystemInfo{
		Running:   k.running,
		Processes: counts,
		Memory:    k.pool.info(),
		Stats: types.KernelStats{
			ProcessesCreated:    k.createdTotal,
			ProcessesTerminated: k.terminatedTotal,
			MessagesSent:        k.messagesSent,
		},
		Uptime: time.Since(k.startedAt).Seconds(),
	}
}

// Shutdown terminates all processes and stops accepting new work.
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return
	}
	k.running = false
	pids := make([]string, 0, len(k.procs))
	for pid := range k.procs {
		pids = append(pids, pid)
	}
	k.mu.Unlock()

	for _, pid := range pids {
		k.TerminateProcess(pid)
	}
	k.log.Info("kernel shut down", zap.Int("terminated", len(pids)))
}

func snapshot(p *process) types.Process {
	return types.Process{
		ID:              p.id,
		Name:            p.name,
		Priority:        p.priority,
		State:           p.state,
		MemoryAllocated: p.memory,
		CreatedAt:       p.createdAt,
		PendingMessages: len(p.inbox),
	}
}
