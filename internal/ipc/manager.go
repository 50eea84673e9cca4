// Package ipc coordinates the four inter-process communication primitives:
// point-to-point messages, counting semaphores, shared-memory segments, and
// bounded pipes. Entities are keyed by name per kind and outlive any single
// process; a terminating process only forfeits its grants and queue slots.
package ipc

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/logging"
	"github.com/microkernel-project/microkernel/internal/types"
)

// Directory is the slice of the kernel the manager needs: process existence
// checks and inbox delivery. Messages share the process table's lock.
type Directory interface {
	Get(pid string) (types.Process, bool)
	SendMessage(from, to string, payload interface{}, kind string) bool
	ReceiveMessage(pid string) *types.Message
	MessageCount(pid string) int
	List() []types.Process
}

// Manager coordinates all IPC primitives. The top-level mutex only guards
// registration of named entities; each entity carries its own lock so
// unrelated traffic never serializes.
type Manager struct {
	procs Directory
	log   *logging.Logger

	mu         sync.Mutex
	semaphores map[string]*Semaphore
	segments   map[string]*Segment
	pipes      map[string]*Pipe
}

// NewManager creates an IPC manager bound to a process directory.
func NewManager(procs Directory, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{
		procs:      procs,
		log:        log.Named("ipc"),
		semaphores: make(map[string]*Semaphore),
		segments:   make(map[string]*Segment),
		pipes:      make(map[string]*Pipe),
	}
}

// ---- Messages ----

// Send delivers a message after validating that both ends exist.
func (m *Manager) Send(sender, receiver string, payload interface{}, kind string) error {
	if _, ok := m.procs.Get(sender); !ok {
		return fmt.Errorf("send: sender %s: %w", sender, kernel.ErrNotFound)
	}
	if !m.procs.SendMessage(sender, receiver, payload, kind) {
		return fmt.Errorf("send: receiver %s: %w", receiver, kernel.ErrNotFound)
	}
	return nil
}

// Receive pops the oldest pending message for the process, or nil.
func (m *Manager) Receive(pid string) *types.Message {
	return m.procs.ReceiveMessage(pid)
}

// HasMessages reports whether the process has pending messages.
func (m *Manager) HasMessages(pid string) bool {
	return m.procs.MessageCount(pid) > 0
}

// MessageCount returns the number of pending messages.
func (m *Manager) MessageCount(pid string) int {
	return m.procs.MessageCount(pid)
}

// ---- Semaphores ----

// CreateSemaphore registers a named counting semaphore.
func (m *Manager) CreateSemaphore(name string, initial int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.semaphores[name]; ok {
		return fmt.Errorf("semaphore %q: %w", name, kernel.ErrAlreadyExists)
	}
	m.semaphores[name] = NewSemaphore(name, initial)
	m.log.Debug("semaphore created", zap.String("name", name), zap.Int("initial", initial))
	return nil
}

// AcquireSemaphore takes one unit, blocking up to timeout (<= 0 waits
// forever). Callers retry only on ErrTimeout.
func (m *Manager) AcquireSemaphore(name, pid string, timeout time.Duration) error {
	sem, err := m.semaphore(name)
	if err != nil {
		return err
	}
	// Parked waits must not hold the manager lock.
	return sem.Acquire(pid, timeout)
}

// ReleaseSemaphore returns one unit, waking the oldest waiter.
func (m *Manager) ReleaseSemaphore(name, pid string) error {
	sem, err := m.semaphore(name)
	if err != nil {
		return err
	}
	sem.Release(pid)
	return nil
}

func (m *Manager) semaphore(name string) (*Semaphore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sem, ok := m.semaphores[name]
	if !ok {
		return nil, fmt.Errorf("semaphore %q: %w", name, kernel.ErrNotFound)
	}
	return sem, nil
}

// ---- Shared memory ----

// CreateSharedMemory registers a named segment with the declared capacity.
func (m *Manager) CreateSharedMemory(name string, size int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.segments[name]; ok {
		return fmt.Errorf("segment %q: %w", name, kernel.ErrAlreadyExists)
	}
	m.segments[name] = NewSegment(name, size)
	m.log.Debug("segment created", zap.String("name", name), zap.Int("size", size))
	return nil
}

// AuthorizeSharedMemory grants a process access to a segment.
func (m *Manager) AuthorizeSharedMemory(name, pid string) error {
	seg, err := m.segment(name)
	if err != nil {
		return err
	}
	seg.Authorize(pid)
	return nil
}

// ReadSharedMemory reads key from a segment, failing closed when the caller
// lacks a grant.
func (m *Manager) ReadSharedMemory(name, pid, key string) (interface{}, error) {
	seg, err := m.segment(name)
	if err != nil {
		return nil, err
	}
	return seg.Read(pid, key)
}

// WriteSharedMemory writes key into a segment, failing closed when the
// caller lacks a grant.
func (m *Manager) WriteSharedMemory(name, pid, key string, value interface{}) error {
	seg, err := m.segment(name)
	if err != nil {
		return err
	}
	return seg.Write(pid, key, value)
}

func (m *Manager) segment(name string) (*Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seg, ok := m.segments[name]
	if !ok {
		return nil, fmt.Errorf("segment %q: %w", name, kernel.ErrNotFound)
	}
	return seg, nil
}

// ---- Pipes ----

// CreatePipe registers a named bounded pipe.
func (m *Manager) CreatePipe(name string, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pipes[name]; ok {
		return fmt.Errorf("pipe %q: %w", name, kernel.ErrAlreadyExists)
	}
	m.pipes[name] = NewPipe(name, capacity)
	m.log.Debug("pipe created", zap.String("name", name), zap.Int("capacity", capacity))
	return nil
}

// AddPipeReader grants read access on a pipe.
func (m *Manager) AddPipeReader(name, pid string) error {
	pipe, err := m.pipe(name)
	if err != nil {
		return err
	}
	pipe.AddReader(pid)
	return nil
}

// AddPipeWriter grants write access on a pipe.
func (m *Manager) AddPipeWriter(name, pid string) error {
	pipe, err := m.pipe(name)
	if err != nil {
		return err
	}
	pipe.AddWriter(pid)
	return nil
}

// WritePipe appends data to a pipe, blocking up to timeout while full.
func (m *Manager) WritePipe(name, pid string, data interface{}, timeout time.Duration) error {
	pipe, err := m.pipe(name)
	if err != nil {
		return err
	}
	return pipe.Write(pid, data, timeout)
}

// ReadPipe pops data from a pipe, blocking up to timeout while empty.
func (m *Manager) ReadPipe(name, pid string, timeout time.Duration) (interface{}, error) {
	pipe, err := m.pipe(name)
	if err != nil {
		return nil, err
	}
	return pipe.Read(pid, timeout)
}

func (m *Manager) pipe(name string) (*Pipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pipe, ok := m.pipes[name]
	if !ok {
		return nil, fmt.Errorf("pipe %q: %w", name, kernel.ErrNotFound)
	}
	return pipe, nil
}

// ---- Lifecycle and stats ----

// ReleaseProcess forfeits a terminated process's waiting-list slots and
// grants. Entities themselves survive; they belong to the manager.
func (m *Manager) ReleaseProcess(pid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sem := range m.semaphores {
		sem.Forget(pid)
	}
	for _, seg := range m.segments {
		seg.Revoke(pid)
	}
	for _, pipe := range m.pipes {
		pipe.Revoke(pid)
	}
}

// Stats returns a snapshot of all IPC entities.
func (m *Manager) Stats() types.IPCStats {
	pending := 0
	for _, p := range m.procs.List() {
		pending += p.PendingMessages
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stats := types.IPCStats{
		PendingMessages: pending,
		Semaphores:      make([]types.SemaphoreInfo, 0, len(m.semaphores)),
		Segments:        make([]types.SegmentInfo, 0, len(m.segments)),
		Pipes:           make([]types.PipeInfo, 0, len(m.pipes)),
	}
	for _, sem := range m.semaphores {
		stats.Semaphores = append(stats.Semaphores, sem.Info())
	}
	for _, seg := range m.segments {
		stats.Segments = append(stats.Segments, seg.Info())
	}
	for _, pipe := range m.pipes {
		stats.Pipes = append(stats.Pipes, pipe.Info())
	}
	return stats
}
