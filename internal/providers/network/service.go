// Package network is a peripheral service shim: simulated point-to-point
// connections backed by the kernel's pipes. Like the filesystem shim it
// exists to consume the core surface, not to model networking.
package network

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/microkernel-project/microkernel/internal/ipc"
	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/logging"
	"github.com/microkernel-project/microkernel/internal/types"
)

const (
	healthInterval  = 5 * time.Second
	defaultCapacity = 64
)

type connection struct {
	id     string
	pipe   string
	local  string
	remote string
	opened time.Time
}

// Service simulates a network service on top of kernel pipes.
type Service struct {
	kernel *kernel.Kernel
	comms  *ipc.Manager
	log    *logging.Logger

	mu        sync.Mutex
	conns     map[string]*connection
	pid       string
	running   bool
	lastCheck time.Time
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New creates a stopped network service.
func New(k *kernel.Kernel, comms *ipc.Manager, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{
		kernel: k,
		comms:  comms,
		log:    log.Named("net"),
		conns:  make(map[string]*connection),
	}
}

// Start registers the service's kernel process and launches the monitor.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return kernel.ErrInvalidState
	}

	pid, err := s.kernel.CreateProcess("net-service", nil, 5)
	if err != nil {
		return fmt.Errorf("start network service: %w", err)
	}
	s.pid = pid
	s.running = true
	s.lastCheck = time.Now()
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.monitor(s.stop)

	s.log.Info("network service started", zap.String("pid", pid))
	return nil
}

// Stop halts the monitor and terminates the service process.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	pid := s.pid
	s.mu.Unlock()

	s.wg.Wait()
	s.kernel.TerminateProcess(pid)
	s.comms.ReleaseProcess(pid)
	s.log.Info("network service stopped")
	return nil
}

// Status reports service health.
func (s *Service) Status() types.ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.ServiceStatus{
		Name:      "network",
		Running:   s.running,
		Healthy:   s.running && time.Since(s.lastCheck) < 3*healthInterval,
		LastCheck: s.lastCheck,
		Details: map[string]interface{}{
			"connections": len(s.conns),
			"pid":         s.pid,
		},
	}
}

// Connect opens a simulated connection between two processes: a bounded
// pipe with the local end as writer and the remote end as reader.
func (s *Service) Connect(localPID, remotePID, local, remote string) (string, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return "", kernel.ErrInvalidState
	}
	s.mu.Unlock()

	if _, ok := s.kernel.Get(localPID); !ok {
		return "", fmt.Errorf("connect: %s: %w", localPID, kernel.ErrNotFound)
	}
	if _, ok := s.kernel.Get(remotePID); !ok {
		return "", fmt.Errorf("connect: %s: %w", remotePID, kernel.ErrNotFound)
	}

	connID := uuid.New().String()[:8]
	pipeName := "net:" + connID
	if err := s.comms.CreatePipe(pipeName, defaultCapacity); err != nil {
		return "", err
	}
	s.comms.AddPipeWriter(pipeName, localPID)
	s.comms.AddPipeReader(pipeName, remotePID)

	s.mu.Lock()
	s.conns[connID] = &connection{
		id:     connID,
		pipe:   pipeName,
		local:  local,
		remote: remote,
		opened: time.Now(),
	}
	s.mu.Unlock()

	s.log.Debug("connection opened",
		zap.String("conn", connID),
		zap.String("local", local),
		zap.String("remote", remote),
	)
	return connID, nil
}

// Send writes data over a connection, blocking up to timeout when the
// buffer is full.
func (s *Service) Send(connID, pid string, data interface{}, timeout time.Duration) error {
	pipe, err := s.pipeFor(connID)
	if err != nil {
		return err
	}
	return s.comms.WritePipe(pipe, pid, data, timeout)
}

// Receive pops data from a connection, blocking up to timeout when empty.
func (s *Service) Receive(connID, pid string, timeout time.Duration) (interface{}, error) {
	pipe, err := s.pipeFor(connID)
	if err != nil {
		return nil, err
	}
	return s.comms.ReadPipe(pipe, pid, timeout)
}

// Close removes a connection. The underlying pipe stays with the IPC
// manager until teardown.
func (s *Service) Close(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[connID]; !ok {
		return false
	}
	delete(s.conns, connID)
	return true
}

func (s *Service) pipeFor(connID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[connID]
	if !ok {
		return "", fmt.Errorf("connection %q: %w", connID, kernel.ErrNotFound)
	}
	return conn.pipe, nil
}

func (s *Service) monitor(stop <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.lastCheck = time.Now()
			s.mu.Unlock()
		}
	}
}
