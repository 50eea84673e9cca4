// Package filesystem is a peripheral service shim: a trivial in-memory file
// store that consumes the kernel's process and IPC surfaces. Its domain
// logic is deliberately minimal; it exists to exercise the core the way an
// external service would.
package filesystem

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/microkernel-project/microkernel/internal/ipc"
	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/logging"
	"github.com/microkernel-project/microkernel/internal/types"
)

// healthInterval is how often the monitor worker refreshes the status.
const healthInterval = 5 * time.Second

// metaSegment is the shared-memory segment the service publishes stats to.
const metaSegment = "fs-meta"

type file struct {
	name       string
	content    string
	owner      string
	createdAt  time.Time
	modifiedAt time.Time
}

// Service is the simulated filesystem service.
type Service struct {
	kernel *kernel.Kernel
	comms  *ipc.Manager
	log    *logging.Logger

	mu        sync.Mutex
	files     map[string]*file
	pid       string
	running   bool
	lastCheck time.Time
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New creates a stopped filesystem service.
func New(k *kernel.Kernel, comms *ipc.Manager, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{
		kernel: k,
		comms:  comms,
		log:    log.Named("fs"),
		files:  make(map[string]*file),
	}
}

// Start registers the service's kernel process and launches its health
// monitor worker.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return kernel.ErrInvalidState
	}

	pid, err := s.kernel.CreateProcess("fs-service", nil, 5)
	if err != nil {
		return fmt.Errorf("start filesystem service: %w", err)
	}
	s.pid = pid

	// The segment outlives the service process, so creation may find it
	// already registered; the new pid still needs its grant.
	if err := s.comms.CreateSharedMemory(metaSegment, 256); err != nil && !errors.Is(err, kernel.ErrAlreadyExists) {
		s.kernel.TerminateProcess(pid)
		return fmt.Errorf("start filesystem service: %w", err)
	}
	s.comms.AuthorizeSharedMemory(metaSegment, pid)

	s.running = true
	s.lastCheck = time.Now()
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.monitor(s.stop)

	s.log.Info("filesystem service started", zap.String("pid", pid))
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
	s.log.Info("filesystem service stopped")
	return nil
}

// Status reports service health.
func (s *Service) Status() types.ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.ServiceStatus{
		Name:      "filesystem",
		Running:   s.running,
		Healthy:   s.running && time.Since(s.lastCheck) < 3*healthInterval,
		LastCheck: s.lastCheck,
		Details: map[string]interface{}{
			"files": len(s.files),
			"pid":   s.pid,
		},
	}
}

// WriteFile creates or overwrites a file owned by pid.
func (s *Service) WriteFile(pid, name, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return kernel.ErrInvalidState
	}
	f, ok := s.files[name]
	if !ok {
		s.files[name] = &file{
			name:       name,
			content:    content,
			owner:      pid,
			createdAt:  time.Now(),
			modifiedAt: time.Now(),
		}
		return nil
	}
	if f.owner != pid {
		return kernel.ErrUnauthorized
	}
	f.content = content
	f.modifiedAt = time.Now()
	return nil
}

// ReadFile returns a file's content. Only the owner may read.
func (s *Service) ReadFile(pid, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[name]
	if !ok {
		return "", fmt.Errorf("file %q: %w", name, kernel.ErrNotFound)
	}
	if f.owner != pid {
		return "", kernel.ErrUnauthorized
	}
	return f.content, nil
}

// DeleteFile removes a file. Only the owner may delete.
func (s *Service) DeleteFile(pid, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[name]
	if !ok {
		return fmt.Errorf("file %q: %w", name, kernel.ErrNotFound)
	}
	if f.owner != pid {
		return kernel.ErrUnauthorized
	}
	delete(s.files, name)
	return nil
}

// ListFiles returns all file names, unordered.
func (s *Service) ListFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	return names
}

// monitor is the per-service health-check worker. It publishes the file
// count to the shared-memory segment on every tick.
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
			count := len(s.files)
			pid := s.pid
			s.mu.Unlock()

			if err := s.comms.WriteSharedMemory(metaSegment, pid, "file_count", count); err != nil {
				s.log.Warn("health publish failed", zap.Error(err))
			}
		}
	}
}
