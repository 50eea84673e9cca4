package ipc

import (
	"sort"
	"sync"

	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/types"
)

// Segment is a named shared key-value store gated by an authorization set.
// Reads and writes both fail closed for unauthorized process ids.
type Segment struct {
	name string
	size int

	mu          sync.Mutex
	data        map[string]interface{}
	authorized  map[string]struct{}
	accessCount uint64
}

// NewSegment creates a segment with the declared byte capacity.
func NewSegment(name string, size int) *Segment {
	return &Segment{
		name:       name,
		size:       size,
		data:       make(map[string]interface{}),
		authorized: make(map[string]struct{}),
	}
}

// Authorize grants a process access to the segment.
func (s *Segment) Authorize(pid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized[pid] = struct{}{}
}

// Revoke removes a process's grant, used when the process terminates.
func (s *Segment) Revoke(pid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.authorized, pid)
}

// Read returns the value stored under key, or nil when absent. Unauthorized
// callers get ErrUnauthorized.
func (s *Segment) Read(pid, key string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authorized[pid]; !ok {
		return nil, kernel.ErrUnauthorized
	}
	s.accessCount++
	return s.data[key], nil
}

// Write stores value under key. Unauthorized callers get ErrUnauthorized.
func (s *Segment) Write(pid, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authorized[pid]; !ok {
		return kernel.ErrUnauthorized
	}
	s.data[key] = value
	s.accessCount++
	return nil
}

// Info returns a snapshot of the segment.
func (s *Segment) Info() types.SegmentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	pids := make([]string, 0, len(s.authorized))
	for pid := range s.authorized {
		pids = append(pids, pid)
	}
	sort.Strings(pids)
	return types.SegmentInfo{
		Name:        s.name,
		Size:        s.size,
		Keys:        len(s.data),
		Authorized:  pids,
		AccessCount: s.accessCount,
	}
}
