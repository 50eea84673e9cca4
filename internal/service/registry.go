// Package service hosts the registry peripheral services use to discover
// each other. The registry holds no domain logic; it maps names to handles.
package service

import (
	"fmt"
	"sort"
	"sync"

	"github.com/microkernel-project/microkernel/internal/types"
)

// Service is the minimal capability every registered handle must satisfy.
type Service interface {
	Start() error
	Stop() error
	Status() types.ServiceStatus
}

// Registry manages named service handles. Name uniqueness is the only
// invariant it enforces.
type Registry struct {
	services sync.Map
	mu       sync.Mutex // serializes Register's check-then-store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a service under name, rejecting duplicates.
func (r *Registry) Register(name string, svc Service) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services.Load(name); exists {
		return fmt.Errorf("service %q already registered", name)
	}
	r.services.Store(name, svc)
	return nil
}

// Get retrieves a service by name.
func (r *Registry) Get(name string) (Service, bool) {
	val, ok := r.services.Load(name)
	if !ok {
		return nil, false
	}
	return val.(Service), true
}

// Unregister removes a service, reporting whether it was present.
func (r *Registry) Unregister(name string) bool {
	_, ok := r.services.LoadAndDelete(name)
	return ok
}

// List returns all registered names, sorted.
func (r *Registry) List() []string {
	var names []string
	r.services.Range(func(key, _ interface{}) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Statuses returns the status of every registered service.
func (r *Registry) Statuses() []types.ServiceStatus {
	var out []types.ServiceStatus
	r.services.Range(func(_, value interface{}) bool {
		out = append(out, value.(Service).Status())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StopAll stops every registered service, returning the first error.
func (r *Registry) StopAll() error {
	var first error
	r.services.Range(func(_, value interface{}) bool {
		if err := value.(Service).Stop(); err != nil && first == nil {
			first = err
		}
		return true
	})
	return first
}
