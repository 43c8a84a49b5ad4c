package backends

import (
	"errors"
	"sync"
)

var (
	// ErrBackendNotFound is returned when no client is registered for a protocol
	ErrBackendNotFound = errors.New("backend not registered")

	// ErrBackendAlreadyRegistered is returned when registering a duplicate protocol
	ErrBackendAlreadyRegistered = errors.New("backend already registered")
)

// Registry maps protocols to their client instances and records which
// protocol is primary. The orchestrator asks it for the primary/secondary
// pair rather than holding clients directly.
type Registry struct {
	mu       sync.RWMutex
	backends map[Protocol]Backend
	primary  Protocol
}

// NewRegistry creates a new backend registry. The primary protocol is tried
// first on every request; the other registered protocol is the fallback.
func NewRegistry(primary Protocol) *Registry {
	return &Registry{
		backends: make(map[Protocol]Backend),
		primary:  primary,
	}
}

// Register registers a protocol client
func (r *Registry) Register(b Backend) error {
	if b == nil {
		return errors.New("backend cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[b.Protocol()]; exists {
		return ErrBackendAlreadyRegistered
	}

	r.backends[b.Protocol()] = b
	return nil
}

// Get retrieves the client for a protocol
func (r *Registry) Get(p Protocol) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.backends[p]
	if !exists {
		return nil, ErrBackendNotFound
	}

	return b, nil
}

// Primary returns the primary protocol client
func (r *Registry) Primary() (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.backends[r.primary]
	if !exists {
		return nil, ErrBackendNotFound
	}

	return b, nil
}

// Secondary returns the fallback client: the first registered client whose
// protocol is not the primary. Returns ErrBackendNotFound when only the
// primary is registered.
func (r *Registry) Secondary() (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for p, b := range r.backends {
		if p != r.primary {
			return b, nil
		}
	}

	return nil, ErrBackendNotFound
}

// Count returns the number of registered clients
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.backends)
}
