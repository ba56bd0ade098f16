package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

// Backend priorities.
const (
	PriorityLow     = -100
	PriorityDefault = 0
	PriorityHigh    = 100
)

// Registry routes service loads and saves to the registered storage
// backends, highest priority first.
type Registry struct {
	mu       sync.RWMutex
	backends []ports.StorageBackend
}

// NewRegistry creates a registry without backends.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds backend after every backend of equal or higher priority.
func (r *Registry) Register(backend ports.StorageBackend) {
	slog.Debug("storage register", "name", backend.Name(), "priority", backend.Priority())

	r.mu.Lock()
	defer r.mu.Unlock()

	pos := len(r.backends)
	for i, b := range r.backends {
		if backend.Priority() > b.Priority() {
			pos = i
			break
		}
	}
	r.backends = append(r.backends, nil)
	copy(r.backends[pos+1:], r.backends[pos:])
	r.backends[pos] = backend
}

// Unregister removes backend; unknown backends are ignored.
func (r *Registry) Unregister(backend ports.StorageBackend) {
	slog.Debug("storage unregister", "name", backend.Name())

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, b := range r.backends {
		if b == backend {
			r.backends = append(r.backends[:i], r.backends[i+1:]...)
			return
		}
	}
}

// Backends returns the backend names in consultation order.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name()
	}
	return names
}

// Load fills rec from the first backend that knows it. It returns
// domain.ErrNotFound when none does.
func (r *Registry) Load(ctx context.Context, rec *domain.ServiceRecord) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.backends {
		err := b.LoadService(ctx, rec)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNotSupported) {
			continue
		}
		return fmt.Errorf("%s: load %s: %w", b.Name(), rec.Identifier, err)
	}
	return domain.ErrNotFound
}

// Save writes rec to the first backend that stores services. Without such a
// backend the record is dropped.
func (r *Registry) Save(ctx context.Context, rec domain.ServiceRecord) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.backends {
		err := b.SaveService(ctx, rec)
		if errors.Is(err, domain.ErrNotSupported) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: save %s: %w", b.Name(), rec.Identifier, err)
		}
		return nil
	}
	return nil
}

var _ ports.ServiceStore = (*Registry)(nil)
