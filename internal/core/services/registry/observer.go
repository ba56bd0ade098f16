package registry

import (
	"context"
	"sync"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

// RegistrySubject manages observers and notifies them of property changes.
type RegistrySubject struct {
	observers []ports.ServiceObserver
	mu        sync.RWMutex
}

// NewRegistrySubject creates a new subject.
func NewRegistrySubject() *RegistrySubject {
	return &RegistrySubject{
		observers: make([]ports.ServiceObserver, 0),
	}
}

// AddObserver registers a new observer.
func (s *RegistrySubject) AddObserver(observer ports.ServiceObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// RemoveObserver drops a previously added observer.
func (s *RegistrySubject) RemoveObserver(observer ports.ServiceObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, obs := range s.observers {
		if obs == observer {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// NotifyPropertyChanged delivers change to every observer in registration
// order. Delivery is synchronous so observers see changes in the order the
// registry made them.
func (s *RegistrySubject) NotifyPropertyChanged(ctx context.Context, change domain.PropertyChange) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, obs := range s.observers {
		obs.OnPropertyChanged(ctx, change)
	}
}
