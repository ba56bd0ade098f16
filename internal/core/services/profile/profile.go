package profile

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lcalzada-xor/connd/internal/core/ports"
)

// DefaultPath is the path of the built-in profile.
const DefaultPath = "/profile/default"

// Manager holds the active profile and fans out its change notifications.
type Manager struct {
	path       string
	generation atomic.Uint64

	mu        sync.RWMutex
	observers []ports.ProfileObserver
}

// NewManager creates a manager for the profile at path. An empty path selects
// DefaultPath; a trailing slash is dropped.
func NewManager(path string) *Manager {
	path = strings.TrimRight(path, "/")
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Manager{path: path}
}

// ActivePath returns the path services are exposed under.
func (m *Manager) ActivePath() string {
	return m.path
}

// Generation counts the changes signalled so far.
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}

// AddObserver registers obs for change notifications.
func (m *Manager) AddObserver(obs ports.ProfileObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// Changed signals that the services under the profile changed.
func (m *Manager) Changed(ctx context.Context) {
	gen := m.generation.Add(1)
	slog.Debug("profile changed", "path", m.path, "generation", gen)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, obs := range m.observers {
		obs.OnProfileChanged(ctx, m.path)
	}
}

var _ ports.Profile = (*Manager)(nil)
