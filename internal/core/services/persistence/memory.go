package persistence

import (
	"context"
	"sync"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

// MemoryBackend keeps service records in process memory. It backs the
// daemon when no database is configured.
type MemoryBackend struct {
	name     string
	priority int

	mu      sync.RWMutex
	records map[string]domain.ServiceRecord
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(name string, priority int) *MemoryBackend {
	return &MemoryBackend{
		name:     name,
		priority: priority,
		records:  make(map[string]domain.ServiceRecord),
	}
}

func (b *MemoryBackend) Name() string  { return b.name }
func (b *MemoryBackend) Priority() int { return b.priority }

func (b *MemoryBackend) LoadService(ctx context.Context, rec *domain.ServiceRecord) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stored, ok := b.records[rec.Identifier]
	if !ok {
		return domain.ErrNotFound
	}
	*rec = stored
	return nil
}

func (b *MemoryBackend) SaveService(ctx context.Context, rec domain.ServiceRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[rec.Identifier] = rec
	return nil
}

var _ ports.StorageBackend = (*MemoryBackend)(nil)
