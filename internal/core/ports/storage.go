package ports

import (
	"context"

	"github.com/lcalzada-xor/connd/internal/core/domain"
)

// StorageBackend persists service records. Backends are consulted in
// priority order, highest first.
type StorageBackend interface {
	Name() string
	Priority() int
	// LoadService fills rec (keyed by rec.Identifier). It returns
	// domain.ErrNotFound when the backend holds nothing for it and
	// domain.ErrNotSupported when it does not store services at all.
	LoadService(ctx context.Context, rec *domain.ServiceRecord) error
	SaveService(ctx context.Context, rec domain.ServiceRecord) error
}

// ServiceStore is what the registry needs from storage.
type ServiceStore interface {
	Load(ctx context.Context, rec *domain.ServiceRecord) error
	Save(ctx context.Context, rec domain.ServiceRecord) error
}
