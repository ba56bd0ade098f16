package ports

import (
	"context"

	"github.com/lcalzada-xor/connd/internal/core/domain"
)

// ServiceObserver receives property changes from the service registry. Calls
// are made synchronously and in order, outside the registry lock;
// implementations must not block.
type ServiceObserver interface {
	OnPropertyChanged(ctx context.Context, change domain.PropertyChange)
}

// ProfileObserver is told when the set or order of services under a profile
// changed.
type ProfileObserver interface {
	OnProfileChanged(ctx context.Context, path string)
}

// ChangeSource publishes service property changes to observers.
type ChangeSource interface {
	AddObserver(obs ServiceObserver)
	RemoveObserver(obs ServiceObserver)
}
