package ports

import (
	"context"

	"github.com/lcalzada-xor/connd/internal/core/domain"
)

// Device is an underlying device driven by a driver outside the registry.
// Device-bound services hold it exclusively.
type Device interface {
	// Ident is the hardware identity, "" when the driver has none yet.
	Ident() string
	Type() domain.DeviceType
	// Connect brings the link up and Disconnect takes it down. Both may
	// return domain.ErrInProgress.
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Network is an underlying network sighting. Network-bound services share it
// through Ref/Unref.
type Network interface {
	// Ident is the physical identity (usually the BSSID), "" when unknown.
	Ident() string
	// Group tells apart logical networks sharing one physical identity.
	Group() string
	Type() domain.NetworkType

	String(key string) string
	Uint8(key string) uint8
	SetString(key, value string) error

	// Connect and Disconnect may return domain.ErrInProgress; completion is
	// reported later through the dispatcher.
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	Ref() Network
	Unref()
}

// Profile is the active profile the services are exposed under.
type Profile interface {
	ActivePath() string
	Changed(ctx context.Context)
}
