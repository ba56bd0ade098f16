package ports

import "context"

// ServiceManager is the per-service API offered at the call boundaries.
// Services are addressed by display path and the caller is taken from ctx.
type ServiceManager interface {
	ListServices(ctx context.Context) []string
	GetProperties(ctx context.Context, path string) (map[string]any, error)
	SetProperty(ctx context.Context, path, name string, value any) error
	Connect(ctx context.Context, path string) error
	Disconnect(ctx context.Context, path string) error
	Remove(ctx context.Context, path string) error
	MoveBefore(ctx context.Context, path, target string) error
	MoveAfter(ctx context.Context, path, target string) error
}
