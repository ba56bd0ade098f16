package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
	"github.com/lcalzada-xor/connd/internal/telemetry"
)

// ModuleRegistry keeps the security modules ordered by priority, highest
// first. Modules of equal priority keep their registration order.
//
// Registration happens at module load and unload; privilege checks happen on
// every sensitive request and only take the read lock.
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules []ports.SecurityModule
}

// NewModuleRegistry creates an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{}
}

// Register inserts module at its priority position.
func (r *ModuleRegistry) Register(module ports.SecurityModule) {
	slog.Debug("security module register", "name", module.Name(), "priority", module.Priority())

	r.mu.Lock()
	defer r.mu.Unlock()

	pos := len(r.modules)
	for i, m := range r.modules {
		if module.Priority() > m.Priority() {
			pos = i
			break
		}
	}
	r.modules = append(r.modules, nil)
	copy(r.modules[pos+1:], r.modules[pos:])
	r.modules[pos] = module
}

// Unregister removes module. Unknown modules are ignored.
func (r *ModuleRegistry) Unregister(module ports.SecurityModule) {
	slog.Debug("security module unregister", "name", module.Name())

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.modules {
		if m == module {
			r.modules = append(r.modules[:i], r.modules[i+1:]...)
			return
		}
	}
}

// Modules returns the registered modules in iteration order.
func (r *ModuleRegistry) Modules() []ports.SecurityModule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ports.SecurityModule, len(r.modules))
	copy(out, r.modules)
	return out
}

// CheckPrivilege asks the modules, in order, whether the caller attached to
// ctx holds privilege. The first module that does not abstain decides; if
// every module abstains the privilege is granted.
func (r *ModuleRegistry) CheckPrivilege(ctx context.Context, privilege domain.Privilege) error {
	caller := domain.CallerFrom(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modules {
		err := m.CheckPrivilege(ctx, caller, privilege)
		if errors.Is(err, domain.ErrNotSupported) {
			continue
		}
		if err != nil {
			telemetry.PrivilegeChecks.WithLabelValues(string(privilege), "denied").Inc()
			slog.Debug("privilege denied", "module", m.Name(), "privilege", privilege, "caller", callerName(caller))
			if !errors.Is(err, domain.ErrPermissionDenied) {
				return fmt.Errorf("%w: %s: %v", domain.ErrPermissionDenied, m.Name(), err)
			}
			return err
		}
		telemetry.PrivilegeChecks.WithLabelValues(string(privilege), "granted").Inc()
		return nil
	}

	telemetry.PrivilegeChecks.WithLabelValues(string(privilege), "default").Inc()
	return nil
}

func callerName(u *domain.User) string {
	if u == nil {
		return "anonymous"
	}
	return u.Username
}

var _ ports.PrivilegeChecker = (*ModuleRegistry)(nil)
