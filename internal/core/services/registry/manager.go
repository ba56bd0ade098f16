package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

var tracer = otel.Tracer("github.com/lcalzada-xor/connd/registry")

// Manager implements the per-service call-boundary operations. Services are
// addressed by display path; the caller is taken from the context.
type Manager struct {
	reg      *Registry
	security ports.PrivilegeChecker
	audit    ports.AuditService
}

// NewManager wires the boundary operations to reg. audit may be nil.
func NewManager(reg *Registry, security ports.PrivilegeChecker, audit ports.AuditService) *Manager {
	return &Manager{reg: reg, security: security, audit: audit}
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *Registry { return m.reg }

// ListServices returns the exposed service paths in selection order.
func (m *Manager) ListServices(ctx context.Context) []string {
	return m.reg.List()
}

func (m *Manager) resolve(path string) (*Service, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty service path", domain.ErrInvalidArguments)
	}
	s := m.reg.LookupPath(path)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	return s, nil
}

func (m *Manager) startSpan(ctx context.Context, op, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "service."+op, trace.WithAttributes(attribute.String("service.path", path)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (m *Manager) logAudit(ctx context.Context, action domain.AuditAction, s *Service, details string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Log(ctx, action, s.identifier, details); err != nil {
		slog.Warn("audit log failed", "action", action, "service", s.identifier, "error", err)
	}
}

// GetProperties returns the exposed properties of the service at path. The
// passphrase is included only when the caller holds the secret privilege.
func (m *Manager) GetProperties(ctx context.Context, path string) (map[string]any, error) {
	s, err := m.resolve(path)
	if err != nil {
		return nil, err
	}

	m.reg.lock()
	defer m.reg.unlock(ctx)

	props := s.properties()
	if s.passphrase != "" && m.security.CheckPrivilege(ctx, domain.PrivilegeSecret) == nil {
		props[domain.PropPassphrase] = s.passphrase
	}
	return props, nil
}

// SetProperty changes a writable property. Only "Passphrase" is writable and
// it requires both the modify and the secret privilege.
func (m *Manager) SetProperty(ctx context.Context, path, name string, value any) (err error) {
	ctx, span := m.startSpan(ctx, "set_property", path)
	defer func() { endSpan(span, err) }()

	s, err := m.resolve(path)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: empty property name", domain.ErrInvalidArguments)
	}

	if err := m.security.CheckPrivilege(ctx, domain.PrivilegeModify); err != nil {
		return err
	}

	if name != domain.PropPassphrase {
		return fmt.Errorf("%w: property %q is not writable", domain.ErrInvalidArguments, name)
	}

	passphrase, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: passphrase must be a string", domain.ErrInvalidArguments)
	}

	if err := m.security.CheckPrivilege(ctx, domain.PrivilegeSecret); err != nil {
		return err
	}

	m.reg.lock()
	s.passphrase = passphrase
	if s.network != nil {
		if err := s.network.SetString(domain.NetworkKeyPassphrase, passphrase); err != nil {
			slog.Warn("passphrase push failed", "service", s.identifier, "error", err)
		}
	}
	m.reg.save(ctx, s)
	m.reg.unlock(ctx)

	m.logAudit(ctx, domain.ActionPassphraseSet, s, "")
	return nil
}

// Connect starts connecting the service at path. A network-bound service
// moves to association as soon as the attempt is initiated; completion is
// reported later by the driver.
func (m *Manager) Connect(ctx context.Context, path string) (err error) {
	ctx, span := m.startSpan(ctx, "connect", path)
	defer func() { endSpan(span, err) }()

	s, err := m.resolve(path)
	if err != nil {
		return err
	}

	if err := m.connect(ctx, s); err != nil {
		return err
	}
	m.logAudit(ctx, domain.ActionConnect, s, "")
	return nil
}

func (m *Manager) connect(ctx context.Context, s *Service) error {
	m.reg.lock()
	defer m.reg.unlock(ctx)

	if s.network != nil {
		// An attempt is already under way.
		if s.state == domain.StateAssociation {
			return nil
		}

		if err := s.network.Connect(ctx); err != nil && !errors.Is(err, domain.ErrInProgress) {
			return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
		}
		m.reg.setState(s, domain.StateAssociation)
		return nil
	}

	if s.device != nil {
		if !s.favorite {
			return domain.ErrNoCarrier
		}
		if err := s.device.Connect(ctx); err != nil && !errors.Is(err, domain.ErrInProgress) {
			return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
		}
		m.reg.setState(s, domain.StateReady)
		return nil
	}

	return domain.ErrNotSupported
}

// Disconnect starts disconnecting the service at path.
func (m *Manager) Disconnect(ctx context.Context, path string) (err error) {
	ctx, span := m.startSpan(ctx, "disconnect", path)
	defer func() { endSpan(span, err) }()

	s, err := m.resolve(path)
	if err != nil {
		return err
	}

	if err := m.disconnect(ctx, s); err != nil {
		return err
	}
	m.logAudit(ctx, domain.ActionDisconnect, s, "")
	return nil
}

func (m *Manager) disconnect(ctx context.Context, s *Service) error {
	m.reg.lock()
	defer m.reg.unlock(ctx)

	if s.network != nil {
		if err := s.network.Disconnect(ctx); err != nil && !errors.Is(err, domain.ErrInProgress) {
			return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
		}
		m.reg.setState(s, domain.StateDisconnect)
		return nil
	}

	if s.device != nil {
		if !s.favorite {
			return domain.ErrNoCarrier
		}
		if err := s.device.Disconnect(ctx); err != nil && !errors.Is(err, domain.ErrInProgress) {
			return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
		}
		m.reg.setState(s, domain.StateIdle)
		return nil
	}

	return domain.ErrNotSupported
}

// Remove forgets the service at path: it is disconnected if bound, loses its
// favorite flag and is saved. Ethernet services cannot be removed.
func (m *Manager) Remove(ctx context.Context, path string) (err error) {
	ctx, span := m.startSpan(ctx, "remove", path)
	defer func() { endSpan(span, err) }()

	s, err := m.resolve(path)
	if err != nil {
		return err
	}

	if err := m.remove(ctx, s); err != nil {
		return err
	}
	m.logAudit(ctx, domain.ActionRemove, s, "")
	return nil
}

func (m *Manager) remove(ctx context.Context, s *Service) error {
	m.reg.lock()
	defer m.reg.unlock(ctx)

	if s.typ == domain.ServiceTypeEthernet {
		return domain.ErrNotSupported
	}

	if s.network != nil {
		if err := s.network.Disconnect(ctx); err != nil && !errors.Is(err, domain.ErrInProgress) {
			return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
		}
		m.reg.setState(s, domain.StateDisconnect)
	}

	m.reg.clearFavorite(s)
	m.reg.save(ctx, s)
	return nil
}

// MoveBefore is accepted for favorite services only and is not implemented.
func (m *Manager) MoveBefore(ctx context.Context, path, target string) error {
	return m.move(path)
}

// MoveAfter is accepted for favorite services only and is not implemented.
func (m *Manager) MoveAfter(ctx context.Context, path, target string) error {
	return m.move(path)
}

func (m *Manager) move(path string) error {
	s, err := m.resolve(path)
	if err != nil {
		return err
	}

	m.reg.mu.Lock()
	favorite := s.favorite
	m.reg.mu.Unlock()

	if !favorite {
		return domain.ErrNotSupported
	}
	return domain.ErrNotImplemented
}

var _ ports.ServiceManager = (*Manager)(nil)
