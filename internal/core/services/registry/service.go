package registry

import (
	"sync/atomic"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

// Service is a selectable network connection point. Its fields are owned by
// the Registry and only touched with the registry lock held; the exported
// accessors take that lock.
type Service struct {
	reg      *Registry
	refcount atomic.Int32

	identifier string
	path       string

	typ      domain.ServiceType
	mode     domain.ServiceMode
	security domain.SecurityKind
	state    domain.ServiceState
	strength uint8
	favorite bool
	order    uint

	name       string
	passphrase string

	device  ports.Device
	network ports.Network
}

// ServiceInfo is a point-in-time copy of a service's public attributes.
type ServiceInfo struct {
	Identifier string
	Path       string
	Type       domain.ServiceType
	Mode       domain.ServiceMode
	Security   domain.SecurityKind
	State      domain.ServiceState
	Strength   uint8
	Favorite   bool
	Order      uint
	Name       string
}

func newService(reg *Registry, identifier string) *Service {
	s := &Service{
		reg:        reg,
		identifier: identifier,
		typ:        domain.ServiceTypeUnknown,
		mode:       domain.ModeUnknown,
		security:   domain.SecurityUnknown,
		state:      domain.StateUnknown,
	}
	s.refcount.Store(1)
	return s
}

// Identifier is immutable and safe to read without the lock.
func (s *Service) Identifier() string { return s.identifier }

// Refcount reports the number of outstanding handles.
func (s *Service) Refcount() int { return int(s.refcount.Load()) }

// Path returns the display path, "" until the service is exposed.
func (s *Service) Path() string {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	return s.path
}

// State returns the current state.
func (s *Service) State() domain.ServiceState {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	return s.state
}

// Info returns a copy of the public attributes.
func (s *Service) Info() ServiceInfo {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	return s.info()
}

func (s *Service) info() ServiceInfo {
	return ServiceInfo{
		Identifier: s.identifier,
		Path:       s.path,
		Type:       s.typ,
		Mode:       s.mode,
		Security:   s.security,
		State:      s.state,
		Strength:   s.strength,
		Favorite:   s.favorite,
		Order:      s.order,
		Name:       s.name,
	}
}

func (s *Service) record() domain.ServiceRecord {
	return domain.ServiceRecord{
		Identifier: s.identifier,
		Type:       s.typ,
		Mode:       s.mode,
		Security:   s.security,
		Favorite:   s.favorite,
		Order:      s.order,
		Name:       s.name,
		Passphrase: s.passphrase,
	}
}

func (s *Service) hydrate(rec domain.ServiceRecord) {
	if rec.Type != domain.ServiceTypeUnknown {
		s.typ = rec.Type
	}
	if rec.Mode != domain.ModeUnknown {
		s.mode = rec.Mode
	}
	if rec.Security != domain.SecurityUnknown {
		s.security = rec.Security
	}
	s.favorite = rec.Favorite
	s.order = rec.Order
	if rec.Name != "" {
		s.name = rec.Name
	}
	if rec.Passphrase != "" {
		s.passphrase = rec.Passphrase
	}
}

// properties builds the boundary property map. The passphrase is added by the
// caller after the secret check.
func (s *Service) properties() map[string]any {
	props := make(map[string]any)

	if str := s.typ.String(); str != "" {
		props[domain.PropType] = str
	}
	if str := s.mode.String(); str != "" {
		props[domain.PropMode] = str
	}
	if str := s.security.String(); str != "" {
		props[domain.PropSecurity] = str
	}
	if str := s.state.String(); str != "" {
		props[domain.PropState] = str
	}
	if s.strength > 0 {
		props[domain.PropStrength] = s.strength
	}
	props[domain.PropFavorite] = s.favorite
	if s.name != "" {
		props[domain.PropName] = s.name
	}
	return props
}
