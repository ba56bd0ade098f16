package registry

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

// Registry is the canonical set of services, kept in selection order.
//
// One mutex serializes every mutation, whether it comes from a call-boundary
// handler or from the dispatcher applying driver events. Collaborators
// (devices, networks, storage) are called with the lock held and must not
// call back into the registry; they report completions through the
// dispatcher instead. Observers run under the delivery lock and must not
// call back into the registry either.
type Registry struct {
	mu       sync.Mutex
	services []*Service // selection order
	index    map[string]*Service
	paths    map[string]*Service

	// delivery is taken before mu is released, so notifications leave in
	// mutation order.
	delivery sync.Mutex

	store   ports.ServiceStore
	profile ports.Profile
	merger  *SightingMerger
	subject *RegistrySubject

	// notifications queued under the lock, delivered by unlock
	pending []func(context.Context)
}

// NewRegistry creates an empty registry. store may be nil, in which case
// services are neither loaded nor saved.
func NewRegistry(store ports.ServiceStore, profile ports.Profile) *Registry {
	return &Registry{
		index:   make(map[string]*Service),
		paths:   make(map[string]*Service),
		store:   store,
		profile: profile,
		merger:  NewSightingMerger(),
		subject: NewRegistrySubject(),
	}
}

// AddObserver registers an observer of property changes.
func (r *Registry) AddObserver(obs ports.ServiceObserver) {
	r.subject.AddObserver(obs)
}

// RemoveObserver drops an observer.
func (r *Registry) RemoveObserver(obs ports.ServiceObserver) {
	r.subject.RemoveObserver(obs)
}

func (r *Registry) lock() {
	r.mu.Lock()
}

// unlock releases the lock and then delivers queued notifications. Deliveries
// of concurrent unlocks do not interleave and follow the order in which the
// lock was held.
func (r *Registry) unlock(ctx context.Context) {
	pending := r.pending
	r.pending = nil
	if len(pending) == 0 {
		r.mu.Unlock()
		return
	}

	r.delivery.Lock()
	defer r.delivery.Unlock()
	r.mu.Unlock()

	for _, notify := range pending {
		notify(ctx)
	}
}

func (r *Registry) queueProfileChanged() {
	if r.profile == nil {
		return
	}
	r.pending = append(r.pending, r.profile.Changed)
}

func (r *Registry) queueStateChanged(s *Service) {
	if s.path == "" {
		return
	}
	str := s.state.String()
	if str == "" {
		return
	}
	change := domain.PropertyChange{Path: s.path, Name: domain.PropState, Value: str}
	r.pending = append(r.pending, func(ctx context.Context) {
		r.subject.NotifyPropertyChanged(ctx, change)
	})
}

func (r *Registry) setState(s *Service, state domain.ServiceState) {
	slog.Debug("service state", "service", s.identifier, "from", s.state.String(), "to", state.String())
	s.state = state
	telemetry.StateTransitions.WithLabelValues(state.String()).Inc()
	r.queueStateChanged(s)
}

// GetOrCreate returns the service for identifier with its refcount
// incremented, creating it (hydrated from storage) when it does not exist.
func (r *Registry) GetOrCreate(ctx context.Context, identifier string) (*Service, error) {
	r.lock()
	defer r.unlock(ctx)
	return r.getOrCreate(ctx, identifier)
}

func (r *Registry) getOrCreate(ctx context.Context, identifier string) (*Service, error) {
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty identifier", domain.ErrInvalidArguments)
	}

	if s, ok := r.index[identifier]; ok {
		s.refcount.Add(1)
		return s, nil
	}

	s := newService(r, identifier)
	slog.Debug("service created", "service", identifier)

	r.load(ctx, s)

	r.services = insertSorted(r.services, s)
	r.index[identifier] = s
	telemetry.ServicesRegistered.Set(float64(len(r.services)))

	return s, nil
}

// Lookup returns the service for identifier without taking a reference.
func (r *Registry) Lookup(identifier string) *Service {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index[identifier]
}

// LookupPath returns the service exposed at path without taking a reference.
func (r *Registry) LookupPath(path string) *Service {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paths[path]
}

// Ref takes an additional reference on s.
func (r *Registry) Ref(s *Service) *Service {
	s.refcount.Add(1)
	return s
}

// Unref drops a reference. The last one removes s from the ordered collection
// and then releases it.
func (r *Registry) Unref(ctx context.Context, s *Service) {
	r.lock()
	defer r.unlock(ctx)

	if s.refcount.Add(-1) > 0 {
		return
	}

	if r.index[s.identifier] == s {
		r.services, _ = removeService(r.services, s)
		telemetry.ServicesRegistered.Set(float64(len(r.services)))
	}
	r.free(s)
}

func (r *Registry) free(s *Service) {
	slog.Debug("service released", "service", s.identifier)

	if r.index[s.identifier] == s {
		delete(r.index, s.identifier)
	}

	path := s.path
	s.path = ""
	if path != "" {
		delete(r.paths, path)
		r.queueProfileChanged()
	}

	if s.network != nil {
		s.network.Unref()
		s.network = nil
	}
	s.device = nil
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.services)
}

// Services returns the registered services in selection order.
func (r *Registry) Services() []ServiceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ServiceInfo, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, s.info())
	}
	return out
}

// List returns the display paths of the exposed services in selection order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, 0, len(r.services))
	for _, s := range r.services {
		if s.path == "" {
			continue
		}
		paths = append(paths, s.path)
	}
	return paths
}

// SetFavorite changes the favorite flag. Once set, it cannot be changed
// through this entry point: further calls fail with ErrAlreadySet.
func (r *Registry) SetFavorite(ctx context.Context, s *Service, favorite bool) error {
	r.lock()
	defer r.unlock(ctx)
	return r.setFavorite(s, favorite)
}

func (r *Registry) setFavorite(s *Service, favorite bool) error {
	if r.index[s.identifier] != s {
		return domain.ErrNotFound
	}
	if s.favorite {
		return domain.ErrAlreadySet
	}

	s.favorite = favorite
	r.services = resort(r.services, s)
	r.queueProfileChanged()
	return nil
}

// clearFavorite is the removal path out of the favorite latch.
func (r *Registry) clearFavorite(s *Service) {
	if !s.favorite {
		return
	}
	s.favorite = false
	r.services = resort(r.services, s)
	r.queueProfileChanged()
}

// SetOrder changes the manual priority hint of s.
func (r *Registry) SetOrder(ctx context.Context, s *Service, order uint) error {
	r.lock()
	defer r.unlock(ctx)

	if r.index[s.identifier] != s {
		return domain.ErrNotFound
	}
	if s.order == order {
		return nil
	}
	s.order = order
	r.services = resort(r.services, s)
	r.queueProfileChanged()
	return nil
}

// SetCarrier reports the link state of a device-bound ethernet service.
func (r *Registry) SetCarrier(ctx context.Context, s *Service, carrier bool) error {
	if s == nil {
		return domain.ErrInvalidArguments
	}

	r.lock()
	defer r.unlock(ctx)

	if r.index[s.identifier] != s {
		return domain.ErrNotFound
	}
	if s.typ != domain.ServiceTypeEthernet {
		return fmt.Errorf("%w: carrier on %s service", domain.ErrInvalidArguments, s.typ)
	}

	if carrier {
		r.setState(s, domain.StateCarrier)
	} else {
		r.setState(s, domain.StateIdle)
	}

	return r.setFavorite(s, carrier)
}

// IndicateConfiguration records that the link is acquiring its configuration.
func (r *Registry) IndicateConfiguration(ctx context.Context, s *Service) error {
	return r.indicate(ctx, s, domain.StateConfiguration)
}

// Ready records that the service is fully connected.
func (r *Registry) Ready(ctx context.Context, s *Service) error {
	return r.indicate(ctx, s, domain.StateReady)
}

// IndicateDisconnect records that the link is going down.
func (r *Registry) IndicateDisconnect(ctx context.Context, s *Service) error {
	return r.indicate(ctx, s, domain.StateDisconnect)
}

// IndicateIdle records that the link finished going down.
func (r *Registry) IndicateIdle(ctx context.Context, s *Service) error {
	return r.indicate(ctx, s, domain.StateIdle)
}

// IndicateFailure records a failure reported by the underlying layer.
func (r *Registry) IndicateFailure(ctx context.Context, s *Service) error {
	return r.indicate(ctx, s, domain.StateFailure)
}

func (r *Registry) indicate(ctx context.Context, s *Service, state domain.ServiceState) error {
	if s == nil {
		return domain.ErrInvalidArguments
	}

	r.lock()
	defer r.unlock(ctx)

	if r.index[s.identifier] != s {
		return domain.ErrNotFound
	}
	r.setState(s, state)
	return nil
}

// FailIfConnecting moves s to failure when it is still waiting for a connect
// to complete. It reports whether it did.
func (r *Registry) FailIfConnecting(ctx context.Context, s *Service) bool {
	r.lock()
	defer r.unlock(ctx)

	if r.index[s.identifier] != s || !s.state.Connecting() {
		return false
	}
	r.setState(s, domain.StateFailure)
	return true
}

// register exposes s at its display path. The path is assigned once.
func (r *Registry) register(s *Service) error {
	if s.path != "" {
		return domain.ErrAlreadySet
	}

	prefix := ""
	if r.profile != nil {
		prefix = r.profile.ActivePath()
	}
	s.path = prefix + "/" + s.identifier
	r.paths[s.path] = s

	slog.Debug("service exposed", "service", s.identifier, "path", s.path)

	r.queueProfileChanged()
	return nil
}

func deviceIdentifier(d ports.Device) (string, error) {
	ident := d.Ident()
	if ident == "" {
		return "", fmt.Errorf("%w: device without identity", domain.ErrInvalidArguments)
	}
	return fmt.Sprintf("%s_%s", d.Type(), ident), nil
}

func networkIdentifier(n ports.Network) (string, error) {
	ident := n.Ident()
	if ident == "" {
		return "", fmt.Errorf("%w: network without identity", domain.ErrInvalidArguments)
	}
	group := n.Group()
	if group == "" {
		return "", fmt.Errorf("%w: network without group", domain.ErrInvalidArguments)
	}
	return fmt.Sprintf("%s_%s_%s", n.Type(), ident, group), nil
}

// LookupFromDevice returns the service bound to d without taking a reference.
func (r *Registry) LookupFromDevice(d ports.Device) *Service {
	id, err := deviceIdentifier(d)
	if err != nil {
		return nil
	}
	return r.Lookup(id)
}

// CreateFromDevice creates and exposes the service of d. When created is
// true the caller owns the returned reference. When the service was already
// exposed it is returned with created false and no reference is taken.
func (r *Registry) CreateFromDevice(ctx context.Context, d ports.Device) (s *Service, created bool, err error) {
	id, err := deviceIdentifier(d)
	if err != nil {
		return nil, false, err
	}

	r.lock()
	defer r.unlock(ctx)

	s, err = r.getOrCreate(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if s.path != "" {
		s.refcount.Add(-1)
		return s, false, nil
	}

	s.typ = d.Type().ServiceType()
	s.device = d

	if err := r.register(s); err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// LookupFromNetwork returns the service n belongs to without taking a reference.
func (r *Registry) LookupFromNetwork(n ports.Network) *Service {
	id, err := networkIdentifier(n)
	if err != nil {
		return nil
	}
	return r.Lookup(id)
}

// CreateFromNetwork merges the sighting n into its service, creating and
// exposing the service on first sighting. Ownership of the returned reference
// follows CreateFromDevice.
func (r *Registry) CreateFromNetwork(ctx context.Context, n ports.Network) (s *Service, created bool, err error) {
	id, err := networkIdentifier(n)
	if err != nil {
		return nil, false, err
	}

	r.lock()
	defer r.unlock(ctx)

	s, err = r.getOrCreate(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if s.path != "" {
		r.updateFromNetwork(s, n)
		r.queueProfileChanged()
		s.refcount.Add(-1)
		return s, false, nil
	}

	s.typ = n.Type().ServiceType()
	r.updateFromNetwork(s, n)

	if err := r.register(s); err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Unbind drops n from s when n is the bound network, leaving s unbound until
// the next sighting is merged. It reports whether n was bound.
func (r *Registry) Unbind(ctx context.Context, s *Service, n ports.Network) bool {
	r.lock()
	defer r.unlock(ctx)

	if r.index[s.identifier] != s || s.network == nil || s.network != n {
		return false
	}
	s.network.Unref()
	s.network = nil
	slog.Debug("service unbound network", "service", s.identifier)
	return true
}

func (r *Registry) updateFromNetwork(s *Service, n ports.Network) {
	if r.merger.Merge(s, n) {
		slog.Debug("service bound network", "service", s.identifier, "strength", s.strength)
	}
	if r.index[s.identifier] == s {
		r.services = resort(r.services, s)
	}
}

func (r *Registry) load(ctx context.Context, s *Service) {
	if r.store == nil {
		return
	}
	rec := domain.ServiceRecord{Identifier: s.identifier}
	if err := r.store.Load(ctx, &rec); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("service load failed", "service", s.identifier, "error", err)
		}
		return
	}
	s.hydrate(rec)
}

func (r *Registry) save(ctx context.Context, s *Service) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, s.record()); err != nil {
		slog.Warn("service save failed", "service", s.identifier, "error", err)
	}
}

// Close releases every service regardless of outstanding references.
func (r *Registry) Close(ctx context.Context) {
	r.lock()
	defer r.unlock(ctx)

	services := r.services
	r.services = nil
	for _, s := range services {
		r.free(s)
	}
	telemetry.ServicesRegistered.Set(0)
}
