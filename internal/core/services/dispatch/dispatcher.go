package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
	"github.com/lcalzada-xor/connd/internal/core/services/registry"
)

// ErrClosed is returned by Post once the dispatcher stopped.
var ErrClosed = errors.New("dispatcher closed")

const defaultQueueSize = 256

// Dispatcher applies driver events to the registry in the order they were
// posted, from a single goroutine. It owns the references returned by the
// registry for created services and releases them on removal events.
type Dispatcher struct {
	reg    *registry.Registry
	events chan Event
	done   chan struct{}
	once   sync.Once

	// touched only by the Run goroutine
	owned     map[string]*registry.Service
	sightings map[string][]ports.Network // live sightings per service identifier

	connectTimeout time.Duration
	mu             sync.Mutex
	watchdogs      map[string]*time.Timer
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithConnectTimeout fails services left connecting for longer than timeout.
// Zero disables the watchdog.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.connectTimeout = timeout }
}

// WithQueueSize sets the event channel capacity.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) { d.events = make(chan Event, n) }
}

// New creates a dispatcher feeding reg.
func New(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:       reg,
		events:    make(chan Event, defaultQueueSize),
		done:      make(chan struct{}),
		owned:     make(map[string]*registry.Service),
		sightings: make(map[string][]ports.Network),
		watchdogs: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.connectTimeout > 0 {
		reg.AddObserver(d)
	}
	return d
}

// Post queues ev. It blocks while the queue is full.
func (d *Dispatcher) Post(ctx context.Context, ev Event) error {
	select {
	case <-d.done:
		return ErrClosed
	default:
	}

	select {
	case d.events <- ev:
		return nil
	case <-d.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies events until ctx is cancelled, then releases every owned
// service reference.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			d.apply(ctx, ev)
		}
	}
}

func (d *Dispatcher) shutdown() {
	d.once.Do(func() { close(d.done) })

	d.mu.Lock()
	for path, t := range d.watchdogs {
		t.Stop()
		delete(d.watchdogs, path)
	}
	d.mu.Unlock()

	clear(d.sightings)

	ctx := context.Background()
	for id, s := range d.owned {
		delete(d.owned, id)
		d.reg.Unref(ctx, s)
	}
}

func (d *Dispatcher) apply(ctx context.Context, ev Event) {
	slog.Debug("driver event", "event", ev.Kind.String())

	var err error
	switch ev.Kind {
	case DeviceAdded:
		err = d.own(d.reg.CreateFromDevice(ctx, ev.Device))
	case NetworkSighted:
		err = d.sighted(ctx, ev.Network)
	case NetworkLost:
		err = d.lost(ctx, ev.Network)
	case DeviceRemoved:
		d.release(ctx, d.target(ev))
	case CarrierChanged:
		err = d.reg.SetCarrier(ctx, d.target(ev), ev.Carrier)
		if errors.Is(err, domain.ErrAlreadySet) {
			err = nil
		}
	case ConfigurationAcquired:
		err = d.reg.IndicateConfiguration(ctx, d.target(ev))
	case ReadyReached:
		err = d.reg.Ready(ctx, d.target(ev))
	case LinkDown:
		err = d.reg.IndicateDisconnect(ctx, d.target(ev))
	case Disconnected:
		err = d.reg.IndicateIdle(ctx, d.target(ev))
	case Failed:
		err = d.reg.IndicateFailure(ctx, d.target(ev))
	case connectTimedOut:
		if s := d.reg.LookupPath(ev.path); s != nil && d.reg.FailIfConnecting(ctx, s) {
			slog.Warn("connect timed out", "service", s.Identifier(), "timeout", d.connectTimeout)
		}
	default:
		err = domain.ErrInvalidArguments
	}

	if err != nil {
		slog.Warn("driver event failed", "event", ev.Kind.String(), "error", err)
	}
}

// target resolves the service an event is about.
func (d *Dispatcher) target(ev Event) *registry.Service {
	if ev.Network != nil {
		return d.reg.LookupFromNetwork(ev.Network)
	}
	if ev.Device != nil {
		return d.reg.LookupFromDevice(ev.Device)
	}
	return nil
}

func (d *Dispatcher) own(s *registry.Service, created bool, err error) error {
	if err != nil || !created {
		return err
	}
	d.owned[s.Identifier()] = s
	return nil
}

func (d *Dispatcher) sighted(ctx context.Context, n ports.Network) error {
	s, created, err := d.reg.CreateFromNetwork(ctx, n)
	if err := d.own(s, created, err); err != nil {
		return err
	}
	id := s.Identifier()
	if indexOf(d.sightings[id], n) < 0 {
		d.sightings[id] = append(d.sightings[id], n)
	}
	return nil
}

// lost forgets one sighting of a service. The service is released with its
// last sighting; losing the bound sighting rebinds the strongest one left.
func (d *Dispatcher) lost(ctx context.Context, n ports.Network) error {
	s := d.reg.LookupFromNetwork(n)
	if s == nil {
		return nil
	}
	id := s.Identifier()

	live := d.sightings[id]
	if i := indexOf(live, n); i >= 0 {
		live = append(live[:i:i], live[i+1:]...)
	}
	if len(live) == 0 {
		delete(d.sightings, id)
		d.release(ctx, s)
		return nil
	}
	d.sightings[id] = live

	if !d.reg.Unbind(ctx, s, n) {
		return nil
	}
	_, _, err := d.reg.CreateFromNetwork(ctx, strongest(live))
	return err
}

func indexOf(list []ports.Network, n ports.Network) int {
	for i, cur := range list {
		if cur == n {
			return i
		}
	}
	return -1
}

func strongest(list []ports.Network) ports.Network {
	best := list[0]
	for _, n := range list[1:] {
		if n.Uint8(domain.NetworkKeyStrength) > best.Uint8(domain.NetworkKeyStrength) {
			best = n
		}
	}
	return best
}

func (d *Dispatcher) release(ctx context.Context, s *registry.Service) {
	if s == nil {
		return
	}
	if owned, ok := d.owned[s.Identifier()]; ok && owned == s {
		delete(d.owned, s.Identifier())
		d.reg.Unref(ctx, s)
	}
}

// OnPropertyChanged arms the connect watchdog when a service enters
// association and disarms it once the service leaves the connecting states.
func (d *Dispatcher) OnPropertyChanged(ctx context.Context, change domain.PropertyChange) {
	if change.Name != domain.PropState {
		return
	}
	state, _ := change.Value.(string)

	d.mu.Lock()
	defer d.mu.Unlock()

	timer, armed := d.watchdogs[change.Path]
	switch state {
	case domain.StateAssociation.String():
		if armed {
			timer.Stop()
		}
		path := change.Path
		var t *time.Timer
		t = time.AfterFunc(d.connectTimeout, func() {
			d.mu.Lock()
			if d.watchdogs[path] == t {
				delete(d.watchdogs, path)
			}
			d.mu.Unlock()
			_ = d.Post(context.Background(), Event{Kind: connectTimedOut, path: path})
		})
		d.watchdogs[path] = t
	case domain.StateConfiguration.String():
	default:
		if armed {
			timer.Stop()
			delete(d.watchdogs, change.Path)
		}
	}
}

var _ ports.ServiceObserver = (*Dispatcher)(nil)
