package driver

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
	"github.com/lcalzada-xor/connd/internal/core/services/dispatch"
)

// Network is a simulated wifi network built from a decoded beacon.
type Network struct {
	sim   *Simulator
	bssid string
	group string
	refs  atomic.Int32

	mu       sync.Mutex
	name     string
	strength uint8
	mode     domain.ServiceMode
	security domain.SecurityKind
	props    map[string]string
}

func newNetwork(sim *Simulator, b Beacon) *Network {
	n := &Network{
		sim:   sim,
		bssid: b.BSSID.String(),
		group: networkGroup(b),
		props: make(map[string]string),
	}
	n.refs.Store(1)
	n.update(b)
	return n
}

// networkGroup names the logical network: hex SSID, mode and security.
func networkGroup(b Beacon) string {
	return fmt.Sprintf("%s_%s_%s", hex.EncodeToString([]byte(b.SSID)), b.Mode, b.Security)
}

func (n *Network) update(b Beacon) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.name = b.SSID
	n.strength = SignalToStrength(b.Signal)
	n.mode = b.Mode
	n.security = b.Security
}

func (n *Network) Ident() string            { return n.bssid }
func (n *Network) Group() string            { return n.group }
func (n *Network) Type() domain.NetworkType { return domain.NetworkTypeWiFi }

func (n *Network) String(key string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch key {
	case domain.NetworkKeyName:
		return n.name
	case domain.NetworkKeyMode:
		return n.mode.String()
	case domain.NetworkKeySecurity:
		return n.security.String()
	}
	return n.props[key]
}

func (n *Network) Uint8(key string) uint8 {
	if key != domain.NetworkKeyStrength {
		return 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.strength
}

func (n *Network) SetString(key, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.props[key] = value
	return nil
}

// Connect starts a simulated association. Completion is reported through
// the dispatcher: configuration then ready, or failure when a protected
// network has no passphrase.
func (n *Network) Connect(ctx context.Context) error {
	n.mu.Lock()
	protected := n.security != domain.SecurityNone && n.security != domain.SecurityUnknown
	passphrase := n.props[domain.NetworkKeyPassphrase]
	n.mu.Unlock()

	if protected && passphrase == "" {
		n.sim.later(dispatch.NetworkEvent(dispatch.Failed, n))
		return domain.ErrInProgress
	}

	n.sim.later(
		dispatch.NetworkEvent(dispatch.ConfigurationAcquired, n),
		dispatch.NetworkEvent(dispatch.ReadyReached, n),
	)
	return domain.ErrInProgress
}

// Disconnect starts a simulated teardown.
func (n *Network) Disconnect(ctx context.Context) error {
	n.sim.later(dispatch.NetworkEvent(dispatch.Disconnected, n))
	return domain.ErrInProgress
}

func (n *Network) Ref() ports.Network {
	n.refs.Add(1)
	return n
}

func (n *Network) Unref() {
	n.refs.Add(-1)
}

// Refs reports the outstanding references.
func (n *Network) Refs() int { return int(n.refs.Load()) }

// Device is a simulated wired device.
type Device struct {
	ident string
	typ   domain.DeviceType

	up atomic.Bool
}

// NewDevice creates a simulated device.
func NewDevice(ident string, typ domain.DeviceType) *Device {
	return &Device{ident: ident, typ: typ}
}

func (d *Device) Ident() string           { return d.ident }
func (d *Device) Type() domain.DeviceType { return d.typ }

func (d *Device) Connect(ctx context.Context) error {
	d.up.Store(true)
	return nil
}

func (d *Device) Disconnect(ctx context.Context) error {
	d.up.Store(false)
	return nil
}

// Up reports whether the link was brought up.
func (d *Device) Up() bool { return d.up.Load() }

var (
	_ ports.Network = (*Network)(nil)
	_ ports.Device  = (*Device)(nil)
)
