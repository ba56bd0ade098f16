// Package portstest provides in-memory Device and Network doubles for tests.
package portstest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

// Device is a scripted ports.Device.
type Device struct {
	ID   string
	Kind domain.DeviceType

	ConnectErr    error
	DisconnectErr error

	Connects    atomic.Int32
	Disconnects atomic.Int32
}

// NewDevice returns an ethernet device with the given identity.
func NewDevice(id string) *Device {
	return &Device{ID: id, Kind: domain.DeviceTypeEthernet}
}

func (d *Device) Ident() string           { return d.ID }
func (d *Device) Type() domain.DeviceType { return d.Kind }

func (d *Device) Connect(ctx context.Context) error {
	d.Connects.Add(1)
	return d.ConnectErr
}

func (d *Device) Disconnect(ctx context.Context) error {
	d.Disconnects.Add(1)
	return d.DisconnectErr
}

// Network is a scripted, reference-counted ports.Network.
type Network struct {
	ID    string
	Grp   string
	Kind  domain.NetworkType
	Refs  atomic.Int32
	mu    sync.Mutex
	props map[string]string
	bytes map[string]uint8

	ConnectErr    error
	DisconnectErr error

	Connects    atomic.Int32
	Disconnects atomic.Int32
}

// NewNetwork returns a wifi network sighting holding one reference.
func NewNetwork(id, group, name string, strength uint8) *Network {
	n := &Network{
		ID:    id,
		Grp:   group,
		Kind:  domain.NetworkTypeWiFi,
		props: map[string]string{domain.NetworkKeyName: name},
		bytes: map[string]uint8{domain.NetworkKeyStrength: strength},
	}
	n.Refs.Store(1)
	return n
}

func (n *Network) Ident() string            { return n.ID }
func (n *Network) Group() string            { return n.Grp }
func (n *Network) Type() domain.NetworkType { return n.Kind }

func (n *Network) String(key string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.props[key]
}

func (n *Network) Uint8(key string) uint8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bytes[key]
}

func (n *Network) SetString(key, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.props[key] = value
	return nil
}

// SetUint8 changes a numeric property.
func (n *Network) SetUint8(key string, value uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bytes[key] = value
}

func (n *Network) Connect(ctx context.Context) error {
	n.Connects.Add(1)
	return n.ConnectErr
}

func (n *Network) Disconnect(ctx context.Context) error {
	n.Disconnects.Add(1)
	return n.DisconnectErr
}

func (n *Network) Ref() ports.Network {
	n.Refs.Add(1)
	return n
}

func (n *Network) Unref() {
	n.Refs.Add(-1)
}

var (
	_ ports.Device  = (*Device)(nil)
	_ ports.Network = (*Network)(nil)
)
