package dispatch

import (
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

// EventKind identifies a driver event.
type EventKind int

const (
	DeviceAdded EventKind = iota + 1
	DeviceRemoved
	NetworkSighted
	NetworkLost
	CarrierChanged
	ConfigurationAcquired
	ReadyReached
	LinkDown
	Disconnected
	Failed

	connectTimedOut
)

var kindNames = map[EventKind]string{
	DeviceAdded:           "device_added",
	DeviceRemoved:         "device_removed",
	NetworkSighted:        "network_sighted",
	NetworkLost:           "network_lost",
	CarrierChanged:        "carrier_changed",
	ConfigurationAcquired: "configuration_acquired",
	ReadyReached:          "ready_reached",
	LinkDown:              "link_down",
	Disconnected:          "disconnected",
	Failed:                "failed",
	connectTimedOut:       "connect_timed_out",
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a report from a driver. Exactly one of Device and Network names
// the collaborator the event is about.
type Event struct {
	Kind    EventKind
	Device  ports.Device
	Network ports.Network
	Carrier bool

	path string // connectTimedOut only
}

// DeviceEvent builds an event about d.
func DeviceEvent(kind EventKind, d ports.Device) Event {
	return Event{Kind: kind, Device: d}
}

// NetworkEvent builds an event about n.
func NetworkEvent(kind EventKind, n ports.Network) Event {
	return Event{Kind: kind, Network: n}
}

// CarrierEvent reports the link state of an ethernet device.
func CarrierEvent(d ports.Device, carrier bool) Event {
	return Event{Kind: CarrierChanged, Device: d, Carrier: carrier}
}
