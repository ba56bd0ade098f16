package driver

import (
	"fmt"
	"math/rand"
	"net"

	"github.com/lcalzada-xor/connd/internal/core/domain"
)

// Common SSIDs for realistic simulated networks
var commonSSIDs = []string{
	"HomeNetwork", "NETGEAR-5G", "Starbucks WiFi", "TP-Link_2.4GHz",
	"Linksys", "ATT-WiFi", "Xfinity", "Google Fiber",
	"Office-Network", "Guest-WiFi", "MyWiFi", "Home-2.4G",
	"CoffeeShop_Free", "Airport_WiFi", "Hotel-Guest", "Apartment_5G",
}

// Vendor OUI prefixes (first 3 bytes of MAC)
var vendorPrefixes = []string{
	"00:17:F2", "00:12:FB", "00:1E:BD", "50:C7:BF", "A0:63:91",
	"00:14:BF", "F4:F5:D8", "00:1F:C6", "00:17:9A", "00:11:50",
}

var channels24GHz = []uint8{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}
var channels5GHz = []uint8{36, 40, 44, 48, 52, 56, 60, 64, 100, 104, 149, 153, 157, 161, 165}

// Generator produces random access points for the simulator.
type Generator struct {
	rand *rand.Rand
}

// NewGenerator creates a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rand: rand.New(rand.NewSource(seed))}
}

// GenerateBSSID returns a random MAC address with a known vendor prefix.
func (g *Generator) GenerateBSSID() net.HardwareAddr {
	prefix := vendorPrefixes[g.rand.Intn(len(vendorPrefixes))]
	mac, _ := net.ParseMAC(fmt.Sprintf("%s:%02X:%02X:%02X",
		prefix, g.rand.Intn(256), g.rand.Intn(256), g.rand.Intn(256)))
	return mac
}

// GenerateAP creates a random access point beacon.
func (g *Generator) GenerateAP() Beacon {
	var channel uint8
	if g.rand.Float32() < 0.4 {
		channel = channels5GHz[g.rand.Intn(len(channels5GHz))]
	} else {
		channel = channels24GHz[g.rand.Intn(len(channels24GHz))]
	}

	return Beacon{
		BSSID:    g.GenerateBSSID(),
		SSID:     commonSSIDs[g.rand.Intn(len(commonSSIDs))],
		Channel:  channel,
		Signal:   int8(-30 - g.rand.Intn(50)), // -30 to -80 dBm
		Mode:     domain.ModeManaged,
		Security: g.weightedSecurity(),
	}
}

// GenerateAPs creates count access points.
func (g *Generator) GenerateAPs(count int) []Beacon {
	aps := make([]Beacon, 0, count)
	for i := 0; i < count; i++ {
		aps = append(aps, g.GenerateAP())
	}
	return aps
}

// Jitter returns signal moved by up to spread dBm in either direction.
func (g *Generator) Jitter(signal int8, spread int) int8 {
	if spread <= 0 {
		return signal
	}
	v := int(signal) + g.rand.Intn(2*spread+1) - spread
	if v > -1 {
		v = -1
	}
	if v < -100 {
		v = -100
	}
	return int8(v)
}

// weightedSecurity leans towards wpa2 like real surroundings.
func (g *Generator) weightedSecurity() domain.SecurityKind {
	r := g.rand.Float32()
	switch {
	case r < 0.7:
		return domain.SecurityWPA2
	case r < 0.8:
		return domain.SecurityWPA
	case r < 0.85:
		return domain.SecurityWEP
	default:
		return domain.SecurityNone
	}
}
