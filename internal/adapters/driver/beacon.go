package driver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/connd/internal/core/domain"
)

// Information element IDs and capability bits used by the codec.
const (
	ieSSID      = 0
	ieDSParams  = 3
	ieRSN       = 48
	ieVendor    = 221
	capIBSS     = 0x0002
	capPrivacy  = 0x0010
	capESS      = 0x0001
	beaconFixed = 12 // timestamp, interval, capability
)

var (
	ErrNotBeacon = errors.New("not a beacon frame")

	broadcast, _ = net.ParseMAC("ff:ff:ff:ff:ff:ff")
	wpaOUI       = []byte{0x00, 0x50, 0xf2, 0x01}
)

// Beacon is the subset of an 802.11 beacon that describes a network.
type Beacon struct {
	BSSID    net.HardwareAddr
	SSID     string
	Channel  uint8
	Signal   int8 // dBm
	Mode     domain.ServiceMode
	Security domain.SecurityKind
}

// BuildBeacon serializes b as a radiotap-framed beacon.
func BuildBeacon(b Beacon, seq uint16) ([]byte, error) {
	if len(b.BSSID) != 6 {
		return nil, fmt.Errorf("%w: bssid %q", domain.ErrInvalidArguments, b.BSSID)
	}

	radiotap := &layers.RadioTap{
		Present:          layers.RadioTapPresentRate | layers.RadioTapPresentDBMAntennaSignal,
		Rate:             2,
		DBMAntennaSignal: b.Signal,
	}

	dot11 := &layers.Dot11{
		Type:           layers.Dot11TypeMgmtBeacon,
		Address1:       broadcast,
		Address2:       b.BSSID,
		Address3:       b.BSSID,
		SequenceNumber: seq,
	}

	payload := make([]byte, beaconFixed)
	binary.LittleEndian.PutUint16(payload[8:], 100) // TU
	binary.LittleEndian.PutUint16(payload[10:], capabilities(b))

	payload = appendIE(payload, ieSSID, []byte(b.SSID))
	payload = appendIE(payload, 1, []byte{0x82, 0x84, 0x8b, 0x96})
	if b.Channel != 0 {
		payload = appendIE(payload, ieDSParams, []byte{b.Channel})
	}
	switch b.Security {
	case domain.SecurityWPA2:
		// version 1, CCMP group and pairwise, PSK
		payload = appendIE(payload, ieRSN, []byte{
			0x01, 0x00,
			0x00, 0x0f, 0xac, 0x04,
			0x01, 0x00, 0x00, 0x0f, 0xac, 0x04,
			0x01, 0x00, 0x00, 0x0f, 0xac, 0x02,
			0x00, 0x00,
		})
	case domain.SecurityWPA:
		payload = appendIE(payload, ieVendor, append(append([]byte{}, wpaOUI...), 0x01, 0x00))
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buf, opts, radiotap, dot11, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serialize beacon failed: %w", err)
	}
	return buf.Bytes(), nil
}

func capabilities(b Beacon) uint16 {
	var c uint16
	if b.Mode == domain.ModeAdhoc {
		c |= capIBSS
	} else {
		c |= capESS
	}
	if b.Security != domain.SecurityNone && b.Security != domain.SecurityUnknown {
		c |= capPrivacy
	}
	return c
}

func appendIE(dst []byte, id byte, info []byte) []byte {
	dst = append(dst, id, byte(len(info)))
	return append(dst, info...)
}

// DecodeBeacon parses a radiotap-framed beacon.
func DecodeBeacon(data []byte) (Beacon, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeRadioTap, gopacket.Default)

	dot11Layer := packet.Layer(layers.LayerTypeDot11)
	if dot11Layer == nil {
		return Beacon{}, ErrNotBeacon
	}
	dot11, ok := dot11Layer.(*layers.Dot11)
	if !ok || dot11.Type != layers.Dot11TypeMgmtBeacon {
		return Beacon{}, ErrNotBeacon
	}

	b := Beacon{BSSID: dot11.Address3, Mode: domain.ModeManaged}

	if radiotapLayer := packet.Layer(layers.LayerTypeRadioTap); radiotapLayer != nil {
		if radiotap, ok := radiotapLayer.(*layers.RadioTap); ok {
			b.Signal = radiotap.DBMAntennaSignal
		}
	}

	var (
		capability uint16
		ieData     []byte
	)
	if layer := packet.Layer(layers.LayerTypeDot11MgmtBeacon); layer != nil {
		if beacon, ok := layer.(*layers.Dot11MgmtBeacon); ok {
			capability = beacon.Flags
		}
		ieData = layer.LayerPayload()
	} else if body := dot11.LayerPayload(); len(body) >= beaconFixed {
		capability = binary.LittleEndian.Uint16(body[10:])
		ieData = body[beaconFixed:]
	}

	// Some decoders split the elements into their own layers.
	if len(ieData) == 0 {
		for _, layer := range packet.Layers() {
			if ie, ok := layer.(*layers.Dot11InformationElement); ok {
				ieData = append(ieData, byte(ie.ID), ie.Length)
				ieData = append(ieData, ie.Info...)
			}
		}
	}

	if capability&capIBSS != 0 {
		b.Mode = domain.ModeAdhoc
	}

	var rsn, wpa bool
	walkIEs(ieData, func(id byte, info []byte) {
		switch id {
		case ieSSID:
			b.SSID = string(info)
		case ieDSParams:
			if len(info) == 1 {
				b.Channel = info[0]
			}
		case ieRSN:
			rsn = true
		case ieVendor:
			if len(info) >= 4 && string(info[:4]) == string(wpaOUI) {
				wpa = true
			}
		}
	})

	switch {
	case rsn:
		b.Security = domain.SecurityWPA2
	case wpa:
		b.Security = domain.SecurityWPA
	case capability&capPrivacy != 0:
		b.Security = domain.SecurityWEP
	default:
		b.Security = domain.SecurityNone
	}

	return b, nil
}

func walkIEs(data []byte, fn func(id byte, info []byte)) {
	for len(data) >= 2 {
		id, n := data[0], int(data[1])
		if len(data) < 2+n {
			return
		}
		fn(id, data[2:2+n])
		data = data[2+n:]
	}
}

// SignalToStrength maps a dBm reading onto the 0-100 strength scale.
func SignalToStrength(dbm int8) uint8 {
	s := 2 * (int(dbm) + 100)
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return uint8(s)
}
