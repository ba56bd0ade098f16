package driver

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/services/dispatch"
)

// Poster accepts driver events.
type Poster interface {
	Post(ctx context.Context, ev dispatch.Event) error
}

// Config tunes the simulator.
type Config struct {
	ScanInterval    time.Duration
	CompletionDelay time.Duration
	SignalJitter    int // dBm
	Seed            int64
}

// DefaultConfig returns the mock-mode settings.
func DefaultConfig() Config {
	return Config{
		ScanInterval:    10 * time.Second,
		CompletionDelay: 500 * time.Millisecond,
		SignalJitter:    4,
		Seed:            time.Now().UnixNano(),
	}
}

// Simulator drives simulated devices and networks. Every scan serializes a
// beacon per access point and reports what decodes back as a sighting.
type Simulator struct {
	poster Poster
	cfg    Config
	gen    *Generator

	mu       sync.Mutex
	ctx      context.Context
	devices  []*Device
	aps      []Beacon
	networks map[string]*Network
	seq      uint16
	stopped  bool // no completions are scheduled once set

	wg sync.WaitGroup
}

// NewSimulator creates a simulator posting to poster.
func NewSimulator(poster Poster, cfg Config) *Simulator {
	return &Simulator{
		poster:   poster,
		cfg:      cfg,
		gen:      NewGenerator(cfg.Seed),
		ctx:      context.Background(),
		networks: make(map[string]*Network),
	}
}

// Generator returns the random source used for access points and jitter.
func (s *Simulator) Generator() *Generator { return s.gen }

// AddDevice registers a device reported on Run.
func (s *Simulator) AddDevice(d *Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append(s.devices, d)
}

// AddAccessPoint registers an access point seen from the next scan on.
func (s *Simulator) AddAccessPoint(b Beacon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aps = append(s.aps, b)
}

// Network returns the simulated network of bssid, if it was sighted.
func (s *Simulator) Network(bssid string) *Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.networks[bssid]
}

// Run reports the devices, then scans until ctx is done.
func (s *Simulator) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	devices := append([]*Device(nil), s.devices...)
	s.mu.Unlock()

	for _, d := range devices {
		s.post(ctx, dispatch.DeviceEvent(dispatch.DeviceAdded, d))
		if d.Type() == domain.DeviceTypeEthernet {
			s.post(ctx, dispatch.CarrierEvent(d, true))
		}
	}

	s.Scan(ctx)

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.stopped = true
			s.mu.Unlock()

			s.wg.Wait()
			s.release()
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan reports one sighting per access point.
func (s *Simulator) Scan(ctx context.Context) {
	s.mu.Lock()
	aps := append([]Beacon(nil), s.aps...)
	s.mu.Unlock()

	for _, ap := range aps {
		ap.Signal = s.gen.Jitter(ap.Signal, s.cfg.SignalJitter)

		n, err := s.sight(ap)
		if err != nil {
			log.Printf("[SIM] beacon %s: %v", ap.BSSID, err)
			continue
		}
		s.post(ctx, dispatch.NetworkEvent(dispatch.NetworkSighted, n))
	}
}

func (s *Simulator) sight(ap Beacon) (*Network, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	frame, err := BuildBeacon(ap, seq)
	if err != nil {
		return nil, err
	}
	decoded, err := DecodeBeacon(frame)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := decoded.BSSID.String()
	n, ok := s.networks[key]
	if !ok {
		n = newNetwork(s, decoded)
		s.networks[key] = n
	} else {
		n.update(decoded)
	}
	return n, nil
}

// Lose stops reporting bssid and reports it gone.
func (s *Simulator) Lose(ctx context.Context, bssid string) {
	s.mu.Lock()
	for i, ap := range s.aps {
		if ap.BSSID.String() == bssid {
			s.aps = append(s.aps[:i], s.aps[i+1:]...)
			break
		}
	}
	n := s.networks[bssid]
	delete(s.networks, bssid)
	s.mu.Unlock()

	if n == nil {
		return
	}
	s.post(ctx, dispatch.NetworkEvent(dispatch.NetworkLost, n))
	n.Unref()
}

// later posts evs in order after the completion delay.
func (s *Simulator) later(evs ...dispatch.Event) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(s.cfg.CompletionDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		for _, ev := range evs {
			s.post(ctx, ev)
		}
	}()
}

func (s *Simulator) post(ctx context.Context, ev dispatch.Event) {
	if err := s.poster.Post(ctx, ev); err != nil {
		log.Printf("[SIM] post %s: %v", ev.Kind, err)
	}
}

func (s *Simulator) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, n := range s.networks {
		n.Unref()
		delete(s.networks, key)
	}
}
