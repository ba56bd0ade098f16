package registry

import (
	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
	"github.com/lcalzada-xor/connd/internal/telemetry"
)

// SightingMerger folds a network sighting into the service it belongs to.
type SightingMerger struct{}

// NewSightingMerger creates a new SightingMerger.
func NewSightingMerger() *SightingMerger {
	return &SightingMerger{}
}

// Merge refreshes the descriptive fields of existing from every sighting and
// keeps only the strongest sighting bound. It reports whether the bound
// network changed. The registry lock must be held.
func (sm *SightingMerger) Merge(existing *Service, sighting ports.Network) bool {
	telemetry.Sightings.WithLabelValues(string(sighting.Type())).Inc()

	if name := sighting.String(domain.NetworkKeyName); name != "" {
		existing.name = name
	}

	existing.strength = sighting.Uint8(domain.NetworkKeyStrength)
	existing.mode = domain.ParseMode(sighting.String(domain.NetworkKeyMode))
	existing.security = domain.ParseSecurity(sighting.String(domain.NetworkKeySecurity))

	if existing.network == sighting {
		return false
	}

	// A stronger sighting replaces the bound one.
	if existing.network != nil && existing.strength > existing.network.Uint8(domain.NetworkKeyStrength) {
		existing.network.Unref()
		existing.network = nil
	}

	if existing.network != nil {
		return false
	}

	existing.network = sighting.Ref()
	if passphrase := sighting.String(domain.NetworkKeyPassphrase); passphrase != "" {
		existing.passphrase = passphrase
	}
	return true
}
