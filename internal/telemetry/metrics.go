package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ServicesRegistered is the size of the ordered service collection.
	ServicesRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "connd",
			Name:      "services",
			Help:      "Number of services currently held by the registry",
		},
	)

	// StateTransitions counts state changes by target state.
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connd",
			Name:      "state_transitions_total",
			Help:      "Total number of service state transitions",
		},
		[]string{"state"},
	)

	// PrivilegeChecks counts security decisions.
	PrivilegeChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connd",
			Name:      "privilege_checks_total",
			Help:      "Total number of privilege checks by outcome",
		},
		[]string{"privilege", "result"},
	)

	// Sightings counts network sightings merged into services.
	Sightings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connd",
			Name:      "sightings_total",
			Help:      "Total number of network sightings processed",
		},
		[]string{"type"},
	)

	// BoundaryErrors counts failed call-boundary requests by error kind.
	BoundaryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connd",
			Name:      "boundary_errors_total",
			Help:      "Total number of call-boundary requests that failed",
		},
		[]string{"kind"},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// It is idempotent.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(ServicesRegistered)
		prometheus.DefaultRegisterer.Register(StateTransitions)
		prometheus.DefaultRegisterer.Register(PrivilegeChecks)
		prometheus.DefaultRegisterer.Register(Sightings)
		prometheus.DefaultRegisterer.Register(BoundaryErrors)
	})
}
