// Package metrics declares the Prometheus instrumentation every binary
// in this module exposes on its own registry. Grounded on
// internal/metrics/metrics.go's package-level GaugeVec/CounterVec
// declarations registered in an init(), generalized from a single
// controller-runtime-owned registry to one this module owns outright
// (github.com/prometheus/client_golang/prometheus, no controller-runtime).
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	siteLabel     = "site"
	providerLabel = "provider"
	probeLabel    = "probe"
	unitLabel     = "unit"
)

// Registry is shared by all three binaries (dnsfailoverd, dnsfollowerd,
// dnsreconciler); each process only ever increments the metrics relevant
// to its own loop.
var Registry = prometheus.NewRegistry()

var (
	LeaseWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnsfailover_lease_writes_total",
			Help: "DNS provider write attempts for the lease record pair, by provider and outcome.",
		},
		[]string{providerLabel, "outcome"},
	)

	LeaseReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnsfailover_lease_reads_total",
			Help: "DNS provider read attempts for the lease record pair, by provider and outcome.",
		},
		[]string{providerLabel, "outcome"},
	)

	ControllerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dnsfailover_controller_state",
			Help: "1 for the current DR controller state, 0 for all others.",
		},
		[]string{siteLabel, "state"},
	)

	ProbeHealthy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dnsfailover_probe_healthy",
			Help: "1 if the named probe most recently reported healthy, 0 otherwise.",
		},
		[]string{probeLabel},
	)

	FollowerActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dnsfailover_follower_active",
			Help: "1 if the ownership follower believes this site currently owns the lease.",
		},
		[]string{siteLabel},
	)

	FollowerSideEffectTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnsfailover_follower_side_effect_transitions_total",
			Help: "Activate/deactivate side effect transitions performed by the ownership follower.",
		},
		[]string{siteLabel, "transition"},
	)

	ReconcilerGapsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnsfailover_reconciler_gaps_detected_total",
			Help: "Data gaps detected by the parity reconciler, by unit kind.",
		},
		[]string{unitLabel},
	)

	ReconcilerUnitsRepaired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnsfailover_reconciler_units_repaired_total",
			Help: "Data units successfully repaired by the parity reconciler.",
		},
		[]string{unitLabel},
	)

	ReconcilerCycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dnsfailover_reconciler_cycle_seconds",
			Help:    "Wall time of one full parity reconciliation cycle.",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconcilerFailbackReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dnsfailover_reconciler_failback_ready",
			Help: "1 once the configured number of consecutive clean cycles has been observed.",
		},
	)
)

func init() {
	Registry.MustRegister(
		LeaseWrites,
		LeaseReads,
		ControllerState,
		ProbeHealthy,
		FollowerActive,
		FollowerSideEffectTransitions,
		ReconcilerGapsDetected,
		ReconcilerUnitsRepaired,
		ReconcilerCycleSeconds,
		ReconcilerFailbackReady,
	)
}
