package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "zp_meta"

var (
	// HeartbeatsTotal counts heartbeat and join requests applied.
	HeartbeatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Total number of heartbeat upserts processed",
		},
		[]string{"kind"}, // join/refresh
	)

	// SweepsTotal counts liveness sweep runs.
	SweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Total number of liveness sweep runs",
		},
	)

	// FailoversTotal counts node-down transitions.
	FailoversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failovers_total",
			Help:      "Total number of node-down transitions processed",
		},
		[]string{"status"}, // success/error
	)

	// RecoveriesTotal counts node-up transitions.
	RecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Total number of node-up transitions processed",
		},
		[]string{"status"}, // success/error
	)

	// RedirectsTotal counts requests forwarded to the leader.
	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Total number of requests redirected to the leader",
		},
		[]string{"status"}, // success/error
	)

	// TopologyVersion tracks the cached cluster topology version.
	TopologyVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topology_version",
			Help:      "Cached cluster topology version",
		},
	)

	// AliveNodes tracks the size of the alive table.
	AliveNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alive_nodes",
			Help:      "Number of nodes currently in the alive table",
		},
	)

	// IsLeader is 1 while this process is the elected leader.
	IsLeader = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "is_leader",
			Help:      "Whether this process is the elected leader",
		},
	)
)
