package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every broker collector and is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// CapabilitiesUsable is 1 once the HMI capability handshake has completed.
	CapabilitiesUsable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hmibroker_capabilities_usable",
			Help: "Whether HMI capabilities are usable (1=usable, 0=negotiating).",
		},
	)

	// ComponentReady tracks the readiness answer per HMI component.
	ComponentReady = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hmibroker_component_ready",
			Help: "Readiness per HMI component (1=answered and cooperating, 0=otherwise).",
		},
		[]string{"component"},
	)

	// CommandsTotal counts terminal command outcomes.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmibroker_commands_total",
			Help: "Total number of mobile commands by function and result code.",
		},
		[]string{"function", "result"},
	)

	// CommandLatency measures time from receipt to terminal state.
	CommandLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hmibroker_command_latency_seconds",
			Help:    "Latency of mobile commands from receipt to response.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"function"},
	)

	// UnsolicitedEvents counts HMI events that matched no pending command.
	UnsolicitedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmibroker_unsolicited_events_total",
			Help: "HMI events that matched no outstanding correlation id.",
		},
		[]string{"function"},
	)

	// ActiveLeases is the number of modules currently held by applications.
	ActiveLeases = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hmibroker_active_leases",
			Help: "Number of vehicle modules currently leased.",
		},
	)

	// PendingCommands is the number of outstanding HMI sub-requests.
	PendingCommands = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hmibroker_pending_commands",
			Help: "Number of HMI sub-requests awaiting events.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		CapabilitiesUsable,
		ComponentReady,
		CommandsTotal,
		CommandLatency,
		UnsolicitedEvents,
		ActiveLeases,
		PendingCommands,
	)
}

// BoolToFloat maps a flag onto a gauge value.
func BoolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
