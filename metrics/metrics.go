package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "relay_"

var (
	registerOnce sync.Once

	commandsSubmitted *prometheus.CounterVec
	commandClaims     *prometheus.CounterVec
	stateReports      prometheus.Counter
	transitions       *prometheus.CounterVec
	storeFallbacks    *prometheus.CounterVec
	statsDropped      prometheus.Counter
	deviceConnected   prometheus.Gauge
)

// Init registers the relay metrics with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		commandsSubmitted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_submitted_total",
				Help: "Commands written to the mailbox by type",
			},
			[]string{"type"},
		)
		commandClaims = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_claims_total",
				Help: "Device mailbox polls by result",
			},
			[]string{"result"},
		)
		stateReports = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "state_reports_total",
				Help: "Device state reports received",
			},
		)
		transitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transitions_total",
				Help: "Classified relay and schedule transitions",
			},
			[]string{"kind"},
		)
		storeFallbacks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_fallbacks_total",
				Help: "Store operations served by the in-process cache",
			},
			[]string{"op"},
		)
		statsDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "stats_events_dropped_total",
				Help: "Stats events dropped because the sink was full or closed",
			},
		)
		deviceConnected = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "device_connected",
				Help: "1 when the last heartbeat is within the connection timeout",
			},
		)

		prometheus.MustRegister(
			commandsSubmitted,
			commandClaims,
			stateReports,
			transitions,
			storeFallbacks,
			statsDropped,
			deviceConnected,
		)
	})
}

func IncCommandSubmitted(commandType string) {
	if commandsSubmitted != nil {
		commandsSubmitted.WithLabelValues(commandType).Inc()
	}
}

// IncCommandClaim records a poll; result is "delivered" or "empty".
func IncCommandClaim(result string) {
	if commandClaims != nil {
		commandClaims.WithLabelValues(result).Inc()
	}
}

func IncStateReport() {
	if stateReports != nil {
		stateReports.Inc()
	}
}

func IncTransition(kind string) {
	if transitions != nil {
		transitions.WithLabelValues(kind).Inc()
	}
}

func IncStoreFallback(op string) {
	if storeFallbacks != nil {
		storeFallbacks.WithLabelValues(op).Inc()
	}
}

func IncStatsDropped() {
	if statsDropped != nil {
		statsDropped.Inc()
	}
}

func SetDeviceConnected(connected bool) {
	if deviceConnected == nil {
		return
	}
	if connected {
		deviceConnected.Set(1)
		return
	}
	deviceConnected.Set(0)
}
