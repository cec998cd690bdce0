package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by the counters below.
const (
	DeviceSensor = "sensor"
	DeviceRelay  = "relay"

	OperationRead  = "read"
	OperationWrite = "write"

	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Live state gauges
var (
	// AlcoholDetected is 1 while the sensor reports alcohol vapour.
	AlcoholDetected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carlock_alcohol_detected",
			Help: "1 while the sensor reports alcohol vapour, 0 otherwise",
		},
	)

	// RelayActive is 1 while the relay is energised (unlocked).
	RelayActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carlock_relay_active",
			Help: "1 while the relay is energised (ignition unlocked), 0 when locked",
		},
	)

	// SimulationMode is 1 when the in-memory board is in use.
	SimulationMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carlock_simulation_mode",
			Help: "1 when running on the simulated sensor and relay",
		},
	)
)

// Command and hardware counters
var (
	// CommandsTotal counts operator commands by command and result.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carlock_commands_total",
			Help: "Commands received by command and result (ok/rejected/error)",
		},
		[]string{"command", "result"},
	)

	// HardwareErrorsTotal counts swallowed GPIO failures.
	HardwareErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carlock_hardware_errors_total",
			Help: "GPIO failures that were degraded to a default value",
		},
		[]string{"device", "operation"},
	)

	// InterlockTripsTotal counts automatic locks.
	InterlockTripsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carlock_interlock_trips_total",
			Help: "Times the interlock locked the relay because alcohol was detected",
		},
	)
)

// ObserveStatus updates the live state gauges.
func ObserveStatus(alcoholDetected, relayActive, simulation bool) {
	AlcoholDetected.Set(boolToFloat(alcoholDetected))
	RelayActive.Set(boolToFloat(relayActive))
	SimulationMode.Set(boolToFloat(simulation))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
