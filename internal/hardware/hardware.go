package hardware

import (
	"context"

	"github.com/oshokin/alco-lock/internal/logger"
)

// Sensor reads the digital output of the gas sensor.
type Sensor interface {
	// Detected reports whether alcohol vapour is present.
	Detected() (bool, error)
}

// Relay drives the ignition relay. Active means energised, i.e. unlocked.
type Relay interface {
	// Set energises (true) or releases (false) the relay.
	Set(active bool) error
	// Active reports the current relay output.
	Active() (bool, error)
}

// Options selects pins and polarity for Open.
type Options struct {
	// SensorPin is the BCM number of the sensor input.
	SensorPin int
	// SensorActiveLow reports detection on a low level.
	SensorActiveLow bool
	// RelayPin is the BCM number of the relay output.
	RelayPin int
	// RelayActiveLow energises the relay with a low level.
	RelayActiveLow bool
	// RelayInitialActive is the relay state applied when the board opens.
	RelayInitialActive bool
	// ForceSimulation skips GPIO entirely.
	ForceSimulation bool
}

// Board pairs a sensor with a relay. In simulation mode both are backed by a Simulator.
type Board struct {
	sensor Sensor
	relay  Relay
	sim    *Simulator
	closer func() error
}

// NewBoard wraps an existing sensor and relay, e.g. for tests or other drivers.
func NewBoard(sensor Sensor, relay Relay) *Board {
	return &Board{
		sensor: sensor,
		relay:  relay,
	}
}

// NewSimulatedBoard returns a board backed by an in-memory simulator.
func NewSimulatedBoard(relayActive bool) *Board {
	sim := NewSimulator(relayActive)

	return &Board{
		sensor: sim,
		relay:  sim,
		sim:    sim,
	}
}

// Open returns a GPIO-backed board, or a simulated one when ForceSimulation is
// set or the GPIO lines cannot be initialised. It never fails.
func Open(ctx context.Context, opts Options) *Board {
	if opts.ForceSimulation {
		logger.Info(ctx, "Simulation mode forced by configuration")

		return NewSimulatedBoard(opts.RelayInitialActive)
	}

	board, err := openGPIO(opts, hostPinLookup)
	if err != nil {
		logger.WarnKV(ctx, "GPIO init failed, switching to simulation mode", "error", err)

		return NewSimulatedBoard(opts.RelayInitialActive)
	}

	logger.InfoKV(ctx, "GPIO ready",
		"sensor_pin", opts.SensorPin,
		"relay_pin", opts.RelayPin,
		"relay_active", opts.RelayInitialActive)

	return board
}

// Sensor returns the board's sensor.
func (b *Board) Sensor() Sensor {
	return b.sensor
}

// Relay returns the board's relay.
func (b *Board) Relay() Relay {
	return b.relay
}

// Simulated reports whether the board runs on the in-memory simulator.
func (b *Board) Simulated() bool {
	return b.sim != nil
}

// SimulateAlcohol sets the simulated sensor reading.
// It returns false, changing nothing, when the board drives real hardware.
func (b *Board) SimulateAlcohol(detected bool) bool {
	if b.sim == nil {
		return false
	}

	b.sim.SetAlcohol(detected)

	return true
}

// Close releases the GPIO lines. It is a no-op for simulated boards.
func (b *Board) Close() error {
	if b.closer == nil {
		return nil
	}

	return b.closer()
}
