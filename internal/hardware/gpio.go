package hardware

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// pinLookup resolves a pin name such as "GPIO17".
type pinLookup func(name string) (gpio.PinIO, error)

// errPinNotFound is returned when the registry has no pin with the requested name.
var errPinNotFound = errors.New("pin not found")

// hostPinLookup initialises the periph host drivers and looks the pin up in
// the global registry. host.Init is idempotent.
func hostPinLookup(name string) (gpio.PinIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", name, errPinNotFound)
	}

	return p, nil
}

// bcmName returns the periph name of a BCM pin number.
func bcmName(pin int) string {
	return fmt.Sprintf("GPIO%d", pin)
}

// openGPIO configures the sensor as input and the relay as output.
func openGPIO(opts Options, lookup pinLookup) (*Board, error) {
	sensorPin, err := lookup(bcmName(opts.SensorPin))
	if err != nil {
		return nil, fmt.Errorf("sensor: %w", err)
	}

	if err = sensorPin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure sensor %s as input: %w", sensorPin, err)
	}

	relayPin, err := lookup(bcmName(opts.RelayPin))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("relay: %w", err), sensorPin.Halt())
	}

	relay := &pinRelay{pin: relayPin, activeLow: opts.RelayActiveLow}
	if err = relay.Set(opts.RelayInitialActive); err != nil {
		return nil, errors.Join(
			fmt.Errorf("configure relay %s as output: %w", relayPin, err),
			sensorPin.Halt(),
			relayPin.Halt(),
		)
	}

	return &Board{
		sensor: &pinSensor{pin: sensorPin, activeLow: opts.SensorActiveLow},
		relay:  relay,
		closer: func() error {
			return errors.Join(sensorPin.Halt(), relayPin.Halt())
		},
	}, nil
}

// pinSensor reads a digital input line.
type pinSensor struct {
	pin       gpio.PinIn
	activeLow bool
}

// Detected reports whether the line is at its active level.
func (s *pinSensor) Detected() (bool, error) {
	return levelActive(s.pin.Read(), s.activeLow), nil
}

// pinRelay drives a digital output line.
type pinRelay struct {
	pin       gpio.PinIO
	activeLow bool
}

// Set drives the line to the level matching active.
func (r *pinRelay) Set(active bool) error {
	level := gpio.Level(active != r.activeLow)
	if err := r.pin.Out(level); err != nil {
		return fmt.Errorf("drive %s %s: %w", r.pin, level, err)
	}

	return nil
}

// Active reads the output level back from the line.
func (r *pinRelay) Active() (bool, error) {
	return levelActive(r.pin.Read(), r.activeLow), nil
}

// levelActive applies the line polarity to a raw level.
func levelActive(level gpio.Level, activeLow bool) bool {
	return bool(level) != activeLow
}
