package carlock

import (
	"errors"
	"strings"
)

// Command is an operator request accepted by every transport.
type Command string

const (
	// CommandLock de-energises the relay.
	CommandLock Command = "lock"
	// CommandUnlock energises the relay.
	CommandUnlock Command = "unlock"
	// CommandSimulateOn sets the simulated sensor to "alcohol detected".
	CommandSimulateOn Command = "simulate_on"
	// CommandSimulateOff clears the simulated sensor.
	CommandSimulateOff Command = "simulate_off"
)

var (
	// ErrUnknownCommand is returned for anything outside the four commands.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNotSimulated is returned for simulate_* commands on real hardware.
	ErrNotSimulated = errors.New("simulation commands require simulation mode")
	// ErrInterlocked is returned when unlock is refused because alcohol is detected.
	ErrInterlocked = errors.New("unlock refused: alcohol detected")
)

// ParseCommand normalises s and reports whether it names a known command.
func ParseCommand(s string) (Command, bool) {
	cmd := Command(strings.ToLower(strings.TrimSpace(s)))
	if !cmd.Valid() {
		return cmd, false
	}

	return cmd, true
}

// Valid reports whether c is one of the known commands.
func (c Command) Valid() bool {
	switch c {
	case CommandLock, CommandUnlock, CommandSimulateOn, CommandSimulateOff:
		return true
	default:
		return false
	}
}

// IsSimulation reports whether c targets the simulated sensor.
func (c Command) IsSimulation() bool {
	return c == CommandSimulateOn || c == CommandSimulateOff
}

// RelayTarget returns the relay state a lock/unlock command asks for.
// ok is false for commands that do not touch the relay.
func (c Command) RelayTarget() (active, ok bool) {
	switch c {
	case CommandLock:
		return false, true
	case CommandUnlock:
		return true, true
	default:
		return false, false
	}
}
