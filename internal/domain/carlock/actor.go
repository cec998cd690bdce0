package carlock

import "fmt"

// Actor identifies who issued a command.
type Actor struct {
	// Hostname is the machine or remote address the command came from.
	Hostname string
	// Username is the user (or subsystem) that issued the command.
	Username string
}

// InterlockActor is recorded when the monitor locks the relay on detection.
var InterlockActor = &Actor{Hostname: "localhost", Username: "interlock"}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// String renders the actor as username@hostname.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return fmt.Sprintf("%s@%s", a.Username, a.Hostname)
}
