package carlock

import "time"

// Status is a point-in-time view of the sensor and the relay.
type Status struct {
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time
	// LastActor issued the last relay change, nil before the first one.
	LastActor *Actor
	// AlcoholDetected is the sensor reading (or the simulated flag).
	AlcoholDetected bool
	// RelayActive is true when the relay is energised, i.e. unlocked.
	RelayActive bool
	// Simulation reports whether the in-memory board is in use.
	Simulation bool
}

// Clone returns a copy of the status that shares no pointers.
func (s *Status) Clone() *Status {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.LastActor = s.LastActor.Clone()

	return &cloned
}

// Locked reports whether the ignition is locked.
func (s *Status) Locked() bool {
	return !s.RelayActive
}

// RelayState is the persisted record of the last relay change.
type RelayState struct {
	// Timestamp is when the relay was last changed.
	Timestamp time.Time
	// LastActor is who changed it.
	LastActor *Actor
	// Active is the requested relay state.
	Active bool
}

// Clone returns a copy of the relay state that shares no pointers.
func (s *RelayState) Clone() *RelayState {
	if s == nil {
		return nil
	}

	return &RelayState{
		Timestamp: s.Timestamp,
		LastActor: s.LastActor.Clone(),
		Active:    s.Active,
	}
}
