package hardware

import "sync"

// Simulator is an in-memory sensor and relay.
type Simulator struct {
	mu      sync.RWMutex
	alcohol bool
	relay   bool
}

// NewSimulator returns a simulator with a clear sensor and the given relay state.
func NewSimulator(relayActive bool) *Simulator {
	return &Simulator{relay: relayActive}
}

// Detected returns the simulated sensor flag.
func (s *Simulator) Detected() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.alcohol, nil
}

// SetAlcohol changes the simulated sensor flag.
func (s *Simulator) SetAlcohol(detected bool) {
	s.mu.Lock()
	s.alcohol = detected
	s.mu.Unlock()
}

// Set stores the relay state.
func (s *Simulator) Set(active bool) error {
	s.mu.Lock()
	s.relay = active
	s.mu.Unlock()

	return nil
}

// Active returns the stored relay state.
func (s *Simulator) Active() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.relay, nil
}
