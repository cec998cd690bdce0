package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
	"github.com/oshokin/alco-lock/internal/hardware"
	"github.com/oshokin/alco-lock/internal/logger"
	"github.com/oshokin/alco-lock/internal/metrics"
	repo "github.com/oshokin/alco-lock/internal/repository/state"
)

// Notifier receives every status change, e.g. the MQTT bridge.
type Notifier interface {
	Publish(ctx context.Context, status *domain.Status) error
}

// service encapsulates the lock business logic on top of a hardware board.
// It is unexported to keep the transports decoupled from the implementation.
type service struct {
	// board is the sensor and relay pair, real or simulated.
	board *hardware.Board
	// repo persists relay changes; nil disables persistence.
	repo repo.Repository
	// clock stamps statuses and drives the monitor.
	clock clockwork.Clock
	// interlock refuses unlock and forces lock while alcohol is detected.
	interlock bool

	// mu serialises commands and monitor checks against each other.
	mu sync.Mutex
	// lastActor issued the last relay change.
	lastActor *domain.Actor
	// seq numbers the statuses handed to publish, in s.mu order.
	seq uint64

	// notifyMu protects the fields below.
	notifyMu sync.Mutex
	// notifier gets every published status; nil disables publishing.
	notifier Notifier
	// published is the last status the notifier accepted.
	published *domain.Status
	// attemptedSeq is the newest sequence number handed to the notifier.
	attemptedSeq uint64
	// publishFailing is set after a failed publish until the next success.
	publishFailing bool
}

// serviceOption customises newService.
type serviceOption func(*service)

// withRepository enables persistence of relay changes.
func withRepository(r repo.Repository) serviceOption {
	return func(s *service) {
		s.repo = r
	}
}

// withClock replaces the real clock, mostly for tests.
func withClock(c clockwork.Clock) serviceOption {
	return func(s *service) {
		s.clock = c
	}
}

// withInterlock toggles the alcohol interlock.
func withInterlock(enabled bool) serviceOption {
	return func(s *service) {
		s.interlock = enabled
	}
}

// newService creates a service on top of board and restores the persisted
// relay state when a repository is configured.
func newService(ctx context.Context, board *hardware.Board, options ...serviceOption) (*service, error) {
	s := &service{
		board: board,
		clock: clockwork.NewRealClock(),
	}

	for _, option := range options {
		option(s)
	}

	if s.repo == nil {
		return s, nil
	}

	state, err := s.repo.Load(ctx)
	switch {
	case err == nil:
		if state != nil {
			s.restore(ctx, state)
		}
	case errors.Is(err, repo.ErrNotFound):
		// Keep the initial relay state from the board.
	default:
		return nil, fmt.Errorf("load state: %w", err)
	}

	return s, nil
}

// restore re-applies a persisted relay state.
func (s *service) restore(ctx context.Context, state *domain.RelayState) {
	if err := s.board.Relay().Set(state.Active); err != nil {
		metrics.HardwareErrorsTotal.WithLabelValues(metrics.DeviceRelay, metrics.OperationWrite).Inc()
		logger.WarnKV(ctx, "Failed to restore relay state", "relay_active", state.Active, "error", err)

		return
	}

	s.lastActor = state.LastActor.Clone()

	logger.InfoKV(ctx, "Relay state restored",
		"relay_active", state.Active,
		"actor", state.LastActor.String(),
		"changed_at", state.Timestamp)
}

// setNotifier installs the notifier that receives status changes.
func (s *service) setNotifier(n Notifier) {
	s.notifyMu.Lock()
	s.notifier = n
	s.notifyMu.Unlock()
}

// Status reads the sensor and the relay. Read failures degrade to false.
func (s *service) Status(ctx context.Context) *domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot(ctx)
}

// Execute applies an operator command and returns the resulting status.
func (s *service) Execute(ctx context.Context, actor *domain.Actor, cmd domain.Command) (*domain.Status, error) {
	ctx = logger.WithKV(ctx, "command", string(cmd), "actor", actor.String())

	s.mu.Lock()
	status, err := s.execute(ctx, actor, cmd)
	seq := s.nextSeq()
	s.mu.Unlock()

	label := string(cmd)
	if !cmd.Valid() {
		label = "unknown"
	}

	switch {
	case err == nil:
		metrics.CommandsTotal.WithLabelValues(label, metrics.ResultOK).Inc()
	case errors.Is(err, domain.ErrUnknownCommand),
		errors.Is(err, domain.ErrNotSimulated),
		errors.Is(err, domain.ErrInterlocked):
		metrics.CommandsTotal.WithLabelValues(label, metrics.ResultRejected).Inc()
		logger.WarnKV(ctx, "Command rejected", "reason", err)

		return nil, err
	default:
		metrics.CommandsTotal.WithLabelValues(label, metrics.ResultError).Inc()

		return nil, err
	}

	s.publish(ctx, status, seq)

	return status, nil
}

// execute runs cmd with s.mu held.
func (s *service) execute(ctx context.Context, actor *domain.Actor, cmd domain.Command) (*domain.Status, error) {
	if !cmd.Valid() {
		return nil, fmt.Errorf("%q: %w", cmd, domain.ErrUnknownCommand)
	}

	if cmd.IsSimulation() {
		detected := cmd == domain.CommandSimulateOn
		if !s.board.SimulateAlcohol(detected) {
			return nil, domain.ErrNotSimulated
		}

		logger.InfoKV(ctx, "Simulated sensor changed", "alcohol_detected", detected)

		return s.snapshot(ctx), nil
	}

	active, _ := cmd.RelayTarget()

	if active && s.interlock && s.readSensor(ctx) {
		return nil, domain.ErrInterlocked
	}

	if err := s.setRelay(ctx, actor, active); err != nil {
		return nil, err
	}

	return s.snapshot(ctx), nil
}

// setRelay drives the relay and persists the change, with s.mu held.
// A relay write failure is logged and swallowed, leaving the actor and the
// persisted state untouched; a persistence failure is returned.
func (s *service) setRelay(ctx context.Context, actor *domain.Actor, active bool) error {
	if err := s.board.Relay().Set(active); err != nil {
		metrics.HardwareErrorsTotal.WithLabelValues(metrics.DeviceRelay, metrics.OperationWrite).Inc()
		logger.WarnKV(ctx, "Relay write failed", "relay_active", active, "error", err)

		return nil
	}

	s.lastActor = actor.Clone()

	if s.repo != nil {
		state := &domain.RelayState{
			Timestamp: s.clock.Now(),
			LastActor: actor.Clone(),
			Active:    active,
		}

		if err := s.repo.Save(ctx, state); err != nil {
			logger.ErrorKV(ctx, "Failed to persist relay state", "error", err)

			return fmt.Errorf("persist state: %w", err)
		}
	}

	logger.InfoKV(ctx, "Relay updated", "relay_active", active)

	return nil
}

// snapshot builds a status with s.mu held and refreshes the gauges.
func (s *service) snapshot(ctx context.Context) *domain.Status {
	status := &domain.Status{
		Timestamp:       s.clock.Now(),
		LastActor:       s.lastActor.Clone(),
		AlcoholDetected: s.readSensor(ctx),
		RelayActive:     s.readRelay(ctx),
		Simulation:      s.board.Simulated(),
	}

	metrics.ObserveStatus(status.AlcoholDetected, status.RelayActive, status.Simulation)

	return status
}

// readSensor returns the sensor reading, or false when the read fails.
func (s *service) readSensor(ctx context.Context) bool {
	detected, err := s.board.Sensor().Detected()
	if err != nil {
		metrics.HardwareErrorsTotal.WithLabelValues(metrics.DeviceSensor, metrics.OperationRead).Inc()
		logger.WarnKV(ctx, "Sensor read failed", "error", err)

		return false
	}

	return detected
}

// readRelay returns the relay output, or false when the read fails.
func (s *service) readRelay(ctx context.Context) bool {
	active, err := s.board.Relay().Active()
	if err != nil {
		metrics.HardwareErrorsTotal.WithLabelValues(metrics.DeviceRelay, metrics.OperationRead).Inc()
		logger.WarnKV(ctx, "Relay read failed", "error", err)

		return false
	}

	return active
}

// nextSeq returns the sequence number of the next published status, with s.mu held.
func (s *service) nextSeq() uint64 {
	s.seq++

	return s.seq
}

// publish hands status to the notifier, if any. Statuses older than one
// already handed over are dropped. A failed publish leaves published as it
// was, so the monitor retries on its next sample.
func (s *service) publish(ctx context.Context, status *domain.Status, seq uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if s.notifier == nil {
		return
	}

	if seq <= s.attemptedSeq {
		logger.DebugKV(ctx, "Dropping stale status", "seq", seq, "newest", s.attemptedSeq)

		return
	}

	s.attemptedSeq = seq

	if err := s.notifier.Publish(ctx, status); err != nil {
		if s.publishFailing {
			logger.DebugKV(ctx, "Failed to publish status", "error", err)
		} else {
			logger.WarnKV(ctx, "Failed to publish status, retrying on the next sample", "error", err)
		}

		s.publishFailing = true

		return
	}

	if s.publishFailing {
		logger.Info(ctx, "Status publishing recovered")
	}

	s.publishFailing = false
	s.published = status.Clone()
}

// changedSincePublish reports whether status differs from the last published one.
func (s *service) changedSincePublish(status *domain.Status) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	return s.published == nil ||
		s.published.AlcoholDetected != status.AlcoholDetected ||
		s.published.RelayActive != status.RelayActive
}
