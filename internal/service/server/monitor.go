package server

import (
	"context"
	"time"

	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
	"github.com/oshokin/alco-lock/internal/logger"
	"github.com/oshokin/alco-lock/internal/metrics"
)

// watch samples the sensor every interval until ctx is canceled.
func (s *service) watch(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	logger.InfoKV(ctx, "Monitor started", "interval", interval.String(), "interlock", s.interlock)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Monitor stopped")
			return
		case <-ticker.Chan():
			s.check(ctx)
		}
	}
}

// check takes one sample. With the interlock enabled an unlocked relay is
// locked as soon as alcohol is detected. Changes are published.
func (s *service) check(ctx context.Context) {
	s.mu.Lock()

	status := s.snapshot(ctx)

	if s.interlock && status.AlcoholDetected && status.RelayActive {
		metrics.InterlockTripsTotal.Inc()
		logger.Warn(ctx, "Alcohol detected, interlock is locking the relay")

		if err := s.setRelay(ctx, domain.InterlockActor, false); err != nil {
			logger.ErrorKV(ctx, "Interlock lock failed", "error", err)
		}

		status = s.snapshot(ctx)
	}

	seq := s.nextSeq()
	s.mu.Unlock()

	if s.changedSincePublish(status) {
		s.publish(ctx, status, seq)
	}
}
