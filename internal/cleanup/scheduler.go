package cleanup

import (
	"context"
	"time"

	"github.com/redmonkez12/agenda-api/internal/logging"
)

// Scheduler runs a sweep every interval, deleting records older than
// retention.
type Scheduler struct {
	service   *Service
	interval  time.Duration
	retention time.Duration
	logger    *logging.Logger
	now       func() time.Time
}

func NewScheduler(service *Service, interval, retention time.Duration, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		service:   service,
		interval:  interval,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled. A non-positive interval disables it.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("cleanup scheduler disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("cleanup scheduler started", "interval", s.interval.String(), "retention", s.retention.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cleanup scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep with the configured retention.
func (s *Scheduler) RunOnce(ctx context.Context) *Result {
	cutoff := s.now().Add(-s.retention)
	result, err := s.service.CleanupOldEntries(ctx, cutoff)
	if err != nil {
		s.logger.Error("scheduled cleanup failed", "error", err.Error())
		return nil
	}
	return result
}
