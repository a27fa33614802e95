package export

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/reportgate/reportgate/pkg/logger"
)

// DefaultCleanupSchedule runs the expiry sweep at the top of every hour
const DefaultCleanupSchedule = "0 * * * *"

// cleanupTimeout bounds one sweep, mostly remote deletes
const cleanupTimeout = 5 * time.Minute

// Sweeper removes expired exports
type Sweeper interface {
	CleanupExpiredExports(ctx context.Context) (int, error)
}

// CleanupService runs the expiry sweep on a cron schedule
type CleanupService struct {
	sweeper  Sweeper
	cron     *cron.Cron
	schedule string
	entryID  cron.EntryID
	started  bool
	mu       sync.Mutex
}

// NewCleanupService creates a cleanup service. An empty schedule uses
// DefaultCleanupSchedule.
func NewCleanupService(sweeper Sweeper, schedule string) *CleanupService {
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}
	return &CleanupService{
		sweeper:  sweeper,
		cron:     cron.New(),
		schedule: schedule,
	}
}

// Start schedules the sweep and runs one immediately in the background
func (s *CleanupService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(s.schedule, s.cleanup)
	if err != nil {
		logger.Error("Failed to schedule export cleanup", zap.String("schedule", s.schedule), zap.Error(err))
		return err
	}
	s.entryID = entryID
	s.cron.Start()
	s.started = true

	logger.Info("Export cleanup service started", zap.String("schedule", s.schedule))

	go s.cleanup()
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *CleanupService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	logger.Info("Stopping export cleanup service")
	<-s.cron.Stop().Done()
	s.started = false
	logger.Info("Export cleanup service stopped")
}

// RunOnce performs one sweep synchronously
func (s *CleanupService) RunOnce(ctx context.Context) (int, error) {
	startTime := time.Now()
	removed, err := s.sweeper.CleanupExpiredExports(ctx)
	if err != nil {
		logger.Error("Failed to cleanup expired exports", zap.Error(err))
		return removed, err
	}
	logger.Info("Export cleanup completed",
		zap.Int("removed", removed),
		zap.Duration("duration", time.Since(startTime)),
	)
	return removed, nil
}

func (s *CleanupService) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}
