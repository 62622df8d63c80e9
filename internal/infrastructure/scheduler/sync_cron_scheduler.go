package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/infrastructure/config"
)

// tickerInterval is the resolution at which the scheduler checks whether a
// cycle is due
const tickerInterval = 1 * time.Minute

// CycleExecutor runs one scheduled sync cycle over the due integrations.
// The application layer provides the implementation.
type CycleExecutor interface {
	RunScheduledCycle(ctx context.Context) error
}

// SyncCronScheduler fires periodic sync cycles at the configured interval.
// It is a coarse scheduler: a cycle is started when at least the interval has
// elapsed since the previous start, checked once a minute.
type SyncCronScheduler struct {
	config   config.CronConfig
	executor CycleExecutor
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	lastRunAt *time.Time
	nextRunAt *time.Time
}

// NewSyncCronScheduler creates a new interval-based sync cycle scheduler
func NewSyncCronScheduler(cfg config.CronConfig, executor CycleExecutor, logger *zap.Logger) *SyncCronScheduler {
	return &SyncCronScheduler{
		config:   cfg,
		executor: executor,
		logger:   logger,
	}
}

// Start starts the scheduler loop. It returns immediately; cycles run on a
// background goroutine until Stop is called or the context is cancelled.
func (s *SyncCronScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Sync cron scheduler disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	next := time.Now().Add(s.config.Interval)
	s.mu.Lock()
	s.nextRunAt = &next
	s.mu.Unlock()

	s.logger.Info("Sync cron scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize),
		zap.Time("next_run_at", next),
	)

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Stop stops the scheduler and waits for an in-flight cycle to finish
func (s *SyncCronScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("Sync cron scheduler stopped")
}

// NextRunAt returns the scheduled time of the next cycle
func (s *SyncCronScheduler) NextRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}

// LastRunAt returns the start time of the most recent cycle
func (s *SyncCronScheduler) LastRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}

// run is the scheduler loop
func (s *SyncCronScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now) {
				continue
			}
			s.runCycle(ctx, now)
		}
	}
}

// shouldRun reports whether a cycle is due at the given instant
func (s *SyncCronScheduler) shouldRun(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt != nil && !now.Before(*s.nextRunAt)
}

// runCycle executes one cycle and advances the schedule
func (s *SyncCronScheduler) runCycle(ctx context.Context, startedAt time.Time) {
	next := startedAt.Add(s.config.Interval)
	s.mu.Lock()
	s.lastRunAt = &startedAt
	s.nextRunAt = &next
	s.mu.Unlock()

	s.logger.Info("Sync cycle starting", zap.Time("next_run_at", next))

	if err := s.executor.RunScheduledCycle(ctx); err != nil {
		s.logger.Error("Sync cycle failed", zap.Error(err))
		return
	}
	s.logger.Info("Sync cycle finished")
}
