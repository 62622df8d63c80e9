package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/telemetry"
)

// defaultCandidateLimit caps how many integrations one cycle will consider
const defaultCandidateLimit = 1000

// CycleOptions configures one batch sync cycle
type CycleOptions struct {
	// IntegrationIDs restricts the cycle to specific integrations. When empty
	// the cycle runs over every eligible active integration.
	IntegrationIDs []uuid.UUID
	// Kind is the sync kind triggered for each item
	Kind connector.SyncKind
	// BatchSize is both the partition size and the per-batch parallelism.
	// Zero falls back to the configured default.
	BatchSize int
	// InterBatchDelay is the pause between consecutive batches
	InterBatchDelay time.Duration
	// DryRun counts the work without triggering anything
	DryRun bool
}

// CycleError records one failed item of a cycle
type CycleError struct {
	IntegrationID uuid.UUID `json:"integration_id"`
	Error         string    `json:"error"`
}

// CycleReport summarizes one batch sync cycle. Every considered integration
// lands in exactly one bucket: successful, failed or skipped.
type CycleReport struct {
	Total           int          `json:"total"`
	Successful      int          `json:"successful"`
	Failed          int          `json:"failed"`
	Skipped         int          `json:"skipped"`
	Errors          []CycleError `json:"errors,omitempty"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
}

// BatchServiceImpl fans a sync cycle out over the eligible integrations in
// fixed-size batches. Items inside a batch run concurrently; batches run in
// order with a configurable pause between them. One item's failure never
// affects its siblings.
type BatchServiceImpl struct {
	integrations connector.IntegrationRepository
	syncs        SyncTrigger
	cronConfig   config.CronConfig
	logger       *zap.Logger
}

// NewBatchService creates a new BatchServiceImpl
func NewBatchService(
	integrations connector.IntegrationRepository,
	syncs SyncTrigger,
	cronConfig config.CronConfig,
	logger *zap.Logger,
) *BatchServiceImpl {
	return &BatchServiceImpl{
		integrations: integrations,
		syncs:        syncs,
		cronConfig:   cronConfig,
		logger:       logger,
	}
}

// RunCycle executes one batch sync cycle and returns its report
func (s *BatchServiceImpl) RunCycle(ctx context.Context, opts CycleOptions) (report *CycleReport, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "batch", "run_cycle",
		attribute.String("sync_kind", string(opts.Kind)),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	startedAt := time.Now()

	if !opts.Kind.IsValid() {
		opts.Kind = connector.SyncKindIncremental
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = s.cronConfig.BatchSize
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	ids := opts.IntegrationIDs
	if len(ids) == 0 {
		var err error
		ids, err = s.integrations.FindSyncCandidates(ctx, defaultCandidateLimit)
		if err != nil {
			return nil, err
		}
	}

	report = &CycleReport{Total: len(ids)}
	var mu sync.Mutex

	for batchStart := 0; batchStart < len(ids); batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			// Cancelled mid-cycle: the untouched remainder counts as skipped
			// so the report buckets still add up.
			mu.Lock()
			report.Skipped += len(ids) - batchStart
			mu.Unlock()
			report.ExecutionTimeMs = time.Since(startedAt).Milliseconds()
			return report, err
		}

		batchEnd := batchStart + batchSize
		if batchEnd > len(ids) {
			batchEnd = len(ids)
		}

		var wg sync.WaitGroup
		for _, id := range ids[batchStart:batchEnd] {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				outcome := s.runItem(ctx, id, opts)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case outcome == nil:
					report.Successful++
				case outcome.skipped:
					report.Skipped++
				default:
					report.Failed++
					report.Errors = append(report.Errors, CycleError{
						IntegrationID: id,
						Error:         outcome.message,
					})
				}
			}(id)
		}
		wg.Wait()

		if batchEnd < len(ids) && opts.InterBatchDelay > 0 {
			select {
			case <-time.After(opts.InterBatchDelay):
			case <-ctx.Done():
			}
		}
	}

	report.ExecutionTimeMs = time.Since(startedAt).Milliseconds()
	telemetry.AddEvent(span, "cycle_completed",
		attribute.Int("total", report.Total),
		attribute.Int("successful", report.Successful),
		attribute.Int("failed", report.Failed),
		attribute.Int("skipped", report.Skipped),
	)
	s.logger.Info("Sync cycle report",
		zap.Int("total", report.Total),
		zap.Int("successful", report.Successful),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Int64("execution_time_ms", report.ExecutionTimeMs),
	)
	return report, nil
}

// RunScheduledCycle runs one cycle with the configured cron defaults. It is
// the entrypoint invoked by the interval scheduler.
func (s *BatchServiceImpl) RunScheduledCycle(ctx context.Context) error {
	_, err := s.RunCycle(ctx, CycleOptions{
		Kind:            connector.SyncKindIncremental,
		BatchSize:       s.cronConfig.BatchSize,
		InterBatchDelay: s.cronConfig.InterBatchDelay,
	})
	return err
}

// itemOutcome is the classified result of one cycle item. nil means success.
type itemOutcome struct {
	skipped bool
	message string
}

// runItem triggers one integration's sync, isolating panics so a single bad
// item cannot take the cycle down.
func (s *BatchServiceImpl) runItem(ctx context.Context, id uuid.UUID, opts CycleOptions) (outcome *itemOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Sync trigger panicked",
				zap.String("integration_id", id.String()),
				zap.Any("panic", r),
			)
			outcome = &itemOutcome{message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if opts.DryRun {
		return &itemOutcome{skipped: true, message: "dry run"}
	}

	result, err := s.syncs.Trigger(ctx, uuid.Nil, id, opts.Kind, "cron")
	if err != nil {
		return &itemOutcome{message: err.Error()}
	}
	if !result.Started {
		return &itemOutcome{skipped: true, message: result.Reason}
	}
	return nil
}
