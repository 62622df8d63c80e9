package connector

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/infrastructure/config"
)

func newBatchService(repo connector.IntegrationRepository, syncs SyncTrigger) *BatchServiceImpl {
	return NewBatchService(repo, syncs, config.CronConfig{BatchSize: 5}, zap.NewNop())
}

func makeIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func assertBucketsAddUp(t *testing.T, report *CycleReport) {
	t.Helper()
	assert.Equal(t, report.Total, report.Successful+report.Failed+report.Skipped,
		"every item must land in exactly one bucket")
}

func TestBatchService_RunCycle(t *testing.T) {
	ids := makeIDs(13)
	failing := ids[7]
	syncs := &stubSyncTrigger{behavior: func(id uuid.UUID) (*SyncTriggerResult, error) {
		if id == failing {
			return nil, connector.ErrIntegrationNotActive
		}
		return &SyncTriggerResult{Started: true}, nil
	}}

	service := newBatchService(newFakeIntegrationRepo(), syncs)
	report, err := service.RunCycle(context.Background(), CycleOptions{
		IntegrationIDs: ids,
		Kind:           connector.SyncKindIncremental,
		BatchSize:      5,
	})
	require.NoError(t, err)

	assert.Equal(t, 13, report.Total)
	assert.Equal(t, 12, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	assertBucketsAddUp(t, report)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, failing, report.Errors[0].IntegrationID)
	assert.Equal(t, 13, syncs.callCount())
}

func TestBatchService_RunCycle_BoundsParallelism(t *testing.T) {
	ids := makeIDs(13)
	var inFlight, peak atomic.Int32
	var mu sync.Mutex

	syncs := &stubSyncTrigger{behavior: func(id uuid.UUID) (*SyncTriggerResult, error) {
		current := inFlight.Add(1)
		mu.Lock()
		if current > peak.Load() {
			peak.Store(current)
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return &SyncTriggerResult{Started: true}, nil
	}}

	service := newBatchService(newFakeIntegrationRepo(), syncs)
	report, err := service.RunCycle(context.Background(), CycleOptions{
		IntegrationIDs: ids,
		BatchSize:      5,
	})
	require.NoError(t, err)

	assert.Equal(t, 13, report.Successful)
	assert.LessOrEqual(t, peak.Load(), int32(5), "parallelism is capped at the batch size")
}

func TestBatchService_RunCycle_SkipsLockedIntegrations(t *testing.T) {
	ids := makeIDs(4)
	locked := ids[2]
	syncs := &stubSyncTrigger{behavior: func(id uuid.UUID) (*SyncTriggerResult, error) {
		if id == locked {
			return &SyncTriggerResult{Started: false, Reason: "sync already in progress"}, nil
		}
		return &SyncTriggerResult{Started: true}, nil
	}}

	service := newBatchService(newFakeIntegrationRepo(), syncs)
	report, err := service.RunCycle(context.Background(), CycleOptions{IntegrationIDs: ids})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Successful)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Errors)
	assertBucketsAddUp(t, report)
}

func TestBatchService_RunCycle_DryRun(t *testing.T) {
	ids := makeIDs(6)
	syncs := &stubSyncTrigger{}

	service := newBatchService(newFakeIntegrationRepo(), syncs)
	report, err := service.RunCycle(context.Background(), CycleOptions{
		IntegrationIDs: ids,
		DryRun:         true,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 6, report.Skipped)
	assert.Zero(t, syncs.callCount(), "dry run must not trigger anything")
	assertBucketsAddUp(t, report)
}

func TestBatchService_RunCycle_IsolatesPanics(t *testing.T) {
	ids := makeIDs(3)
	syncs := &stubSyncTrigger{behavior: func(id uuid.UUID) (*SyncTriggerResult, error) {
		if id == ids[1] {
			panic("boom")
		}
		return &SyncTriggerResult{Started: true}, nil
	}}

	service := newBatchService(newFakeIntegrationRepo(), syncs)
	report, err := service.RunCycle(context.Background(), CycleOptions{IntegrationIDs: ids})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Successful)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Error, "panic")
	assertBucketsAddUp(t, report)
}

func TestBatchService_RunCycle_UsesCandidatesWhenUnspecified(t *testing.T) {
	integ := activeIntegration(t)
	repo := newFakeIntegrationRepo(integ)
	syncs := &stubSyncTrigger{}

	service := newBatchService(repo, syncs)
	report, err := service.RunCycle(context.Background(), CycleOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, []uuid.UUID{integ.ID}, syncs.calls)
}

func TestBatchService_RunCycle_EmptyCandidates(t *testing.T) {
	service := newBatchService(newFakeIntegrationRepo(), &stubSyncTrigger{})
	report, err := service.RunCycle(context.Background(), CycleOptions{})
	require.NoError(t, err)

	assert.Zero(t, report.Total)
	assertBucketsAddUp(t, report)
}

func TestBatchService_RunCycle_CancelledBetweenBatches(t *testing.T) {
	ids := makeIDs(10)
	ctx, cancel := context.WithCancel(context.Background())
	syncs := &stubSyncTrigger{behavior: func(id uuid.UUID) (*SyncTriggerResult, error) {
		cancel()
		return &SyncTriggerResult{Started: true}, nil
	}}

	service := newBatchService(newFakeIntegrationRepo(), syncs)
	report, err := service.RunCycle(ctx, CycleOptions{
		IntegrationIDs: ids,
		BatchSize:      2,
	})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 10, report.Total)
	assert.Equal(t, 2, report.Successful, "only the first batch ran")
	assert.Equal(t, 8, report.Skipped)
	assertBucketsAddUp(t, report)
}

func TestBatchService_RunScheduledCycle(t *testing.T) {
	integ := activeIntegration(t)
	repo := newFakeIntegrationRepo(integ)
	syncs := &stubSyncTrigger{}

	service := NewBatchService(repo, syncs, config.CronConfig{BatchSize: 5, InterBatchDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, service.RunScheduledCycle(context.Background()))
	assert.Equal(t, 1, syncs.callCount())
}
