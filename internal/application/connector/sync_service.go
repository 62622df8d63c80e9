package connector

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/telemetry"
)

// webhookIngestPath is the route registered as the webhook delivery address
const webhookIngestPath = "/api/v1/webhooks/shopify"

// SyncServiceImpl coordinates sync runs: it claims the per-integration sync
// lock on the request path, enqueues the run on the durable queue, and
// executes it on the worker.
type SyncServiceImpl struct {
	integrations connector.IntegrationRepository
	adapter      connector.PlatformSyncAdapter
	gateway      connector.PlatformGateway
	enqueuer     connector.SyncEnqueuer
	syncConfig   config.SyncConfig
	baseURL      string
	logger       *zap.Logger
}

// NewSyncService creates a new SyncServiceImpl. baseURL is the externally
// reachable origin used to build the webhook delivery address.
func NewSyncService(
	integrations connector.IntegrationRepository,
	adapter connector.PlatformSyncAdapter,
	gateway connector.PlatformGateway,
	enqueuer connector.SyncEnqueuer,
	syncConfig config.SyncConfig,
	baseURL string,
	logger *zap.Logger,
) *SyncServiceImpl {
	return &SyncServiceImpl{
		integrations: integrations,
		adapter:      adapter,
		gateway:      gateway,
		enqueuer:     enqueuer,
		syncConfig:   syncConfig,
		baseURL:      baseURL,
		logger:       logger,
	}
}

// ---------------------------------------------------------------------------
// Trigger path
// ---------------------------------------------------------------------------

// Trigger starts a sync run for an integration. The advisory lock is claimed
// with a single atomic update; when another holder has a fresh claim the
// trigger reports a skip instead of failing. organizationID may be uuid.Nil
// for system callers (cron, worker), which bypasses the ownership check.
func (s *SyncServiceImpl) Trigger(ctx context.Context, organizationID, id uuid.UUID, kind connector.SyncKind, requestedBy string) (result *SyncTriggerResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "trigger",
		attribute.String("integration_id", id.String()),
		attribute.String("sync_kind", string(kind)),
		attribute.String("requested_by", requestedBy),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if !kind.IsValid() {
		return nil, connector.ErrInvalidSyncKind
	}

	integ, err := s.integrations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if organizationID != uuid.Nil && integ.OrganizationID != organizationID {
		return nil, connector.ErrIntegrationNotFound
	}
	if integ.Status != connector.StatusActive {
		return nil, connector.ErrIntegrationNotActive
	}

	acquired, err := s.integrations.AcquireSyncLock(ctx, id, requestedBy, s.syncConfig.StaleLockTimeout)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return &SyncTriggerResult{Started: false, Reason: "sync already in progress"}, nil
	}

	now := time.Now()
	start, end := integ.SyncWindow(kind, now, s.incrementalLookback(), s.initialLookback())
	window := connector.OrderWindow{Start: start, End: end}

	webhooks := s.ensureWebhooks(ctx, integ)

	if err := s.enqueuer.EnqueueSync(ctx, id, kind, window); err != nil {
		// The run never made it onto the queue; release the lock so the next
		// trigger is not blocked until the stale timeout.
		s.releaseLockOnFailure(ctx, id, "ENQUEUE_FAILED", err)
		return nil, err
	}

	s.logger.Info("Sync run enqueued",
		zap.String("integration_id", id.String()),
		zap.String("kind", string(kind)),
		zap.String("requested_by", requestedBy),
		zap.Time("window_start", start),
		zap.Time("window_end", end),
	)

	return &SyncTriggerResult{
		Started:     true,
		Kind:        kind,
		WindowStart: start,
		WindowEnd:   end,
		Webhooks:    webhooks,
	}, nil
}

// ---------------------------------------------------------------------------
// Worker path
// ---------------------------------------------------------------------------

// ExecuteSync runs a previously enqueued sync on the worker. The outcome is
// merge-updated onto the integration: success advances the sync watermark
// and restores active status, failure records the error for diagnostics.
// Upstream failures are terminal for the task because the
// platform client has already exhausted its transient retries.
func (s *SyncServiceImpl) ExecuteSync(ctx context.Context, integrationID uuid.UUID, kind connector.SyncKind, window connector.OrderWindow) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "execute",
		attribute.String("integration_id", integrationID.String()),
		attribute.String("sync_kind", string(kind)),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	integ, err := s.integrations.FindByID(ctx, integrationID)
	if err != nil {
		if errors.Is(err, connector.ErrIntegrationNotFound) {
			// Deleted while queued.
			s.logger.Warn("Dropping sync for missing integration",
				zap.String("integration_id", integrationID.String()))
			return nil
		}
		return err
	}

	result, err := s.adapter.SyncOrders(ctx, integ, window)
	if err != nil {
		s.logger.Error("Sync run failed",
			zap.String("integration_id", integrationID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return s.integrations.CompleteSync(ctx, integrationID, connector.SyncCompletion{
			Error: &connector.SyncError{
				Code:       classifySyncError(err),
				Message:    err.Error(),
				OccurredAt: time.Now(),
			},
		})
	}
	result.Kind = kind

	if err := s.integrations.CompleteSync(ctx, integrationID, connector.SyncCompletion{Result: result}); err != nil {
		return err
	}

	telemetry.AddEvent(span, "sync_completed", attribute.Int("orders_synced", result.OrdersSynced))
	s.logger.Info("Sync run completed",
		zap.String("integration_id", integrationID.String()),
		zap.String("kind", string(kind)),
		zap.Int("orders_synced", result.OrdersSynced),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// ensureWebhooks races webhook subscription setup against a short wait so a
// slow platform API cannot stall the trigger. When setup beats the deadline
// its outcome is returned for the trigger response; otherwise registration
// continues in the background and the response reports it as pending.
func (s *SyncServiceImpl) ensureWebhooks(ctx context.Context, integ *connector.Integration) *WebhookSetup {
	if s.gateway == nil || s.baseURL == "" {
		return nil
	}

	address := strings.TrimRight(s.baseURL, "/") + webhookIngestPath
	done := make(chan *WebhookSetup, 1)

	go func() {
		setupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*s.syncConfig.WebhookSetupWait)
		defer cancel()
		subs, err := s.gateway.RegisterWebhooks(setupCtx, integ.PlatformAccountID, integ.AccessToken, address)
		if err != nil {
			s.logger.Warn("Webhook registration failed",
				zap.String("integration_id", integ.ID.String()),
				zap.Error(err),
			)
			done <- &WebhookSetup{Completed: true, Error: err.Error()}
			return
		}
		done <- &WebhookSetup{Completed: true, Subscriptions: len(subs)}
	}()

	select {
	case setup := <-done:
		return setup
	case <-time.After(s.syncConfig.WebhookSetupWait):
		s.logger.Info("Webhook registration still pending, continuing",
			zap.String("integration_id", integ.ID.String()))
		return &WebhookSetup{Completed: false}
	case <-ctx.Done():
		return &WebhookSetup{Completed: false}
	}
}

// releaseLockOnFailure records a pre-run failure and clears the sync lock
func (s *SyncServiceImpl) releaseLockOnFailure(ctx context.Context, id uuid.UUID, code string, cause error) {
	err := s.integrations.CompleteSync(ctx, id, connector.SyncCompletion{
		Error: &connector.SyncError{
			Code:       code,
			Message:    cause.Error(),
			OccurredAt: time.Now(),
		},
	})
	if err != nil {
		s.logger.Error("Failed to release sync lock",
			zap.String("integration_id", id.String()),
			zap.Error(err),
		)
	}
}

func (s *SyncServiceImpl) incrementalLookback() time.Duration {
	return time.Duration(s.syncConfig.IncrementalLookbackDays) * 24 * time.Hour
}

func (s *SyncServiceImpl) initialLookback() time.Duration {
	return time.Duration(s.syncConfig.InitialLookbackDays) * 24 * time.Hour
}

// classifySyncError maps a sync failure onto a stable diagnostic code
func classifySyncError(err error) string {
	switch {
	case errors.Is(err, connector.ErrCredentialRejected):
		return "CREDENTIAL_REJECTED"
	case errors.Is(err, connector.ErrPermissionDenied):
		return "PERMISSION_DENIED"
	case errors.Is(err, connector.ErrAccountNotFound):
		return "ACCOUNT_NOT_FOUND"
	case errors.Is(err, connector.ErrAccountSuspended):
		return "ACCOUNT_SUSPENDED"
	case errors.Is(err, connector.ErrPlatformRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, connector.ErrUpstreamExhausted), errors.Is(err, connector.ErrUpstreamUnavailable):
		return "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "TIMEOUT"
	default:
		return "SYNC_FAILED"
	}
}

// Ensure SyncServiceImpl implements the trigger port used by the connect
// service and the batch orchestrator.
var _ SyncTrigger = (*SyncServiceImpl)(nil)
