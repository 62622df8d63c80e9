package connector

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/syncbridge/backend/internal/domain/shared"
)

// SyncCompletion carries the merge-update written when a sync run finishes.
// Exactly one of Result or Error is set.
type SyncCompletion struct {
	Result *SyncResult
	Error  *SyncError
}

// IntegrationRepository is the persistence port for Integration aggregates
type IntegrationRepository interface {
	// FindByID finds a non-deleted integration by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Integration, error)

	// FindByAccount finds the non-deleted integration for the
	// (organization, platform, account) triple
	FindByAccount(ctx context.Context, organizationID uuid.UUID, platform Platform, platformAccountID string) (*Integration, error)

	// FindAll lists an organization's integrations with pagination
	FindAll(ctx context.Context, organizationID uuid.UUID, filter shared.Filter) ([]Integration, int64, error)

	// FindAllByAccount finds every non-deleted integration connected to a
	// platform account, across organizations. Used to attribute inbound
	// webhooks, which carry no organization context.
	FindAllByAccount(ctx context.Context, platform Platform, platformAccountID string) ([]Integration, error)

	// FindSyncCandidates returns the IDs of active integrations eligible for a
	// scheduled sync cycle, in stable creation order
	FindSyncCandidates(ctx context.Context, limit int) ([]uuid.UUID, error)

	// Save persists the aggregate with optimistic version checking
	Save(ctx context.Context, integ *Integration) error

	// Delete soft-deletes the integration and cascades removal of its
	// dependent webhook event records
	Delete(ctx context.Context, id uuid.UUID) error

	// AcquireSyncLock atomically claims the advisory sync lock. The claim
	// succeeds when the lock is free, or when the held lock is older than
	// staleAfter and is therefore treated as abandoned. Returns false without
	// side effects when another holder has a fresh claim.
	AcquireSyncLock(ctx context.Context, id uuid.UUID, owner string, staleAfter time.Duration) (bool, error)

	// CompleteSync clears the lock and merge-updates the sync outcome. On
	// success it advances last_sync_at and stores the result; on failure it
	// records the error. Neither path changes the lifecycle status.
	CompleteSync(ctx context.Context, id uuid.UUID, outcome SyncCompletion) error
}

// WebhookEventRepository is the persistence port for webhook event records
type WebhookEventRepository interface {
	// Save persists a webhook event
	Save(ctx context.Context, event *WebhookEvent) error

	// HealthByIntegration aggregates event statistics for one integration
	HealthByIntegration(ctx context.Context, integrationID uuid.UUID) (*WebhookHealth, error)

	// DeleteByIntegration removes all events owned by an integration
	DeleteByIntegration(ctx context.Context, integrationID uuid.UUID) error
}
