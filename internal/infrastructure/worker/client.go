package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/infrastructure/config"
)

// Client places sync work items on the durable queue
type Client struct {
	client *asynq.Client
	logger *zap.Logger
}

// NewClient creates a queue client from the redis configuration
func NewClient(cfg config.RedisConfig, logger *zap.Logger) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		logger: logger,
	}
}

// EnqueueSync enqueues a background sync for the integration. The work item
// survives process restarts; the worker pool picks it up.
func (c *Client) EnqueueSync(ctx context.Context, integrationID uuid.UUID, kind connector.SyncKind, window connector.OrderWindow) error {
	task, err := NewSyncTask(SyncTaskPayload{
		IntegrationID: integrationID,
		Kind:          kind,
		WindowStart:   window.Start,
		WindowEnd:     window.End,
	})
	if err != nil {
		return fmt.Errorf("worker: failed to build sync task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("worker: failed to enqueue sync task: %w", err)
	}

	c.logger.Info("Sync task enqueued",
		zap.String("integration_id", integrationID.String()),
		zap.String("kind", string(kind)),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}

// Close closes the underlying queue connection
func (c *Client) Close() error {
	return c.client.Close()
}

// Ensure Client implements the domain port
var _ connector.SyncEnqueuer = (*Client)(nil)
