package worker

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/syncbridge/backend/internal/domain/connector"
)

// TypeIntegrationSync is the task type for a background integration sync
const TypeIntegrationSync = "connector:sync"

// SyncTaskPayload carries one sync work item through the durable queue
type SyncTaskPayload struct {
	IntegrationID uuid.UUID          `json:"integration_id"`
	Kind          connector.SyncKind `json:"kind"`
	WindowStart   time.Time          `json:"window_start"`
	WindowEnd     time.Time          `json:"window_end"`
}

// NewSyncTask builds the asynq task for a sync work item. Uniqueness over the
// window keeps a double-enqueued trigger from queuing duplicate work.
func NewSyncTask(payload SyncTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIntegrationSync, data,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Unique(time.Minute),
	), nil
}
