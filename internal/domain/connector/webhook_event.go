package connector

import (
	"time"

	"github.com/google/uuid"

	"github.com/syncbridge/backend/internal/domain/shared"
)

// WebhookEventStatus represents the processing status of an inbound event
type WebhookEventStatus string

const (
	// WebhookEventStatusReceived indicates the event is stored, not yet processed
	WebhookEventStatusReceived WebhookEventStatus = "received"
	// WebhookEventStatusProcessed indicates the processing pipeline succeeded
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	// WebhookEventStatusFailed indicates the processing pipeline failed
	WebhookEventStatusFailed WebhookEventStatus = "failed"
)

// IsValid returns true if the status is valid
func (s WebhookEventStatus) IsValid() bool {
	switch s {
	case WebhookEventStatusReceived, WebhookEventStatusProcessed, WebhookEventStatusFailed:
		return true
	default:
		return false
	}
}

// WebhookEvent records a verified inbound platform event. Events are created
// on receipt and moved to a terminal status by the processing pipeline; this
// domain consumes them only for health statistics.
type WebhookEvent struct {
	shared.BaseEntity

	IntegrationID uuid.UUID
	Topic         string
	Status        WebhookEventStatus
	ReceivedAt    time.Time
	ProcessedAt   *time.Time
	Error         string
}

// NewWebhookEvent creates an event in received status
func NewWebhookEvent(integrationID uuid.UUID, topic string) *WebhookEvent {
	now := time.Now()
	return &WebhookEvent{
		BaseEntity:    shared.NewBaseEntity(),
		IntegrationID: integrationID,
		Topic:         topic,
		Status:        WebhookEventStatusReceived,
		ReceivedAt:    now,
	}
}

// WebhookHealth aggregates per-integration event statistics for the health
// endpoint.
type WebhookHealth struct {
	Received       int64      `json:"received"`
	Processed      int64      `json:"processed"`
	Failed         int64      `json:"failed"`
	LastReceivedAt *time.Time `json:"last_received_at,omitempty"`
}
