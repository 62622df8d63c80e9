package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/infrastructure/persistence/models"
)

// GormWebhookEventRepository implements WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Save persists a webhook event
func (r *GormWebhookEventRepository) Save(ctx context.Context, event *connector.WebhookEvent) error {
	var model models.WebhookEventModel
	model.FromDomain(event)
	return r.db.WithContext(ctx).Save(&model).Error
}

// HealthByIntegration aggregates event statistics for one integration
func (r *GormWebhookEventRepository) HealthByIntegration(ctx context.Context, integrationID uuid.UUID) (*connector.WebhookHealth, error) {
	type statusCount struct {
		Status connector.WebhookEventStatus
		Count  int64
	}

	var counts []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.WebhookEventModel{}).
		Select("status, COUNT(*) as count").
		Where("integration_id = ?", integrationID).
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	// Received counts every stored event; processed and failed are the
	// terminal subsets.
	health := &connector.WebhookHealth{}
	for _, c := range counts {
		health.Received += c.Count
		switch c.Status {
		case connector.WebhookEventStatusProcessed:
			health.Processed = c.Count
		case connector.WebhookEventStatusFailed:
			health.Failed = c.Count
		}
	}

	var last models.WebhookEventModel
	err := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("received_at DESC").
		First(&last).Error
	if err == nil {
		health.LastReceivedAt = &last.ReceivedAt
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	return health, nil
}

// DeleteByIntegration removes all events owned by an integration
func (r *GormWebhookEventRepository) DeleteByIntegration(ctx context.Context, integrationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.WebhookEventModel{}, "integration_id = ?", integrationID).Error
}

// Ensure GormWebhookEventRepository implements the domain port
var _ connector.WebhookEventRepository = (*GormWebhookEventRepository)(nil)
