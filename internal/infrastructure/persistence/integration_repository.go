package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/infrastructure/persistence/models"
)

// GormIntegrationRepository implements IntegrationRepository using GORM
type GormIntegrationRepository struct {
	db *gorm.DB
}

// NewGormIntegrationRepository creates a new GormIntegrationRepository
func NewGormIntegrationRepository(db *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

// FindByID finds a non-deleted integration by its ID
func (r *GormIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*connector.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, connector.ErrIntegrationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByAccount finds the non-deleted integration for the account triple
func (r *GormIntegrationRepository) FindByAccount(ctx context.Context, organizationID uuid.UUID, platform connector.Platform, platformAccountID string) (*connector.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND platform = ? AND platform_account_id = ?",
			organizationID, platform, platformAccountID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, connector.ErrIntegrationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists an organization's integrations with pagination
func (r *GormIntegrationRepository) FindAll(ctx context.Context, organizationID uuid.UUID, filter shared.Filter) ([]connector.Integration, int64, error) {
	filter.Normalize()

	query := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("organization_id = ?", organizationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.IntegrationModel
	if err := query.
		Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	integrations := make([]connector.Integration, 0, len(rows))
	for i := range rows {
		integrations = append(integrations, *rows[i].ToDomain())
	}
	return integrations, total, nil
}

// FindAllByAccount finds every non-deleted integration connected to a platform
// account, across organizations.
func (r *GormIntegrationRepository) FindAllByAccount(ctx context.Context, platform connector.Platform, platformAccountID string) ([]connector.Integration, error) {
	var rows []models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND platform_account_id = ?", platform, platformAccountID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	integrations := make([]connector.Integration, 0, len(rows))
	for i := range rows {
		integrations = append(integrations, *rows[i].ToDomain())
	}
	return integrations, nil
}

// FindSyncCandidates returns the IDs of active integrations eligible for a
// scheduled sync cycle, oldest first so no integration starves.
func (r *GormIntegrationRepository) FindSyncCandidates(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("status = ?", connector.StatusActive).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var ids []uuid.UUID
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save persists the aggregate. Existing rows are updated with an optimistic
// version check; a stale version returns a concurrency conflict.
func (r *GormIntegrationRepository) Save(ctx context.Context, integ *connector.Integration) error {
	var model models.IntegrationModel
	model.FromDomain(integ)

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("id = ?", integ.ID).
		Count(&count).Error; err != nil {
		return err
	}

	if count == 0 {
		return r.db.WithContext(ctx).Create(&model).Error
	}

	currentVersion := model.Version
	model.Version = currentVersion + 1
	result := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("id = ? AND version = ?", integ.ID, currentVersion).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	integ.Version = model.Version
	return nil
}

// Delete soft-deletes the integration and removes its webhook events in one
// transaction.
func (r *GormIntegrationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.IntegrationModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return connector.ErrIntegrationNotFound
		}
		return tx.Delete(&models.WebhookEventModel{}, "integration_id = ?", id).Error
	})
}

// AcquireSyncLock atomically claims the advisory sync lock with a single
// conditional UPDATE, so two concurrent triggers can never both win.
func (r *GormIntegrationRepository) AcquireSyncLock(ctx context.Context, id uuid.UUID, owner string, staleAfter time.Duration) (bool, error) {
	now := time.Now()
	staleBefore := now.Add(-staleAfter)

	result := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("id = ?", id).
		Where("sync_in_progress = ? OR sync_started_at IS NULL OR sync_started_at < ?",
			false, staleBefore).
		Updates(map[string]interface{}{
			"sync_in_progress": true,
			"sync_started_at":  now,
			"last_sync_by":     owner,
			"updated_at":       now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CompleteSync clears the lock and merge-updates the sync outcome
func (r *GormIntegrationRepository) CompleteSync(ctx context.Context, id uuid.UUID, outcome connector.SyncCompletion) error {
	now := time.Now()
	updates := map[string]interface{}{
		"sync_in_progress": false,
		"sync_started_at":  nil,
		"updated_at":       now,
	}

	if outcome.Result != nil {
		resultJSON, err := marshalJSON(outcome.Result)
		if err != nil {
			return err
		}
		updates["last_sync_at"] = outcome.Result.CompletedAt
		updates["last_sync_result"] = resultJSON
		updates["last_sync_error"] = nil
		// A completed sync proves the connection works.
		updates["status"] = connector.StatusActive.String()
	} else if outcome.Error != nil {
		errJSON, err := marshalJSON(outcome.Error)
		if err != nil {
			return err
		}
		updates["last_sync_error"] = errJSON
	}

	result := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return connector.ErrIntegrationNotFound
	}
	return nil
}

// marshalJSON serializes a sync outcome column value
func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Ensure GormIntegrationRepository implements the domain port
var _ connector.IntegrationRepository = (*GormIntegrationRepository)(nil)
