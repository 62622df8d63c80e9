package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/syncbridge/backend/internal/domain/connector"
)

// IntegrationModel is the persistence model for the Integration aggregate.
// Rows are soft-deleted; the account uniqueness rule only considers rows with
// a null deleted_at, so it is enforced in the repository rather than with a
// unique index.
type IntegrationModel struct {
	AggregateModel
	DeletedAt gorm.DeletedAt `gorm:"index"`

	OrganizationID    uuid.UUID          `gorm:"type:uuid;not null;index:idx_integrations_org,priority:1;index:idx_integrations_account,priority:1"`
	Platform          connector.Platform `gorm:"type:varchar(20);not null;index:idx_integrations_account,priority:2"`
	PlatformAccountID string             `gorm:"type:varchar(100);not null;index:idx_integrations_account,priority:3"`
	AccountName       string             `gorm:"type:varchar(255)"`

	AccessToken    string     `gorm:"type:text;not null"`
	RefreshToken   string     `gorm:"type:text"`
	TokenExpiresAt *time.Time ``

	Status connector.Status `gorm:"type:varchar(20);not null;index"`

	GrantedScopesJSON string `gorm:"type:jsonb;column:granted_scopes"`
	MissingScopesJSON string `gorm:"type:jsonb;column:missing_scopes"`

	SyncInProgress bool       `gorm:"not null;default:false"`
	SyncStartedAt  *time.Time ``
	LastSyncBy     string     `gorm:"type:varchar(100)"`

	LastSyncAt         *time.Time `gorm:"index"`
	LastSyncResultJSON string     `gorm:"type:jsonb;column:last_sync_result"`
	LastSyncErrorJSON  string     `gorm:"type:jsonb;column:last_sync_error"`
}

// TableName returns the table name for GORM
func (IntegrationModel) TableName() string {
	return "integrations"
}

// ToDomain converts the persistence model to a domain Integration aggregate
func (m *IntegrationModel) ToDomain() *connector.Integration {
	integ := &connector.Integration{
		OrganizationID:    m.OrganizationID,
		Platform:          m.Platform,
		PlatformAccountID: m.PlatformAccountID,
		AccountName:       m.AccountName,
		AccessToken:       m.AccessToken,
		RefreshToken:      m.RefreshToken,
		TokenExpiresAt:    m.TokenExpiresAt,
		Status:            m.Status,
		SyncInProgress:    m.SyncInProgress,
		SyncStartedAt:     m.SyncStartedAt,
		LastSyncBy:        m.LastSyncBy,
		LastSyncAt:        m.LastSyncAt,
	}
	integ.ID = m.ID
	integ.CreatedAt = m.CreatedAt
	integ.UpdatedAt = m.UpdatedAt
	integ.Version = m.Version

	if m.GrantedScopesJSON != "" {
		var scopes []string
		if err := json.Unmarshal([]byte(m.GrantedScopesJSON), &scopes); err == nil {
			integ.GrantedScopes = scopes
		}
	}
	if m.MissingScopesJSON != "" {
		var scopes []string
		if err := json.Unmarshal([]byte(m.MissingScopesJSON), &scopes); err == nil {
			integ.MissingScopes = scopes
		}
	}
	if m.LastSyncResultJSON != "" {
		var result connector.SyncResult
		if err := json.Unmarshal([]byte(m.LastSyncResultJSON), &result); err == nil {
			integ.LastSyncResult = &result
		}
	}
	if m.LastSyncErrorJSON != "" {
		var syncErr connector.SyncError
		if err := json.Unmarshal([]byte(m.LastSyncErrorJSON), &syncErr); err == nil {
			integ.LastSyncError = &syncErr
		}
	}

	return integ
}

// FromDomain populates the persistence model from a domain Integration
func (m *IntegrationModel) FromDomain(integ *connector.Integration) {
	m.setAggregate(integ.BaseAggregateRoot)
	m.OrganizationID = integ.OrganizationID
	m.Platform = integ.Platform
	m.PlatformAccountID = integ.PlatformAccountID
	m.AccountName = integ.AccountName
	m.AccessToken = integ.AccessToken
	m.RefreshToken = integ.RefreshToken
	m.TokenExpiresAt = integ.TokenExpiresAt
	m.Status = integ.Status
	m.SyncInProgress = integ.SyncInProgress
	m.SyncStartedAt = integ.SyncStartedAt
	m.LastSyncBy = integ.LastSyncBy
	m.LastSyncAt = integ.LastSyncAt

	m.GrantedScopesJSON = marshalOrEmpty(integ.GrantedScopes)
	m.MissingScopesJSON = marshalOrEmpty(integ.MissingScopes)
	if integ.LastSyncResult != nil {
		m.LastSyncResultJSON = marshalOrEmpty(integ.LastSyncResult)
	}
	if integ.LastSyncError != nil {
		m.LastSyncErrorJSON = marshalOrEmpty(integ.LastSyncError)
	}
}

// marshalOrEmpty marshals v to JSON, returning "" on failure or nil input
func marshalOrEmpty(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// WebhookEventModel is the persistence model for inbound platform events
type WebhookEventModel struct {
	BaseModel
	IntegrationID uuid.UUID                    `gorm:"type:uuid;not null;index:idx_webhook_events_integration,priority:1"`
	Topic         string                       `gorm:"type:varchar(100);not null"`
	Status        connector.WebhookEventStatus `gorm:"type:varchar(20);not null;index"`
	ReceivedAt    time.Time                    `gorm:"not null;index"`
	ProcessedAt   *time.Time                   ``
	Error         string                       `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent
func (m *WebhookEventModel) ToDomain() *connector.WebhookEvent {
	event := &connector.WebhookEvent{
		IntegrationID: m.IntegrationID,
		Topic:         m.Topic,
		Status:        m.Status,
		ReceivedAt:    m.ReceivedAt,
		ProcessedAt:   m.ProcessedAt,
		Error:         m.Error,
	}
	event.BaseEntity = m.entity()
	return event
}

// FromDomain populates the persistence model from a domain WebhookEvent
func (m *WebhookEventModel) FromDomain(event *connector.WebhookEvent) {
	m.setEntity(event.BaseEntity)
	m.IntegrationID = event.IntegrationID
	m.Topic = event.Topic
	m.Status = event.Status
	m.ReceivedAt = event.ReceivedAt
	m.ProcessedAt = event.ProcessedAt
	m.Error = event.Error
}
