package dto

import (
	"time"

	"github.com/syncbridge/backend/internal/domain/connector"
)

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// ConnectRequest starts the OAuth connect flow for a shop
type ConnectRequest struct {
	Shop string `form:"shop" binding:"required,max=255"`
}

// TokenConnectRequest connects a shop with a private app access token
type TokenConnectRequest struct {
	ShopDomain  string `json:"shop_domain" binding:"required,max=255"`
	AccessToken string `json:"access_token" binding:"required,min=36"`
}

// SyncTriggerRequest requests a manual sync run
type SyncTriggerRequest struct {
	Kind string `json:"kind" binding:"omitempty,oneof=incremental full"`
}

// CycleRequest requests a batched sync cycle across integrations
type CycleRequest struct {
	IntegrationIDs  []string `json:"integration_ids" binding:"omitempty,dive,uuid"`
	Kind            string   `json:"kind" binding:"omitempty,oneof=incremental full"`
	BatchSize       int      `json:"batch_size" binding:"omitempty,min=1,max=100"`
	InterBatchDelay int      `json:"inter_batch_delay_ms" binding:"omitempty,min=0,max=60000"`
	DryRun          bool     `json:"dry_run"`
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// ConnectRedirectResponse carries the platform authorize URL to redirect to
type ConnectRedirectResponse struct {
	AuthorizeURL string `json:"authorize_url"`
	State        string `json:"state"`
}

// IntegrationResponse is the API representation of an integration
type IntegrationResponse struct {
	ID                string                `json:"id"`
	OrganizationID    string                `json:"organization_id"`
	Platform          string                `json:"platform"`
	PlatformAccountID string                `json:"platform_account_id"`
	AccountName       string                `json:"account_name,omitempty"`
	Status            string                `json:"status"`
	GrantedScopes     []string              `json:"granted_scopes,omitempty"`
	MissingScopes     []string              `json:"missing_scopes,omitempty"`
	SyncInProgress    bool                  `json:"sync_in_progress"`
	LastSyncAt        *time.Time            `json:"last_sync_at,omitempty"`
	LastSyncResult    *connector.SyncResult `json:"last_sync_result,omitempty"`
	LastSyncError     *connector.SyncError  `json:"last_sync_error,omitempty"`
	TokenExpiresAt    *time.Time            `json:"token_expires_at,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// ToIntegrationResponse converts a domain integration to its API shape.
// Credentials never leave the domain layer.
func ToIntegrationResponse(integ *connector.Integration) IntegrationResponse {
	return IntegrationResponse{
		ID:                integ.ID.String(),
		OrganizationID:    integ.OrganizationID.String(),
		Platform:          integ.Platform.String(),
		PlatformAccountID: integ.PlatformAccountID,
		AccountName:       integ.AccountName,
		Status:            integ.Status.String(),
		GrantedScopes:     integ.GrantedScopes,
		MissingScopes:     integ.MissingScopes,
		SyncInProgress:    integ.SyncInProgress,
		LastSyncAt:        integ.LastSyncAt,
		LastSyncResult:    integ.LastSyncResult,
		LastSyncError:     integ.LastSyncError,
		TokenExpiresAt:    integ.TokenExpiresAt,
		CreatedAt:         integ.CreatedAt,
		UpdatedAt:         integ.UpdatedAt,
	}
}

// ToIntegrationResponses converts a slice of domain integrations
func ToIntegrationResponses(items []connector.Integration) []IntegrationResponse {
	out := make([]IntegrationResponse, 0, len(items))
	for i := range items {
		out = append(out, ToIntegrationResponse(&items[i]))
	}
	return out
}

// TokenConnectResponse is returned by the private-token connect endpoint
type TokenConnectResponse struct {
	Integration   IntegrationResponse `json:"integration"`
	MissingScopes []string            `json:"missing_scopes,omitempty"`
}

// SyncTriggerResponse reports the outcome of a manual sync trigger
type SyncTriggerResponse struct {
	Started     bool                  `json:"started"`
	Reason      string                `json:"reason,omitempty"`
	Kind        string                `json:"kind,omitempty"`
	WindowStart *time.Time            `json:"window_start,omitempty"`
	WindowEnd   *time.Time            `json:"window_end,omitempty"`
	Webhooks    *WebhookSetupResponse `json:"webhooks,omitempty"`
}

// WebhookSetupResponse reports webhook subscription setup on a sync trigger.
// completed=false means setup was still running when the trigger returned.
type WebhookSetupResponse struct {
	Completed     bool   `json:"completed"`
	Subscriptions int    `json:"subscriptions,omitempty"`
	Error         string `json:"error,omitempty"`
}

// IntegrationHealthResponse summarizes the connection health of an integration
type IntegrationHealthResponse struct {
	IntegrationID  string                   `json:"integration_id"`
	Status         string                   `json:"status"`
	SyncInProgress bool                     `json:"sync_in_progress"`
	LastSyncAt     *time.Time               `json:"last_sync_at,omitempty"`
	LastSyncResult *connector.SyncResult    `json:"last_sync_result,omitempty"`
	LastSyncError  *connector.SyncError     `json:"last_sync_error,omitempty"`
	MissingScopes  []string                 `json:"missing_scopes,omitempty"`
	TokenExpiresAt *time.Time               `json:"token_expires_at,omitempty"`
	Webhooks       *connector.WebhookHealth `json:"webhooks,omitempty"`
}

// CycleReportResponse reports the outcome of a batched sync cycle
type CycleReportResponse struct {
	Total           int                  `json:"total"`
	Successful      int                  `json:"successful"`
	Failed          int                  `json:"failed"`
	Skipped         int                  `json:"skipped"`
	Errors          []CycleErrorResponse `json:"errors,omitempty"`
	ExecutionTimeMs int64                `json:"execution_time_ms"`
}

// CycleErrorResponse is a per-integration failure within a cycle
type CycleErrorResponse struct {
	IntegrationID string `json:"integration_id"`
	Error         string `json:"error"`
}
