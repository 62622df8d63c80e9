package connector

import (
	"time"

	"github.com/google/uuid"

	"github.com/syncbridge/backend/internal/domain/connector"
)

// ConnectRedirect is the result of starting an OAuth handshake
type ConnectRedirect struct {
	// AuthorizeURL is the platform consent page the browser is sent to
	AuthorizeURL string `json:"authorize_url"`
	// State is the signed handshake token embedded in the URL
	State string `json:"state"`
}

// CallbackInput carries the query parameters of an OAuth callback request
type CallbackInput struct {
	// Params holds every query parameter, used for signature verification
	Params map[string]string
	// Shop is the platform account domain reported by the callback
	Shop string
	// Code is the authorization code to exchange
	Code string
	// State is the handshake state token issued at connect time
	State string
	// HMAC is the hex signature provided by the platform
	HMAC string
}

// TokenConnectInput carries a private app token connection request
type TokenConnectInput struct {
	OrganizationID uuid.UUID
	ShopDomain     string
	AccessToken    string
}

// TokenConnectResult is the outcome of a private token connection. A scope
// shortfall on this path is a warning, not a failure.
type TokenConnectResult struct {
	Integration   *connector.Integration
	MissingScopes []string
}

// SyncTriggerResult reports whether a sync trigger started a run
type SyncTriggerResult struct {
	Started     bool               `json:"started"`
	Reason      string             `json:"reason,omitempty"`
	Kind        connector.SyncKind `json:"kind,omitempty"`
	WindowStart time.Time          `json:"window_start,omitempty"`
	WindowEnd   time.Time          `json:"window_end,omitempty"`
	Webhooks    *WebhookSetup      `json:"webhooks,omitempty"`
}

// WebhookSetup reports how webhook subscription setup fared inside the
// trigger's bounded wait. A pending setup keeps running in the background.
type WebhookSetup struct {
	Completed     bool   `json:"completed"`
	Subscriptions int    `json:"subscriptions,omitempty"`
	Error         string `json:"error,omitempty"`
}

// IntegrationHealth aggregates connection and delivery health for one
// integration.
type IntegrationHealth struct {
	IntegrationID  uuid.UUID                `json:"integration_id"`
	Status         connector.Status         `json:"status"`
	SyncInProgress bool                     `json:"sync_in_progress"`
	LastSyncAt     *time.Time               `json:"last_sync_at,omitempty"`
	LastSyncResult *connector.SyncResult    `json:"last_sync_result,omitempty"`
	LastSyncError  *connector.SyncError     `json:"last_sync_error,omitempty"`
	MissingScopes  []string                 `json:"missing_scopes,omitempty"`
	TokenExpiresAt *time.Time               `json:"token_expires_at,omitempty"`
	Webhooks       *connector.WebhookHealth `json:"webhooks,omitempty"`
}
