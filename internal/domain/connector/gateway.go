package connector

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// ShopDescriptor describes the connected platform account
type ShopDescriptor struct {
	// Domain is the normalized account domain on the platform
	Domain string `json:"domain"`
	// Name is the account's display name
	Name string `json:"name"`
	// Email is the account owner's contact email
	Email string `json:"email"`
	// Currency is the account's primary currency code
	Currency string `json:"currency"`
	// Timezone is the account's IANA timezone
	Timezone string `json:"timezone"`
	// PlanName is the platform subscription plan
	PlanName string `json:"plan_name"`
}

// OAuthToken is the result of an authorization code exchange
type OAuthToken struct {
	AccessToken string
	Scopes      []string
	ExpiresAt   *time.Time
}

// OrderWindow bounds the time range covered by a sync run
type OrderWindow struct {
	Start time.Time
	End   time.Time
}

// PlatformOrder is a single order pulled during data sync. Only the fields
// the analytics pipeline consumes are carried.
type PlatformOrder struct {
	PlatformOrderID string
	TotalAmount     decimal.Decimal
	Currency        string
	FinancialStatus string
	CreatedAt       time.Time
}

// WebhookSubscription describes a registered platform webhook
type WebhookSubscription struct {
	ID      string `json:"id"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
}

// StateClaims are the verified contents of a decoded handshake state token
type StateClaims struct {
	OrganizationID uuid.UUID
	Platform       Platform
	Nonce          string
	IssuedAt       time.Time
}

// ---------------------------------------------------------------------------
// Port Interfaces
// ---------------------------------------------------------------------------

// PlatformGateway is the port for connection-establishing calls against the
// platform API. Concrete adapters live in the infrastructure layer.
type PlatformGateway interface {
	// ExchangeAuthCode exchanges an OAuth authorization code for a token
	ExchangeAuthCode(ctx context.Context, shopDomain, code string) (*OAuthToken, error)

	// FetchShop retrieves the account descriptor for a credential, live-testing
	// it in the process
	FetchShop(ctx context.Context, shopDomain, accessToken string) (*ShopDescriptor, error)

	// FetchGrantedScopes lists the permission scopes granted to a credential
	FetchGrantedScopes(ctx context.Context, shopDomain, accessToken string) ([]string, error)

	// RegisterWebhooks subscribes the given callback address to the platform's
	// event topics, returning the created subscriptions
	RegisterWebhooks(ctx context.Context, shopDomain, accessToken, address string) ([]WebhookSubscription, error)

	// RefreshToken exchanges a refresh token for a new credential
	RefreshToken(ctx context.Context, shopDomain, refreshToken string) (*OAuthToken, error)
}

// PlatformSyncAdapter is the port for the historical/incremental data sync
// itself. It runs on the background worker, never on the request path.
type PlatformSyncAdapter interface {
	// SyncOrders pulls all orders inside the window and hands them to the
	// analytics pipeline, returning the run's result
	SyncOrders(ctx context.Context, integ *Integration, window OrderWindow) (*SyncResult, error)
}

// StateTokenCodec issues and validates signed handshake state tokens
type StateTokenCodec interface {
	// Encode creates a signed, url-safe state token
	Encode(organizationID uuid.UUID, platform Platform, nonce string) (string, error)

	// Decode validates a state token's structure, signature and age
	Decode(token string) (*StateClaims, error)
}

// CallbackVerifier verifies the authenticity of inbound callbacks and webhooks
type CallbackVerifier interface {
	// VerifyCallback checks the HMAC over the canonicalized query parameters
	VerifyCallback(params map[string]string, providedHex string) bool

	// VerifyWebhookBody checks the HMAC over a raw webhook body
	VerifyWebhookBody(body []byte, providedBase64 string) bool
}

// NonceGuard enforces single use of handshake nonces across instances
type NonceGuard interface {
	// Use atomically consumes a nonce; it returns false when the nonce was
	// already consumed
	Use(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// SyncEnqueuer places sync work items on the durable work queue
type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, integrationID uuid.UUID, kind SyncKind, window OrderWindow) error
}
