package connector

import "errors"

var (
	// Validation errors
	ErrInvalidOrganizationID = errors.New("connector: invalid organization ID")
	ErrInvalidPlatform       = errors.New("connector: invalid platform")
	ErrInvalidAccountID      = errors.New("connector: invalid platform account ID")
	ErrInvalidCredential     = errors.New("connector: invalid credential")
	ErrInvalidShopDomain     = errors.New("connector: invalid shop domain")
	ErrInvalidSyncKind       = errors.New("connector: invalid sync kind")

	// Lifecycle errors
	ErrIntegrationNotFound     = errors.New("connector: integration not found")
	ErrIntegrationExists       = errors.New("connector: integration already exists for this account")
	ErrInvalidStatusTransition = errors.New("connector: operation not allowed in current status")
	ErrIntegrationNotActive    = errors.New("connector: integration is not active")

	// Handshake errors
	ErrStateMalformed        = errors.New("connector: malformed state token")
	ErrStateInvalidSignature = errors.New("connector: invalid state token signature")
	ErrStateExpired          = errors.New("connector: state token expired")
	ErrStateReplayed         = errors.New("connector: state token already used")
	ErrShopMismatch          = errors.New("connector: callback shop does not match state token")
	ErrInvalidSignature      = errors.New("connector: invalid callback signature")
	ErrMissingScopes         = errors.New("connector: granted scopes are insufficient")

	// Upstream errors
	ErrUpstreamExhausted   = errors.New("connector: upstream retries exhausted")
	ErrUpstreamUnavailable = errors.New("connector: upstream temporarily unavailable")
	ErrCredentialRejected  = errors.New("connector: platform rejected the credential")
	ErrPermissionDenied    = errors.New("connector: credential lacks required permission")
	ErrAccountNotFound     = errors.New("connector: platform account not found")
	ErrAccountSuspended    = errors.New("connector: platform account is suspended")
	ErrPlatformRateLimited = errors.New("connector: platform rate limited the request")
	ErrTokenExchangeFailed = errors.New("connector: authorization code exchange failed")
	ErrTokenRefreshFailed  = errors.New("connector: token refresh failed")
	ErrInvalidShopResponse = errors.New("connector: invalid shop descriptor response")
	ErrWebhookSetupFailed  = errors.New("connector: webhook subscription setup failed")
)
