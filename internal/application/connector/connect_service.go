package connector

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/shopify"
	"github.com/syncbridge/backend/internal/infrastructure/telemetry"
)

// callbackPath is the route the platform redirects back to after consent
const callbackPath = "/api/v1/integrations/shopify/callback"

// AuthorizeURLBuilder builds the platform consent URL for a handshake
type AuthorizeURLBuilder interface {
	AuthorizeURL(shopName, state, redirectURI string) string
}

// SyncTrigger starts a sync run for an integration. The connect service uses
// it to kick the first historical sync after activation.
type SyncTrigger interface {
	Trigger(ctx context.Context, organizationID, id uuid.UUID, kind connector.SyncKind, requestedBy string) (*SyncTriggerResult, error)
}

// ConnectServiceImpl manages the integration lifecycle: establishing
// connections over OAuth or a private token, toggling, refreshing, listing
// and removing them.
type ConnectServiceImpl struct {
	integrations  connector.IntegrationRepository
	webhookEvents connector.WebhookEventRepository
	gateway       connector.PlatformGateway
	urls          AuthorizeURLBuilder
	codec         connector.StateTokenCodec
	verifier      connector.CallbackVerifier
	nonces        connector.NonceGuard
	syncs         SyncTrigger
	config        config.ShopifyConfig
	logger        *zap.Logger
}

// NewConnectService creates a new ConnectServiceImpl
func NewConnectService(
	integrations connector.IntegrationRepository,
	webhookEvents connector.WebhookEventRepository,
	gateway connector.PlatformGateway,
	urls AuthorizeURLBuilder,
	codec connector.StateTokenCodec,
	verifier connector.CallbackVerifier,
	nonces connector.NonceGuard,
	syncs SyncTrigger,
	cfg config.ShopifyConfig,
	logger *zap.Logger,
) *ConnectServiceImpl {
	return &ConnectServiceImpl{
		integrations:  integrations,
		webhookEvents: webhookEvents,
		gateway:       gateway,
		urls:          urls,
		codec:         codec,
		verifier:      verifier,
		nonces:        nonces,
		syncs:         syncs,
		config:        cfg,
		logger:        logger,
	}
}

// ---------------------------------------------------------------------------
// OAuth flow
// ---------------------------------------------------------------------------

// BeginOAuth starts the OAuth handshake for a store. It normalizes the store
// input, records the handshake as a pending integration, issues a signed
// single-use state token and returns the consent URL the browser should be
// redirected to. A live integration for the same account is a conflict.
func (s *ConnectServiceImpl) BeginOAuth(ctx context.Context, organizationID uuid.UUID, shopInput string) (redirect *ConnectRedirect, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "connect", "begin_oauth",
		attribute.String("organization_id", organizationID.String()),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if organizationID == uuid.Nil {
		return nil, connector.ErrInvalidOrganizationID
	}

	shopName, err := shopify.NormalizeShopDomain(shopInput)
	if err != nil {
		return nil, err
	}

	integ, err := s.integrations.FindByAccount(ctx, organizationID, connector.PlatformShopify, shopName)
	switch {
	case err == nil:
		if err := integ.Reauthorize(); err != nil {
			return nil, err
		}
	case errors.Is(err, connector.ErrIntegrationNotFound):
		integ, err = connector.NewPendingIntegration(organizationID, connector.PlatformShopify, shopName)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	if err := s.integrations.Save(ctx, integ); err != nil {
		return nil, err
	}

	nonce := uuid.NewString()
	state, err := s.codec.Encode(organizationID, connector.PlatformShopify, nonce)
	if err != nil {
		return nil, err
	}

	authorizeURL := s.urls.AuthorizeURL(shopName, state, s.redirectURI())

	s.logger.Info("OAuth handshake started",
		zap.String("organization_id", organizationID.String()),
		zap.String("shop", shopName),
	)

	return &ConnectRedirect{AuthorizeURL: authorizeURL, State: state}, nil
}

// CompleteOAuth finishes the OAuth handshake from the platform callback. It
// verifies the callback signature, validates and consumes the state token,
// exchanges the authorization code, checks the granted scopes and activates
// the integration. A scope shortfall on this path is a hard failure: the
// integration is persisted in error status for diagnostics.
func (s *ConnectServiceImpl) CompleteOAuth(ctx context.Context, input CallbackInput) (integ *connector.Integration, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "connect", "complete_oauth")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if !s.verifier.VerifyCallback(input.Params, input.HMAC) {
		return nil, connector.ErrInvalidSignature
	}

	claims, err := s.codec.Decode(input.State)
	if err != nil {
		return nil, err
	}

	used, err := s.nonces.Use(ctx, claims.Nonce, s.config.StateTokenTTL)
	if err != nil {
		// Replay protection degrades to signature-and-expiry checking when the
		// nonce store is unreachable.
		s.logger.Warn("Nonce store unavailable, skipping replay check", zap.Error(err))
	} else if !used {
		return nil, connector.ErrStateReplayed
	}

	shopName, err := shopify.NormalizeShopDomain(input.Shop)
	if err != nil {
		return nil, err
	}

	integ, err = s.handshakeRecord(ctx, claims.OrganizationID, claims.Platform, shopName)
	if err != nil {
		return nil, err
	}

	token, err := s.gateway.ExchangeAuthCode(ctx, shopName, input.Code)
	if err != nil {
		return nil, err
	}

	shop, err := s.gateway.FetchShop(ctx, shopName, token.AccessToken)
	if err != nil {
		return nil, err
	}
	if shop.Domain != shopName {
		return nil, connector.ErrShopMismatch
	}

	granted := token.Scopes
	if len(granted) == 0 {
		granted, err = s.gateway.FetchGrantedScopes(ctx, shopName, token.AccessToken)
		if err != nil {
			return nil, err
		}
	}

	if missing := scopeShortfall(s.config.RequiredScopes, granted); len(missing) > 0 {
		integ.MarkError("MISSING_SCOPES", "granted scopes are insufficient", missing)
		if saveErr := s.integrations.Save(ctx, integ); saveErr != nil {
			return nil, saveErr
		}
		s.logger.Warn("OAuth connect rejected on scope shortfall",
			zap.String("shop", shopName),
			zap.Strings("missing_scopes", missing),
		)
		return nil, connector.ErrMissingScopes
	}

	if err := integ.Activate(token.AccessToken, token.ExpiresAt, shop.Name, granted); err != nil {
		return nil, err
	}
	if err := s.integrations.Save(ctx, integ); err != nil {
		return nil, err
	}

	s.logger.Info("Integration connected over OAuth",
		zap.String("integration_id", integ.ID.String()),
		zap.String("shop", shopName),
	)

	s.kickFirstSync(ctx, integ)
	return integ, nil
}

// ---------------------------------------------------------------------------
// Private token flow
// ---------------------------------------------------------------------------

// ConnectWithToken connects a store using a private app token. The credential
// is shape-checked before any network call and then live-tested against the
// shop endpoint. A scope shortfall on this path is recorded as a warning only.
func (s *ConnectServiceImpl) ConnectWithToken(ctx context.Context, input TokenConnectInput) (result *TokenConnectResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "connect", "token",
		attribute.String("organization_id", input.OrganizationID.String()),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if input.OrganizationID == uuid.Nil {
		return nil, connector.ErrInvalidOrganizationID
	}
	if err := shopify.ValidatePrivateToken(input.AccessToken); err != nil {
		return nil, err
	}

	shopName, err := shopify.NormalizeShopDomain(input.ShopDomain)
	if err != nil {
		return nil, err
	}

	if err := s.ensureNotConnected(ctx, input.OrganizationID, connector.PlatformShopify, shopName); err != nil {
		return nil, err
	}

	shop, err := s.gateway.FetchShop(ctx, shopName, input.AccessToken)
	if err != nil {
		return nil, err
	}

	granted, err := s.gateway.FetchGrantedScopes(ctx, shopName, input.AccessToken)
	if err != nil {
		// The credential already passed a live test; an unreadable scope list
		// only widens the warning.
		s.logger.Warn("Failed to list granted scopes", zap.String("shop", shopName), zap.Error(err))
		granted = nil
	}
	missing := scopeShortfall(s.config.RequiredScopes, granted)

	integ, err := connector.NewActiveIntegration(input.OrganizationID, connector.PlatformShopify, shopName, shop.Name, input.AccessToken)
	if err != nil {
		return nil, err
	}
	integ.GrantedScopes = granted
	integ.MissingScopes = missing

	if err := s.integrations.Save(ctx, integ); err != nil {
		return nil, err
	}

	s.logger.Info("Integration connected with private token",
		zap.String("integration_id", integ.ID.String()),
		zap.String("shop", shopName),
		zap.Strings("missing_scopes", missing),
	)

	s.kickFirstSync(ctx, integ)
	return &TokenConnectResult{Integration: integ, MissingScopes: missing}, nil
}

// ---------------------------------------------------------------------------
// Lifecycle operations
// ---------------------------------------------------------------------------

// Toggle flips an integration between active and inactive
func (s *ConnectServiceImpl) Toggle(ctx context.Context, organizationID, id uuid.UUID) (*connector.Integration, error) {
	integ, err := s.findOwned(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	if err := integ.Toggle(); err != nil {
		return nil, err
	}
	if err := s.integrations.Save(ctx, integ); err != nil {
		return nil, err
	}
	return integ, nil
}

// Refresh exchanges the stored refresh token for a fresh credential
func (s *ConnectServiceImpl) Refresh(ctx context.Context, organizationID, id uuid.UUID) (*connector.Integration, error) {
	integ, err := s.findOwned(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	token, err := s.gateway.RefreshToken(ctx, integ.PlatformAccountID, integ.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := integ.RefreshCredential(token.AccessToken, "", token.ExpiresAt); err != nil {
		return nil, err
	}
	if err := s.integrations.Save(ctx, integ); err != nil {
		return nil, err
	}
	return integ, nil
}

// Delete disconnects an integration. The row is soft-deleted and its webhook
// event records are removed.
func (s *ConnectServiceImpl) Delete(ctx context.Context, organizationID, id uuid.UUID) error {
	if _, err := s.findOwned(ctx, organizationID, id); err != nil {
		return err
	}
	return s.integrations.Delete(ctx, id)
}

// Get retrieves one integration owned by the organization
func (s *ConnectServiceImpl) Get(ctx context.Context, organizationID, id uuid.UUID) (*connector.Integration, error) {
	return s.findOwned(ctx, organizationID, id)
}

// List lists an organization's integrations with pagination
func (s *ConnectServiceImpl) List(ctx context.Context, organizationID uuid.UUID, filter shared.Filter) (*shared.Paginated[connector.Integration], error) {
	filter.Normalize()
	integrations, total, err := s.integrations.FindAll(ctx, organizationID, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(integrations, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Health aggregates connection and webhook delivery health for one integration
func (s *ConnectServiceImpl) Health(ctx context.Context, organizationID, id uuid.UUID) (*IntegrationHealth, error) {
	integ, err := s.findOwned(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	webhooks, err := s.webhookEvents.HealthByIntegration(ctx, id)
	if err != nil {
		return nil, err
	}

	return &IntegrationHealth{
		IntegrationID:  integ.ID,
		Status:         integ.Status,
		SyncInProgress: integ.SyncInProgress,
		LastSyncAt:     integ.LastSyncAt,
		LastSyncResult: integ.LastSyncResult,
		LastSyncError:  integ.LastSyncError,
		MissingScopes:  integ.MissingScopes,
		TokenExpiresAt: integ.TokenExpiresAt,
		Webhooks:       webhooks,
	}, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// findOwned loads an integration and verifies organization ownership. A
// foreign integration is reported as not found, never as forbidden.
func (s *ConnectServiceImpl) findOwned(ctx context.Context, organizationID, id uuid.UUID) (*connector.Integration, error) {
	integ, err := s.integrations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if integ.OrganizationID != organizationID {
		return nil, connector.ErrIntegrationNotFound
	}
	return integ, nil
}

// handshakeRecord loads the pending record created when the handshake began.
// A record that went active in the meantime is a conflict; a missing record
// is recreated so a late callback still lands.
func (s *ConnectServiceImpl) handshakeRecord(ctx context.Context, organizationID uuid.UUID, platform connector.Platform, shopName string) (*connector.Integration, error) {
	integ, err := s.integrations.FindByAccount(ctx, organizationID, platform, shopName)
	if errors.Is(err, connector.ErrIntegrationNotFound) {
		return connector.NewPendingIntegration(organizationID, platform, shopName)
	}
	if err != nil {
		return nil, err
	}
	if integ.Status == connector.StatusActive {
		return nil, connector.ErrIntegrationExists
	}
	if integ.Status != connector.StatusPending {
		if err := integ.Reauthorize(); err != nil {
			return nil, err
		}
	}
	return integ, nil
}

// ensureNotConnected enforces at most one live integration per account triple
func (s *ConnectServiceImpl) ensureNotConnected(ctx context.Context, organizationID uuid.UUID, platform connector.Platform, shopName string) error {
	_, err := s.integrations.FindByAccount(ctx, organizationID, platform, shopName)
	if err == nil {
		return connector.ErrIntegrationExists
	}
	if !errors.Is(err, connector.ErrIntegrationNotFound) {
		return err
	}
	return nil
}

// kickFirstSync starts the initial historical sync for a freshly connected
// integration. Failure to start is logged, not surfaced: the connection
// itself succeeded and the cron cycle will pick the integration up.
func (s *ConnectServiceImpl) kickFirstSync(ctx context.Context, integ *connector.Integration) {
	if s.syncs == nil {
		return
	}
	result, err := s.syncs.Trigger(ctx, integ.OrganizationID, integ.ID, connector.SyncKindFull, "connect")
	if err != nil {
		s.logger.Warn("Failed to start initial sync",
			zap.String("integration_id", integ.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !result.Started {
		s.logger.Info("Initial sync not started",
			zap.String("integration_id", integ.ID.String()),
			zap.String("reason", result.Reason),
		)
	}
}

// redirectURI builds the absolute OAuth callback address
func (s *ConnectServiceImpl) redirectURI() string {
	return strings.TrimRight(s.config.RedirectBaseURL, "/") + callbackPath
}

// scopeShortfall returns the required scopes absent from the granted set
func scopeShortfall(required, granted []string) []string {
	have := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		have[g] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := have[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}
