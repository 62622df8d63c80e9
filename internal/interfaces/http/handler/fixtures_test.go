package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	connectapp "github.com/syncbridge/backend/internal/application/connector"
	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/infrastructure/auth"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/shopify"
	"github.com/syncbridge/backend/internal/interfaces/http/middleware"
)

const (
	testStateSecret    = "handler-state-secret"
	testCallbackSecret = "handler-callback-secret"
	testWebhookSecret  = "handler-webhook-secret"
)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memIntegrationRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*connector.Integration
}

func newMemIntegrationRepo() *memIntegrationRepo {
	return &memIntegrationRepo{items: make(map[uuid.UUID]*connector.Integration)}
}

func (r *memIntegrationRepo) put(integ *connector.Integration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *integ
	r.items[integ.ID] = &cp
}

func (r *memIntegrationRepo) get(id uuid.UUID) *connector.Integration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if integ, ok := r.items[id]; ok {
		cp := *integ
		return &cp
	}
	return nil
}

func (r *memIntegrationRepo) FindByID(_ context.Context, id uuid.UUID) (*connector.Integration, error) {
	if integ := r.get(id); integ != nil {
		return integ, nil
	}
	return nil, connector.ErrIntegrationNotFound
}

func (r *memIntegrationRepo) FindByAccount(_ context.Context, organizationID uuid.UUID, platform connector.Platform, platformAccountID string) (*connector.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, integ := range r.items {
		if integ.OrganizationID == organizationID && integ.Platform == platform && integ.PlatformAccountID == platformAccountID {
			cp := *integ
			return &cp, nil
		}
	}
	return nil, connector.ErrIntegrationNotFound
}

func (r *memIntegrationRepo) FindAll(_ context.Context, organizationID uuid.UUID, _ shared.Filter) ([]connector.Integration, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []connector.Integration
	for _, integ := range r.items {
		if integ.OrganizationID == organizationID {
			out = append(out, *integ)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memIntegrationRepo) FindAllByAccount(_ context.Context, platform connector.Platform, platformAccountID string) ([]connector.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []connector.Integration
	for _, integ := range r.items {
		if integ.Platform == platform && integ.PlatformAccountID == platformAccountID {
			out = append(out, *integ)
		}
	}
	return out, nil
}

func (r *memIntegrationRepo) FindSyncCandidates(_ context.Context, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for id, integ := range r.items {
		if integ.Status == connector.StatusActive && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *memIntegrationRepo) Save(_ context.Context, integ *connector.Integration) error {
	r.put(integ)
	return nil
}

func (r *memIntegrationRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *memIntegrationRepo) AcquireSyncLock(_ context.Context, id uuid.UUID, owner string, staleAfter time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	integ, ok := r.items[id]
	if !ok {
		return false, connector.ErrIntegrationNotFound
	}
	if integ.SyncLockHeld(time.Now(), staleAfter) {
		return false, nil
	}
	now := time.Now()
	integ.SyncInProgress = true
	integ.SyncStartedAt = &now
	integ.LastSyncBy = owner
	return true, nil
}

func (r *memIntegrationRepo) CompleteSync(_ context.Context, id uuid.UUID, outcome connector.SyncCompletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	integ, ok := r.items[id]
	if !ok {
		return connector.ErrIntegrationNotFound
	}
	integ.SyncInProgress = false
	integ.SyncStartedAt = nil
	if outcome.Result != nil {
		integ.LastSyncResult = outcome.Result
		at := outcome.Result.CompletedAt
		integ.LastSyncAt = &at
		integ.LastSyncError = nil
	}
	if outcome.Error != nil {
		integ.LastSyncError = outcome.Error
	}
	return nil
}

type memWebhookEventRepo struct {
	mu     sync.Mutex
	events []*connector.WebhookEvent
}

func (r *memWebhookEventRepo) Save(_ context.Context, event *connector.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *memWebhookEventRepo) HealthByIntegration(_ context.Context, integrationID uuid.UUID) (*connector.WebhookHealth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	health := &connector.WebhookHealth{}
	for _, e := range r.events {
		if e.IntegrationID != integrationID {
			continue
		}
		health.Received++
		at := e.ReceivedAt
		health.LastReceivedAt = &at
	}
	return health, nil
}

func (r *memWebhookEventRepo) DeleteByIntegration(_ context.Context, integrationID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.events[:0]
	for _, e := range r.events {
		if e.IntegrationID != integrationID {
			kept = append(kept, e)
		}
	}
	r.events = kept
	return nil
}

func (r *memWebhookEventRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// ---------------------------------------------------------------------------
// Stub ports
// ---------------------------------------------------------------------------

type stubGateway struct {
	mu          sync.Mutex
	fetchShop   func(shopDomain string) (*connector.ShopDescriptor, error)
	fetchScopes func(shopDomain string) ([]string, error)
	exchange    func(shopDomain, code string) (*connector.OAuthToken, error)
	calls       []string
}

func (g *stubGateway) record(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, name)
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *stubGateway) ExchangeAuthCode(_ context.Context, shopDomain, code string) (*connector.OAuthToken, error) {
	g.record("ExchangeAuthCode")
	if g.exchange != nil {
		return g.exchange(shopDomain, code)
	}
	return &connector.OAuthToken{AccessToken: "shpat_" + shopDomain, Scopes: []string{"read_orders", "read_products"}}, nil
}

func (g *stubGateway) FetchShop(_ context.Context, shopDomain, _ string) (*connector.ShopDescriptor, error) {
	g.record("FetchShop")
	if g.fetchShop != nil {
		return g.fetchShop(shopDomain)
	}
	return &connector.ShopDescriptor{Domain: shopDomain, Name: "Demo Store"}, nil
}

func (g *stubGateway) FetchGrantedScopes(_ context.Context, shopDomain, _ string) ([]string, error) {
	g.record("FetchGrantedScopes")
	if g.fetchScopes != nil {
		return g.fetchScopes(shopDomain)
	}
	return []string{"read_orders", "read_products"}, nil
}

func (g *stubGateway) RegisterWebhooks(_ context.Context, _, _, address string) ([]connector.WebhookSubscription, error) {
	g.record("RegisterWebhooks")
	return []connector.WebhookSubscription{{ID: "1", Topic: "orders/create", Address: address}}, nil
}

func (g *stubGateway) RefreshToken(_ context.Context, shopDomain, _ string) (*connector.OAuthToken, error) {
	g.record("RefreshToken")
	return &connector.OAuthToken{AccessToken: "shpat_refreshed_" + shopDomain}, nil
}

type stubNonces struct {
	mu   sync.Mutex
	used map[string]bool
}

func (n *stubNonces) Use(_ context.Context, nonce string, _ time.Duration) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.used == nil {
		n.used = make(map[string]bool)
	}
	if n.used[nonce] {
		return false, nil
	}
	n.used[nonce] = true
	return true, nil
}

type stubTrigger struct {
	mu     sync.Mutex
	calls  []uuid.UUID
	result *connectapp.SyncTriggerResult
	err    error
}

func (s *stubTrigger) Trigger(_ context.Context, _, id uuid.UUID, kind connector.SyncKind, _ string) (*connectapp.SyncTriggerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	now := time.Now()
	return &connectapp.SyncTriggerResult{
		Started:     true,
		Kind:        kind,
		WindowStart: now.Add(-30 * 24 * time.Hour),
		WindowEnd:   now,
	}, nil
}

func (s *stubTrigger) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubURLBuilder struct{}

func (stubURLBuilder) AuthorizeURL(shopName, state, redirectURI string) string {
	return fmt.Sprintf("https://%s.myshopify.com/admin/oauth/authorize?state=%s&redirect_uri=%s", shopName, state, redirectURI)
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type handlerFixture struct {
	repo     *memIntegrationRepo
	webhooks *memWebhookEventRepo
	gateway  *stubGateway
	trigger  *stubTrigger
	codec    *shopify.StateTokenCodec
	verifier *shopify.SignatureVerifier
	connects *connectapp.ConnectServiceImpl
	orgID    uuid.UUID
	userID   uuid.UUID
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		repo:     newMemIntegrationRepo(),
		webhooks: &memWebhookEventRepo{},
		gateway:  &stubGateway{},
		trigger:  &stubTrigger{},
		codec:    shopify.NewStateTokenCodec(testStateSecret, 5*time.Minute),
		verifier: shopify.NewSignatureVerifier(testCallbackSecret, testWebhookSecret),
		orgID:    uuid.New(),
		userID:   uuid.New(),
	}

	cfg := config.ShopifyConfig{
		APIKey:          "test-api-key",
		APISecret:       testCallbackSecret,
		RequiredScopes:  []string{"read_orders", "read_products"},
		RedirectBaseURL: "https://api.syncbridge.test",
		StateTokenTTL:   5 * time.Minute,
	}

	f.connects = connectapp.NewConnectService(
		f.repo,
		f.webhooks,
		f.gateway,
		stubURLBuilder{},
		f.codec,
		f.verifier,
		&stubNonces{},
		f.trigger,
		cfg,
		zap.NewNop(),
	)
	return f
}

// newTestEngine builds a gin engine with the integration routes registered
// under /api/v1. When authed is true the session context keys are injected
// the way the JWT middleware would.
func (f *handlerFixture) newTestEngine(authed bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	api := engine.Group("/api/v1")
	if authed {
		api.Use(func(c *gin.Context) {
			c.Set(middleware.JWTOrgIDKey, f.orgID.String())
			c.Set(middleware.JWTUserIDKey, f.userID.String())
			c.Set(middleware.JWTClaimsKey, &auth.Claims{
				OrganizationID: f.orgID.String(),
				UserID:         f.userID.String(),
				Role:           auth.RoleMember,
			})
			c.Next()
		})
	}
	h := NewIntegrationHandler(f.connects, f.trigger, "https://app.syncbridge.test")
	h.RegisterRoutes(api)
	return engine
}

// signedCallbackQuery builds a callback query string whose HMAC verifies
// against the fixture's callback secret.
func signedCallbackQuery(shop, code, state string) string {
	params := map[string]string{
		"shop":      shop + ".myshopify.com",
		"code":      code,
		"state":     state,
		"timestamp": "1700000000",
	}
	hmac := shopify.CanonicalSignature(params, []byte(testCallbackSecret))
	return fmt.Sprintf("shop=%s&code=%s&state=%s&timestamp=%s&hmac=%s",
		params["shop"], code, state, params["timestamp"], hmac)
}
