package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/domain/shared"
)

// MockIntegrationRepository is a mock implementation of IntegrationRepository
type MockIntegrationRepository struct {
	mock.Mock
}

func (m *MockIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*connector.Integration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connector.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindByAccount(ctx context.Context, organizationID uuid.UUID, platform connector.Platform, platformAccountID string) (*connector.Integration, error) {
	args := m.Called(ctx, organizationID, platform, platformAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connector.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindAll(ctx context.Context, organizationID uuid.UUID, filter shared.Filter) ([]connector.Integration, int64, error) {
	args := m.Called(ctx, organizationID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]connector.Integration), args.Get(1).(int64), args.Error(2)
}

func (m *MockIntegrationRepository) FindAllByAccount(ctx context.Context, platform connector.Platform, platformAccountID string) ([]connector.Integration, error) {
	args := m.Called(ctx, platform, platformAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]connector.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindSyncCandidates(ctx context.Context, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockIntegrationRepository) Save(ctx context.Context, integ *connector.Integration) error {
	args := m.Called(ctx, integ)
	return args.Error(0)
}

func (m *MockIntegrationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIntegrationRepository) AcquireSyncLock(ctx context.Context, id uuid.UUID, owner string, staleAfter time.Duration) (bool, error) {
	args := m.Called(ctx, id, owner, staleAfter)
	return args.Bool(0), args.Error(1)
}

func (m *MockIntegrationRepository) CompleteSync(ctx context.Context, id uuid.UUID, outcome connector.SyncCompletion) error {
	args := m.Called(ctx, id, outcome)
	return args.Error(0)
}

// MockWebhookEventRepository is a mock implementation of WebhookEventRepository
type MockWebhookEventRepository struct {
	mock.Mock
}

func (m *MockWebhookEventRepository) Save(ctx context.Context, event *connector.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) HealthByIntegration(ctx context.Context, integrationID uuid.UUID) (*connector.WebhookHealth, error) {
	args := m.Called(ctx, integrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connector.WebhookHealth), args.Error(1)
}

func (m *MockWebhookEventRepository) DeleteByIntegration(ctx context.Context, integrationID uuid.UUID) error {
	args := m.Called(ctx, integrationID)
	return args.Error(0)
}

// MockPlatformGateway is a mock implementation of PlatformGateway
type MockPlatformGateway struct {
	mock.Mock
}

func (m *MockPlatformGateway) ExchangeAuthCode(ctx context.Context, shopDomain, code string) (*connector.OAuthToken, error) {
	args := m.Called(ctx, shopDomain, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connector.OAuthToken), args.Error(1)
}

func (m *MockPlatformGateway) FetchShop(ctx context.Context, shopDomain, accessToken string) (*connector.ShopDescriptor, error) {
	args := m.Called(ctx, shopDomain, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connector.ShopDescriptor), args.Error(1)
}

func (m *MockPlatformGateway) FetchGrantedScopes(ctx context.Context, shopDomain, accessToken string) ([]string, error) {
	args := m.Called(ctx, shopDomain, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockPlatformGateway) RegisterWebhooks(ctx context.Context, shopDomain, accessToken, address string) ([]connector.WebhookSubscription, error) {
	args := m.Called(ctx, shopDomain, accessToken, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]connector.WebhookSubscription), args.Error(1)
}

func (m *MockPlatformGateway) RefreshToken(ctx context.Context, shopDomain, refreshToken string) (*connector.OAuthToken, error) {
	args := m.Called(ctx, shopDomain, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connector.OAuthToken), args.Error(1)
}

// MockSyncAdapter is a mock implementation of PlatformSyncAdapter
type MockSyncAdapter struct {
	mock.Mock
}

func (m *MockSyncAdapter) SyncOrders(ctx context.Context, integ *connector.Integration, window connector.OrderWindow) (*connector.SyncResult, error) {
	args := m.Called(ctx, integ, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connector.SyncResult), args.Error(1)
}

// MockNonceGuard is a mock implementation of NonceGuard
type MockNonceGuard struct {
	mock.Mock
}

func (m *MockNonceGuard) Use(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, nonce, ttl)
	return args.Bool(0), args.Error(1)
}

// MockSyncEnqueuer is a mock implementation of SyncEnqueuer
type MockSyncEnqueuer struct {
	mock.Mock
}

func (m *MockSyncEnqueuer) EnqueueSync(ctx context.Context, integrationID uuid.UUID, kind connector.SyncKind, window connector.OrderWindow) error {
	args := m.Called(ctx, integrationID, kind, window)
	return args.Error(0)
}

// stubURLBuilder builds deterministic consent URLs for assertions
type stubURLBuilder struct{}

func (stubURLBuilder) AuthorizeURL(shopName, state, redirectURI string) string {
	return fmt.Sprintf("https://%s.myshopify.com/admin/oauth/authorize?state=%s&redirect_uri=%s", shopName, state, redirectURI)
}

// stubSyncTrigger records trigger calls and answers from a per-ID script
type stubSyncTrigger struct {
	mu       sync.Mutex
	calls    []uuid.UUID
	behavior func(id uuid.UUID) (*SyncTriggerResult, error)
}

func (s *stubSyncTrigger) Trigger(ctx context.Context, organizationID, id uuid.UUID, kind connector.SyncKind, requestedBy string) (*SyncTriggerResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, id)
	s.mu.Unlock()
	if s.behavior != nil {
		return s.behavior(id)
	}
	return &SyncTriggerResult{Started: true, Kind: kind}, nil
}

func (s *stubSyncTrigger) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeIntegrationRepo is an in-memory repository with a real compare-and-set
// sync lock, used to exercise trigger mutual exclusion.
type fakeIntegrationRepo struct {
	mu           sync.Mutex
	integrations map[uuid.UUID]*connector.Integration
}

func newFakeIntegrationRepo(integrations ...*connector.Integration) *fakeIntegrationRepo {
	repo := &fakeIntegrationRepo{integrations: make(map[uuid.UUID]*connector.Integration)}
	for _, integ := range integrations {
		repo.integrations[integ.ID] = integ
	}
	return repo
}

func (r *fakeIntegrationRepo) get(id uuid.UUID) *connector.Integration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.integrations[id]
}

func (r *fakeIntegrationRepo) FindByID(ctx context.Context, id uuid.UUID) (*connector.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	integ, ok := r.integrations[id]
	if !ok {
		return nil, connector.ErrIntegrationNotFound
	}
	copy := *integ
	return &copy, nil
}

func (r *fakeIntegrationRepo) FindByAccount(ctx context.Context, organizationID uuid.UUID, platform connector.Platform, platformAccountID string) (*connector.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, integ := range r.integrations {
		if integ.OrganizationID == organizationID && integ.Platform == platform && integ.PlatformAccountID == platformAccountID {
			copy := *integ
			return &copy, nil
		}
	}
	return nil, connector.ErrIntegrationNotFound
}

func (r *fakeIntegrationRepo) FindAll(ctx context.Context, organizationID uuid.UUID, filter shared.Filter) ([]connector.Integration, int64, error) {
	return nil, 0, nil
}

func (r *fakeIntegrationRepo) FindAllByAccount(ctx context.Context, platform connector.Platform, platformAccountID string) ([]connector.Integration, error) {
	return nil, nil
}

func (r *fakeIntegrationRepo) FindSyncCandidates(ctx context.Context, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, integ := range r.integrations {
		if integ.Status == connector.StatusActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeIntegrationRepo) Save(ctx context.Context, integ *connector.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *integ
	r.integrations[integ.ID] = &copy
	return nil
}

func (r *fakeIntegrationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.integrations[id]; !ok {
		return connector.ErrIntegrationNotFound
	}
	delete(r.integrations, id)
	return nil
}

func (r *fakeIntegrationRepo) AcquireSyncLock(ctx context.Context, id uuid.UUID, owner string, staleAfter time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	integ, ok := r.integrations[id]
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

func (r *fakeIntegrationRepo) CompleteSync(ctx context.Context, id uuid.UUID, outcome connector.SyncCompletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	integ, ok := r.integrations[id]
	if !ok {
		return connector.ErrIntegrationNotFound
	}
	integ.SyncInProgress = false
	integ.SyncStartedAt = nil
	if outcome.Result != nil {
		completedAt := outcome.Result.CompletedAt
		integ.LastSyncAt = &completedAt
		integ.LastSyncResult = outcome.Result
		integ.LastSyncError = nil
	} else if outcome.Error != nil {
		integ.LastSyncError = outcome.Error
	}
	return nil
}
