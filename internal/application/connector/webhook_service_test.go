package connector

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/infrastructure/shopify"
)

const testWebhookSecret = "test-webhook-secret"

func signWebhookBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newWebhookFixture() (*WebhookServiceImpl, *MockIntegrationRepository, *MockWebhookEventRepository) {
	repo := new(MockIntegrationRepository)
	events := new(MockWebhookEventRepository)
	service := NewWebhookService(repo, events, shopify.NewSignatureVerifier("", testWebhookSecret), zap.NewNop())
	return service, repo, events
}

func TestWebhookService_Ingest(t *testing.T) {
	service, repo, events := newWebhookFixture()
	ctx := context.Background()
	body := []byte(`{"id":1234,"total_price":"10.00"}`)

	first, err := connector.NewActiveIntegration(uuid.New(), connector.PlatformShopify, "my-store", "My Store", "shpat_a")
	require.NoError(t, err)
	second, err := connector.NewActiveIntegration(uuid.New(), connector.PlatformShopify, "my-store", "My Store", "shpat_b")
	require.NoError(t, err)

	repo.On("FindAllByAccount", ctx, connector.PlatformShopify, "my-store").
		Return([]connector.Integration{*first, *second}, nil)

	var saved []*connector.WebhookEvent
	events.On("Save", ctx, mock.AnythingOfType("*connector.WebhookEvent")).
		Run(func(args mock.Arguments) { saved = append(saved, args.Get(1).(*connector.WebhookEvent)) }).
		Return(nil)

	err = service.Ingest(ctx, "my-store.myshopify.com", "orders/create", body, signWebhookBody(body))
	require.NoError(t, err)

	// Deliveries carry no organization context, so every integration of the
	// account gets an event.
	require.Len(t, saved, 2)
	assert.Equal(t, first.ID, saved[0].IntegrationID)
	assert.Equal(t, second.ID, saved[1].IntegrationID)
	assert.Equal(t, "orders/create", saved[0].Topic)
	assert.Equal(t, connector.WebhookEventStatusReceived, saved[0].Status)
}

func TestWebhookService_Ingest_InvalidSignature(t *testing.T) {
	service, repo, _ := newWebhookFixture()
	body := []byte(`{"id":1234}`)

	err := service.Ingest(context.Background(), "my-store", "orders/create", body, signWebhookBody([]byte("other body")))
	assert.ErrorIs(t, err, connector.ErrInvalidSignature)
	repo.AssertNotCalled(t, "FindAllByAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookService_Ingest_UnknownAccount(t *testing.T) {
	service, repo, events := newWebhookFixture()
	ctx := context.Background()
	body := []byte(`{"id":1}`)

	repo.On("FindAllByAccount", ctx, connector.PlatformShopify, "ghost-store").
		Return([]connector.Integration{}, nil)

	err := service.Ingest(ctx, "ghost-store", "orders/create", body, signWebhookBody(body))
	assert.ErrorIs(t, err, connector.ErrIntegrationNotFound)
	events.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
