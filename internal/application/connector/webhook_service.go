package connector

import (
	"context"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/infrastructure/shopify"
)

// WebhookServiceImpl ingests verified platform webhooks. Deliveries carry no
// organization context, so an event is attributed to every integration
// connected to the originating account.
type WebhookServiceImpl struct {
	integrations  connector.IntegrationRepository
	webhookEvents connector.WebhookEventRepository
	verifier      connector.CallbackVerifier
	logger        *zap.Logger
}

// NewWebhookService creates a new WebhookServiceImpl
func NewWebhookService(
	integrations connector.IntegrationRepository,
	webhookEvents connector.WebhookEventRepository,
	verifier connector.CallbackVerifier,
	logger *zap.Logger,
) *WebhookServiceImpl {
	return &WebhookServiceImpl{
		integrations:  integrations,
		webhookEvents: webhookEvents,
		verifier:      verifier,
		logger:        logger,
	}
}

// Ingest verifies and records one inbound webhook delivery. The signature is
// checked over the raw body before anything else; an unverifiable delivery
// leaves no trace.
func (s *WebhookServiceImpl) Ingest(ctx context.Context, shopDomain, topic string, body []byte, signatureBase64 string) error {
	if !s.verifier.VerifyWebhookBody(body, signatureBase64) {
		return connector.ErrInvalidSignature
	}

	shopName, err := shopify.NormalizeShopDomain(shopDomain)
	if err != nil {
		return err
	}

	integrations, err := s.integrations.FindAllByAccount(ctx, connector.PlatformShopify, shopName)
	if err != nil {
		return err
	}
	if len(integrations) == 0 {
		// Verified but unattributable, e.g. delivered after a disconnect.
		s.logger.Warn("Webhook for unknown account",
			zap.String("shop", shopName),
			zap.String("topic", topic),
		)
		return connector.ErrIntegrationNotFound
	}

	for i := range integrations {
		event := connector.NewWebhookEvent(integrations[i].ID, topic)
		if err := s.webhookEvents.Save(ctx, event); err != nil {
			return err
		}
	}

	s.logger.Info("Webhook recorded",
		zap.String("shop", shopName),
		zap.String("topic", topic),
		zap.Int("integrations", len(integrations)),
	)
	return nil
}
