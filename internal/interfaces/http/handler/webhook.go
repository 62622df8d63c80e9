package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	connectapp "github.com/syncbridge/backend/internal/application/connector"
	"github.com/syncbridge/backend/internal/domain/connector"
)

// Shopify webhook delivery headers
const (
	webhookTopicHeader     = "X-Shopify-Topic"
	webhookShopHeader      = "X-Shopify-Shop-Domain"
	webhookSignatureHeader = "X-Shopify-Hmac-Sha256"
)

// WebhookHandler receives platform webhook deliveries. Authentication is the
// body HMAC, not a session.
type WebhookHandler struct {
	BaseHandler
	webhooks *connectapp.WebhookServiceImpl
	logger   *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhooks *connectapp.WebhookServiceImpl, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhooks: webhooks,
		logger:   logger,
	}
}

// RegisterRoutes registers all webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/shopify", h.IngestShopify)
	}
}

// IngestShopify verifies and records an inbound Shopify webhook. The platform
// retries deliveries that do not get a 200, so verification failures are the
// only non-200 outcomes; unknown shops are acknowledged to stop retries for
// integrations we no longer hold.
func (h *WebhookHandler) IngestShopify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Unable to read request body")
		return
	}

	shop := c.GetHeader(webhookShopHeader)
	topic := c.GetHeader(webhookTopicHeader)
	signature := c.GetHeader(webhookSignatureHeader)
	if shop == "" || topic == "" || signature == "" {
		h.BadRequest(c, "Missing webhook delivery headers")
		return
	}

	err = h.webhooks.Ingest(c.Request.Context(), shop, topic, body, signature)
	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case errors.Is(err, connector.ErrInvalidSignature):
		h.HandleError(c, err)
	case errors.Is(err, connector.ErrIntegrationNotFound):
		// Acknowledged on purpose; retrying cannot succeed.
		c.Status(http.StatusOK)
	default:
		h.logger.Error("webhook ingest failed",
			zap.String("shop", shop),
			zap.String("topic", topic),
			zap.Error(err),
		)
		h.InternalError(c, "Webhook processing failed")
	}
}
