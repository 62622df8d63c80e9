package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	connectapp "github.com/syncbridge/backend/internal/application/connector"
	"github.com/syncbridge/backend/internal/domain/connector"
)

func signWebhookBody(body string) string {
	h := hmac.New(sha256.New, []byte(testWebhookSecret))
	h.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func newWebhookEngine(f *handlerFixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	service := connectapp.NewWebhookService(f.repo, f.webhooks, f.verifier, zap.NewNop())
	h := NewWebhookHandler(service, zap.NewNop())
	h.RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func TestWebhookHandler_Ingest(t *testing.T) {
	f := newHandlerFixture()
	integ, err := connector.NewActiveIntegration(f.orgID, connector.PlatformShopify, "demo-store", "Demo Store", "shpat_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	f.repo.put(integ)
	engine := newWebhookEngine(f)

	body := `{"id":12345,"total_price":"19.90"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", strings.NewReader(body))
	req.Header.Set("X-Shopify-Shop-Domain", "demo-store.myshopify.com")
	req.Header.Set("X-Shopify-Topic", "orders/create")
	req.Header.Set("X-Shopify-Hmac-Sha256", signWebhookBody(body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, f.webhooks.count())
}

func TestWebhookHandler_Ingest_InvalidSignature(t *testing.T) {
	f := newHandlerFixture()
	engine := newWebhookEngine(f)

	body := `{"id":12345}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", strings.NewReader(body))
	req.Header.Set("X-Shopify-Shop-Domain", "demo-store.myshopify.com")
	req.Header.Set("X-Shopify-Topic", "orders/create")
	req.Header.Set("X-Shopify-Hmac-Sha256", signWebhookBody(body+"tampered"))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, f.webhooks.count())
}

func TestWebhookHandler_Ingest_UnknownShop(t *testing.T) {
	f := newHandlerFixture()
	engine := newWebhookEngine(f)

	body := `{"id":12345}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", strings.NewReader(body))
	req.Header.Set("X-Shopify-Shop-Domain", "unknown-store.myshopify.com")
	req.Header.Set("X-Shopify-Topic", "orders/create")
	req.Header.Set("X-Shopify-Hmac-Sha256", signWebhookBody(body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	// Acknowledged so the platform stops retrying a delivery we cannot use.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.webhooks.count())
}

func TestWebhookHandler_Ingest_MissingHeaders(t *testing.T) {
	f := newHandlerFixture()
	engine := newWebhookEngine(f)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
