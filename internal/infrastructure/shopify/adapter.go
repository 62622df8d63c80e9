package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/connector"
)

// maxResponseSize is the maximum allowed response size from the Admin API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// ordersPageSize is the page size used when pulling orders
const ordersPageSize = 250

// webhookTopics are the event topics every integration subscribes to
var webhookTopics = []string{"orders/create", "orders/updated", "app/uninstalled"}

// Adapter talks to the Shopify Admin API. It implements both the
// connection-establishing gateway and the order sync adapter.
type Adapter struct {
	config *Config
	client *RateLimitedClient
	logger *zap.Logger
}

// NewAdapter creates a Shopify adapter with the given configuration
func NewAdapter(config *Config, logger *zap.Logger) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Adapter{
		config: config,
		client: NewRateLimitedClient(config, logger),
		logger: logger,
	}, nil
}

// ---------------------------------------------------------------------------
// Connection operations
// ---------------------------------------------------------------------------

// AuthorizeURL builds the OAuth consent URL for a normalized store name
func (a *Adapter) AuthorizeURL(shopName, state, redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", a.config.APIKey)
	q.Set("scope", strings.Join(a.config.RequiredScopes, ","))
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return fmt.Sprintf("https://%s/admin/oauth/authorize?%s", ShopHost(shopName), q.Encode())
}

// ExchangeAuthCode exchanges an OAuth authorization code for an access token
func (a *Adapter) ExchangeAuthCode(ctx context.Context, shopDomain, code string) (*connector.OAuthToken, error) {
	body, err := json.Marshal(accessTokenRequest{
		ClientID:     a.config.APIKey,
		ClientSecret: a.config.APISecret,
		Code:         code,
	})
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to encode token request: %w", err)
	}

	resp, err := a.client.Do(ctx, &Request{
		Method:      http.MethodPost,
		URL:         fmt.Sprintf("https://%s/admin/oauth/access_token", ShopHost(shopDomain)),
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", connector.ErrTokenExchangeFailed, resp.StatusCode)
	}

	var tokenResp accessTokenResponse
	if err := decodeBody(resp.Body, &tokenResp); err != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrTokenExchangeFailed, err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", connector.ErrTokenExchangeFailed)
	}

	return &connector.OAuthToken{
		AccessToken: tokenResp.AccessToken,
		Scopes:      splitScopes(tokenResp.Scope),
	}, nil
}

// FetchShop retrieves the shop resource, live-testing the credential. Auth
// and availability failures are classified into sentinel errors the
// application layer turns into user-facing reasons.
func (a *Adapter) FetchShop(ctx context.Context, shopDomain, accessToken string) (*connector.ShopDescriptor, error) {
	resp, err := a.client.Do(ctx, &Request{
		Method:      http.MethodGet,
		URL:         a.apiURL(shopDomain, "shop.json"),
		AccessToken: accessToken,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var shopResp shopResponse
	if err := decodeBody(resp.Body, &shopResp); err != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrInvalidShopResponse, err)
	}
	if shopResp.Shop.MyshopifyDom == "" {
		return nil, connector.ErrInvalidShopResponse
	}

	name, err := NormalizeShopDomain(shopResp.Shop.MyshopifyDom)
	if err != nil {
		return nil, connector.ErrInvalidShopResponse
	}

	return &connector.ShopDescriptor{
		Domain:   name,
		Name:     shopResp.Shop.Name,
		Email:    shopResp.Shop.Email,
		Currency: shopResp.Shop.Currency,
		Timezone: shopResp.Shop.IanaTimezone,
		PlanName: shopResp.Shop.PlanName,
	}, nil
}

// FetchGrantedScopes lists the permission scopes granted to a credential
func (a *Adapter) FetchGrantedScopes(ctx context.Context, shopDomain, accessToken string) ([]string, error) {
	resp, err := a.client.Do(ctx, &Request{
		Method:      http.MethodGet,
		URL:         fmt.Sprintf("https://%s/admin/oauth/access_scopes.json", ShopHost(shopDomain)),
		AccessToken: accessToken,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var scopesResp accessScopesResponse
	if err := decodeBody(resp.Body, &scopesResp); err != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrInvalidShopResponse, err)
	}

	scopes := make([]string, 0, len(scopesResp.AccessScopes))
	for _, s := range scopesResp.AccessScopes {
		scopes = append(scopes, s.Handle)
	}
	return scopes, nil
}

// RegisterWebhooks subscribes the callback address to the standard topics.
// Topics that are already subscribed (HTTP 422) are skipped silently.
func (a *Adapter) RegisterWebhooks(ctx context.Context, shopDomain, accessToken, address string) ([]connector.WebhookSubscription, error) {
	subs := make([]connector.WebhookSubscription, 0, len(webhookTopics))

	for _, topic := range webhookTopics {
		body, err := json.Marshal(webhookRequest{Webhook: webhookPayload{
			Topic:   topic,
			Address: address,
			Format:  "json",
		}})
		if err != nil {
			return nil, fmt.Errorf("shopify: failed to encode webhook request: %w", err)
		}

		resp, err := a.client.Do(ctx, &Request{
			Method:      http.MethodPost,
			URL:         a.apiURL(shopDomain, "webhooks.json"),
			ContentType: "application/json",
			Body:        body,
			AccessToken: accessToken,
		})
		if err != nil {
			return subs, fmt.Errorf("%w: %v", connector.ErrWebhookSetupFailed, err)
		}

		if resp.StatusCode == http.StatusUnprocessableEntity {
			// Duplicate subscription from a previous connect.
			resp.Body.Close()
			continue
		}
		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return subs, fmt.Errorf("%w: topic %s HTTP %d", connector.ErrWebhookSetupFailed, topic, resp.StatusCode)
		}

		var webhookResp webhookResponse
		err = decodeBody(resp.Body, &webhookResp)
		resp.Body.Close()
		if err != nil {
			return subs, fmt.Errorf("%w: %v", connector.ErrWebhookSetupFailed, err)
		}

		subs = append(subs, connector.WebhookSubscription{
			ID:      strconv.FormatInt(webhookResp.Webhook.ID, 10),
			Topic:   webhookResp.Webhook.Topic,
			Address: webhookResp.Webhook.Address,
		})
	}

	return subs, nil
}

// RefreshToken exchanges a refresh token for a new credential. The platform's
// offline tokens do not expire, so a stored refresh token is exchanged through
// the same code-exchange endpoint.
func (a *Adapter) RefreshToken(ctx context.Context, shopDomain, refreshToken string) (*connector.OAuthToken, error) {
	if refreshToken == "" {
		return nil, connector.ErrTokenRefreshFailed
	}
	token, err := a.ExchangeAuthCode(ctx, shopDomain, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrTokenRefreshFailed, err)
	}
	return token, nil
}

// ---------------------------------------------------------------------------
// Order sync
// ---------------------------------------------------------------------------

// SyncOrders pulls every order created inside the window, following the
// page_info cursor until exhausted, and returns the run's result.
func (a *Adapter) SyncOrders(ctx context.Context, integ *connector.Integration, window connector.OrderWindow) (*connector.SyncResult, error) {
	kind := connector.SyncKindIncremental
	if integ.LastSyncAt == nil {
		kind = connector.SyncKindFull
	}

	q := url.Values{}
	q.Set("status", "any")
	q.Set("limit", strconv.Itoa(ordersPageSize))
	q.Set("created_at_min", window.Start.UTC().Format(time.RFC3339))
	q.Set("created_at_max", window.End.UTC().Format(time.RFC3339))
	pageURL := a.apiURL(integ.PlatformAccountID, "orders.json") + "?" + q.Encode()

	synced := 0
	for pageURL != "" {
		orders, next, err := a.fetchOrdersPage(ctx, pageURL, integ.AccessToken)
		if err != nil {
			return nil, err
		}
		synced += len(orders)
		pageURL = next
	}

	a.logger.Info("Order sync completed",
		zap.String("shop", integ.PlatformAccountID),
		zap.Int("orders_synced", synced),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
	)

	return &connector.SyncResult{
		Kind:         kind,
		OrdersSynced: synced,
		WindowStart:  window.Start,
		WindowEnd:    window.End,
		CompletedAt:  time.Now(),
	}, nil
}

// fetchOrdersPage pulls one page of orders and returns the next page URL
// extracted from the Link header, or "" when the listing is exhausted.
func (a *Adapter) fetchOrdersPage(ctx context.Context, pageURL, accessToken string) ([]connector.PlatformOrder, string, error) {
	resp, err := a.client.Do(ctx, &Request{
		Method:      http.MethodGet,
		URL:         pageURL,
		AccessToken: accessToken,
	})
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, "", err
	}

	var ordersResp ordersResponse
	if err := decodeBody(resp.Body, &ordersResp); err != nil {
		return nil, "", fmt.Errorf("%w: %v", connector.ErrInvalidShopResponse, err)
	}

	orders := make([]connector.PlatformOrder, 0, len(ordersResp.Orders))
	for _, o := range ordersResp.Orders {
		order := connector.PlatformOrder{
			PlatformOrderID: strconv.FormatInt(o.ID, 10),
			TotalAmount:     ParseDecimal(o.TotalPrice),
			Currency:        o.Currency,
			FinancialStatus: o.FinancialStatus,
		}
		if t, err := time.Parse(time.RFC3339, o.CreatedAt); err == nil {
			order.CreatedAt = t
		}
		orders = append(orders, order)
	}

	return orders, nextPageURL(resp.Header.Get("Link")), nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// apiURL builds a versioned Admin API URL for a normalized store name
func (a *Adapter) apiURL(shopName, resource string) string {
	return fmt.Sprintf("https://%s/admin/api/%s/%s", ShopHost(shopName), ShopifyAPIVersion, resource)
}

// classifyStatus maps Admin API auth and availability statuses onto sentinel
// errors. A nil return means the status is a success.
func classifyStatus(status int) error {
	switch status {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusUnauthorized:
		return connector.ErrCredentialRejected
	case http.StatusForbidden:
		return connector.ErrPermissionDenied
	case http.StatusNotFound:
		return connector.ErrAccountNotFound
	case http.StatusLocked:
		return connector.ErrAccountSuspended
	case http.StatusTooManyRequests:
		return connector.ErrPlatformRateLimited
	default:
		return fmt.Errorf("%w: HTTP %d", connector.ErrUpstreamUnavailable, status)
	}
}

// decodeBody decodes a JSON response body with a size cap
func decodeBody(r io.Reader, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return json.Unmarshal(body, v)
}

// splitScopes splits the comma-separated scope list from a token response
func splitScopes(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	scopes := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// nextPageURL extracts the rel="next" target from a Link header
func nextPageURL(link string) string {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}

// ValidatePrivateToken checks the static shape of a private app token before
// any network call is made.
func ValidatePrivateToken(token string) error {
	if !strings.HasPrefix(token, PrivateTokenPrefix) {
		return connector.ErrInvalidCredential
	}
	if len(token) < PrivateTokenMinLength {
		return connector.ErrInvalidCredential
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return connector.ErrInvalidCredential
	}
	return nil
}

// Ensure Adapter implements its ports
var (
	_ connector.PlatformGateway     = (*Adapter)(nil)
	_ connector.PlatformSyncAdapter = (*Adapter)(nil)
)
